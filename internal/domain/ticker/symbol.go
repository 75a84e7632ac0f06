package ticker

import (
	"regexp"
	"strings"
)

const (
	// MaxSymbolLength is the longest canonical symbol accepted
	MaxSymbolLength = 10
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]*$`)

// NormalizeSymbol trims and uppercases a raw symbol and rewrites share-class
// separators ("/" and "\") to "-", the provider's convention (BRK/B -> BRK-B)
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, `\`, "-")
	return s
}

// ValidateSymbol checks the canonical symbol format.
// Returns nil or an *InvalidSymbolError with an empty Origin.
func ValidateSymbol(symbol string) error {
	switch {
	case symbol == "":
		return &InvalidSymbolError{Symbol: symbol, Reason: "empty symbol"}
	case strings.Contains(symbol, "^"):
		return &InvalidSymbolError{Symbol: symbol, Reason: "unsupported class marker"}
	case len(symbol) > MaxSymbolLength:
		return &InvalidSymbolError{Symbol: symbol, Reason: "symbol too long"}
	case !symbolPattern.MatchString(symbol):
		return &InvalidSymbolError{Symbol: symbol, Reason: "invalid characters"}
	}
	return nil
}

func normalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

// NormalizeCompany trims a company name; blank names become nil
func NormalizeCompany(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

package ticker

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Source errors (recoverable, symbol granularity)
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrConflictingSource = errors.New("symbol listed under conflicting exchanges")

	// Run errors (fatal)
	ErrEmptySourceSet      = errors.New("source set is empty")
	ErrSourceUnreadable    = errors.New("listing source unreadable")
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")

	// Provider errors
	ErrQuoteNotFound     = errors.New("quote not found")
	ErrProviderTransient = errors.New("transient provider error")
	ErrInvalidResponse   = errors.New("invalid response from provider")

	// Persistence errors
	ErrPlanApplyFailed = errors.New("plan apply failed")
	ErrRunNotFound     = errors.New("sync run not found")
)

// InvalidSymbolError reports a listing symbol that failed canonical-format validation
type InvalidSymbolError struct {
	Symbol string `json:"symbol"`
	Origin string `json:"origin,omitempty"`
	Reason string `json:"reason"`
}

func (e *InvalidSymbolError) Error() string {
	if e.Origin == "" {
		return fmt.Sprintf("invalid symbol %q: %s", e.Symbol, e.Reason)
	}
	return fmt.Sprintf("invalid symbol %q in %s: %s", e.Symbol, e.Origin, e.Reason)
}

func (e *InvalidSymbolError) Unwrap() error {
	return ErrInvalidSymbol
}

// ConflictingSourceError records a symbol that appeared under two exchanges.
// Kept is the entry that made it into the SourceSet.
type ConflictingSourceError struct {
	Symbol    string      `json:"symbol"`
	Kept      SourceEntry `json:"kept"`
	Discarded SourceEntry `json:"discarded"`
}

func (e *ConflictingSourceError) Error() string {
	return fmt.Sprintf("symbol %s: kept %s (%s), discarded %s (%s)",
		e.Symbol, e.Kept.Exchange, e.Kept.Origin, e.Discarded.Exchange, e.Discarded.Origin)
}

func (e *ConflictingSourceError) Unwrap() error {
	return ErrConflictingSource
}

// AbortReason is the terminal reason of an aborted run
type AbortReason string

const (
	AbortEmptySourceSet      AbortReason = "EmptySourceSet"
	AbortSourceUnreadable    AbortReason = "SourceUnreadable"
	AbortSnapshotUnavailable AbortReason = "SnapshotUnavailable"
)

// AbortError is returned when a run cannot produce a plan
type AbortError struct {
	Reason AbortReason
	Err    error
}

func (e *AbortError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("run aborted: %s", e.Reason)
	}
	return fmt.Sprintf("run aborted: %s: %v", e.Reason, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// IsTransient checks if a provider error is worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderTransient)
}

// IsNotFound checks if a provider error means the symbol has no quote
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuoteNotFound)
}

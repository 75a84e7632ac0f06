// Package listing reads exchange listing files into ticker.ListingInput values.
//
// Text format, one entry per line:
//
//	SYMBOL
//	SYMBOL|Company Name
//	SYMBOL|Company Name|EXCHANGE
//
// Blank lines, "#" comments, a "Symbol|..." header and the NASDAQ
// "File Creation Time" trailer are skipped. A JSON array of symbols is
// accepted as well.
package listing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wonny/tickersync/internal/domain/ticker"
)

const maxListingBytes = 64 << 20

// InferExchange derives the exchange from a file name or URL
func InferExchange(origin string) ticker.Exchange {
	name := strings.ToLower(filepath.Base(origin))
	switch {
	case strings.Contains(name, "nyse"):
		return ticker.ExchangeNYSE
	case strings.Contains(name, "nasdaq"):
		return ticker.ExchangeNASDAQ
	default:
		return ticker.ExchangeUnknown
	}
}

// ParseFile reads one listing file
func ParseFile(path string) (ticker.ListingInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return ticker.ListingInput{}, fmt.Errorf("open listing: %w", err)
	}
	defer f.Close()

	return ParseReader(f, path)
}

// ParseFiles reads several listing files in order. A missing or unreadable
// file is kept as an input with Err set so the run aborts instead of
// reconciling against a partial listing.
func ParseFiles(paths []string) []ticker.ListingInput {
	inputs := make([]ticker.ListingInput, 0, len(paths))
	for _, path := range paths {
		in, err := ParseFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Listing file unreadable")
			in = ticker.ListingInput{Origin: path, Exchange: InferExchange(path), Err: err}
		}
		inputs = append(inputs, in)
	}
	return inputs
}

// ParseReader parses a listing from r; origin names the source and drives exchange inference
func ParseReader(r io.Reader, origin string) (ticker.ListingInput, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxListingBytes))
	if err != nil {
		return ticker.ListingInput{}, fmt.Errorf("read listing %s: %w", origin, err)
	}

	input := ticker.ListingInput{Origin: origin, Exchange: InferExchange(origin)}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		input.Entries, err = parseJSON(trimmed)
	} else {
		input.Entries, err = parseLines(data)
	}
	if err != nil {
		return ticker.ListingInput{}, fmt.Errorf("parse listing %s: %w", origin, err)
	}

	log.Info().
		Str("origin", origin).
		Str("exchange", string(input.Exchange)).
		Int("entries", len(input.Entries)).
		Msg("Listing loaded")

	return input, nil
}

func parseJSON(data []byte) ([]ticker.ListingEntry, error) {
	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return nil, fmt.Errorf("expected a JSON array of symbols: %w", err)
	}
	entries := make([]ticker.ListingEntry, 0, len(symbols))
	for _, s := range symbols {
		if strings.TrimSpace(s) == "" {
			continue
		}
		entries = append(entries, ticker.ListingEntry{Symbol: s})
	}
	return entries, nil
}

func parseLines(data []byte) ([]ticker.ListingEntry, error) {
	var entries []ticker.ListingEntry

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if skipLine(line) {
			continue
		}

		fields := strings.Split(line, "|")
		entry := ticker.ListingEntry{Symbol: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			if company := strings.TrimSpace(fields[1]); company != "" {
				entry.Company = &company
			}
		}
		if len(fields) > 2 {
			entry.ExchangeHint = strings.TrimSpace(fields[2])
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func skipLine(line string) bool {
	if line == "" || strings.HasPrefix(line, "#") {
		return true
	}
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "symbol|") ||
		strings.HasPrefix(lower, "act symbol|") ||
		strings.HasPrefix(lower, "file creation time")
}

// Fetcher downloads listings over HTTP
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher; a nil client gets a 30s timeout client
func NewFetcher(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{httpClient: httpClient}
}

// FetchURL downloads and parses one listing
func (f *Fetcher) FetchURL(ctx context.Context, url string) (ticker.ListingInput, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ticker.ListingInput{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return ticker.ListingInput{}, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ticker.ListingInput{}, fmt.Errorf("fetch listing %s: unexpected status: %d", url, resp.StatusCode)
	}

	return ParseReader(resp.Body, url)
}

package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/wonny/tickersync/internal/domain/ticker"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	defaultTimeout = 10 * time.Second
	quotePath      = "/v7/finance/quote"
	maxBodyBytes   = 1 << 20
)

// APIError is a non-2xx answer from the quote API
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true for rate limiting and server errors
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Unwrap maps retryable statuses to ticker.ErrProviderTransient
func (e *APIError) Unwrap() error {
	if e.IsRetryable() {
		return ticker.ErrProviderTransient
	}
	return nil
}

// Client Yahoo Finance quote API 클라이언트
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBaseURL overrides the API host
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient 클라이언트 생성
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "Mozilla/5.0 (compatible; tickersync/1.0)",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// API Response Types
// =============================================================================

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteDTO `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

type quoteDTO struct {
	Symbol    string           `json:"symbol"`
	MarketCap *decimal.Decimal `json:"marketCap"`
	LongName  string           `json:"longName"`
	ShortName string           `json:"shortName"`
}

// toQuote converts the API record; the company name prefers longName over shortName
func (d quoteDTO) toQuote() *ticker.Quote {
	q := &ticker.Quote{Symbol: d.Symbol, MarketCap: d.MarketCap}
	for _, name := range []string{d.LongName, d.ShortName} {
		if n := ticker.NormalizeCompany(&name); n != nil {
			q.CompanyName = n
			break
		}
	}
	return q
}

// =============================================================================
// Quote lookup
// =============================================================================

// LookupQuote implements ticker.QuoteProvider.
//
//	404 or empty result      -> ticker.ErrQuoteNotFound
//	429, 5xx, network errors -> wraps ticker.ErrProviderTransient
//	other 4xx, bad JSON      -> final error
func (c *Client) LookupQuote(ctx context.Context, symbol string) (*ticker.Quote, error) {
	query := url.Values{}
	query.Set("symbols", symbol)

	body, err := c.get(ctx, quotePath, query)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", symbol, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lookup %s: %w: %v", symbol, ticker.ErrInvalidResponse, err)
	}
	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("lookup %s: %w: %s", symbol, ticker.ErrInvalidResponse, resp.QuoteResponse.Error.Description)
	}

	for _, dto := range resp.QuoteResponse.Result {
		if strings.EqualFold(dto.Symbol, symbol) {
			q := dto.toQuote()
			q.Symbol = symbol

			log.Debug().
				Str("symbol", symbol).
				Bool("has_market_cap", q.MarketCap != nil).
				Msg("Fetched quote from Yahoo")
			return q, nil
		}
	}

	return nil, fmt.Errorf("lookup %s: %w", symbol, ticker.ErrQuoteNotFound)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", ticker.ErrProviderTransient, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ticker.ErrQuoteNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// classifyTransportError marks network failures transient unless the caller's ctx ended
func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("do request: %w", ctxErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("do request: %w: %w", ticker.ErrProviderTransient, err)
	}
	return fmt.Errorf("do request: %w", err)
}

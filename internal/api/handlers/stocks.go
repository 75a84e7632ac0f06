package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/tickersync/internal/api/response"
	"github.com/wonny/tickersync/internal/domain/ticker"
)

// StockCounter reports stored tickers per exchange
type StockCounter interface {
	CountByExchange(ctx context.Context) (map[ticker.Exchange]int, error)
}

// StocksHandler serves ticker table statistics
type StocksHandler struct {
	stocks StockCounter
}

// NewStocksHandler creates a new stocks handler
func NewStocksHandler(stocks StockCounter) *StocksHandler {
	return &StocksHandler{stocks: stocks}
}

// StockStats is the table summary
type StockStats struct {
	Total      int                     `json:"total"`
	ByExchange map[ticker.Exchange]int `json:"by_exchange"`
}

// Stats returns row counts
// GET /api/stocks/stats
func (h *StocksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.stocks.CountByExchange(r.Context())
	if err != nil {
		response.DatabaseError(w, r, err)
		return
	}

	stats := StockStats{ByExchange: counts}
	for _, n := range counts {
		stats.Total += n
	}
	response.Success(w, r, stats)
}

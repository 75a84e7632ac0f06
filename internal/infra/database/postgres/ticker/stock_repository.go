package ticker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/wonny/tickersync/internal/domain/ticker"
	"github.com/wonny/tickersync/internal/infra/database/postgres"
)

// StockRepository PostgreSQL 종목 저장소 (stocks)
// Implements ticker.SnapshotReader, ticker.Persister and ticker.TickerCounter.
type StockRepository struct {
	pool *postgres.Pool
}

// NewStockRepository 저장소 생성
func NewStockRepository(pool *postgres.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// stockRow is one row of the stocks table as scanned
type stockRow struct {
	Symbol        string
	Company       *string
	Exchange      string
	MarketCap     decimal.NullDecimal
	LastUpdatedAt time.Time
}

// toRecord converts a scanned row to the domain record
func (r stockRow) toRecord() ticker.TickerRecord {
	rec := ticker.TickerRecord{
		Symbol:      r.Symbol,
		Exchange:    ticker.ParseExchange(r.Exchange),
		Company:     ticker.NormalizeCompany(r.Company),
		LastUpdated: r.LastUpdatedAt.UTC(),
	}
	if r.MarketCap.Valid {
		mc := r.MarketCap.Decimal
		rec.MarketCap = &mc
	}
	return rec
}

// upsertArgs converts a domain record to the upsert statement arguments
func upsertArgs(rec ticker.TickerRecord) []any {
	mc := decimal.NullDecimal{}
	if rec.MarketCap != nil {
		mc = decimal.NullDecimal{Decimal: *rec.MarketCap, Valid: true}
	}
	exchange := rec.Exchange
	if exchange == "" {
		exchange = ticker.ExchangeUnknown
	}
	return []any{rec.Symbol, rec.Company, string(exchange), mc, rec.LastUpdated}
}

const upsertStockQuery = `
	INSERT INTO stocks (symbol, company, exchange, market_cap, created_at, last_updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT (symbol) DO UPDATE SET
		company = EXCLUDED.company,
		exchange = EXCLUDED.exchange,
		market_cap = EXCLUDED.market_cap,
		last_updated_at = EXCLUDED.last_updated_at
`

// LoadSnapshot 전체 종목 조회
func (r *StockRepository) LoadSnapshot(ctx context.Context) (ticker.Snapshot, error) {
	query := `
		SELECT symbol, company, exchange, market_cap, last_updated_at
		FROM stocks
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return ticker.Snapshot{}, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	var records []ticker.TickerRecord
	for rows.Next() {
		var row stockRow
		if err := rows.Scan(&row.Symbol, &row.Company, &row.Exchange, &row.MarketCap, &row.LastUpdatedAt); err != nil {
			return ticker.Snapshot{}, fmt.Errorf("scan stock: %w", err)
		}
		records = append(records, row.toRecord())
	}
	if err := rows.Err(); err != nil {
		return ticker.Snapshot{}, fmt.Errorf("iterate stocks: %w", err)
	}

	log.Debug().Int("count", len(records)).Msg("Snapshot loaded")
	return ticker.NewSnapshot(records), nil
}

// ApplyPlan applies the plan in one transaction: deletes first, then upserts.
// On any failure the transaction is rolled back and nothing changes.
func (r *StockRepository) ApplyPlan(ctx context.Context, plan *ticker.PersistencePlan) (*ticker.ApplyResult, error) {
	result := &ticker.ApplyResult{}
	if plan.IsEmpty() {
		return result, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// no-op after commit
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Warn().Err(err).Msg("Rollback failed")
		}
	}()

	if deletes := plan.Deletes(); len(deletes) > 0 {
		tag, err := tx.Exec(ctx, `DELETE FROM stocks WHERE symbol = ANY($1)`, deletes)
		if err != nil {
			return nil, fmt.Errorf("delete stocks: %w", err)
		}
		result.Deleted = int(tag.RowsAffected())
	}

	upserts := plan.Upserts()
	if len(upserts) > 0 {
		batch := &pgx.Batch{}
		for _, rec := range upserts {
			batch.Queue(upsertStockQuery, upsertArgs(rec)...)
		}

		br := tx.SendBatch(ctx, batch)
		for _, rec := range upserts {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return nil, fmt.Errorf("batch upsert stock %s: %w", rec.Symbol, err)
			}
			result.Upserted++
		}
		if err := br.Close(); err != nil {
			return nil, fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit plan: %w", err)
	}

	log.Info().
		Int("deleted", result.Deleted).
		Int("upserted", result.Upserted).
		Msg("Plan applied")

	return result, nil
}

// CountTickers 종목 수 조회
func (r *StockRepository) CountTickers(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stocks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stocks: %w", err)
	}
	return count, nil
}

// CountByExchange 거래소별 종목 수 조회
func (r *StockRepository) CountByExchange(ctx context.Context) (map[ticker.Exchange]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT exchange, COUNT(*) FROM stocks GROUP BY exchange`)
	if err != nil {
		return nil, fmt.Errorf("count stocks by exchange: %w", err)
	}
	defer rows.Close()

	counts := make(map[ticker.Exchange]int)
	for rows.Next() {
		var exchange string
		var n int
		if err := rows.Scan(&exchange, &n); err != nil {
			return nil, fmt.Errorf("scan exchange count: %w", err)
		}
		counts[ticker.ParseExchange(exchange)] += n
	}
	return counts, rows.Err()
}

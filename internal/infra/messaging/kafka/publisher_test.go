package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickersync/internal/domain/ticker"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testPlan() *ticker.PersistencePlan {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mc := decimal.NewFromInt(1000)
	return &ticker.PersistencePlan{
		RunTime: now,
		Actions: []ticker.Action{
			{Kind: ticker.ActionDelete, Symbol: "OLD"},
			{Kind: ticker.ActionUpsert, Symbol: "AAPL", Record: &ticker.TickerRecord{
				Symbol: "AAPL", Exchange: ticker.ExchangeNASDAQ, MarketCap: &mc, LastUpdated: now,
			}},
		},
		Rejections: []ticker.Rejection{},
	}
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w)
	runID := uuid.New()

	require.NoError(t, p.Publish(t.Context(), runID, testPlan()))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "OLD", string(w.msgs[0].Key))
	assert.Equal(t, "AAPL", string(w.msgs[1].Key))
	assert.Equal(t, runID.String(), string(w.msgs[1].Headers[0].Value))
	assert.Equal(t, "upsert", string(w.msgs[1].Headers[1].Value))

	var ev TickerEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, runID, ev.RunID)
	assert.Equal(t, ticker.ActionUpsert, ev.Kind)
	require.NotNil(t, ev.Record)
	assert.Equal(t, ticker.ExchangeNASDAQ, ev.Record.Exchange)

	var del TickerEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &del))
	assert.Equal(t, ticker.ActionDelete, del.Kind)
	assert.Nil(t, del.Record)
}

func TestPublisher_EmptyPlan(t *testing.T) {
	w := &fakeWriter{err: errors.New("must not be called")}
	p := NewPublisherWithWriter(w)

	assert.NoError(t, p.Publish(t.Context(), uuid.New(), &ticker.PersistencePlan{}))
	assert.NoError(t, p.Publish(t.Context(), uuid.New(), nil))
}

func TestPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewPublisherWithWriter(w)

	err := p.Publish(t.Context(), uuid.New(), testPlan())
	assert.ErrorContains(t, err, "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

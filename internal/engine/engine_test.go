package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/tomb.v2"

	"ironbook/internal/book"
	"ironbook/internal/metrics"
	"ironbook/internal/queue"
)

func newTestEngine() (*Engine, *queue.Submission) {
	q := queue.New()
	clock := book.NewClock()
	e := New(q, clock, metrics.NewLatency())
	return e, q
}

func TestEngineProcessesInSubmissionOrder(t *testing.T) {
	e, q := newTestEngine()

	var trades []book.Trade
	e.SetTradeCallback(func(tr book.Trade) { trades = append(trades, tr) })

	var tb tomb.Tomb
	tb.Go(func() error { return e.Run(&tb) })

	require.NoError(t, q.Submit(book.Order{ID: 1, Side: book.Buy, Price: 10000, Quantity: 10}))
	require.NoError(t, q.Submit(book.Order{ID: 2, Side: book.Sell, Price: 10000, Quantity: 10}))

	q.Close()
	require.NoError(t, tb.Wait())

	require.Len(t, trades, 1)
	assert.Equal(t, uint64(1), trades[0].BuyOrderID)
	assert.Equal(t, uint64(2), trades[0].SellOrderID)
	assert.Equal(t, uint64(2), e.OrdersProcessed())
	assert.Equal(t, uint64(1), e.TradesExecuted())
}

func TestEngineSnapshotsBestBidAsk(t *testing.T) {
	e, q := newTestEngine()
	e.SetTradeCallback(func(book.Trade) {})

	var tb tomb.Tomb
	tb.Go(func() error { return e.Run(&tb) })

	require.NoError(t, q.Submit(book.Order{ID: 1, Side: book.Buy, Price: 9900, Quantity: 5}))
	require.NoError(t, q.Submit(book.Order{ID: 2, Side: book.Sell, Price: 10100, Quantity: 5}))

	assert.Eventually(t, func() bool {
		_, bidOK := e.BestBid()
		_, askOK := e.BestAsk()
		return bidOK && askOK
	}, time.Second, time.Millisecond)

	bid, _ := e.BestBid()
	ask, _ := e.BestAsk()
	assert.Equal(t, book.Price(9900), bid)
	assert.Equal(t, book.Price(10100), ask)

	q.Close()
	require.NoError(t, tb.Wait())
}

func TestEngineInvalidOrderIsLoggedNotFatal(t *testing.T) {
	e, q := newTestEngine()
	e.SetTradeCallback(func(book.Trade) {})

	var tb tomb.Tomb
	tb.Go(func() error { return e.Run(&tb) })

	require.NoError(t, q.Submit(book.Order{ID: 1, Side: book.Buy, Price: 0, Quantity: 5}))
	require.NoError(t, q.Submit(book.Order{ID: 2, Side: book.Buy, Price: 10000, Quantity: 5}))

	q.Close()
	require.NoError(t, tb.Wait())

	assert.Equal(t, 1, e.Depth(book.Buy))
}

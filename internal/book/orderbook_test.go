package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBook() *OrderBook {
	return NewOrderBook(NewClock())
}

func order(id uint64, side Side, price Price, qty uint32, submittedAt Mono) Order {
	return Order{ID: id, Side: side, Price: price, Quantity: qty, SubmittedAt: submittedAt}
}

func TestPlace_InvalidOrder(t *testing.T) {
	b := newTestBook()

	_, err := b.Place(order(1, Buy, 100, 0, 0))
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = b.Place(order(1, Buy, 0, 10, 0))
	assert.ErrorIs(t, err, ErrInvalidOrder)

	assert.Equal(t, 0, b.Depth(Buy))
}

// S1 — Full fill at resting price.
func TestScenario_S1_FullFill(t *testing.T) {
	b := newTestBook()

	trades, err := b.Place(order(1, Buy, 10000, 10, 0))
	require.NoError(t, err)
	assert.Empty(t, trades)

	trades, err = b.Place(order(2, Sell, 10000, 10, 1))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, Trade{BuyOrderID: 1, SellOrderID: 2, Price: 10000, Quantity: 10, ExecutedAt: trades[0].ExecutedAt}, trades[0])

	assert.Equal(t, 0, b.Depth(Buy))
	assert.Equal(t, 0, b.Depth(Sell))
}

// S2 — Partial fill, buy side residual.
func TestScenario_S2_PartialFill(t *testing.T) {
	b := newTestBook()

	_, err := b.Place(order(1, Buy, 10000, 10, 0))
	require.NoError(t, err)

	trades, err := b.Place(order(2, Sell, 10000, 4, 1))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, uint32(4), trades[0].Quantity)

	assert.Equal(t, 1, b.Depth(Buy))
	assert.Equal(t, 0, b.Depth(Sell))
}

// S3 — Price-time priority sweep.
func TestScenario_S3_PriceTimeSweep(t *testing.T) {
	b := newTestBook()

	_, err := b.Place(order(1, Sell, 10100, 5, 0))
	require.NoError(t, err)
	_, err = b.Place(order(2, Sell, 9900, 5, 1))
	require.NoError(t, err)

	trades, err := b.Place(order(3, Buy, 10000, 10, 2))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, Trade{BuyOrderID: 3, SellOrderID: 2, Price: 9900, Quantity: 5, ExecutedAt: trades[0].ExecutedAt}, trades[0])

	assert.Equal(t, 1, b.Depth(Buy))
	assert.Equal(t, 1, b.Depth(Sell))
}

// S4 — Multi-level sweep, aggressor fully filled.
func TestScenario_S4_MultiLevelSweep(t *testing.T) {
	b := newTestBook()

	_, err := b.Place(order(1, Sell, 9900, 3, 0))
	require.NoError(t, err)
	_, err = b.Place(order(2, Sell, 10000, 4, 1))
	require.NoError(t, err)

	trades, err := b.Place(order(3, Buy, 10000, 10, 2))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(1), trades[0].SellOrderID)
	assert.Equal(t, Price(9900), trades[0].Price)
	assert.Equal(t, uint32(3), trades[0].Quantity)
	assert.Equal(t, uint64(2), trades[1].SellOrderID)
	assert.Equal(t, Price(10000), trades[1].Price)
	assert.Equal(t, uint32(4), trades[1].Quantity)

	assert.Equal(t, 1, b.Depth(Buy))
	assert.Equal(t, 0, b.Depth(Sell))
}

// S5 — FIFO within a price level.
func TestScenario_S5_FIFOWithinLevel(t *testing.T) {
	b := newTestBook()

	_, err := b.Place(order(1, Sell, 10000, 5, 0))
	require.NoError(t, err)
	_, err = b.Place(order(2, Sell, 10000, 5, 1))
	require.NoError(t, err)

	trades, err := b.Place(order(3, Buy, 10000, 7, 2))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(1), trades[0].SellOrderID)
	assert.Equal(t, uint32(5), trades[0].Quantity)
	assert.Equal(t, uint64(2), trades[1].SellOrderID)
	assert.Equal(t, uint32(2), trades[1].Quantity)

	assert.Equal(t, 0, b.Depth(Buy))
	assert.Equal(t, 1, b.Depth(Sell))
}

// S6 — No cross.
func TestScenario_S6_NoCross(t *testing.T) {
	b := newTestBook()

	trades, err := b.Place(order(1, Buy, 9900, 10, 0))
	require.NoError(t, err)
	assert.Empty(t, trades)

	trades, err = b.Place(order(2, Sell, 10100, 10, 1))
	require.NoError(t, err)
	assert.Empty(t, trades)

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, Price(9900), bid)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Price(10100), ask)
}

func TestEqualPricesCross(t *testing.T) {
	b := newTestBook()

	_, err := b.Place(order(1, Buy, 10000, 5, 0))
	require.NoError(t, err)

	trades, err := b.Place(order(2, Sell, 10000, 5, 1))
	require.NoError(t, err)
	require.Len(t, trades, 1)
}

func TestNeverCrossedAtRest(t *testing.T) {
	b := newTestBook()

	_, err := b.Place(order(1, Buy, 9900, 5, 0))
	require.NoError(t, err)
	_, err = b.Place(order(2, Sell, 10100, 5, 1))
	require.NoError(t, err)

	bid, _ := b.BestBid()
	ask, _ := b.BestAsk()
	assert.Less(t, int64(bid), int64(ask))
}

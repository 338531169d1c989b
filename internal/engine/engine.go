// Package engine implements the single-owner Matching Engine: the
// worker that drains the Submission Channel, feeds the Order Book, and
// records latency.
package engine

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"

	"ironbook/internal/book"
	"ironbook/internal/metrics"
	"ironbook/internal/queue"
)

// noBookSide is the sentinel stored in bestBid/bestAsk when that side of
// the book is empty.
const noBookSide = int64(-1)

// Engine owns the Order Book exclusively: no other goroutine mutates it.
// It is constructed once, given its trade callback via SetTradeCallback
// before Run starts, and then driven entirely by Run.
type Engine struct {
	book       *book.OrderBook
	submission *queue.Submission
	clock      *book.Clock
	latency    *metrics.Latency

	tradeCallback func(book.Trade)

	bestBid atomic.Int64
	bestAsk atomic.Int64
	depthBid atomic.Int64
	depthAsk atomic.Int64

	ordersProcessed atomic.Uint64
	tradesExecuted  atomic.Uint64
}

// New constructs an Engine over a fresh Order Book, bound to submission
// for ingestion and clock for timestamps.
func New(submission *queue.Submission, clock *book.Clock, latency *metrics.Latency) *Engine {
	e := &Engine{
		book:       book.NewOrderBook(clock),
		submission: submission,
		clock:      clock,
		latency:    latency,
	}
	e.bestBid.Store(noBookSide)
	e.bestAsk.Store(noBookSide)
	return e
}

// SetTradeCallback configures the single Trade Dispatch slot. It must be
// called before Run starts; the engine never synchronizes access to
// this field because it is write-once-before-start, read-only
// thereafter, matching the component's concurrency contract.
func (e *Engine) SetTradeCallback(fn func(book.Trade)) {
	e.tradeCallback = fn
}

// Run drains the submission channel, processing every currently queued
// order before re-blocking, until the channel is closed and fully
// drained. Shutdown is driven by closing the Submission Channel, not by
// t directly: in-flight orders are always processed to completion, per
// the component's shutdown contract. t is accepted to fit the shared
// tomb.v2 supervision convention used across this process's goroutines.
func (e *Engine) Run(t *tomb.Tomb) error {
	for {
		orders := e.submission.RecvAll()
		if orders == nil {
			return nil
		}
		for _, o := range orders {
			e.processOne(o)
		}
	}
}

func (e *Engine) processOne(o book.Order) {
	defer e.recoverInvariant(o)

	t0 := e.clock.Now()
	trades, err := e.book.Place(o)
	if err != nil {
		log.Warn().Err(err).Uint64("order_id", o.ID).Msg("engine: rejected order")
		return
	}

	for _, tr := range trades {
		e.tradesExecuted.Add(1)
		if e.tradeCallback != nil {
			e.tradeCallback(tr)
		}
	}

	dt := e.clock.Now() - t0
	e.latency.Record(uint64(dt))
	e.ordersProcessed.Add(1)
	e.refreshSnapshot()
}

func (e *Engine) recoverInvariant(o book.Order) {
	if r := recover(); r != nil {
		log.Fatal().Interface("panic", r).Uint64("order_id", o.ID).Msg("engine: internal invariant violated, aborting")
	}
}

func (e *Engine) refreshSnapshot() {
	if bid, ok := e.book.BestBid(); ok {
		e.bestBid.Store(int64(bid))
	} else {
		e.bestBid.Store(noBookSide)
	}
	if ask, ok := e.book.BestAsk(); ok {
		e.bestAsk.Store(int64(ask))
	} else {
		e.bestAsk.Store(noBookSide)
	}
	e.depthBid.Store(int64(e.book.Depth(book.Buy)))
	e.depthAsk.Store(int64(e.book.Depth(book.Sell)))
}

// BestBid returns an atomic snapshot of the best bid, maintained after
// each processed order. Safe to call from any goroutine.
func (e *Engine) BestBid() (book.Price, bool) {
	v := e.bestBid.Load()
	if v == noBookSide {
		return 0, false
	}
	return book.Price(v), true
}

// BestAsk is the ask-side counterpart of BestBid.
func (e *Engine) BestAsk() (book.Price, bool) {
	v := e.bestAsk.Load()
	if v == noBookSide {
		return 0, false
	}
	return book.Price(v), true
}

// Depth returns an atomic snapshot of resting order count on side.
func (e *Engine) Depth(side book.Side) int {
	if side == book.Buy {
		return int(e.depthBid.Load())
	}
	return int(e.depthAsk.Load())
}

// OrdersProcessed returns the total number of orders this engine has
// processed, for the periodic Prometheus reporter.
func (e *Engine) OrdersProcessed() uint64 { return e.ordersProcessed.Load() }

// TradesExecuted returns the total number of trades this engine has
// executed, for the periodic Prometheus reporter.
func (e *Engine) TradesExecuted() uint64 { return e.tradesExecuted.Load() }

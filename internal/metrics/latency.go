// Package metrics implements per-order latency instrumentation and its
// periodic Prometheus mirror.
package metrics

import (
	"math"
	"sync/atomic"
)

// Latency is a lock-free aggregator of per-order processing durations.
// Every field is updated independently; readers observe a coherent
// snapshot only per field, not transactionally across all four.
type Latency struct {
	totalOrders    atomic.Uint64
	totalLatencyNs atomic.Uint64
	minLatencyNs   atomic.Uint64
	maxLatencyNs   atomic.Uint64
}

// NewLatency constructs a meter with min seeded at +infinity and max at
// zero, per the component's initial-state contract.
func NewLatency() *Latency {
	l := &Latency{}
	l.minLatencyNs.Store(math.MaxUint64)
	return l
}

// Record folds one processing duration, in nanoseconds, into the meter.
func (l *Latency) Record(ns uint64) {
	l.totalOrders.Add(1)
	l.totalLatencyNs.Add(ns)
	casMin(&l.minLatencyNs, ns)
	casMax(&l.maxLatencyNs, ns)
}

func casMin(field *atomic.Uint64, sample uint64) {
	for {
		cur := field.Load()
		if sample >= cur {
			return
		}
		if field.CompareAndSwap(cur, sample) {
			return
		}
	}
}

func casMax(field *atomic.Uint64, sample uint64) {
	for {
		cur := field.Load()
		if sample <= cur {
			return
		}
		if field.CompareAndSwap(cur, sample) {
			return
		}
	}
}

// Stats is a point-in-time, per-field-coherent read of the meter.
type Stats struct {
	TotalOrders    uint64
	TotalLatencyNs uint64
	MinLatencyNs   uint64
	MaxLatencyNs   uint64
}

// Snapshot reads all four fields independently.
func (l *Latency) Snapshot() Stats {
	min := l.minLatencyNs.Load()
	if min == math.MaxUint64 {
		min = 0
	}
	return Stats{
		TotalOrders:    l.totalOrders.Load(),
		TotalLatencyNs: l.totalLatencyNs.Load(),
		MinLatencyNs:   min,
		MaxLatencyNs:   l.maxLatencyNs.Load(),
	}
}

// AvgUS returns the average latency in microseconds, or 0 if no orders
// have been recorded.
func (s Stats) AvgUS() uint64 {
	if s.TotalOrders == 0 {
		return 0
	}
	return (s.TotalLatencyNs / 1000) / s.TotalOrders
}

// MinUS returns the minimum recorded latency in microseconds.
func (s Stats) MinUS() uint64 { return s.MinLatencyNs / 1000 }

// MaxUS returns the maximum recorded latency in microseconds.
func (s Stats) MaxUS() uint64 { return s.MaxLatencyNs / 1000 }

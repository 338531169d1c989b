// Package publish implements an optional additional Trade Dispatch
// observer: publishing each executed trade as a JSON event to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ironbook/internal/book"
)

// tradeEvent is the JSON shape published for each trade.
type tradeEvent struct {
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Price       string `json:"price"`
	Quantity    uint32 `json:"quantity"`
}

// KafkaPublisher publishes Trade events to a configured topic. It is the
// same shape as the Trade Log Writer: its own queue, its own goroutine,
// so a slow broker never stalls the matching path. Publish failures are
// logged and counted, never surfaced.
type KafkaPublisher struct {
	writer *kafka.Writer

	mu      sync.RWMutex
	closed  bool
	dropped uint64

	queue chan book.Trade
}

// NewKafkaPublisher constructs a publisher writing to topic on the given
// brokers. Compression and batching favor low latency over throughput,
// matching the priorities of a trading event stream.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.CRC32Balancer{},
			BatchTimeout: 5 * time.Millisecond,
			WriteTimeout: 1 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Snappy,
			Async:        false,
		},
		queue: make(chan book.Trade, 4096),
	}
}

// Enqueue submits a trade for publication. Non-blocking: a full queue
// drops the record and increments a counter, matching the Trade Log
// Writer's backpressure policy.
func (p *KafkaPublisher) Enqueue(t book.Trade) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- t:
	default:
		p.dropped++
		log.Warn().Uint64("dropped_total", p.dropped).Msg("publish: kafka queue full, dropping trade event")
	}
}

// Dropped returns the number of trade events dropped, either due to
// backpressure or because the Kafka write failed.
func (p *KafkaPublisher) Dropped() uint64 { return p.dropped }

// Run publishes queued trades until ctx is cancelled, then publishes
// whatever is still queued and closes the writer.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	defer p.writer.Close()

	for {
		select {
		case trade := <-p.queue:
			p.publishOne(ctx, trade)
		case <-ctx.Done():
			// ctx is already cancelled here; drain with a fresh context so
			// the remaining queued trades are still published.
			p.drain(context.Background())
			p.mu.Lock()
			p.closed = true
			p.mu.Unlock()
			return nil
		}
	}
}

func (p *KafkaPublisher) drain(ctx context.Context) {
	for {
		select {
		case trade := <-p.queue:
			p.publishOne(ctx, trade)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) publishOne(ctx context.Context, trade book.Trade) {
	payload, err := json.Marshal(tradeEvent{
		BuyOrderID:  trade.BuyOrderID,
		SellOrderID: trade.SellOrderID,
		Price:       trade.Price.String(),
		Quantity:    trade.Quantity,
	})
	if err != nil {
		log.Warn().Err(err).Msg("publish: failed to marshal trade event")
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, kafka.Message{Value: payload}); err != nil {
		p.dropped++
		log.Warn().Err(err).Uint64("dropped_total", p.dropped).Msg("publish: kafka write failed")
	}
}

// Package tradelog implements the append-only CSV trade sink.
package tradelog

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"

	"ironbook/internal/book"
)

const header = "timestamp,buy_order_id,sell_order_id,price,quantity"

// Writer drains a bounded queue of Trade records to an append-only CSV
// file on its own goroutine, so the Matching Engine never blocks on
// sink I/O.
type Writer struct {
	queue chan book.Trade
	file  *os.File

	dropped uint64

	wallAtStart time.Time
	monoAtStart book.Mono
}

// New opens path for writing (creating it if absent and truncating any
// existing content) and writes the header row immediately, flushing once.
func New(path string, clock *book.Clock) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(header + "\n"); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{
		queue:       make(chan book.Trade, 4096),
		file:        f,
		wallAtStart: time.Now(),
		monoAtStart: clock.Now(),
	}, nil
}

// Enqueue submits a trade for persistence. It is safe to pass directly
// as (part of) a Trade Dispatch callback: it never blocks. When the
// internal channel (sized generously against burst traffic) is full, the
// record is dropped and counted.
func (w *Writer) Enqueue(t book.Trade) {
	select {
	case w.queue <- t:
	default:
		// Queue saturated: drop the oldest in-flight assumption is
		// unsafe on a channel, so instead drop this record and count
		// it — the matching path must never block on I/O.
		w.dropped++
		log.Warn().Uint64("dropped_total", w.dropped).Msg("tradelog: queue full, dropping trade record")
	}
}

// Dropped returns the number of trade records dropped due to
// backpressure.
func (w *Writer) Dropped() uint64 { return w.dropped }

// Run drains the queue until t is killed and the queue is empty, then
// closes the sink. Each line is appended and flushed individually so a
// crash loses at most the record being written.
func (w *Writer) Run(t *tomb.Tomb) error {
	defer w.file.Close()

	for {
		select {
		case trade := <-w.queue:
			w.writeOne(trade)
		case <-t.Dying():
			w.drain()
			return nil
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case trade := <-w.queue:
			w.writeOne(trade)
		default:
			return
		}
	}
}

func (w *Writer) writeOne(trade book.Trade) {
	cw := csv.NewWriter(w.file)
	wall := w.wallAtStart.Add(time.Duration(trade.ExecutedAt - w.monoAtStart))

	record := []string{
		wall.Format("2006-01-02 15:04:05"),
		strconv.FormatUint(trade.BuyOrderID, 10),
		strconv.FormatUint(trade.SellOrderID, 10),
		trade.Price.String(),
		strconv.FormatUint(uint64(trade.Quantity), 10),
	}

	if err := cw.Write(record); err != nil {
		log.Warn().Err(err).Msg("tradelog: failed to append trade record")
		return
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Warn().Err(err).Msg("tradelog: failed to flush trade record")
		return
	}
	if err := w.file.Sync(); err != nil {
		log.Warn().Err(err).Msg("tradelog: failed to sync trade record")
	}
}

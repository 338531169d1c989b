package frontend

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"ironbook/internal/book"
	"ironbook/internal/metrics"
	"ironbook/internal/parser"
	"ironbook/internal/queue"
)

// StatsSource is the read-only subset of the Matching Engine the
// console's "stats" command needs; satisfied by *engine.Engine.
type StatsSource interface {
	BestBid() (book.Price, bool)
	BestAsk() (book.Price, bool)
	Depth(book.Side) int
	OrdersProcessed() uint64
	TradesExecuted() uint64
}

// Console reads newline-delimited commands from in, writing responses
// to out. "quit"/"exit" ends the session; "stats" prints a snapshot;
// anything else is parsed as a JSON order line and submitted exactly as
// the TCP front end does.
type Console struct {
	in         *bufio.Scanner
	out        io.Writer
	submission *queue.Submission
	parser     *parser.Parser
	latency    *metrics.Latency
	stats      StatsSource
}

// NewConsole constructs a console reading in and writing out, sharing
// submission and p with the rest of the process.
func NewConsole(in io.Reader, out io.Writer, submission *queue.Submission, p *parser.Parser, latency *metrics.Latency, stats StatsSource) *Console {
	return &Console{
		in:         bufio.NewScanner(in),
		out:        out,
		submission: submission,
		parser:     p,
		latency:    latency,
		stats:      stats,
	}
}

// Run reads commands until EOF, "quit"/"exit", or shutdown is
// requested via done being closed. It returns when the console session
// ends; it does not itself close the submission channel.
func (c *Console) Run(done <-chan struct{}) {
	fmt.Fprintln(c.out, "Commands: 'quit', 'stats', or a JSON order line")
	fmt.Fprintln(c.out, `Example: {"side":"buy","price":100.50,"quantity":10}`)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for c.in.Scan() {
			lines <- c.in.Text()
		}
	}()

	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if c.handle(strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// handle processes one line, returning true if the session should end.
func (c *Console) handle(line string) bool {
	switch line {
	case "quit", "exit":
		return true
	case "stats":
		c.printStats()
		return false
	case "":
		return false
	}

	order, err := c.parser.Parse(line)
	if err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return false
	}
	if err := c.submission.Submit(order); err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return false
	}
	fmt.Fprintf(c.out, "ACK: order %d received\n", order.ID)
	return false
}

func (c *Console) printStats() {
	snap := c.latency.Snapshot()
	fmt.Fprintln(c.out, "=== ORDER BOOK STATISTICS ===")
	fmt.Fprintf(c.out, "Total Orders Processed: %d\n", c.stats.OrdersProcessed())
	fmt.Fprintf(c.out, "Total Trades Executed: %d\n", c.stats.TradesExecuted())
	fmt.Fprintf(c.out, "Average Latency: %dus\n", snap.AvgUS())
	fmt.Fprintf(c.out, "Min Latency: %dus\n", snap.MinUS())
	fmt.Fprintf(c.out, "Max Latency: %dus\n", snap.MaxUS())
	fmt.Fprintf(c.out, "Active Buy Orders: %d\n", c.stats.Depth(book.Buy))
	fmt.Fprintf(c.out, "Active Sell Orders: %d\n", c.stats.Depth(book.Sell))
	if bid, ok := c.stats.BestBid(); ok {
		fmt.Fprintf(c.out, "Best Bid: %s\n", bid)
	}
	if ask, ok := c.stats.BestAsk(); ok {
		fmt.Fprintf(c.out, "Best Ask: %s\n", ask)
	}
	fmt.Fprintln(c.out, "============================")
}

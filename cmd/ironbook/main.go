// Command ironbook runs a single-instrument limit order book matching
// engine behind a TCP line server and an interactive console.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"

	"ironbook/internal/book"
	"ironbook/internal/dispatch"
	"ironbook/internal/engine"
	"ironbook/internal/frontend"
	"ironbook/internal/metrics"
	"ironbook/internal/parser"
	"ironbook/internal/publish"
	"ironbook/internal/queue"
	"ironbook/internal/tradelog"
)

func main() {
	tcpAddr := flag.String("tcp-addr", ":8080", "listen address for the TCP order intake server")
	tradeLogPath := flag.String("trade-log", "trades.csv", "path to the append-only trade log")
	metricsAddr := flag.String("metrics-addr", "", "listen address for the Prometheus /metrics endpoint (empty disables it)")
	kafkaBrokers := flag.String("kafka-brokers", "", "comma-separated Kafka broker list (empty disables trade publishing)")
	kafkaTopic := flag.String("kafka-topic", "ironbook.trades", "Kafka topic for published trade events")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := book.NewClock()
	latency := metrics.NewLatency()
	submission := queue.New()
	eng := engine.New(submission, clock, latency)

	tradeWriter, err := tradelog.New(*tradeLogPath, clock)
	if err != nil {
		log.Fatal().Err(err).Str("path", *tradeLogPath).Msg("ironbook: failed to open trade log")
	}

	callbacks := []func(book.Trade){
		tradeWriter.Enqueue,
		consolePrinter,
	}

	var kafkaPub *publish.KafkaPublisher
	if brokers := splitBrokers(*kafkaBrokers); len(brokers) > 0 {
		kafkaPub = publish.NewKafkaPublisher(brokers, *kafkaTopic)
		callbacks = append(callbacks, kafkaPub.Enqueue)
	}

	eng.SetTradeCallback(dispatch.Chain(callbacks...))

	// engineTomb supervises only the Matching Engine. Its Run drains the
	// submission channel to completion once closed, ignoring any kill
	// signal of its own (per spec §4.2's shutdown contract: "no in-flight
	// order is dropped") — so it must finish, and every trade it produced
	// must already be enqueued to the sinks, before the sinks below are
	// allowed to stop.
	var engineTomb tomb.Tomb
	engineTomb.Go(func() error { return eng.Run(&engineTomb) })

	// sinkTomb supervises the Trade Log Writer and the optional Kafka
	// publisher — the two observers that must finish writing every trade
	// the engine handed them (spec §5: "in-flight trades are written to
	// completion") before the process exits. It is deliberately a
	// separate tomb from engineTomb: killing it only happens after
	// engineTomb.Wait returns, below.
	sinkCtx, cancelSinks := context.WithCancel(context.Background())
	var sinkTomb tomb.Tomb
	sinkTomb.Go(func() error { return tradeWriter.Run(&sinkTomb) })
	if kafkaPub != nil {
		sinkTomb.Go(func() error { return kafkaPub.Run(sinkCtx) })
	}
	sinkTomb.Go(func() error {
		<-sinkTomb.Dying()
		cancelSinks()
		return nil
	})

	// frontTomb supervises the producers and the metrics reporter. None
	// of these hold state that needs draining to completion; they may be
	// killed as soon as shutdown begins.
	var frontTomb tomb.Tomb

	if *metricsAddr != "" {
		reporter := metrics.NewReporter(latency, eng.OrdersProcessed, eng.TradesExecuted)
		frontTomb.Go(func() error { return reporter.Run(&frontTomb) })
		frontTomb.Go(func() error { return reporter.ListenAndServe(ctx, *metricsAddr) })
	}

	p := parser.New(clock)
	tcpServer := frontend.NewTCPServer(*tcpAddr, submission, p)
	frontTomb.Go(func() error { return tcpServer.Run(&frontTomb) })

	consoleDone := make(chan struct{})
	go func() {
		console := frontend.NewConsole(os.Stdin, os.Stdout, submission, p, latency, eng)
		console.Run(ctx.Done())
		close(consoleDone)
	}()

	log.Info().Str("tcp_addr", *tcpAddr).Str("trade_log", *tradeLogPath).Msg("ironbook: running")

	select {
	case <-ctx.Done():
	case <-consoleDone:
		stop()
	}

	// Stop accepting new submissions, then let the engine drain everything
	// already queued. Only once it has fully stopped do the trade sinks
	// get to exit — otherwise a trade produced by one of the engine's last
	// few orders could be enqueued after the writer has already taken its
	// final drain pass and closed the file.
	frontTomb.Kill(nil)
	submission.Close()

	if err := engineTomb.Wait(); err != nil {
		log.Error().Err(err).Msg("ironbook: engine shutdown error")
	}

	sinkTomb.Kill(nil)
	if err := sinkTomb.Wait(); err != nil {
		log.Error().Err(err).Msg("ironbook: trade sink shutdown error")
	}

	if err := frontTomb.Wait(); err != nil {
		log.Error().Err(err).Msg("ironbook: frontend shutdown error")
	}
}

// consolePrinter is the default observability callback chained alongside
// the trade log writer, mirroring the source program's stdout trade line.
func consolePrinter(tr book.Trade) {
	log.Info().
		Uint64("buy_order_id", tr.BuyOrderID).
		Uint64("sell_order_id", tr.SellOrderID).
		Str("price", tr.Price.String()).
		Uint32("quantity", tr.Quantity).
		Msg("trade executed")
}

func splitBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

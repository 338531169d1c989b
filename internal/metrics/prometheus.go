package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"
)

// Reporter periodically mirrors a Latency meter and order/trade counters
// into Prometheus collectors and serves them over HTTP. It never touches
// the matching path directly; it only reads snapshots on its own ticker.
type Reporter struct {
	registry *prometheus.Registry

	ordersTotal prometheus.Counter
	tradesTotal prometheus.Counter
	latencyAvg  prometheus.Gauge
	latencyMin  prometheus.Gauge
	latencyMax  prometheus.Gauge

	latency *Latency
	orders  *atomicCounters
}

// atomicCounters is the minimal read surface the Reporter needs from the
// Matching Engine; kept separate from engine.Engine to avoid an import
// cycle between internal/engine and internal/metrics.
type atomicCounters struct {
	Orders func() uint64
	Trades func() uint64
}

// NewReporter builds a Reporter bound to latency and the given counter
// accessors. ordersFn/tradesFn are read once per tick, never on the
// matching path.
func NewReporter(latency *Latency, ordersFn, tradesFn func() uint64) *Reporter {
	registry := prometheus.NewRegistry()

	r := &Reporter{
		registry: registry,
		ordersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ironbook_orders_processed_total",
			Help: "Total number of orders processed by the matching engine.",
		}),
		tradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ironbook_trades_executed_total",
			Help: "Total number of trades executed.",
		}),
		latencyAvg: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ironbook_order_latency_avg_microseconds",
			Help: "Average per-order processing latency, in microseconds.",
		}),
		latencyMin: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ironbook_order_latency_min_microseconds",
			Help: "Minimum observed per-order processing latency, in microseconds.",
		}),
		latencyMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ironbook_order_latency_max_microseconds",
			Help: "Maximum observed per-order processing latency, in microseconds.",
		}),
		latency: latency,
		orders:  &atomicCounters{Orders: ordersFn, Trades: tradesFn},
	}

	registry.MustRegister(r.ordersTotal, r.tradesTotal, r.latencyAvg, r.latencyMin, r.latencyMax)
	return r
}

// Handler returns the HTTP handler serving the registry's metrics.
func (r *Reporter) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Run ticks every 10 seconds, mirroring the latency meter and counters
// into the registered collectors, until t is killed.
func (r *Reporter) Run(t *tomb.Tomb) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick()
		case <-t.Dying():
			return nil
		}
	}
}

func (r *Reporter) tick() {
	snap := r.latency.Snapshot()

	r.ordersTotal.Add(float64(r.orders.Orders()) - counterValue(r.ordersTotal))
	r.tradesTotal.Add(float64(r.orders.Trades()) - counterValue(r.tradesTotal))
	r.latencyAvg.Set(float64(snap.AvgUS()))
	r.latencyMin.Set(float64(snap.MinUS()))
	r.latencyMax.Set(float64(snap.MaxUS()))
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		log.Warn().Err(err).Msg("metrics: failed reading counter for resync")
		return 0
	}
	return m.GetCounter().GetValue()
}

// ListenAndServe blocks serving /metrics on addr until ctx is cancelled.
func (r *Reporter) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

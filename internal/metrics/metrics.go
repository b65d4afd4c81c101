// Package metrics exposes run counters for long extraction jobs. The
// listener is optional; when disabled the collectors still aggregate and
// cost nothing beyond an atomic add per item.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seqlab/rnabatch/internal/logging"
)

// readHeaderTimeout bounds slow-client header reads on the listener.
const readHeaderTimeout = 5 * time.Second

// Collector aggregates run metrics on its own registry so concurrent runs
// in one process (tests, mainly) never collide.
type Collector struct {
	registry *prometheus.Registry

	itemsTotal      *prometheus.CounterVec
	chunksPersisted prometheus.Counter
	memoryUsed      prometheus.Gauge
}

// NewCollector returns a Collector with registered collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rnabatch_items_total",
			Help: "Targets processed, by outcome status.",
		}, []string{"status"}),
		chunksPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rnabatch_chunks_persisted_total",
			Help: "Chunk boundaries durably checkpointed.",
		}),
		memoryUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rnabatch_memory_used_bytes",
			Help: "Process resident set size at the last admission check.",
		}),
	}

	registry.MustRegister(c.itemsTotal, c.chunksPersisted, c.memoryUsed)
	return c
}

// RecordItem counts one target outcome.
func (c *Collector) RecordItem(status string) {
	c.itemsTotal.WithLabelValues(status).Inc()
}

// RecordChunkPersisted counts one durable chunk boundary.
func (c *Collector) RecordChunkPersisted() {
	c.chunksPersisted.Inc()
}

// SetMemoryUsed records the latest memory sample.
func (c *Collector) SetMemoryUsed(bytes uint64) {
	c.memoryUsed.Set(float64(bytes))
}

// Serve exposes /metrics on addr until ctx is canceled. It returns once
// the listener has shut down. A nil error means a clean shutdown.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	logger := logging.FromContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info().Str("component", "metrics").Str("addr", addr).Msg("metrics listener started")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

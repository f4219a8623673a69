package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stream_producer"

func newCollectors(c *Counters) map[string]prometheus.Collector {
	counter := func(name, help string, fn func() int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn()) })
	}
	return map[string]prometheus.Collector{
		"records_read_total":    counter("records_read_total", "Records pulled from the input.", c.read.Load),
		"records_sent_total":    counter("records_sent_total", "Records delivered to the sink.", c.sent.Load),
		"records_dropped_total": counter("records_dropped_total", "Records dropped for exceeding the message size.", c.dropped.Load),
		"records_skipped_total": counter("records_skipped_total", "Records read but outside the record window.", c.skipped.Load),
		"decode_errors_total":   counter("decode_errors_total", "Malformed input rows that were skipped.", c.decodeErrors.Load),
		"messages_sent_total":   counter("messages_sent_total", "Messages handed to the sink.", c.messages.Load),
		"bytes_sent_total":      counter("bytes_sent_total", "Message payload bytes handed to the sink.", c.bytes.Load),
		"uptime_seconds": prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the pipeline started.",
		}, func() float64 { return time.Since(c.start).Seconds() }),
	}
}

// Register exposes c through reg.
func Register(reg prometheus.Registerer, c *Counters) error {
	for name, col := range newCollectors(c) {
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("telemetry: register %s: %w", name, err)
		}
	}
	return nil
}

// Expose serves /metrics from g on port until ctx is done.
func Expose(ctx context.Context, port int, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("telemetry: serve metrics: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

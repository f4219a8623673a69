package engine

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"streamproducer/internal/config"
	"streamproducer/internal/pipeline"
	"streamproducer/internal/telemetry"
	"streamproducer/internal/transport"
)

type Engine struct {
	cfg       config.Config
	driver    *pipeline.Driver
	counters  *telemetry.Counters
	registry  *prometheus.Registry
	reporter  telemetry.Reporter
	transport *transport.Server
	closers   []io.Closer
}

// Run drives the pipeline to completion alongside the monitor, metrics
// and health servers. Those stop once the pipeline returns.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		if e.transport != nil {
			e.transport.SetServing(true)
			defer e.transport.SetServing(false)
		}
		return e.driver.Run(runCtx)
	})

	g.Go(func() error {
		return telemetry.NewMonitor(e.counters, e.cfg.MonitoringPeriod, e.reporter).Run(runCtx)
	})

	if e.cfg.MetricsPort > 0 {
		g.Go(func() error { return telemetry.Expose(runCtx, e.cfg.MetricsPort, e.registry) })
	}

	if e.transport != nil {
		g.Go(e.transport.Serve)
		g.Go(func() error {
			<-runCtx.Done()
			e.transport.Stop()
			return nil
		})
	}

	err := g.Wait()
	e.reporter.Report(e.counters.Snapshot())
	return err
}

// Counters exposes the run's counters, mainly for the exit log.
func (e *Engine) Counters() *telemetry.Counters { return e.counters }

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"streamproducer/internal/config"
	"streamproducer/internal/governor"
	"streamproducer/internal/logging"
	"streamproducer/internal/pipeline"
	"streamproducer/internal/record"
	"streamproducer/internal/telemetry"
	"streamproducer/internal/transport"
	"streamproducer/sink"
	"streamproducer/source"

	_ "streamproducer/source/avro"
	_ "streamproducer/source/csv"
	_ "streamproducer/source/lines"
	_ "streamproducer/source/parquet"
	_ "streamproducer/source/socket"
)

// Bootstrap resolves cfg into a decoder, sink and governor once. On error
// everything acquired so far is released.
func Bootstrap(ctx context.Context, cfg config.Config) (_ *Engine, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	e := &Engine{cfg: cfg, counters: telemetry.NewCounters()}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	// 1. governor
	gov, closer, err := governor.New(cfg.Governor)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, closer)

	// 2. sink
	snk, err := sink.NewAdapter(cfg.Sink)
	if err != nil {
		return nil, err
	}
	if err := snk.Configure(ctx, sinkConfig(cfg)); err != nil {
		return nil, err
	}
	e.closers = append(e.closers, snk)

	// 3. source
	dec, err := source.NewDecoder(ctx, cfg.Format, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	e.closers = append(e.closers, dec)

	// 4. metrics
	e.registry = prometheus.NewRegistry()
	if err := telemetry.Register(e.registry, e.counters); err != nil {
		return nil, err
	}

	// 5. transport server
	if cfg.GRPCPort > 0 {
		srv, err := transport.StartServer(cfg.GRPCPort)
		if err != nil {
			return nil, fmt.Errorf("transport: %w", err)
		}
		e.transport = srv
	}

	norm := record.NewNormalizer(cfg.Normalizer)
	e.driver = pipeline.NewDriver(cfg.Pipeline, dec, snk, gov, norm, e.counters)
	e.reporter = telemetry.NewLogReporter(logging.Component("monitor"))

	logging.L().Info("engine ready",
		"format", cfg.Format, "sink", cfg.Sink, "governor", cfg.Governor.Kind,
		"source_formats", source.Formats(), "sinks", sink.Names())
	return e, nil
}

func sinkConfig(cfg config.Config) any {
	switch cfg.Sink {
	case "kafka":
		return cfg.Kafka
	case "rabbitmq":
		return cfg.RabbitMQ
	case "sqs":
		return cfg.SQS
	case "stdout":
		return cfg.Stdout
	}
	return nil
}

// Close releases resources in reverse acquisition order.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}

var _ io.Closer = (*Engine)(nil)

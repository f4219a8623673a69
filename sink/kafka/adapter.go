// Package kafka publishes messages to a Kafka topic through either the
// sarama or the franz-go client.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"streamproducer/sink"
)

type adapter struct {
	cfg Config

	mu sync.Mutex
	p  producer
}

func (a *adapter) Configure(ctx context.Context, raw any) error {
	cfg, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", raw)
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return errors.New("kafka-sink: brokers and topic are required")
	}
	applyDefaults(&cfg)
	a.cfg = cfg

	p, err := newProducer(ctx, cfg)
	if err != nil {
		return sink.ConnectError("kafka/"+cfg.Driver, err)
	}
	a.mu.Lock()
	a.p = p
	a.mu.Unlock()
	return nil
}

func (a *adapter) Send(ctx context.Context, msg []byte) error {
	a.mu.Lock()
	p := a.p
	a.mu.Unlock()
	if p == nil {
		return sink.SendError("kafka/"+a.cfg.Driver, errors.New("producer closed"))
	}
	if err := p.produce(ctx, a.cfg.Topic, msg); err != nil {
		return sink.SendError("kafka/"+a.cfg.Driver, err)
	}
	return nil
}

func (a *adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.p == nil {
		return nil
	}
	err := a.p.close()
	a.p = nil
	return err
}

func init() { sink.Register("kafka", func() sink.Adapter { return &adapter{} }) }

package kafka

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

type kgoClient interface {
	Ping(ctx context.Context) error
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type franzProducer struct {
	c kgoClient
}

func franzOptions(cfg Config) []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ClientID(cfg.ClientID),
		kgo.ProduceRequestTimeout(cfg.Timeout),
		kgo.ProducerBatchMaxBytes(int32(cfg.MaxMessageBytes)),
	}
	switch cfg.RequiredAcks {
	case 0:
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	case 1:
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	default:
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	}
	if cfg.TLSEnabled {
		opts = append(opts, kgo.DialTLSConfig(tlsConfig()))
	}
	if cfg.SASLUser != "" {
		opts = append(opts, kgo.SASL(plain.Auth{User: cfg.SASLUser, Pass: cfg.SASLPass}.AsMechanism()))
	}
	return opts
}

func (f *franzProducer) produce(ctx context.Context, topic string, value []byte) error {
	return f.c.ProduceSync(ctx, &kgo.Record{Topic: topic, Value: value}).FirstErr()
}

func (f *franzProducer) close() error {
	f.c.Close()
	return nil
}

func init() {
	registerDriver(DriverFranz, func(ctx context.Context, cfg Config) (producer, error) {
		cl, err := kgo.NewClient(franzOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := cl.Ping(pingCtx); err != nil {
			cl.Close()
			return nil, err
		}
		return &franzProducer{c: cl}, nil
	})
}

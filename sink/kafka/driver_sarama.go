package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

type saramaProducer struct {
	p sarama.SyncProducer
}

func newSaramaConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	sc.Producer.Return.Successes = true
	sc.Producer.Timeout = cfg.Timeout
	sc.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	sc.Net.DialTimeout = cfg.Timeout
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka version %q: %w", cfg.Version, err)
		}
		sc.Version = v
	}
	if cfg.TLSEnabled {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsConfig()
	}
	if cfg.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = cfg.SASLUser
		sc.Net.SASL.Password = cfg.SASLPass
	}
	return sc, sc.Validate()
}

func (s *saramaProducer) produce(_ context.Context, topic string, value []byte) error {
	_, _, err := s.p.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	})
	return err
}

func (s *saramaProducer) close() error { return s.p.Close() }

func init() {
	registerDriver(DriverSarama, func(_ context.Context, cfg Config) (producer, error) {
		sc, err := newSaramaConfig(cfg)
		if err != nil {
			return nil, err
		}
		p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
		if err != nil {
			return nil, err
		}
		return &saramaProducer{p: p}, nil
	})
}

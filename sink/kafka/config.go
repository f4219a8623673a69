package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"
)

const (
	DriverSarama = "sarama"
	DriverFranz  = "franz"
)

type Config struct {
	Driver          string        `koanf:"driver"` // sarama|franz
	Brokers         []string      `koanf:"brokers"`
	Topic           string        `koanf:"topic"`
	RequiredAcks    int16         `koanf:"required_acks"` // 0,1,-1
	ClientID        string        `koanf:"client_id"`
	Version         string        `koanf:"version"` // sarama only
	Timeout         time.Duration `koanf:"timeout"`
	MaxMessageBytes int           `koanf:"max_message_bytes"`
	TLSEnabled      bool          `koanf:"tls_enabled"`
	SASLUser        string        `koanf:"sasl_user"`
	SASLPass        string        `koanf:"sasl_pass"`
}

// producer is the per-client half of the sink: one synchronous write.
type producer interface {
	produce(ctx context.Context, topic string, value []byte) error
	close() error
}

type producerFactory func(ctx context.Context, cfg Config) (producer, error)

var drivers = map[string]producerFactory{}

// registerDriver is called from each driver's init().
func registerDriver(name string, f producerFactory) { drivers[name] = f }

func newProducer(ctx context.Context, cfg Config) (producer, error) {
	name := cfg.Driver
	if name == "" {
		name = DriverSarama
	}
	f, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("kafka-sink: unsupported driver %q", name)
	}
	return f(ctx, cfg)
}

func applyDefaults(c *Config) {
	if c.Driver == "" {
		c.Driver = DriverSarama
	}
	if c.ClientID == "" {
		c.ClientID = "stream-producer"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = 1_000_000
	}
}

// tlsConfig is shared by both drivers so they negotiate the same floor.
func tlsConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// Package config resolves the producer configuration from defaults, an
// optional YAML file, STREAM_PRODUCER__* environment variables and
// explicitly set command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"streamproducer/internal/governor"
	"streamproducer/internal/pipeline"
	"streamproducer/internal/record"
	"streamproducer/sink/kafka"
	"streamproducer/sink/rabbitmq"
	"streamproducer/sink/sqs"
	"streamproducer/sink/stdout"
	"streamproducer/source"
)

const (
	SupportedSchema = "v1"
	EnvPrefix       = "STREAM_PRODUCER__"

	redacted = "********"
)

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type Config struct {
	SchemaVersion string `koanf:"schema_version"`
	Subcommand    string `koanf:"subcommand"`
	Format        string `koanf:"format"`
	Sink          string `koanf:"sink"`

	Source     source.Config           `koanf:",squash"`
	Pipeline   pipeline.Config         `koanf:",squash"`
	Normalizer record.NormalizerConfig `koanf:",squash"`
	Governor   governor.Config         `koanf:"governor"`

	Kafka    kafka.Config    `koanf:"kafka"`
	RabbitMQ rabbitmq.Config `koanf:"rabbitmq"`
	SQS      sqs.Config      `koanf:"sqs"`
	Stdout   stdout.Config   `koanf:"stdout"`

	MonitoringPeriod time.Duration `koanf:"monitoring_period"`
	Delay            time.Duration `koanf:"delay"`
	SleepTime        time.Duration `koanf:"sleep_time"`
	MetricsPort      int           `koanf:"metrics_port"` // 0 = disabled
	GRPCPort         int           `koanf:"grpc_port"`    // 0 = disabled
	Log              LogConfig     `koanf:"log"`
}

func defaults() map[string]any {
	return map[string]any{
		"schema_version":      SupportedSchema,
		"max_message_size":    256 * 1024,
		"records_per_message": 1,
		"record_min":          0,
		"record_max":          0,
		"http_timeout":        "0s",
		"socket.addr":         "127.0.0.1:4000",
		"governor.kind":       governor.KindNone,
		"kafka.driver":        kafka.DriverSarama,
		"kafka.required_acks": -1,
		"rabbitmq.persistent": true,
		"monitoring_period":   "10m",
		"delay":               "0s",
		"sleep_time":          "0s",
		"log.level":           "info",
	}
}

// LoadOptions carries the non-environment inputs to Load.
type LoadOptions struct {
	Path  string         // optional YAML file; a missing file is ignored
	Flags map[string]any // explicitly set flags keyed by config path
}

func Load(opts LoadOptions) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, err
	}
	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", opts.Path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, err
	}
	if len(opts.Flags) > 0 {
		if err := k.Load(confmap.Provider(opts.Flags, "."), nil); err != nil {
			return Config{}, err
		}
	}

	if sv := k.String("schema_version"); sv != SupportedSchema {
		return Config{}, fmt.Errorf("config schema_version %q not supported (want %q)", sv, SupportedSchema)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// envKey maps STREAM_PRODUCER__KAFKA__BROKERS to kafka.brokers.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// ApplySubcommand fills Format and Sink from a "<format>-to-<sink>" name
// unless they were set explicitly.
func (c *Config) ApplySubcommand(name string) bool {
	format, snk, ok := strings.Cut(name, "-to-")
	if !ok || format == "" || snk == "" {
		return false
	}
	c.Subcommand = name
	if c.Format == "" {
		c.Format = format
	}
	if c.Sink == "" {
		c.Sink = snk
	}
	return true
}

func (c Config) Validate() error {
	var errs []error
	p := c.Pipeline
	if p.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("max_message_size must be > 0, got %d", p.MaxMessageSize))
	}
	if p.RecordsPerMessage < 1 {
		errs = append(errs, fmt.Errorf("records_per_message must be >= 1, got %d", p.RecordsPerMessage))
	}
	if p.RecordsPerMessage > 1 && p.MaxMessageSize <= 2 {
		errs = append(errs, errors.New("max_message_size must exceed 2 bytes when batching into arrays"))
	}
	if p.RecordMin < 0 || p.RecordMax < 0 {
		errs = append(errs, errors.New("record_min and record_max must not be negative"))
	}
	if p.RecordMax > 0 && p.RecordMax <= max(p.RecordMin, 1) {
		errs = append(errs, fmt.Errorf("record_max (%d) must be greater than record_min (%d)", p.RecordMax, p.RecordMin))
	}
	if c.MonitoringPeriod < 0 {
		errs = append(errs, errors.New("monitoring_period must not be negative"))
	}
	if c.Format == "" {
		errs = append(errs, errors.New("format is required"))
	}
	if c.Format != "socket" && c.Source.InputURL == "" {
		errs = append(errs, errors.New("input_url is required"))
	}

	switch c.Sink {
	case "":
		errs = append(errs, errors.New("sink is required"))
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka sink needs kafka.brokers and kafka.topic"))
		}
	case "rabbitmq":
		if c.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("rabbitmq sink needs rabbitmq.url"))
		}
		if c.RabbitMQ.Queue == "" && c.RabbitMQ.RoutingKey == "" {
			errs = append(errs, errors.New("rabbitmq sink needs rabbitmq.queue or rabbitmq.routing_key"))
		}
	case "sqs":
		if c.SQS.QueueURL == "" && c.SQS.QueueName == "" {
			errs = append(errs, errors.New("sqs sink needs sqs.queue_url or sqs.queue_name"))
		}
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Kafka.SASLPass != "" {
		c.Kafka.SASLPass = redacted
	}
	if c.SQS.SecretAccessKey != "" {
		c.SQS.SecretAccessKey = redacted
	}
	if c.SQS.SessionToken != "" {
		c.SQS.SessionToken = redacted
	}
	c.RabbitMQ.URL = redactURL(c.RabbitMQ.URL)
	c.Source.InputURL = redactURL(c.Source.InputURL)
	c.Stdout.Writer = nil
	return c
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "producer.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.MaxMessageSize != 256*1024 || cfg.Pipeline.RecordsPerMessage != 1 {
		t.Fatalf("unexpected pipeline defaults %+v", cfg.Pipeline)
	}
	if cfg.MonitoringPeriod != 10*time.Minute || cfg.Kafka.RequiredAcks != -1 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeYAML(t, `schema_version: v1
input_url: /data/in.json
max_message_size: 5000
records_per_message: 10
default_data_source: FROM_FILE
kafka:
  brokers: [a:9092]
  topic: file-topic
governor:
  kind: rate
  rate_per_second: 25
`)
	t.Setenv("STREAM_PRODUCER__RECORDS_PER_MESSAGE", "20")
	t.Setenv("STREAM_PRODUCER__KAFKA__TOPIC", "env-topic")
	t.Setenv("STREAM_PRODUCER__KAFKA__BROKERS", "b:9092,c:9092")

	cfg, err := Load(LoadOptions{Path: path, Flags: map[string]any{"records_per_message": "30"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.MaxMessageSize != 5000 {
		t.Fatalf("file value lost: %d", cfg.Pipeline.MaxMessageSize)
	}
	if cfg.Pipeline.RecordsPerMessage != 30 {
		t.Fatalf("flag should win, got %d", cfg.Pipeline.RecordsPerMessage)
	}
	if cfg.Kafka.Topic != "env-topic" {
		t.Fatalf("env should override file, got %q", cfg.Kafka.Topic)
	}
	if strings.Join(cfg.Kafka.Brokers, ",") != "b:9092,c:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Normalizer.DataSource != "FROM_FILE" || cfg.Source.InputURL != "/data/in.json" {
		t.Fatalf("squashed sections not decoded: %+v %+v", cfg.Normalizer, cfg.Source)
	}
	if cfg.Governor.Kind != "rate" || cfg.Governor.RatePerSecond != 25 {
		t.Fatalf("governor = %+v", cfg.Governor)
	}
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	if _, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "absent.yml")}); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}

func TestLoad_InvalidSchema(t *testing.T) {
	path := writeYAML(t, "schema_version: v999\n")
	if _, err := Load(LoadOptions{Path: path}); err == nil {
		t.Fatal("expected error for invalid schema_version")
	}
}

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.ApplySubcommand("json-to-stdout")
	cfg.Source.InputURL = "in.json"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero size", func(c *Config) { c.Pipeline.MaxMessageSize = 0 }, "max_message_size"},
		{"zero per message", func(c *Config) { c.Pipeline.RecordsPerMessage = 0 }, "records_per_message"},
		{"window inverted", func(c *Config) { c.Pipeline.RecordMin, c.Pipeline.RecordMax = 10, 10 }, "record_max"},
		{"window ok", func(c *Config) { c.Pipeline.RecordMin, c.Pipeline.RecordMax = 10, 15 }, ""},
		{"no input", func(c *Config) { c.Source.InputURL = "" }, "input_url"},
		{"socket needs no input", func(c *Config) { c.Format, c.Source.InputURL = "socket", "" }, ""},
		{"kafka incomplete", func(c *Config) { c.Sink = "kafka" }, "kafka.brokers"},
		{"rabbitmq incomplete", func(c *Config) { c.Sink = "rabbitmq" }, "rabbitmq.url"},
		{"sqs incomplete", func(c *Config) { c.Sink = "sqs" }, "sqs.queue_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %v does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplySubcommand(t *testing.T) {
	var c Config
	if !c.ApplySubcommand("gzipped-json-to-kafka") {
		t.Fatal("expected pipeline subcommand")
	}
	if c.Format != "gzipped-json" || c.Sink != "kafka" {
		t.Fatalf("format=%q sink=%q", c.Format, c.Sink)
	}
	if (&Config{}).ApplySubcommand("version") {
		t.Fatal("version is not a pipeline subcommand")
	}
}

func TestRedacted(t *testing.T) {
	c := Config{}
	c.Kafka.SASLPass = "kafka-secret"
	c.SQS.SecretAccessKey = "aws-secret"
	c.RabbitMQ.URL = "amqp://user:rabbit-secret@mq:5672/"

	r := c.Redacted()
	if r.Kafka.SASLPass == "kafka-secret" || r.SQS.SecretAccessKey == "aws-secret" {
		t.Fatalf("secrets not redacted: %+v", r)
	}
	if strings.Contains(r.RabbitMQ.URL, "rabbit-secret") || !strings.Contains(r.RabbitMQ.URL, "user") {
		t.Fatalf("url not redacted: %s", r.RabbitMQ.URL)
	}
	if c.Kafka.SASLPass != "kafka-secret" {
		t.Fatal("Redacted mutated the original")
	}
}

func TestBindFlags_OnlyExplicit(t *testing.T) {
	fs := flag.NewFlagSet("json-to-kafka", flag.ContinueOnError)
	collect := BindFlags(fs)
	if err := fs.Parse([]string{"--config", "p.yml", "--kafka-brokers", "a:1,b:2", "--record-min", "10"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	path, set := collect()
	if path != "p.yml" {
		t.Fatalf("path = %q", path)
	}
	if len(set) != 2 || set["record_min"] != "10" {
		t.Fatalf("unexpected flag map %v", set)
	}
	if b, ok := set["kafka.brokers"].([]string); !ok || len(b) != 2 {
		t.Fatalf("brokers = %#v", set["kafka.brokers"])
	}
}

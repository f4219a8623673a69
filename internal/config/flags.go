package config

import (
	"flag"
	"strings"
)

// Flag maps one command-line flag onto a configuration path.
type Flag struct {
	Name  string
	Key   string
	Usage string
}

// Flags is the command-line surface shared by every pipeline subcommand.
var Flags = []Flag{
	{"config", "", "path to a YAML configuration file"},
	{"input-url", "input_url", "file path, file:// URL, http(s) URL or - for stdin"},
	{"http-timeout", "http_timeout", "timeout for http(s) inputs, e.g. 30s"},
	{"socket-addr", "socket.addr", "listen address for the socket format"},
	{"max-message-size", "max_message_size", "maximum message size in bytes"},
	{"records-per-message", "records_per_message", "records per message; >1 sends JSON arrays"},
	{"record-min", "record_min", "1-based index of the first record to send"},
	{"record-max", "record_max", "1-based index of the first record never read; 0 = unbounded"},
	{"default-data-source", "default_data_source", "DATA_SOURCE injected when absent"},
	{"default-entity-type", "default_entity_type", "ENTITY_TYPE injected when absent"},
	{"record-identifier", "record_identifier", "field copied into RECORD_ID when absent"},
	{"record-id-hash", "record_id_hash", "derive RECORD_ID from record content when no identifier exists"},
	{"directive-name", "directive_name", "DIRECTIVE_NAME injected when absent"},
	{"directive-action", "directive_action", "DIRECTIVE_ACTION injected when absent"},
	{"governor", "governor.kind", "none|rate|pausefile|grpc"},
	{"governor-rate", "governor.rate_per_second", "records per second for the rate governor"},
	{"governor-pause-file", "governor.pause_file", "pause while this file exists"},
	{"governor-stop-file", "governor.stop_file", "stop once this file exists"},
	{"governor-target", "governor.target", "gRPC health endpoint polled by the grpc governor"},
	{"kafka-driver", "kafka.driver", "sarama|franz"},
	{"kafka-brokers", "kafka.brokers", "comma separated bootstrap brokers"},
	{"kafka-topic", "kafka.topic", "destination topic"},
	{"rabbitmq-url", "rabbitmq.url", "amqp:// connection URL"},
	{"rabbitmq-exchange", "rabbitmq.exchange", "exchange name; empty for the default exchange"},
	{"rabbitmq-queue", "rabbitmq.queue", "destination queue"},
	{"sqs-queue-url", "sqs.queue_url", "destination queue URL"},
	{"sqs-region", "sqs.region", "AWS region"},
	{"sqs-endpoint", "sqs.endpoint", "override SQS endpoint"},
	{"monitoring-period", "monitoring_period", "interval between progress logs, e.g. 1m; 0 disables"},
	{"delay", "delay", "wait before starting, e.g. 5s"},
	{"metrics-port", "metrics_port", "Prometheus /metrics port; 0 disables"},
	{"grpc-port", "grpc_port", "gRPC health port; 0 disables"},
	{"log-level", "log.level", "debug|info|warn|error"},
}

// BindFlags registers Flags on fs. After fs.Parse, the returned function
// yields the config file path and the flags the user actually set.
func BindFlags(fs *flag.FlagSet) func() (string, map[string]any) {
	vals := make(map[string]*string, len(Flags))
	for _, f := range Flags {
		vals[f.Name] = fs.String(f.Name, "", f.Usage)
	}
	return func() (string, map[string]any) {
		set := map[string]any{}
		path := ""
		fs.Visit(func(fl *flag.Flag) {
			for _, f := range Flags {
				if f.Name != fl.Name {
					continue
				}
				v := *vals[f.Name]
				switch {
				case f.Key == "":
					path = v
				case strings.HasSuffix(f.Key, ".brokers"):
					set[f.Key] = strings.Split(v, ",")
				default:
					set[f.Key] = v
				}
			}
		})
		return path, set
	}
}

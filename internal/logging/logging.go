package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// Environment keys read by InitFromEnv. They match the keys the config
// layer maps to log.level and log.json, so both paths agree.
const (
	EnvLevel = "STREAM_PRODUCER__LOG__LEVEL"
	EnvJSON  = "STREAM_PRODUCER__LOG__JSON"
)

type Options struct {
	Level string
	JSON  bool
	// Output defaults to stderr. Stdout is left to the stdout sink.
	Output io.Writer
}

var def atomic.Value

func init() {
	def.Store(slog.New(newHandler(Options{})))
}

func newHandler(opts Options) slog.Handler {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	cfg := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if opts.JSON {
		return slog.NewJSONHandler(out, cfg)
	}
	return slog.NewTextHandler(out, cfg)
}

func Configure(opts Options) {
	def.Store(slog.New(newHandler(opts)).With("product", "stream-producer"))
}

// ParseLevel maps the level names accepted in config and env to slog levels.
// Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func L() *slog.Logger {
	l, _ := def.Load().(*slog.Logger)
	return l
}

// Component tags every line with the emitting subsystem.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// SetLogger swaps the process logger. Tests use it to capture output.
func SetLogger(l *slog.Logger) {
	if l != nil {
		def.Store(l)
	}
}

// InitFromEnv configures the early logger used before config is loaded.
func InitFromEnv() {
	json, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvJSON)))
	Configure(Options{Level: os.Getenv(EnvLevel), JSON: json})
}

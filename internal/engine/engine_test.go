package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"streamproducer/internal/config"
)

func baseConfig(t *testing.T, input string) config.Config {
	t.Helper()
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	path := filepath.Join(t.TempDir(), "in.json")
	if err := os.WriteFile(path, []byte(input), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.ApplySubcommand("json-to-stdout")
	cfg.Source.InputURL = path
	cfg.MonitoringPeriod = 0
	return cfg
}

func TestEngine_JSONToStdout(t *testing.T) {
	cfg := baseConfig(t, "{\"id\":1}\n{\"id\":2}\nnot json\n{\"id\":3}\n")
	cfg.Pipeline.RecordsPerMessage = 2
	cfg.Normalizer.DataSource = "TEST"
	var out bytes.Buffer
	cfg.Stdout.Writer = &out

	e, err := Bootstrap(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	defer e.Close()
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 messages, got %d: %q", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "[") || !strings.Contains(lines[0], `"DATA_SOURCE":"TEST"`) {
		t.Fatalf("unexpected first message %s", lines[0])
	}
	s := e.Counters().Snapshot()
	if s.Sent != 3 || s.DecodeErrors != 1 || s.Messages != 2 {
		t.Fatalf("unexpected counters %+v", s)
	}
}

func TestBootstrap_Errors(t *testing.T) {
	cfg := baseConfig(t, "")
	cfg.Pipeline.MaxMessageSize = 0
	if _, err := Bootstrap(context.Background(), cfg); err == nil {
		t.Fatal("expected validation error")
	}

	cfg = baseConfig(t, "")
	cfg.Sink = "carrier-pigeon"
	if _, err := Bootstrap(context.Background(), cfg); err == nil {
		t.Fatal("expected unknown sink error")
	}

	cfg = baseConfig(t, "")
	cfg.Format = "xml"
	if _, err := Bootstrap(context.Background(), cfg); err == nil {
		t.Fatal("expected unknown format error")
	}
}

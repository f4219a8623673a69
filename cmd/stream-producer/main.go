package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"streamproducer/internal/config"
	"streamproducer/internal/engine"
	"streamproducer/internal/logging"
	"streamproducer/sink"
	"streamproducer/source"
)

var (
	version   = "1.0.0"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	logging.InitFromEnv()

	sub := os.Getenv(config.EnvPrefix + "SUBCOMMAND")
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "version":
		fmt.Fprintf(stdout, "stream-producer %s (%s)\n", version, buildDate)
		return 0
	case "sleep":
		return doSleep(ctx, args)
	case "docker-acceptance-test":
		start := time.Now()
		logging.L().Info("entry", "subcommand", sub)
		logging.L().Info("exit", "subcommand", sub, "elapsed", time.Since(start))
		return 0
	case "", "help", "-h", "--help":
		usage(stdout)
		if sub == "" {
			return 2
		}
		return 0
	}
	return doPipeline(ctx, sub, args)
}

func doPipeline(ctx context.Context, sub string, args []string) int {
	log := logging.L()
	start := time.Now()

	fs := flag.NewFlagSet(sub, flag.ContinueOnError)
	collect := config.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	path, flags := collect()

	cfg, err := config.Load(config.LoadOptions{Path: path, Flags: flags})
	if err != nil {
		log.Error("load config", "err", err)
		return 1
	}
	if !cfg.ApplySubcommand(sub) {
		log.Error("unknown subcommand", "subcommand", sub)
		return 2
	}
	logging.Configure(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	log = logging.L()
	log.Info("entry", "subcommand", sub, "version", version, "config", fmt.Sprintf("%+v", cfg.Redacted()))

	if cfg.Delay > 0 {
		log.Info("delaying start", "delay", cfg.Delay)
		select {
		case <-time.After(cfg.Delay):
		case <-ctx.Done():
			return 0
		}
	}

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		log.Error("bootstrap", "err", err)
		return 1
	}
	defer e.Close()

	code := 0
	if err := e.Run(ctx); err != nil {
		log.Error("engine", "err", err)
		code = 1
	}
	log.Info("exit", "subcommand", sub, "elapsed", time.Since(start), "exit_code", code)
	return code
}

// doSleep idles for --sleep-time, or until a signal when it is zero.
func doSleep(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("sleep", flag.ContinueOnError)
	d := fs.Duration("sleep-time", 0, "how long to sleep; 0 sleeps until interrupted")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	sleep := *d
	if sleep == 0 {
		if cfg, err := config.Load(config.LoadOptions{}); err == nil {
			sleep = cfg.SleepTime
		}
	}

	start := time.Now()
	logging.L().Info("entry", "subcommand", "sleep", "sleep_time", sleep)
	if sleep > 0 {
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
		}
	} else {
		<-ctx.Done()
	}
	logging.L().Info("exit", "subcommand", "sleep", "elapsed", time.Since(start))
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: stream-producer <subcommand> [flags]")
	fmt.Fprintln(w, "\nsubcommands:")
	for _, f := range source.Formats() {
		for _, s := range sink.Names() {
			fmt.Fprintf(w, "  %s-to-%s\n", f, s)
		}
	}
	fmt.Fprintln(w, "  sleep\n  version\n  docker-acceptance-test")
	fmt.Fprintln(w, "\nflags for <format>-to-<sink>:")
	for _, f := range config.Flags {
		fmt.Fprintf(w, "  --%-22s %s\n", f.Name, f.Usage)
	}
}

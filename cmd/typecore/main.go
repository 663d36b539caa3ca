// # cmd/typecore/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"typecore/internal/core/app"
	"typecore/internal/core/config"
	"typecore/internal/engine/types"
	"typecore/internal/shared/observability"
)

var (
	configPath  = flag.String("config", "./typecore.toml", "Path to config file")
	root        = flag.String("root", ".", "Directory search paths are resolved against")
	module      = flag.String("module", "", "Module qualifier used to resolve names in arguments")
	metricsAddr = flag.String("metrics", "", "Serve /metrics and /health on this address and keep running")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: typecore [flags] <command> [args]\n\n%s\nflags:\n", usage())
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Printf("typecore v%s\n", VERSION)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddress = *metricsAddr
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.Logging.Level),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, flag.Args(), os.Stdout); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig falls back to defaults when the default config path is absent.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "./typecore.toml" {
		cfg := config.Default()
		config.ApplyEnvOverrides(cfg)
		return cfg, nil
	}
	return config.Load(path)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if cfg.Observability.EnableTracing {
		shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
		if err != nil {
			slog.Warn("tracing disabled", "endpoint", cfg.Observability.OTLPEndpoint, "error", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()
		}
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	analysis, err := a.Analyze(ctx, *root)
	if err != nil {
		return err
	}

	s := &session{analysis: analysis, parser: a.Parser, module: types.Reference(*module), out: out}
	if err := dispatch(s, args); err != nil {
		return err
	}

	if cfg.Observability.MetricsAddress != "" {
		srv := observability.NewServer(cfg.Observability.MetricsAddress, func(context.Context) map[string]string {
			state := "ok"
			if len(analysis.Modules) == 0 {
				state = "empty"
			}
			return map[string]string{"environment": state}
		})
		srv.Start()
		<-ctx.Done()
		return srv.Stop(context.Background())
	}
	return nil
}

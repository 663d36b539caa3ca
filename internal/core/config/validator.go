package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem found in cfg, in section order.
func Validate(cfg *Config) []error {
	var errs []error
	if cfg.Version != 1 {
		errs = append(errs, fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version))
	}
	errs = append(errs, validateSources(cfg)...)
	errs = append(errs, validateResolution(cfg)...)
	if !logLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level must be one of: debug, info, warn, error"))
	}
	errs = append(errs, validateObservability(cfg)...)
	return errs
}

func validateSources(cfg *Config) []error {
	var errs []error
	for i, p := range cfg.Sources.SearchPaths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("sources.search_paths[%d] %q does not exist", i, p))
			continue
		}
		if !info.IsDir() {
			errs = append(errs, fmt.Errorf("sources.search_paths[%d] %q is not a directory", i, p))
		}
	}
	if cfg.Sources.ReadRate < 0 {
		errs = append(errs, fmt.Errorf("sources.read_rate must be >= 0"))
	}
	for _, p := range cfg.Sources.ExcludeDirs {
		if _, err := glob.Compile(p, '/'); err != nil {
			errs = append(errs, fmt.Errorf("invalid sources.exclude_dirs pattern %q: %w", p, err))
		}
	}
	for _, p := range cfg.Sources.ExcludeFiles {
		if _, err := glob.Compile(p, '/'); err != nil {
			errs = append(errs, fmt.Errorf("invalid sources.exclude_files pattern %q: %w", p, err))
		}
	}
	return errs
}

func validateResolution(cfg *Config) []error {
	var errs []error
	if cfg.Resolution.AttributeCacheSize < 1 || cfg.Resolution.AttributeCacheSize > 1<<20 {
		errs = append(errs, fmt.Errorf("resolution.attribute_cache_size must be between 1 and %d", 1<<20))
	}
	if cfg.Resolution.WideningThreshold < 1 {
		errs = append(errs, fmt.Errorf("resolution.widening_threshold must be >= 1"))
	}
	return errs
}

func validateObservability(cfg *Config) []error {
	var errs []error
	if addr := strings.TrimSpace(cfg.Observability.MetricsAddress); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("observability.metrics_address %q: %w", addr, err))
		}
	}
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		errs = append(errs, fmt.Errorf("observability.otlp_endpoint must not be empty when tracing is enabled"))
	}
	return errs
}

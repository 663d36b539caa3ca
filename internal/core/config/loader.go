package config

import (
	"os"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"typecore/internal/core/errors"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read config"), errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}

	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	normalizeSources(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.AddContext(errors.Wrap(errs[0], errors.CodeValidationError, "invalid config"), errors.CtxPath, path)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.Sources.SearchPaths) == 0 {
		cfg.Sources.SearchPaths = []string{"."}
	}
	if len(cfg.Sources.ExcludeDirs) == 0 {
		cfg.Sources.ExcludeDirs = []string{".git", "__pycache__", ".venv", "node_modules"}
	}
	if cfg.Sources.Workers <= 0 {
		cfg.Sources.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Resolution.AttributeCacheSize <= 0 {
		cfg.Resolution.AttributeCacheSize = 1024
	}
	if cfg.Resolution.WideningThreshold <= 0 {
		cfg.Resolution.WideningThreshold = 3
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
}

func normalizeSources(cfg *Config) {
	cfg.Sources.SearchPaths = trimAll(cfg.Sources.SearchPaths)
	cfg.Sources.ExcludeDirs = trimAll(cfg.Sources.ExcludeDirs)
	cfg.Sources.ExcludeFiles = trimAll(cfg.Sources.ExcludeFiles)
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

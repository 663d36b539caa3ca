package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: TYPECORE_[SECTION]_[KEY] (e.g., TYPECORE_RESOLUTION_CACHE_DEFINITIONS).
// List values are comma separated.
func ApplyEnvOverrides(cfg *Config) {
	setEnvList(&cfg.Sources.SearchPaths, "TYPECORE_SOURCES_SEARCH_PATHS")
	setEnvList(&cfg.Sources.ExcludeDirs, "TYPECORE_SOURCES_EXCLUDE_DIRS")
	setEnvList(&cfg.Sources.ExcludeFiles, "TYPECORE_SOURCES_EXCLUDE_FILES")
	setEnvInt(&cfg.Sources.Workers, "TYPECORE_SOURCES_WORKERS")
	setEnvFloat64(&cfg.Sources.ReadRate, "TYPECORE_SOURCES_READ_RATE")

	setEnvBool(&cfg.Resolution.CacheDefinitions, "TYPECORE_RESOLUTION_CACHE_DEFINITIONS")
	setEnvInt(&cfg.Resolution.AttributeCacheSize, "TYPECORE_RESOLUTION_ATTRIBUTE_CACHE_SIZE")
	setEnvInt(&cfg.Resolution.WideningThreshold, "TYPECORE_RESOLUTION_WIDENING_THRESHOLD")

	setEnvString(&cfg.Logging.Level, "TYPECORE_LOGGING_LEVEL")

	setEnvString(&cfg.Observability.MetricsAddress, "TYPECORE_OBSERVABILITY_METRICS_ADDRESS")
	setEnvBool(&cfg.Observability.EnableTracing, "TYPECORE_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "TYPECORE_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

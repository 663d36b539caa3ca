package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Version       int           `toml:"version"`
	Sources       Sources       `toml:"sources"`
	Resolution    Resolution    `toml:"resolution"`
	Logging       Logging       `toml:"logging"`
	Observability Observability `toml:"observability"`
}

// Sources selects the files loaded into the environment. Exclusions are glob
// patterns matched against slash-separated paths relative to each search path.
type Sources struct {
	SearchPaths  []string `toml:"search_paths"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
	IncludeStubs *bool    `toml:"include_stubs"`
	Workers      int      `toml:"workers"`
	// ReadRate caps file reads per second; zero reads without limit.
	ReadRate float64 `toml:"read_rate"`
}

type Resolution struct {
	CacheDefinitions   bool `toml:"cache_definitions"`
	AttributeCacheSize int  `toml:"attribute_cache_size"`
	WideningThreshold  int  `toml:"widening_threshold"`
}

type Logging struct {
	Level string `toml:"level"`
}

type Observability struct {
	MetricsAddress string `toml:"metrics_address"`
	EnableTracing  bool   `toml:"enable_tracing"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
}

// Default returns a configuration with every default applied, used when no
// config file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func (s Sources) StubsIncluded() bool {
	return s.IncludeStubs == nil || *s.IncludeStubs
}

func (c *Config) String() string {
	return fmt.Sprintf("search_paths=[%s] cache_definitions=%t attribute_cache_size=%d widening_threshold=%d",
		strings.Join(c.Sources.SearchPaths, ","),
		c.Resolution.CacheDefinitions,
		c.Resolution.AttributeCacheSize,
		c.Resolution.WideningThreshold)
}

package config

import (
	"path/filepath"
	"sort"
	"strings"
)

// ResolveSearchPaths makes the configured search paths absolute relative to base
// and drops duplicates. Order is preserved since earlier paths shadow later ones.
func ResolveSearchPaths(cfg *Config, base string) []string {
	seen := make(map[string]bool, len(cfg.Sources.SearchPaths))
	out := make([]string, 0, len(cfg.Sources.SearchPaths))
	for _, p := range cfg.Sources.SearchPaths {
		resolved := ResolveRelative(base, p)
		if abs, err := filepath.Abs(resolved); err == nil {
			resolved = abs
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	return out
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// SortedExcludes returns the union of directory and file exclusions, for logging.
func SortedExcludes(cfg *Config) []string {
	out := append(append([]string(nil), cfg.Sources.ExcludeDirs...), cfg.Sources.ExcludeFiles...)
	sort.Strings(out)
	return out
}

package environment

import (
	"fmt"
	"sort"
	"sync"

	"typecore/internal/engine/types"
	"typecore/internal/shared/observability"
)

// Dependency names a downstream consumer whose results depend on environment reads,
// e.g. the type check of one function.
type Dependency struct {
	Kind string
	Name types.Reference
}

func (d Dependency) String() string {
	return fmt.Sprintf("%s(%s)", d.Kind, d.Name)
}

// Query is the context threaded through every environment read. The zero value
// performs no dependency tracking.
type Query struct {
	dependency Dependency
	tracked    bool
	log        *ReadLog
}

// Untracked reads without recording dependency edges.
var Untracked = Query{}

func Track(dependency Dependency) Query {
	return Query{dependency: dependency, tracked: true}
}

func (q Query) Dependency() (Dependency, bool) {
	return q.dependency, q.tracked
}

// Recording returns an untracked query that appends every read it makes to the
// returned log. Memoized results keep the log and replay it for later readers.
func Recording() (Query, *ReadLog) {
	log := &ReadLog{seen: make(map[read]struct{})}
	return Query{log: log}, log
}

type read struct {
	tracker *DependencyTracker
	key     string
}

// ReadLog is the set of (layer, key) reads made under a recording query, in
// first-read order.
type ReadLog struct {
	mu    sync.Mutex
	reads []read
	seen  map[read]struct{}
}

func (l *ReadLog) add(t *DependencyTracker, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := read{tracker: t, key: key}
	if _, ok := l.seen[r]; ok {
		return
	}
	l.seen[r] = struct{}{}
	l.reads = append(l.reads, r)
}

func (l *ReadLog) snapshot() []read {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]read(nil), l.reads...)
}

// Replay records every logged read against q as if q had made it.
func (l *ReadLog) Replay(q Query) {
	for _, r := range l.snapshot() {
		r.tracker.record(q, r.key)
	}
}

// Keys lists the distinct keys read, across all layers, sorted.
func (l *ReadLog) Keys() []string {
	set := make(map[string]struct{})
	for _, r := range l.snapshot() {
		set[r.key] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Touches reports whether any logged read used one of keys.
func (l *ReadLog) Touches(keys map[string]bool) bool {
	for _, r := range l.snapshot() {
		if keys[r.key] {
			return true
		}
	}
	return false
}

// DependencyTracker records which dependencies read which keys of one layer.
type DependencyTracker struct {
	layer string
	mu    sync.Mutex
	edges map[string]map[Dependency]struct{}
}

func NewDependencyTracker(layer string) *DependencyTracker {
	return &DependencyTracker{
		layer: layer,
		edges: make(map[string]map[Dependency]struct{}),
	}
}

func (t *DependencyTracker) Layer() string { return t.layer }

// Record notes that q's dependency read key. Untracked queries are only counted.
func (t *DependencyTracker) Record(q Query, key string) {
	observability.EnvironmentReadsTotal.WithLabelValues(t.layer).Inc()
	t.record(q, key)
}

func (t *DependencyTracker) record(q Query, key string) {
	if q.log != nil {
		q.log.add(t, key)
	}
	if !q.tracked {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.edges[key]
	if !ok {
		set = make(map[Dependency]struct{})
		t.edges[key] = set
	}
	set[q.dependency] = struct{}{}
}

// Dependents lists the dependencies recorded against key, sorted.
func (t *DependencyTracker) Dependents(key string) []Dependency {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedDependencies(t.edges[key])
}

// Invalidate drops the edges for keys and returns the dependencies that must be
// recomputed.
func (t *DependencyTracker) Invalidate(keys ...string) []Dependency {
	t.mu.Lock()
	defer t.mu.Unlock()

	triggered := make(map[Dependency]struct{})
	for _, key := range keys {
		for dep := range t.edges[key] {
			triggered[dep] = struct{}{}
		}
		delete(t.edges, key)
	}
	if len(triggered) > 0 {
		observability.DependencyInvalidationsTotal.WithLabelValues(t.layer).Add(float64(len(triggered)))
	}
	return sortedDependencies(triggered)
}

func sortedDependencies(set map[Dependency]struct{}) []Dependency {
	if len(set) == 0 {
		return nil
	}
	out := make([]Dependency, 0, len(set))
	for dep := range set {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func mergeDependencies(lists ...[]Dependency) []Dependency {
	set := make(map[Dependency]struct{})
	for _, list := range lists {
		for _, dep := range list {
			set[dep] = struct{}{}
		}
	}
	return sortedDependencies(set)
}

package types

import (
	"strings"
)

// Reference is a dotted qualified name such as `module.Class.attribute`.
// Equality is plain string equality; the empty reference names the builtins module.
type Reference string

const (
	localPrefix     = "$local_"
	parameterPrefix = "$parameter$"
)

func NewReference(parts ...string) Reference {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			filtered = append(filtered, part)
		}
	}
	return Reference(strings.Join(filtered, "."))
}

func (r Reference) String() string { return string(r) }

func (r Reference) IsEmpty() bool { return r == "" }

func (r Reference) Parts() []string {
	if r == "" {
		return nil
	}
	return strings.Split(string(r), ".")
}

func (r Reference) Length() int {
	return len(r.Parts())
}

// Last returns the final segment of the reference.
func (r Reference) Last() string {
	if idx := strings.LastIndex(string(r), "."); idx >= 0 {
		return string(r[idx+1:])
	}
	return string(r)
}

// Prefix drops the final segment.
func (r Reference) Prefix() Reference {
	if idx := strings.LastIndex(string(r), "."); idx >= 0 {
		return r[:idx]
	}
	return ""
}

// Take keeps the first n segments.
func (r Reference) Take(n int) Reference {
	parts := r.Parts()
	if n >= len(parts) {
		return r
	}
	if n <= 0 {
		return ""
	}
	return NewReference(parts[:n]...)
}

// Drop removes the first n segments.
func (r Reference) Drop(n int) Reference {
	parts := r.Parts()
	if n >= len(parts) {
		return ""
	}
	if n <= 0 {
		return r
	}
	return NewReference(parts[n:]...)
}

func (r Reference) Append(segment string) Reference {
	return NewReference(string(r), segment)
}

func (r Reference) IsPrefixOf(other Reference) bool {
	if r == "" {
		return true
	}
	return other == r || strings.HasPrefix(string(other), string(r)+".")
}

func Combine(prefix, suffix Reference) Reference {
	return NewReference(string(prefix), string(suffix))
}

// Localize qualifies a local variable name with its defining scope, e.g.
// Localize("pkg.f", "x") is `$local_pkg?f$x`.
func Localize(qualifier Reference, name string) Reference {
	return Reference(localPrefix + strings.ReplaceAll(string(qualifier), ".", "?") + "$" + name)
}

// Delocalize rewrites local and parameter markers in the root segment into a
// plain qualified reference.
func (r Reference) Delocalize() Reference {
	parts := r.Parts()
	if len(parts) == 0 {
		return r
	}
	head := parts[0]
	switch {
	case strings.HasPrefix(head, parameterPrefix):
		parts[0] = strings.TrimPrefix(head, parameterPrefix)
	case strings.HasPrefix(head, localPrefix):
		body := strings.TrimPrefix(head, localPrefix)
		idx := strings.LastIndex(body, "$")
		if idx < 0 {
			break
		}
		qualifier := strings.ReplaceAll(body[:idx], "?", ".")
		parts[0] = string(NewReference(qualifier, body[idx+1:]))
	}
	return NewReference(parts...)
}

func (r Reference) IsLocal() bool {
	return strings.HasPrefix(string(r), localPrefix) || strings.HasPrefix(string(r), parameterPrefix)
}

// ReferenceComparer orders references lexicographically for sorted persistent maps.
type ReferenceComparer struct{}

func (ReferenceComparer) Compare(a, b Reference) int {
	return strings.Compare(string(a), string(b))
}

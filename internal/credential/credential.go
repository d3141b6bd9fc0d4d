// Package credential holds collected secrets and prompts for the ones a
// server still needs.
package credential

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/protocollar/stackup/internal/logger"
)

// Sentinel substrings that mark a template or env value as not filled in.
const (
	sentinelPrefix = "YOUR_"
	sentinelSuffix = "_HERE"
)

// IsPlaceholder reports whether s carries a placeholder sentinel.
func IsPlaceholder(s string) bool {
	return strings.Contains(s, sentinelPrefix) || strings.Contains(s, sentinelSuffix)
}

// IsConfigured reports whether s is a real value.
func IsConfigured(s string) bool {
	return s != "" && !IsPlaceholder(s)
}

// Credential is either unset or holds a value. The zero value is unset.
type Credential struct {
	value string
	set   bool
}

// Unset returns an unset credential.
func Unset() Credential { return Credential{} }

// Value returns a credential holding s. Use FromRaw for untrusted input.
func Value(s string) Credential { return Credential{value: s, set: true} }

// FromRaw maps empty and placeholder strings to Unset.
func FromRaw(s string) Credential {
	if !IsConfigured(s) {
		return Unset()
	}
	return Value(s)
}

// Get returns the value and whether it is set.
func (c Credential) Get() (string, bool) { return c.value, c.set }

// IsSet reports whether the credential holds a value.
func (c Credential) IsSet() bool { return c.set }

// String never prints the value.
func (c Credential) String() string {
	if c.set {
		return "configured"
	}
	return "unset"
}

// Set maps variable names to credentials.
type Set map[string]Credential

// Put records a secret value. Configured values are registered with the log
// redactor before they are stored.
func (s Set) Put(name, value string) {
	c := FromRaw(value)
	if c.set {
		logger.RegisterSecret(c.value)
	}
	s[name] = c
}

// PutPlain records a non-secret value (project ref, URL). It is not
// redacted from output.
func (s Set) PutPlain(name, value string) {
	s[name] = FromRaw(value)
}

// Skip records name as explicitly unset.
func (s Set) Skip(name string) {
	if _, ok := s[name]; !ok {
		s[name] = Unset()
	}
}

// Get returns the value for name when it is configured.
func (s Set) Get(name string) (string, bool) {
	c, ok := s[name]
	if !ok {
		return "", false
	}
	return c.Get()
}

// Configured reports whether name holds a real value.
func (s Set) Configured(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Merge returns a new Set with other layered over s. An unset entry in
// other never clears a configured entry in s.
func (s Set) Merge(other Set) Set {
	out := make(Set, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		if !v.set && out[k].set {
			continue
		}
		out[k] = v
	}
	return out
}

// Names returns every name in the set, sorted.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ConfiguredNames returns the configured names, sorted.
func (s Set) ConfiguredNames() []string {
	var names []string
	for _, k := range s.Names() {
		if s[k].set {
			names = append(names, k)
		}
	}
	return names
}

// Values returns the configured values for writing to the env file.
func (s Set) Values() map[string]string {
	out := make(map[string]string, len(s))
	for k, c := range s {
		if c.set {
			out[k] = c.value
		}
	}
	return out
}

// Lookup adapts the set to a name lookup function.
func (s Set) Lookup(name string) (string, bool) { return s.Get(name) }

// MarshalJSON reports names and whether each is configured, never values.
func (s Set) MarshalJSON() ([]byte, error) {
	status := make(map[string]bool, len(s))
	for k, c := range s {
		status[k] = c.set
	}
	return json.Marshal(status)
}

// FromLookup builds a Set from an existing source (process environment, env
// file) for the given names. Secret values are registered with the
// redactor.
func FromLookup(names []string, lookup func(string) (string, bool)) Set {
	out := make(Set)
	for _, n := range names {
		if v, ok := lookup(n); ok && IsConfigured(v) {
			out.Put(n, v)
		}
	}
	return out
}

// Missing returns the names in required that are not configured in s,
// sorted.
func Missing(required []string, s Set) []string {
	var out []string
	seen := make(map[string]bool, len(required))
	for _, n := range required {
		if seen[n] {
			continue
		}
		seen[n] = true
		if !s.Configured(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

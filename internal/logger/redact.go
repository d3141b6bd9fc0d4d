package logger

import (
	"sort"
	"strings"
	"sync"
)

// minSecretLen is the shortest value the redactor will mask. Shorter values
// would mangle ordinary words in output.
const minSecretLen = 4

const mask = "****"

// Redactor masks registered secret values in arbitrary text.
type Redactor struct {
	mu      sync.RWMutex
	secrets map[string]struct{}
	ordered []string
}

// NewRedactor returns an empty Redactor.
func NewRedactor() *Redactor {
	return &Redactor{secrets: make(map[string]struct{})}
}

// Add registers a secret value.
func (r *Redactor) Add(secret string) {
	if len(secret) < minSecretLen {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.secrets[secret]; ok {
		return
	}
	r.secrets[secret] = struct{}{}
	r.ordered = append(r.ordered, secret)
	// Longest first so a secret containing another is masked whole.
	sort.Slice(r.ordered, func(i, j int) bool { return len(r.ordered[i]) > len(r.ordered[j]) })
}

// Redact replaces every registered secret in s with a mask.
func (r *Redactor) Redact(s string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, secret := range r.ordered {
		if strings.Contains(s, secret) {
			s = strings.ReplaceAll(s, secret, mask)
		}
	}
	return s
}

var secrets = NewRedactor()

// RegisterSecret adds a value to the process-wide redactor.
func RegisterSecret(value string) {
	secrets.Add(value)
}

// Redact masks every registered secret in s.
func Redact(s string) string {
	return secrets.Redact(s)
}

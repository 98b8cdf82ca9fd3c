package security

import (
	"strings"
	"sync"
)

// CallerVerifier checks the shared secret a caller presents against a bcrypt hash.
// Verified tokens are remembered by digest so bcrypt runs once per distinct token.
type CallerVerifier struct {
	hash   string
	hasher *Hasher
	mu     sync.RWMutex
	known  string
}

// NewCallerVerifier returns a verifier for the given bcrypt hash. An empty hash
// means no secret is configured; Configured reports false and Verify always fails.
func NewCallerVerifier(hash string) *CallerVerifier {
	return &CallerVerifier{hash: strings.TrimSpace(hash), hasher: NewHasher(0)}
}

// Configured reports whether a caller secret hash is set.
func (v *CallerVerifier) Configured() bool {
	return v != nil && v.hash != ""
}

// Verify reports whether token matches the configured secret.
func (v *CallerVerifier) Verify(token string) bool {
	if !v.Configured() || token == "" {
		return false
	}
	v.mu.RLock()
	known := v.known
	v.mu.RUnlock()
	if known != "" && TokenDigestEqual(token, known) {
		return true
	}
	if err := v.hasher.Compare(v.hash, []byte(token)); err != nil {
		return false
	}
	v.mu.Lock()
	v.known = DigestToken(token)
	v.mu.Unlock()
	return true
}

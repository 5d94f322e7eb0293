// Package keys manages a round-robin pool of API credentials per external
// provider. A rate-limit response rotates to a sibling key first; only once
// every key has been tried within a cycle does the caller pay the full
// cooldown backoff.
package keys

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// ErrNoKeys is returned when a rotator is constructed without credentials.
var ErrNoKeys = errors.New("keys: at least one API key required")

// Rotator is a round-robin key pool with rate-limit-triggered rotation.
type Rotator struct {
	mu        sync.Mutex
	keys      []string
	index     int
	exhausted int
}

// New builds a rotator from an ordered, non-empty list of keys.
func New(pool []string) (*Rotator, error) {
	if len(pool) == 0 {
		return nil, ErrNoKeys
	}
	return &Rotator{keys: pool}, nil
}

// FromEnv loads keys from the environment. pluralVar holds a comma-separated
// list and is tried first; singularVar is the single-key fallback.
func FromEnv(pluralVar, singularVar string) (*Rotator, error) {
	if raw := strings.TrimSpace(os.Getenv(pluralVar)); raw != "" {
		var pool []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				pool = append(pool, k)
			}
		}
		if len(pool) > 0 {
			log.Printf("keys[%s]: %d key(s) loaded", pluralVar, len(pool))
			return New(pool)
		}
	}
	if singularVar != "" {
		if k := strings.TrimSpace(os.Getenv(singularVar)); k != "" {
			log.Printf("keys[%s]: 1 key loaded (singular fallback)", singularVar)
			return New([]string{k})
		}
	}
	return nil, fmt.Errorf("keys: no API keys found, set %s (comma-separated) or %s: %w",
		pluralVar, singularVar, ErrNoKeys)
}

// Current returns the active key.
func (r *Rotator) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[r.index]
}

// Rotate advances to the next key. It returns true while a fresh key (one
// not yet retried this cycle) is available; once every key has been tried it
// returns false without advancing, signaling full exhaustion.
func (r *Rotator) Rotate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exhausted++
	if r.exhausted >= len(r.keys) {
		return false
	}
	r.index = (r.index + 1) % len(r.keys)
	log.Printf("keys: rotated to key %d/%d after rate limit", r.index+1, len(r.keys))
	return true
}

// Exhausted reports whether every key has seen a rate limit this cycle.
func (r *Rotator) Exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhausted >= len(r.keys)
}

// Reset clears the exhaustion counter. Call after a successful request or a
// cooldown sleep.
func (r *Rotator) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exhausted = 0
}

// Len returns the pool size.
func (r *Rotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

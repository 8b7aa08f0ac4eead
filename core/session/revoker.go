package session

import (
	"sync"
	"time"
)

// Revoker is an in-memory JWT revocation list keyed by token ID. Like the
// Tracker, it never evicts entries.
type Revoker struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> token expiry
}

func NewRevoker() *Revoker {
	return &Revoker{revoked: make(map[string]time.Time)}
}

// Revoke blocklists a token ID until (at least) its expiry.
func (r *Revoker) Revoke(jti string, expiry time.Time) {
	if jti == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = expiry
}

func (r *Revoker) IsRevoked(jti string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.revoked[jti]
	return ok
}

func (r *Revoker) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.revoked)
}

package security

import (
	"sync"
	"time"
)

// RevocationRegistry is the process-wide set of revoked token identifiers.
// Each entry remembers when the blocked token would have expired so Sweep can drop it.
type RevocationRegistry struct {
	entries sync.Map // token id -> time.Time
	now     func() time.Time
}

// NewRevocationRegistry returns an empty registry.
func NewRevocationRegistry() *RevocationRegistry {
	return &RevocationRegistry{now: time.Now}
}

// Revoke records id until expiresAt. Revoking twice keeps the later expiry.
func (r *RevocationRegistry) Revoke(id string, expiresAt time.Time) {
	for {
		prev, loaded := r.entries.LoadOrStore(id, expiresAt)
		if !loaded || !prev.(time.Time).Before(expiresAt) {
			return
		}
		if r.entries.CompareAndSwap(id, prev, expiresAt) {
			return
		}
	}
}

// IsRevoked reports whether id was revoked. Entries past expiry stay revoked until swept.
func (r *RevocationRegistry) IsRevoked(id string) bool {
	_, ok := r.entries.Load(id)
	return ok
}

// Sweep drops entries whose token has already expired and returns how many were removed.
func (r *RevocationRegistry) Sweep() int {
	now := r.now()
	removed := 0
	r.entries.Range(func(key, value interface{}) bool {
		if expiresAt := value.(time.Time); !now.Before(expiresAt) {
			if r.entries.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Len counts current entries. It walks the whole set.
func (r *RevocationRegistry) Len() int {
	n := 0
	r.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

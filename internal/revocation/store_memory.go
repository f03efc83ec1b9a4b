package revocation

import (
	"sync/atomic"
	"time"
)

type offlineSnapshot struct {
	hashes    map[string]struct{}
	updatedAt time.Time
}

// OfflineStore holds a locally cached revocation set. The whole set is
// replaced atomically on refresh, so readers never observe a partial update.
type OfflineStore struct {
	snap atomic.Pointer[offlineSnapshot]
}

// NewOfflineStore returns an empty store.
func NewOfflineStore() *OfflineStore {
	s := &OfflineStore{}
	s.snap.Store(&offlineSnapshot{hashes: map[string]struct{}{}})
	return s
}

// Replace swaps in a new revocation set.
func (s *OfflineStore) Replace(hashes []string, updatedAt time.Time) {
	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	s.snap.Store(&offlineSnapshot{hashes: set, updatedAt: updatedAt})
}

// Contains reports whether hash is in the cached set.
func (s *OfflineStore) Contains(hash string) bool {
	_, ok := s.snap.Load().hashes[hash]
	return ok
}

// LastUpdated returns when the set was last replaced. Zero when never loaded.
func (s *OfflineStore) LastUpdated() time.Time {
	return s.snap.Load().updatedAt
}

// Len returns the cached set size.
func (s *OfflineStore) Len() int {
	return len(s.snap.Load().hashes)
}

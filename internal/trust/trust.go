// Package trust holds the trust-list snapshot: the signer certificates a
// deployment accepts. Signature verification itself happens upstream of the
// engine; this snapshot exists so the updater can keep it fresh alongside the
// rule and revocation data.
package trust

import (
	"sync/atomic"
	"time"
)

// Anchor is one trusted signer entry.
type Anchor struct {
	// KID is the key identifier certificates reference in their headers.
	KID string `json:"kid"`
	// CertificatePEM is the signer certificate in PEM form.
	CertificatePEM string `json:"certificate"`
	// Country the signer issues for.
	Country string `json:"country,omitempty"`
}

type snapshot struct {
	byKID     map[string]Anchor
	updatedAt time.Time
}

// Store is the atomic trust-list snapshot.
type Store struct {
	snap atomic.Pointer[snapshot]
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	s.snap.Store(&snapshot{byKID: map[string]Anchor{}})
	return s
}

// Replace swaps in a new trust list.
func (s *Store) Replace(anchors []Anchor, updatedAt time.Time) {
	byKID := make(map[string]Anchor, len(anchors))
	for _, a := range anchors {
		byKID[a.KID] = a
	}
	s.snap.Store(&snapshot{byKID: byKID, updatedAt: updatedAt})
}

// Lookup returns the anchor for a key identifier.
func (s *Store) Lookup(kid string) (Anchor, bool) {
	a, ok := s.snap.Load().byKID[kid]
	return a, ok
}

// Len returns the number of trusted signers.
func (s *Store) Len() int {
	return len(s.snap.Load().byKID)
}

// LastUpdated returns when the list was last replaced. Zero when never
// loaded.
func (s *Store) LastUpdated() time.Time {
	return s.snap.Load().updatedAt
}

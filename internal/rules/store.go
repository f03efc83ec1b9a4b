package rules

import "sync/atomic"

// Store holds the current rule-set snapshot. Replace swaps the whole snapshot
// atomically, so readers that grabbed Current before a swap keep evaluating
// against a consistent Set.
type Store struct {
	snap atomic.Pointer[Set]
}

// NewStore returns an empty store. Current is nil until the first Replace,
// which lets callers distinguish "rules never loaded" from "rules loaded but
// empty".
func NewStore() *Store {
	return &Store{}
}

// Current returns the live snapshot, or nil when nothing was ever loaded.
func (s *Store) Current() *Set {
	return s.snap.Load()
}

// Replace installs a new snapshot wholesale. There is no partial patching.
func (s *Store) Replace(set *Set) {
	s.snap.Store(set)
}

// ValueSetStore holds the named value-set snapshot with the same replace
// semantics as Store.
type ValueSetStore struct {
	snap atomic.Pointer[map[string][]string]
}

func NewValueSetStore() *ValueSetStore {
	return &ValueSetStore{}
}

// Current returns the live value sets; never nil, so expression evaluation
// can always index it.
func (s *ValueSetStore) Current() map[string][]string {
	if sets := s.snap.Load(); sets != nil {
		return *sets
	}
	return map[string][]string{}
}

// Replace installs a new value-set snapshot.
func (s *ValueSetStore) Replace(sets map[string][]string) {
	s.snap.Store(&sets)
}

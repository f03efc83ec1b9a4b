package holderstatus

import (
	"context"
	"sync"
)

// BoosterRepository persists per-holder booster flow state, keyed by the
// pseudonymous holder key.
type BoosterRepository interface {
	BoosterState(ctx context.Context, holderKey string) (BoosterState, error)
	SetBoosterState(ctx context.Context, holderKey string, state BoosterState) error
}

// advanceBooster applies the forward-only state machine. stored is the
// persisted state, eligible whether the holder currently meets the interval
// condition. A holder who once reached new or qualified keeps that state even
// if the eligibility condition later stops holding.
func advanceBooster(stored BoosterState, eligible bool) BoosterState {
	switch stored {
	case BoosterQualified:
		return BoosterQualified
	case BoosterNew:
		return BoosterNew
	default:
		if eligible {
			return BoosterNew
		}
		return BoosterNone
	}
}

// InMemoryBoosterRepository is the process-local BoosterRepository. Used in
// tests and single-instance deployments.
type InMemoryBoosterRepository struct {
	mu     sync.RWMutex
	states map[string]BoosterState
}

func NewInMemoryBoosterRepository() *InMemoryBoosterRepository {
	return &InMemoryBoosterRepository{states: map[string]BoosterState{}}
}

func (r *InMemoryBoosterRepository) BoosterState(_ context.Context, holderKey string) (BoosterState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[holderKey]
	if !ok {
		return BoosterNone, nil
	}
	return state, nil
}

func (r *InMemoryBoosterRepository) SetBoosterState(_ context.Context, holderKey string, state BoosterState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[holderKey] = state
	return nil
}

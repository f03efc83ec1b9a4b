package certificate

import (
	"context"
	"sync"

	"veripass/pkg/platform/sentinel"
)

// InMemoryRepository keeps extended certificates in process memory, keyed by
// UVCI. Primarily for tests and single-instance deployments.
type InMemoryRepository struct {
	mu    sync.RWMutex
	certs map[string]Extended
	order []string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{certs: make(map[string]Extended)}
}

func (r *InMemoryRepository) Save(_ context.Context, cert Extended) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	uvci := cert.DGC.UVCI()
	if _, ok := r.certs[uvci]; !ok {
		r.order = append(r.order, uvci)
	}
	r.certs[uvci] = cert
	return nil
}

// List returns certificates in insertion order.
func (r *InMemoryRepository) List(_ context.Context) ([]Extended, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Extended, 0, len(r.order))
	for _, uvci := range r.order {
		out = append(out, r.certs[uvci])
	}
	return out, nil
}

func (r *InMemoryRepository) FindByUVCI(_ context.Context, uvci string) (Extended, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cert, ok := r.certs[uvci]; ok {
		return cert, nil
	}
	return Extended{}, sentinel.ErrNotFound
}

func (r *InMemoryRepository) SetFlags(_ context.Context, uvci string, update FlagUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, ok := r.certs[uvci]
	if !ok {
		return sentinel.ErrNotFound
	}
	applyFlags(&cert, update)
	r.certs[uvci] = cert
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, uvci string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.certs[uvci]; !ok {
		return sentinel.ErrNotFound
	}
	delete(r.certs, uvci)
	for i, id := range r.order {
		if id == uvci {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func applyFlags(cert *Extended, update FlagUpdate) {
	if update.Revoked != nil {
		cert.Revoked = *update.Revoked
	}
	if update.Invalid != nil {
		cert.Invalid = *update.Invalid
	}
	if update.ExpiryAlertShown != nil {
		cert.ExpiryAlertShown = *update.ExpiryAlertShown
	}
	if update.ReissueInitialSeen != nil {
		cert.ReissueInitialSeen = *update.ReissueInitialSeen
	}
	if update.ReissueNewBadgeSeen != nil {
		cert.ReissueNewBadgeSeen = *update.ReissueNewBadgeSeen
	}
}

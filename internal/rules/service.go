package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "veripass/pkg/platform/audit"
)

// Persister writes rule sets through to durable storage.
type Persister interface {
	SaveSet(ctx context.Context, all []Rule, updatedAt time.Time) error
}

// AuditPublisher records administrative replacements.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the administrative surface over the rule and value-set
// snapshots. The updater replaces snapshots from upstream; this service does
// the same on behalf of an operator.
type Service struct {
	store         *Store
	valueSetStore *ValueSetStore

	persister      Persister
	auditPublisher AuditPublisher
	clock          func() time.Time
	logger         *slog.Logger
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithPersister writes replacements through to durable storage.
func WithPersister(persister Persister) ServiceOption {
	return func(s *Service) {
		s.persister = persister
	}
}

// WithAuditPublisher wires audit emission.
func WithAuditPublisher(publisher AuditPublisher) ServiceOption {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs the admin service over the given snapshots.
func NewService(store *Store, valueSetStore *ValueSetStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:         store,
		valueSetStore: valueSetStore,
		clock:         time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReplaceRules swaps in a new rule set wholesale and persists it. Returns the
// number of rules accepted.
func (s *Service) ReplaceRules(ctx context.Context, all []Rule) (int, error) {
	for _, r := range all {
		if r.Identifier == "" {
			return 0, fmt.Errorf("rule without identifier")
		}
		if r.Expr == nil {
			return 0, fmt.Errorf("rule %s has no expression", r.Identifier)
		}
	}

	now := s.clock()
	set := NewSet(all, now)
	s.store.Replace(set)

	if s.persister != nil {
		if err := s.persister.SaveSet(ctx, all, now); err != nil {
			s.logger.ErrorContext(ctx, "rule persistence failed", "error", err)
			return 0, fmt.Errorf("persist rules: %w", err)
		}
	}

	s.emit(ctx, audit.EventRuleSetReplaced, fmt.Sprintf("%d rules", len(all)))
	s.logger.InfoContext(ctx, "rule set replaced", "rules", len(all))
	return len(all), nil
}

// ReplaceValueSets swaps in the shared code lists.
func (s *Service) ReplaceValueSets(ctx context.Context, sets map[string][]string) int {
	s.valueSetStore.Replace(sets)
	s.emit(ctx, audit.EventValueSetsReplaced, fmt.Sprintf("%d value sets", len(sets)))
	s.logger.InfoContext(ctx, "value sets replaced", "sets", len(sets))
	return len(sets)
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, reason string) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.Event{Action: string(action), Reason: reason}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

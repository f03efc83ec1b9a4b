// Package updater refreshes the engine's snapshots from upstream services:
// rules, value sets, revocation data and the trust list, in that order.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"veripass/internal/rules"
	"veripass/internal/trust"
	audit "veripass/pkg/platform/audit"
)

var refreshSteps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "veripass_refresh_steps_total",
	Help: "Refresh pipeline step outcomes",
}, []string{"step", "outcome"})

// RuleFetcher loads the rules of one country from upstream.
type RuleFetcher interface {
	FetchRules(ctx context.Context, country string) ([]rules.Rule, error)
}

// ValueSetFetcher loads the shared code lists rule expressions reference.
type ValueSetFetcher interface {
	FetchValueSets(ctx context.Context) (map[string][]string, error)
}

// RevocationFetcher loads the offline revocation hash set.
type RevocationFetcher interface {
	FetchRevocations(ctx context.Context) ([]string, error)
}

// TrustListFetcher loads the accepted signer certificates.
type TrustListFetcher interface {
	FetchTrustList(ctx context.Context) ([]trust.Anchor, error)
}

// RulePersister writes the fetched rule set through to durable storage so a
// restart does not begin with an empty snapshot.
type RulePersister interface {
	SaveSet(ctx context.Context, all []rules.Rule, updatedAt time.Time) error
}

// RevocationSink receives the fetched offline revocation set.
type RevocationSink interface {
	Replace(hashes []string, updatedAt time.Time)
}

// AuditPublisher records snapshot replacements and aborted runs.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Pipeline runs the refresh steps strictly in order. A step failure stops the
// run but keeps everything earlier steps already swapped in; there is no
// rollback. Cancellation is checked between steps so an aborted run never
// leaves a snapshot half-written.
type Pipeline struct {
	countries []string

	ruleFetcher       RuleFetcher
	valueSetFetcher   ValueSetFetcher
	revocationFetcher RevocationFetcher
	trustListFetcher  TrustListFetcher

	ruleStore      *rules.Store
	valueSetStore  *rules.ValueSetStore
	revocationSink RevocationSink
	trustStore     *trust.Store

	rulePersister  RulePersister
	auditPublisher AuditPublisher

	clock  func() time.Time
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithRuleFetcher wires the rules step.
func WithRuleFetcher(fetcher RuleFetcher, store *rules.Store, countries ...string) Option {
	return func(p *Pipeline) {
		p.ruleFetcher = fetcher
		p.ruleStore = store
		p.countries = countries
	}
}

// WithValueSetFetcher wires the value-set step.
func WithValueSetFetcher(fetcher ValueSetFetcher, store *rules.ValueSetStore) Option {
	return func(p *Pipeline) {
		p.valueSetFetcher = fetcher
		p.valueSetStore = store
	}
}

// WithRevocationFetcher wires the revocation step.
func WithRevocationFetcher(fetcher RevocationFetcher, sink RevocationSink) Option {
	return func(p *Pipeline) {
		p.revocationFetcher = fetcher
		p.revocationSink = sink
	}
}

// WithTrustListFetcher wires the trust-list step.
func WithTrustListFetcher(fetcher TrustListFetcher, store *trust.Store) Option {
	return func(p *Pipeline) {
		p.trustListFetcher = fetcher
		p.trustStore = store
	}
}

// WithRulePersister writes fetched rules through to durable storage.
func WithRulePersister(persister RulePersister) Option {
	return func(p *Pipeline) {
		p.rulePersister = persister
	}
}

// WithAuditPublisher wires audit emission.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(p *Pipeline) {
		p.auditPublisher = publisher
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline constructs a Pipeline. Steps without a wired fetcher are
// skipped.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes one refresh. Concurrent calls serialize; the snapshots swap
// atomically either way, but interleaved runs would waste upstream fetches.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	steps := []step{
		{name: "rules", run: p.refreshRules},
		{name: "value_sets", run: p.refreshValueSets},
		{name: "revocations", run: p.refreshRevocations},
		{name: "trust_list", run: p.refreshTrustList},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			p.abort(ctx, s.name, err)
			return fmt.Errorf("refresh aborted before %s: %w", s.name, err)
		}
		start := p.clock()
		if err := s.run(ctx); err != nil {
			refreshSteps.WithLabelValues(s.name, "failed").Inc()
			p.logger.ErrorContext(ctx, "refresh step failed",
				"step", s.name,
				"error", err,
			)
			return fmt.Errorf("refresh step %s: %w", s.name, err)
		}
		refreshSteps.WithLabelValues(s.name, "ok").Inc()
		p.logger.InfoContext(ctx, "refresh step done",
			"step", s.name,
			"took", p.clock().Sub(start),
		)
	}
	return nil
}

// refreshRules fetches every configured country concurrently, then swaps the
// combined set in as one snapshot so readers never see a partial country mix.
func (p *Pipeline) refreshRules(ctx context.Context) error {
	if p.ruleFetcher == nil {
		return nil
	}

	perCountry := make([][]rules.Rule, len(p.countries))
	g, gctx := errgroup.WithContext(ctx)
	for i, country := range p.countries {
		g.Go(func() error {
			fetched, err := p.ruleFetcher.FetchRules(gctx, country)
			if err != nil {
				return fmt.Errorf("fetch rules %s: %w", country, err)
			}
			perCountry[i] = fetched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var all []rules.Rule
	for _, fetched := range perCountry {
		all = append(all, fetched...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Identifier < all[j].Identifier })

	now := p.clock()
	set := rules.NewSet(all, now)
	p.ruleStore.Replace(set)

	if p.rulePersister != nil {
		if err := p.rulePersister.SaveSet(ctx, all, now); err != nil {
			// The in-memory snapshot already swapped; persistence is for
			// the next restart, not this run.
			p.logger.WarnContext(ctx, "rule persistence failed", "error", err)
		}
	}

	p.emit(ctx, audit.EventRuleSetReplaced, fmt.Sprintf("%d rules, %d countries", len(all), len(p.countries)))
	return nil
}

func (p *Pipeline) refreshValueSets(ctx context.Context) error {
	if p.valueSetFetcher == nil {
		return nil
	}
	sets, err := p.valueSetFetcher.FetchValueSets(ctx)
	if err != nil {
		return fmt.Errorf("fetch value sets: %w", err)
	}
	p.valueSetStore.Replace(sets)
	p.emit(ctx, audit.EventValueSetsReplaced, fmt.Sprintf("%d value sets", len(sets)))
	return nil
}

func (p *Pipeline) refreshRevocations(ctx context.Context) error {
	if p.revocationFetcher == nil {
		return nil
	}
	hashes, err := p.revocationFetcher.FetchRevocations(ctx)
	if err != nil {
		return fmt.Errorf("fetch revocations: %w", err)
	}
	p.revocationSink.Replace(hashes, p.clock())
	return nil
}

func (p *Pipeline) refreshTrustList(ctx context.Context) error {
	if p.trustListFetcher == nil {
		return nil
	}
	anchors, err := p.trustListFetcher.FetchTrustList(ctx)
	if err != nil {
		return fmt.Errorf("fetch trust list: %w", err)
	}
	p.trustStore.Replace(anchors, p.clock())
	return nil
}

func (p *Pipeline) abort(ctx context.Context, next string, cause error) {
	p.logger.WarnContext(ctx, "refresh aborted",
		"next_step", next,
		"error", cause,
	)
	// Audit with a fresh context; the run context is already canceled.
	p.emit(context.WithoutCancel(ctx), audit.EventRefreshAborted, "before step "+next)
}

func (p *Pipeline) emit(ctx context.Context, action audit.AuditEvent, reason string) {
	if p.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Action: string(action),
		Reason: reason,
	}
	if err := p.auditPublisher.Emit(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

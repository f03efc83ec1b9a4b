package holderstatus

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"veripass/internal/certificate"
	"veripass/internal/rules"
	"veripass/internal/rules/engine"
	audit "veripass/pkg/platform/audit"
)

// defaultBoosterMinInterval is the jurisdiction minimum between the last dose
// of a completed series and booster eligibility.
const defaultBoosterMinInterval = 90 * 24 * time.Hour

// RuleSource supplies the current rule-set snapshot.
type RuleSource interface {
	Current() *rules.Set
}

// ValueSetSource supplies the current value-set snapshot.
type ValueSetSource interface {
	Current() map[string][]string
}

// RevocationChecker re-checks certificates against the revocation index
// during derivation. Failures are advisory here; the stored flag stands in.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, cert certificate.Certificate) (bool, error)
}

// AuditPublisher records derivations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Deriver computes holder statuses. All advisory sub-computations degrade to
// their neutral value instead of failing the derivation.
type Deriver struct {
	ruleSource     RuleSource
	valueSetSource ValueSetSource
	revocation     RevocationChecker
	boosterRepo    BoosterRepository
	certRepo       certificate.Repository
	auditPublisher AuditPublisher

	homeCountry        string
	boosterMinInterval time.Duration
	reissueLeadTime    time.Duration
	logger             *slog.Logger
	tracer             trace.Tracer
}

// Option configures the Deriver.
type Option func(*Deriver)

// WithValueSets wires the value-set snapshot used by rule expressions.
func WithValueSets(source ValueSetSource) Option {
	return func(d *Deriver) {
		d.valueSetSource = source
	}
}

// WithRevocationChecker enables live revocation re-checks during derivation.
func WithRevocationChecker(checker RevocationChecker) Option {
	return func(d *Deriver) {
		d.revocation = checker
	}
}

// WithBoosterRepository persists booster flow state across derivations.
func WithBoosterRepository(repo BoosterRepository) Option {
	return func(d *Deriver) {
		d.boosterRepo = repo
	}
}

// WithCertificateRepository persists revocations discovered during live
// re-checks back to the stored flags.
func WithCertificateRepository(repo certificate.Repository) Option {
	return func(d *Deriver) {
		d.certRepo = repo
	}
}

// WithAuditPublisher wires audit emission.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(d *Deriver) {
		d.auditPublisher = publisher
	}
}

// WithHomeCountry sets the country whose cycle and mask rules apply.
func WithHomeCountry(country string) Option {
	return func(d *Deriver) {
		d.homeCountry = country
	}
}

// WithBoosterMinInterval overrides the booster eligibility interval.
func WithBoosterMinInterval(interval time.Duration) Option {
	return func(d *Deriver) {
		d.boosterMinInterval = interval
	}
}

// WithReissueLeadTime overrides the expiry lead time for reissue candidates.
func WithReissueLeadTime(lead time.Duration) Option {
	return func(d *Deriver) {
		d.reissueLeadTime = lead
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deriver) {
		d.logger = logger
	}
}

// NewDeriver constructs a Deriver. ruleSource is mandatory.
func NewDeriver(ruleSource RuleSource, opts ...Option) *Deriver {
	d := &Deriver{
		ruleSource:         ruleSource,
		homeCountry:        "DE",
		boosterMinInterval: defaultBoosterMinInterval,
		reissueLeadTime:    certificate.ExpirySoonWindow,
		logger:             slog.Default(),
		tracer:             otel.Tracer("veripass/holderstatus"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Partition groups certificates by holder identity. Grouping is fuzzy on the
// transliterated name plus date of birth; group order follows first
// appearance in the input.
func Partition(certs []certificate.Extended) [][]certificate.Extended {
	var (
		groups [][]certificate.Extended
		index  = map[string]int{}
	)
	for _, cert := range certs {
		key := cert.DGC.HolderKey()
		if at, ok := index[key]; ok {
			groups[at] = append(groups[at], cert)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []certificate.Extended{cert})
	}
	return groups
}

// DeriveStatus computes the aggregate status of one holder's certificates.
// certs must belong to a single holder; use Partition first for mixed input.
// It never returns an error: advisory sub-steps (mask rules, booster
// persistence, live revocation) degrade to their unknown value.
func (d *Deriver) DeriveStatus(ctx context.Context, certs []certificate.Extended, region string, now time.Time) Status {
	ctx, span := d.tracer.Start(ctx, "holderstatus.DeriveStatus")
	defer span.End()

	set := d.ruleSource.Current()
	invalid := d.invalidity(ctx, certs, now)

	status := Status{
		Completion: CompletionIncomplete,
		Mask:       d.maskRequirement(set, certs, region, now),
		Reissue:    d.reissueCandidates(certs, now),
	}

	validDGCs := make([]certificate.DGC, 0, len(certs))
	var validCerts []certificate.Extended
	for i, cert := range certs {
		if !invalid[i] {
			validDGCs = append(validDGCs, cert.DGC)
			validCerts = append(validCerts, cert)
		}
	}

	if len(certs) > 0 && d.currentSetInvalid(certs, invalid) {
		status.Completion = CompletionInvalid
		status.Booster = d.boosterState(ctx, certs[0].DGC.HolderKey(), false)
		d.emit(ctx, certs, region, status)
		return status
	}

	if joined, ok := certificate.Join(validDGCs); ok {
		if variant, complete := d.cycleVariant(set, joined, validCerts, region, now); complete {
			status.Completion = CompletionComplete
			status.RuleVariant = variant
		}
	}

	holderKey := ""
	if len(certs) > 0 {
		holderKey = certs[0].DGC.HolderKey()
	}
	status.Booster = d.boosterState(ctx, holderKey, d.boosterEligible(set, validCerts, region, now))

	d.emit(ctx, certs, region, status)
	return status
}

// invalidity computes the per-certificate invalid flag: revoked, expired or
// persisted invalid. With a revocation checker wired, each certificate is
// re-checked concurrently; a check failure falls back to the stored flag.
func (d *Deriver) invalidity(ctx context.Context, certs []certificate.Extended, now time.Time) []bool {
	invalid := make([]bool, len(certs))
	revokedNow := make([]bool, len(certs))

	if d.revocation != nil {
		g, gctx := errgroup.WithContext(ctx)
		for i := range certs {
			g.Go(func() error {
				revoked, err := d.revocation.IsRevoked(gctx, certs[i].Certificate)
				if err != nil {
					d.logger.WarnContext(gctx, "revocation re-check failed, using stored flag",
						"error", err,
					)
					return nil
				}
				revokedNow[i] = revoked
				return nil
			})
		}
		// Workers only write their own slot and never return errors.
		_ = g.Wait()
	}

	for i, cert := range certs {
		invalid[i] = revokedNow[i] || cert.IsInvalid(cert.IsExpired(now))
		if revokedNow[i] && cert.Revoked != certificate.StateYes {
			d.persistRevoked(ctx, cert.DGC.UVCI())
		}
	}
	return invalid
}

// persistRevoked writes a newly observed revocation to the stored flags.
// Advisory: a write failure never affects the derivation.
func (d *Deriver) persistRevoked(ctx context.Context, uvci string) {
	if d.certRepo == nil || uvci == "" {
		return
	}
	revoked := certificate.StateYes
	if err := d.certRepo.SetFlags(ctx, uvci, certificate.FlagUpdate{Revoked: &revoked}); err != nil {
		d.logger.WarnContext(ctx, "revoked flag write failed", "uvci", uvci, "error", err)
	}
}

// currentSetInvalid reports whether the holder's most-recent-per-type
// certificates are all invalid. Older superseded certificates do not keep a
// holder valid; only the current set counts.
func (d *Deriver) currentSetInvalid(certs []certificate.Extended, invalid []bool) bool {
	current := map[int]struct{}{}
	if i, ok := latestBy(certs, func(dgc certificate.DGC) (certificate.Date, string, bool) {
		v, ok := dgc.LatestVaccination()
		return v.Date, v.UVCI, ok
	}); ok {
		current[i] = struct{}{}
	}
	if i, ok := latestBy(certs, func(dgc certificate.DGC) (certificate.Date, string, bool) {
		t, ok := dgc.LatestTest()
		return t.SampleCollection, t.UVCI, ok
	}); ok {
		current[i] = struct{}{}
	}
	if i, ok := latestBy(certs, func(dgc certificate.DGC) (certificate.Date, string, bool) {
		r, ok := dgc.LatestRecovery()
		return r.FirstResult, r.UVCI, ok
	}); ok {
		current[i] = struct{}{}
	}

	if len(current) == 0 {
		return false
	}
	for i := range current {
		if !invalid[i] {
			return false
		}
	}
	return true
}

// latestBy finds the certificate holding the latest entry of one type across
// the collection. Ties break on the greatest identifier.
func latestBy(certs []certificate.Extended, entry func(certificate.DGC) (certificate.Date, string, bool)) (int, bool) {
	best := -1
	var bestDate certificate.Date
	var bestUVCI string
	for i, cert := range certs {
		date, uvci, ok := entry(cert.DGC)
		if !ok {
			continue
		}
		if best == -1 || date.After(bestDate.Time) || (date.Equal(bestDate.Time) && uvci > bestUVCI) {
			best, bestDate, bestUVCI = i, date, uvci
		}
	}
	return best, best != -1
}

// cycleVariant evaluates the ordered vaccination-cycle variants against the
// joined certificate. The first passing variant wins; variants that error are
// skipped rather than failing the derivation.
func (d *Deriver) cycleVariant(set *rules.Set, joined certificate.DGC, validCerts []certificate.Extended, region string, now time.Time) (string, bool) {
	cert := certificate.Certificate{DGC: joined}
	for _, c := range validCerts {
		if c.ExpiresAt.After(cert.ExpiresAt) {
			cert.ExpiresAt = c.ExpiresAt
			cert.Issuer = c.Issuer
			cert.IssuedAt = c.IssuedAt
		}
	}

	results := engine.Evaluate(set, cert, engine.Context{
		Type:      rules.TypeVaccinationCycle,
		Country:   d.homeCountry,
		Region:    region,
		Clock:     now,
		ValueSets: d.valueSets(),
	})
	for _, r := range results {
		if r.Verdict == engine.VerdictPassed && r.Rule != nil {
			return r.Rule.Identifier, true
		}
	}
	return "", false
}

// maskRequirement evaluates the region's mask rules against the latest
// certificates. Missing rules or evaluation errors yield unavailable.
func (d *Deriver) maskRequirement(set *rules.Set, certs []certificate.Extended, region string, now time.Time) MaskRequirement {
	if !set.Available(rules.TypeMask, d.homeCountry, region) {
		return MaskUnavailable
	}

	dgcs := make([]certificate.DGC, 0, len(certs))
	for _, cert := range certs {
		dgcs = append(dgcs, cert.DGC)
	}
	joined, ok := certificate.Join(dgcs)
	if !ok {
		joined = certificate.DGC{}
	}

	results := engine.Evaluate(set, certificate.Certificate{DGC: joined}, engine.Context{
		Type:      rules.TypeMask,
		Country:   d.homeCountry,
		Region:    region,
		Clock:     now,
		ValueSets: d.valueSets(),
	})
	if len(results) == 0 {
		return MaskUnavailable
	}
	required := false
	for _, r := range results {
		switch r.Verdict {
		case engine.VerdictError:
			return MaskUnavailable
		case engine.VerdictFailed:
			required = true
		}
	}
	if required {
		return MaskRequired
	}
	return MaskNotRequired
}

// boosterEligible reports whether the holder qualifies for a booster. With
// booster-eligibility rules loaded for the region the rules decide; without
// them, or when evaluation errors, the interval heuristic decides.
func (d *Deriver) boosterEligible(set *rules.Set, validCerts []certificate.Extended, region string, now time.Time) bool {
	if set.Available(rules.TypeBoosterEligibility, d.homeCountry, region) {
		if eligible, ok := d.boosterRuleVerdict(set, validCerts, region, now); ok {
			return eligible
		}
	}
	return d.boosterIntervalElapsed(validCerts, now)
}

// boosterRuleVerdict evaluates the booster-eligibility rules against the
// holder's joined valid certificates. The second return is false when no rule
// produced a usable verdict.
func (d *Deriver) boosterRuleVerdict(set *rules.Set, validCerts []certificate.Extended, region string, now time.Time) (bool, bool) {
	dgcs := make([]certificate.DGC, 0, len(validCerts))
	for _, cert := range validCerts {
		dgcs = append(dgcs, cert.DGC)
	}
	joined, ok := certificate.Join(dgcs)
	if !ok {
		joined = certificate.DGC{}
	}

	results := engine.Evaluate(set, certificate.Certificate{DGC: joined}, engine.Context{
		Type:      rules.TypeBoosterEligibility,
		Country:   d.homeCountry,
		Region:    region,
		Clock:     now,
		ValueSets: d.valueSets(),
	})
	if len(results) == 0 {
		return false, false
	}
	eligible := true
	for _, r := range results {
		switch r.Verdict {
		case engine.VerdictError:
			return false, false
		case engine.VerdictFailed:
			eligible = false
		}
	}
	return eligible, true
}

// boosterIntervalElapsed reports whether the holder's latest completed series
// is at least the minimum interval old. The boundary itself counts as
// eligible.
func (d *Deriver) boosterIntervalElapsed(validCerts []certificate.Extended, now time.Time) bool {
	var lastDose time.Time
	for _, cert := range validCerts {
		v, ok := cert.DGC.LatestVaccination()
		if !ok || !v.IsComplete() {
			continue
		}
		if v.Date.After(lastDose) {
			lastDose = v.Date.Time
		}
	}
	if lastDose.IsZero() {
		return false
	}
	return !now.Before(lastDose.Add(d.boosterMinInterval))
}

// boosterState folds current eligibility into the persisted state machine.
// Persistence failures keep the derivation going with the computed state.
func (d *Deriver) boosterState(ctx context.Context, holderKey string, eligible bool) BoosterState {
	if d.boosterRepo == nil || holderKey == "" {
		return advanceBooster(BoosterNone, eligible)
	}
	stored, err := d.boosterRepo.BoosterState(ctx, holderKey)
	if err != nil {
		d.logger.WarnContext(ctx, "booster state read failed", "error", err)
		return advanceBooster(BoosterNone, eligible)
	}
	next := advanceBooster(stored, eligible)
	if next != stored {
		if err := d.boosterRepo.SetBoosterState(ctx, holderKey, next); err != nil {
			d.logger.WarnContext(ctx, "booster state write failed", "error", err)
		}
	}
	return next
}

// AcknowledgeBooster moves the holder from new to qualified. Acknowledging
// any other state is a no-op.
func (d *Deriver) AcknowledgeBooster(ctx context.Context, holderKey string) error {
	if d.boosterRepo == nil {
		return nil
	}
	stored, err := d.boosterRepo.BoosterState(ctx, holderKey)
	if err != nil {
		return err
	}
	if stored != BoosterNew {
		return nil
	}
	return d.boosterRepo.SetBoosterState(ctx, holderKey, BoosterQualified)
}

// reissueCandidates counts certificates inside the expiry lead time, or
// expired for at most 90 days, whose badge the holder has not seen yet.
func (d *Deriver) reissueCandidates(certs []certificate.Extended, now time.Time) ReissueCandidates {
	var out ReissueCandidates
	for _, cert := range certs {
		if cert.ReissueNewBadgeSeen {
			continue
		}
		if !cert.ExpiresSoon(now, d.reissueLeadTime) && !cert.ExpiredForLessOrEqual90Days(now) {
			continue
		}
		switch {
		case len(cert.DGC.Vaccinations) > 0:
			out.Vaccination++
		case len(cert.DGC.Recoveries) > 0:
			out.Recovery++
		}
	}
	return out
}

func (d *Deriver) valueSets() map[string][]string {
	if d.valueSetSource == nil {
		return nil
	}
	return d.valueSetSource.Current()
}

func (d *Deriver) emit(ctx context.Context, certs []certificate.Extended, region string, status Status) {
	if d.auditPublisher == nil || len(certs) == 0 {
		return
	}
	event := audit.Event{
		Action:      string(audit.EventStatusDerived),
		SubjectHash: certs[0].DGC.HolderKey(),
		Region:      region,
		Outcome:     status.Completion.String(),
	}
	if err := d.auditPublisher.Emit(ctx, event); err != nil {
		d.logger.ErrorContext(ctx, "audit emit failed", "error", err)
	}
}

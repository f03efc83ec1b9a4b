// Package validation runs a single certificate through the staged
// verification pipeline and maps the raw rule verdicts to typed outcomes.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"veripass/internal/certificate"
	"veripass/internal/rules"
	"veripass/internal/rules/engine"
	audit "veripass/pkg/platform/audit"
	"veripass/pkg/platform/sentinel"
)

var validationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "veripass_validation_outcomes_total",
	Help: "Certificate validation outcomes by result",
}, []string{"outcome"})

const (
	outcomePassed            = "passed"
	outcomeRevoked           = "revoked"
	outcomeFailedFunctional  = "failed_functional"
	outcomeFailedTechnical   = "failed_technical"
	outcomeNeedsMask         = "needs_mask"
	outcomeRulesNotAvailable = "mask_rules_not_available"
)

// RevocationChecker answers whether a certificate is revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, cert certificate.Certificate) (bool, error)
}

// RuleSource supplies the current rule-set snapshot. A nil snapshot means no
// rule set was ever loaded.
type RuleSource interface {
	Current() *rules.Set
}

// ValueSetSource supplies the current value-set snapshot.
type ValueSetSource interface {
	Current() map[string][]string
}

// AuditPublisher records validation outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// UseCase is the staged validation pipeline. Stages run in a fixed order and
// the first failing stage determines the outcome.
type UseCase struct {
	ruleSource     RuleSource
	valueSetSource ValueSetSource
	revocation     RevocationChecker
	auditPublisher AuditPublisher

	homeCountry string
	clock       func() time.Time
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures the UseCase.
type Option func(*UseCase)

// WithRevocationChecker wires the revocation stage.
func WithRevocationChecker(checker RevocationChecker) Option {
	return func(uc *UseCase) {
		uc.revocation = checker
	}
}

// WithValueSets wires the value-set snapshot used by rule expressions.
func WithValueSets(source ValueSetSource) Option {
	return func(uc *UseCase) {
		uc.valueSetSource = source
	}
}

// WithAuditPublisher wires audit emission.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(uc *UseCase) {
		uc.auditPublisher = publisher
	}
}

// WithHomeCountry sets the country whose domestic and mask rules apply.
func WithHomeCountry(country string) Option {
	return func(uc *UseCase) {
		uc.homeCountry = country
	}
}

// WithClock overrides the validation clock.
func WithClock(clock func() time.Time) Option {
	return func(uc *UseCase) {
		uc.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(uc *UseCase) {
		uc.logger = logger
	}
}

// NewUseCase constructs the pipeline. ruleSource is mandatory; everything
// else is optional and degrades to a no-op.
func NewUseCase(ruleSource RuleSource, opts ...Option) *UseCase {
	uc := &UseCase{
		ruleSource:  ruleSource,
		homeCountry: "DE",
		clock:       time.Now,
		logger:      slog.Default(),
		tracer:      otel.Tracer("veripass/validation"),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Validate runs token through the pipeline for region. On success the token
// comes back with Revoked and Invalid asserted to no. On failure the error is
// one of the typed outcomes from this package, each carrying the token with
// whatever flags the completed stages could assert.
func (uc *UseCase) Validate(ctx context.Context, token *certificate.Extended, region string) (*certificate.Extended, error) {
	ctx, span := uc.tracer.Start(ctx, "validation.Validate")
	defer span.End()

	now := uc.clock()
	set := uc.ruleSource.Current()

	if err := uc.stageMaskRulesAvailable(ctx, token, set, region); err != nil {
		return token, uc.reject(ctx, token, region, err)
	}
	if err := uc.stageRevocation(ctx, token); err != nil {
		return token, uc.reject(ctx, token, region, err)
	}
	if err := uc.stageRules(ctx, token, set, StageDomesticRules, region, now); err != nil {
		return token, uc.reject(ctx, token, region, err)
	}
	if err := uc.stageRules(ctx, token, set, StageEntryRules, region, now); err != nil {
		return token, uc.reject(ctx, token, region, err)
	}
	if err := uc.stageMask(ctx, token, set, region, now); err != nil {
		return token, uc.reject(ctx, token, region, err)
	}

	token.Revoked = certificate.StateNo
	token.Invalid = certificate.StateNo
	validationOutcomes.WithLabelValues(outcomePassed).Inc()
	uc.emit(ctx, audit.EventCertificateValidated, token, region, outcomePassed, "")
	return token, nil
}

// stageMaskRulesAvailable guards the whole pipeline: with no mask rules for
// the region there is no verdict to give. Availability ignores validity
// windows; rules that exist but are out of window surface later as a
// technical failure in the mask stage. An entirely missing snapshot is a
// different condition again and fails technically right here.
func (uc *UseCase) stageMaskRulesAvailable(ctx context.Context, token *certificate.Extended, set *rules.Set, region string) error {
	_, span := uc.tracer.Start(ctx, "validation.stage.mask_rules_available")
	defer span.End()

	if set == nil {
		return &TechnicalError{
			Token: token,
			Stage: StageMaskRulesAvailable,
			Cause: fmt.Errorf("rule set never loaded: %w", sentinel.ErrUnavailable),
		}
	}
	if !set.Available(rules.TypeMask, uc.homeCountry, region) {
		return &MaskRulesNotAvailableError{Token: token, Region: region}
	}
	return nil
}

func (uc *UseCase) stageRevocation(ctx context.Context, token *certificate.Extended) error {
	ctx, span := uc.tracer.Start(ctx, "validation.stage.revocation")
	defer span.End()

	if uc.revocation == nil {
		return nil
	}
	revoked, err := uc.revocation.IsRevoked(ctx, token.Certificate)
	if err != nil {
		return &TechnicalError{Token: token, Stage: StageRevocation, Cause: err}
	}
	if revoked {
		token.Revoked = certificate.StateYes
		return &RevokedError{Token: token}
	}
	token.Revoked = certificate.StateNo
	return nil
}

// stageRules evaluates one acceptance stage. Domestic covers the home
// country's own rule types, entry the EU-wide ones. Invalidation rules are
// acceptance rules too; they express the rejection inside their expression.
func (uc *UseCase) stageRules(ctx context.Context, token *certificate.Extended, set *rules.Set, stage Stage, region string, now time.Time) error {
	_, span := uc.tracer.Start(ctx, "validation.stage."+string(stage))
	defer span.End()

	var results []engine.Result
	for _, ectx := range uc.engineContexts(stage, region, now) {
		results = append(results, engine.Evaluate(set, token.Certificate, ectx)...)
	}

	switch class, failed, cause := classify(results); class {
	case classFailedTechnical:
		return &TechnicalError{Token: token, Stage: stage, Cause: cause}
	case classFailedFunctional:
		token.Invalid = certificate.StateYes
		return &RulesFailedError{Token: token, Stage: stage, FailedRules: failed}
	default:
		return nil
	}
}

// stageMask runs the mask obligation rules. A functional failure here does
// not invalidate the certificate; the holder is valid but masked.
func (uc *UseCase) stageMask(ctx context.Context, token *certificate.Extended, set *rules.Set, region string, now time.Time) error {
	_, span := uc.tracer.Start(ctx, "validation.stage.mask_rules")
	defer span.End()

	ectx := engine.Context{
		Type:      rules.TypeMask,
		Country:   uc.homeCountry,
		Region:    region,
		Clock:     now,
		ValueSets: uc.valueSets(),
	}
	results := engine.Evaluate(set, token.Certificate, ectx)

	switch class, _, cause := classify(results); class {
	case classFailedTechnical:
		return &TechnicalError{Token: token, Stage: StageMaskRules, Cause: cause}
	case classFailedFunctional:
		return &NeedsMaskError{Token: token, Region: region}
	default:
		return nil
	}
}

func (uc *UseCase) engineContexts(stage Stage, region string, now time.Time) []engine.Context {
	valueSets := uc.valueSets()
	switch stage {
	case StageDomesticRules:
		return []engine.Context{
			{Type: rules.TypeDomesticAcceptance, Country: uc.homeCountry, Region: region, Clock: now, ValueSets: valueSets},
			{Type: rules.TypeDomesticInvalidation, Country: uc.homeCountry, Region: region, Clock: now, ValueSets: valueSets},
		}
	case StageEntryRules:
		return []engine.Context{
			{Type: rules.TypeEntry, Country: uc.homeCountry, Clock: now, ValueSets: valueSets},
			{Type: rules.TypeEUInvalidation, Country: uc.homeCountry, Clock: now, ValueSets: valueSets},
		}
	default:
		return nil
	}
}

func (uc *UseCase) valueSets() map[string][]string {
	if uc.valueSetSource == nil {
		return nil
	}
	return uc.valueSetSource.Current()
}

func (uc *UseCase) reject(ctx context.Context, token *certificate.Extended, region string, err error) error {
	outcome := outcomeFor(err)
	validationOutcomes.WithLabelValues(outcome).Inc()
	uc.logger.InfoContext(ctx, "certificate rejected",
		"outcome", outcome,
		"region", region,
		"error", err,
	)
	uc.emit(ctx, audit.EventCertificateRejected, token, region, outcome, err.Error())
	return err
}

func outcomeFor(err error) string {
	var (
		notAvailable *MaskRulesNotAvailableError
		revoked      *RevokedError
		failed       *RulesFailedError
		technical    *TechnicalError
		needsMask    *NeedsMaskError
	)
	switch {
	case errors.As(err, &notAvailable):
		return outcomeRulesNotAvailable
	case errors.As(err, &revoked):
		return outcomeRevoked
	case errors.As(err, &failed):
		return outcomeFailedFunctional
	case errors.As(err, &needsMask):
		return outcomeNeedsMask
	case errors.As(err, &technical):
		return outcomeFailedTechnical
	default:
		return outcomeFailedTechnical
	}
}

func (uc *UseCase) emit(ctx context.Context, action audit.AuditEvent, token *certificate.Extended, region, outcome, reason string) {
	if uc.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Action:      string(action),
		SubjectHash: certificate.RevocationHash(token.DGC.UVCI()),
		Region:      region,
		Outcome:     outcome,
		Reason:      reason,
	}
	if err := uc.auditPublisher.Emit(ctx, event); err != nil {
		uc.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

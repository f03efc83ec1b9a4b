package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/certificate"
	"veripass/internal/rules"
	audit "veripass/pkg/platform/audit"
	auditmemory "veripass/pkg/platform/audit/store/memory"
	"veripass/pkg/platform/audit/publisher"
	"veripass/pkg/platform/sentinel"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type stubRuleSource struct {
	set *rules.Set
}

func (s stubRuleSource) Current() *rules.Set { return s.set }

type stubRevocation struct {
	revoked bool
	err     error
}

func (s stubRevocation) IsRevoked(context.Context, certificate.Certificate) (bool, error) {
	return s.revoked, s.err
}

func vaccinationToken(doseNumber, seriesDoses int) *certificate.Extended {
	return &certificate.Extended{
		Certificate: certificate.Certificate{
			Issuer:    "DE",
			IssuedAt:  testNow.Add(-200 * 24 * time.Hour),
			ExpiresAt: testNow.Add(180 * 24 * time.Hour),
			DGC: certificate.DGC{
				Name: certificate.Name{
					StandardizedFamilyName: "MUSTERMANN",
					StandardizedGivenName:  "ERIKA",
				},
				BirthDate: certificate.NewDate(time.Date(1990, 3, 12, 0, 0, 0, 0, time.UTC)),
				Vaccinations: []certificate.Vaccination{{
					Target:      "840539006",
					Product:     "EU/1/20/1528",
					DoseNumber:  doseNumber,
					SeriesDoses: seriesDoses,
					Date:        certificate.NewDate(testNow.Add(-180 * 24 * time.Hour)),
					Country:     "DE",
					UVCI:        "URN:UVCI:01DE:TEST/42",
				}},
				Version: "1.3.0",
			},
		},
	}
}

func boolRule(id string, typ rules.LogicType, country, region string, pass bool) rules.Rule {
	return rules.Rule{
		Identifier: id,
		Type:       typ,
		Country:    country,
		Region:     region,
		Expr:       rules.Lit{Value: rules.Bool(pass)},
	}
}

// fullRuleSet accepts a completed vaccination series in DE with no mask
// obligation.
func fullRuleSet() *rules.Set {
	return rules.NewSet([]rules.Rule{
		boolRule("MASK-DE-0001", rules.TypeMask, "DE", "", true),
		boolRule("ENTRY-DE-0001", rules.TypeEntry, "DE", "", true),
		{
			Identifier: "ACC-DE-0001",
			Type:       rules.TypeDomesticAcceptance,
			Country:    "DE",
			Expr: rules.Compare{
				Op:    rules.OpGe,
				Left:  rules.Field{Path: "v.dn"},
				Right: rules.Field{Path: "v.sd"},
			},
		},
		{
			Identifier: "ACC-DE-0002",
			Type:       rules.TypeDomesticAcceptance,
			Country:    "DE",
			Expr: rules.Compare{
				Op:    rules.OpGt,
				Left:  rules.Field{Path: "exp"},
				Right: rules.Now{},
			},
		},
	}, testNow.Add(-time.Hour))
}

func newTestUseCase(set *rules.Set, opts ...Option) *UseCase {
	base := []Option{WithClock(func() time.Time { return testNow })}
	return NewUseCase(stubRuleSource{set: set}, append(base, opts...)...)
}

func TestValidate_Passed(t *testing.T) {
	uc := newTestUseCase(fullRuleSet(), WithRevocationChecker(stubRevocation{}))

	token, err := uc.Validate(context.Background(), vaccinationToken(2, 2), "BW")
	require.NoError(t, err)
	assert.Equal(t, certificate.StateNo, token.Revoked)
	assert.Equal(t, certificate.StateNo, token.Invalid)
}

func TestValidate_RuleSetNeverLoaded(t *testing.T) {
	uc := newTestUseCase(nil)

	_, err := uc.Validate(context.Background(), vaccinationToken(2, 2), "BW")
	var technical *TechnicalError
	require.ErrorAs(t, err, &technical)
	assert.Equal(t, StageMaskRulesAvailable, technical.Stage)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestValidate_MaskRulesNotAvailable(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		boolRule("ACC-DE-0001", rules.TypeDomesticAcceptance, "DE", "", true),
	}, testNow)
	uc := newTestUseCase(set)

	_, err := uc.Validate(context.Background(), vaccinationToken(2, 2), "BW")
	var notAvailable *MaskRulesNotAvailableError
	require.ErrorAs(t, err, &notAvailable)
	assert.Equal(t, "BW", notAvailable.Region)
}

func TestValidate_ExpiredMaskRuleIsTechnicalNotUnavailable(t *testing.T) {
	expired := boolRule("MASK-DE-0001", rules.TypeMask, "DE", "", true)
	expired.ValidTo = testNow.Add(-24 * time.Hour)
	set := rules.NewSet([]rules.Rule{
		expired,
		boolRule("ENTRY-DE-0001", rules.TypeEntry, "DE", "", true),
		boolRule("ACC-DE-0001", rules.TypeDomesticAcceptance, "DE", "", true),
	}, testNow)
	uc := newTestUseCase(set, WithRevocationChecker(stubRevocation{}))

	_, err := uc.Validate(context.Background(), vaccinationToken(2, 2), "BW")
	var notAvailable *MaskRulesNotAvailableError
	assert.NotErrorAs(t, err, &notAvailable, "rules exist for the region, they are merely out of window")
	var technical *TechnicalError
	require.ErrorAs(t, err, &technical)
	assert.Equal(t, StageMaskRules, technical.Stage)
	assert.ErrorIs(t, err, errNoRulesMatched)
}

func TestValidate_Revoked(t *testing.T) {
	uc := newTestUseCase(fullRuleSet(), WithRevocationChecker(stubRevocation{revoked: true}))

	token := vaccinationToken(2, 2)
	_, err := uc.Validate(context.Background(), token, "BW")
	var revoked *RevokedError
	require.ErrorAs(t, err, &revoked)
	assert.Equal(t, certificate.StateYes, token.Revoked)
	assert.Equal(t, certificate.StateUnknown, token.Invalid, "rule stages must not run after revocation")
}

func TestValidate_RevocationCheckUnavailable(t *testing.T) {
	uc := newTestUseCase(fullRuleSet(),
		WithRevocationChecker(stubRevocation{err: errors.New("index down")}))

	_, err := uc.Validate(context.Background(), vaccinationToken(2, 2), "BW")
	var technical *TechnicalError
	require.ErrorAs(t, err, &technical)
	assert.Equal(t, StageRevocation, technical.Stage)
}

func TestValidate_IncompleteSeriesFailsFunctionally(t *testing.T) {
	uc := newTestUseCase(fullRuleSet(), WithRevocationChecker(stubRevocation{}))

	token := vaccinationToken(1, 2)
	_, err := uc.Validate(context.Background(), token, "BW")
	var failed *RulesFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, StageDomesticRules, failed.Stage)
	assert.Equal(t, []string{"ACC-DE-0001"}, failed.FailedRules)
	assert.Equal(t, certificate.StateYes, token.Invalid)
}

func TestValidate_ExpiredCertificateFailsFunctionally(t *testing.T) {
	uc := newTestUseCase(fullRuleSet(), WithRevocationChecker(stubRevocation{}))

	token := vaccinationToken(2, 2)
	token.ExpiresAt = testNow.Add(-24 * time.Hour)
	_, err := uc.Validate(context.Background(), token, "BW")
	var failed *RulesFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.FailedRules, "ACC-DE-0002")
}

func TestValidate_MissingFieldIsTechnical(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		boolRule("MASK-DE-0001", rules.TypeMask, "DE", "", true),
		boolRule("ENTRY-DE-0001", rules.TypeEntry, "DE", "", true),
		{
			Identifier: "ACC-DE-0003",
			Type:       rules.TypeDomesticAcceptance,
			Country:    "DE",
			Expr: rules.Compare{
				Op:    rules.OpEq,
				Left:  rules.Field{Path: "t.tr"},
				Right: rules.Lit{Value: rules.String("260415000")},
			},
		},
	}, testNow)
	uc := newTestUseCase(set, WithRevocationChecker(stubRevocation{}))

	_, err := uc.Validate(context.Background(), vaccinationToken(2, 2), "BW")
	var technical *TechnicalError
	require.ErrorAs(t, err, &technical)
	assert.Equal(t, StageDomesticRules, technical.Stage)
}

func TestValidate_ZeroDomesticRulesIsTechnical(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		boolRule("MASK-DE-0001", rules.TypeMask, "DE", "", true),
		boolRule("ENTRY-DE-0001", rules.TypeEntry, "DE", "", true),
	}, testNow)
	uc := newTestUseCase(set, WithRevocationChecker(stubRevocation{}))

	_, err := uc.Validate(context.Background(), vaccinationToken(2, 2), "BW")
	var technical *TechnicalError
	require.ErrorAs(t, err, &technical)
	assert.Equal(t, StageDomesticRules, technical.Stage)
	assert.ErrorIs(t, err, errNoRulesMatched)
}

func TestValidate_HolderNeedsMask(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		boolRule("MASK-DE-0001", rules.TypeMask, "DE", "", false),
		boolRule("ENTRY-DE-0001", rules.TypeEntry, "DE", "", true),
		boolRule("ACC-DE-0001", rules.TypeDomesticAcceptance, "DE", "", true),
	}, testNow)
	uc := newTestUseCase(set, WithRevocationChecker(stubRevocation{}))

	token := vaccinationToken(2, 2)
	_, err := uc.Validate(context.Background(), token, "BW")
	var needsMask *NeedsMaskError
	require.ErrorAs(t, err, &needsMask)
	assert.Equal(t, "BW", needsMask.Region)
	assert.Equal(t, certificate.StateNo, token.Revoked, "mask obligation must not undo earlier assertions")
}

func TestValidate_RegionalMaskRuleOverridesDefault(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		boolRule("MASK-DE-0001", rules.TypeMask, "DE", "", false),
		boolRule("MASK-DE-BW-0001", rules.TypeMask, "DE", "BW", true),
		boolRule("ENTRY-DE-0001", rules.TypeEntry, "DE", "", true),
		boolRule("ACC-DE-0001", rules.TypeDomesticAcceptance, "DE", "", true),
	}, testNow)
	uc := newTestUseCase(set, WithRevocationChecker(stubRevocation{}))

	_, err := uc.Validate(context.Background(), vaccinationToken(2, 2), "BW")
	assert.NoError(t, err, "regional rule set replaces the country default")

	_, err = uc.Validate(context.Background(), vaccinationToken(2, 2), "BY")
	var needsMask *NeedsMaskError
	assert.ErrorAs(t, err, &needsMask)
}

func TestValidate_AuditTrail(t *testing.T) {
	store := auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(store)
	defer pub.Close()

	uc := newTestUseCase(fullRuleSet(),
		WithRevocationChecker(stubRevocation{}),
		WithAuditPublisher(pub))

	_, err := uc.Validate(context.Background(), vaccinationToken(2, 2), "BW")
	require.NoError(t, err)

	_, err = uc.Validate(context.Background(), vaccinationToken(1, 2), "BW")
	require.Error(t, err)

	validated, err := store.ListByAction(context.Background(), audit.EventCertificateValidated)
	require.NoError(t, err)
	require.Len(t, validated, 1)
	assert.Equal(t, outcomePassed, validated[0].Outcome)
	assert.Equal(t, "BW", validated[0].Region)

	rejected, err := store.ListByAction(context.Background(), audit.EventCertificateRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, outcomeFailedFunctional, rejected[0].Outcome)
	assert.Equal(t, "BW", rejected[0].Region, "rejections carry the region like passes do")
}

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripass/internal/certificate"
	"veripass/internal/rules"
)

var clock = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func vaccCert(dn, sd int, product string, date time.Time) certificate.Certificate {
	return certificate.Certificate{
		Issuer:    "DE",
		IssuedAt:  clock.AddDate(-1, 0, 0),
		ExpiresAt: clock.AddDate(1, 0, 0),
		DGC: certificate.DGC{
			Name: certificate.Name{
				StandardizedGivenName:  "ERIKA",
				StandardizedFamilyName: "MUSTERMANN",
			},
			BirthDate: certificate.NewDate(time.Date(1964, 8, 12, 0, 0, 0, 0, time.UTC)),
			Vaccinations: []certificate.Vaccination{{
				Product:     product,
				DoseNumber:  dn,
				SeriesDoses: sd,
				Date:        certificate.NewDate(date),
				Country:     "DE",
				UVCI:        "01DE/84503/1/A#B",
			}},
			Version: "1.0.0",
		},
	}
}

func domesticRule(id string, priority int, expr rules.Expr) rules.Rule {
	return rules.Rule{
		Identifier: id,
		Type:       rules.TypeDomesticAcceptance,
		Country:    "DE",
		ValidFrom:  clock.AddDate(-1, 0, 0),
		ValidTo:    clock.AddDate(1, 0, 0),
		Priority:   priority,
		Expr:       expr,
	}
}

func evalCtx() Context {
	return Context{
		Type:    rules.TypeDomesticAcceptance,
		Country: "DE",
		Clock:   clock,
	}
}

func TestEvaluate_emptySetYieldsNoResults(t *testing.T) {
	set := rules.NewSet(nil, clock)
	results := Evaluate(set, vaccCert(2, 2, "EU/1/20/1528", clock.AddDate(0, -6, 0)), evalCtx())
	assert.Empty(t, results)
}

func TestEvaluate_ordersByRulePriority(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		domesticRule("R-2", 2, rules.Lit{Value: rules.Bool(true)}),
		domesticRule("R-1", 1, rules.Lit{Value: rules.Bool(true)}),
		domesticRule("R-3", 3, rules.Lit{Value: rules.Bool(true)}),
	}, clock)

	results := Evaluate(set, vaccCert(2, 2, "EU/1/20/1528", clock.AddDate(0, -6, 0)), evalCtx())
	require.Len(t, results, 3)
	assert.Equal(t, "R-1", results[0].Rule.Identifier)
	assert.Equal(t, "R-2", results[1].Rule.Identifier)
	assert.Equal(t, "R-3", results[2].Rule.Identifier)
}

func TestEvaluate_windowFilteringExcludesBeforeEvaluation(t *testing.T) {
	expired := domesticRule("R-OLD", 1, rules.Lit{Value: rules.Bool(false)})
	expired.ValidTo = clock.AddDate(0, -1, 0)

	set := rules.NewSet([]rules.Rule{
		expired,
		domesticRule("R-NOW", 2, rules.Lit{Value: rules.Bool(true)}),
	}, clock)

	results := Evaluate(set, vaccCert(2, 2, "EU/1/20/1528", clock.AddDate(0, -6, 0)), evalCtx())
	require.Len(t, results, 1)
	assert.Equal(t, "R-NOW", results[0].Rule.Identifier)
	assert.Equal(t, VerdictPassed, results[0].Verdict)
}

func TestEvaluate_expressionErrorDoesNotAbortBatch(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		// touches a recovery field the certificate does not have
		domesticRule("R-BROKEN", 1, rules.Compare{
			Op:    rules.OpGt,
			Left:  rules.Field{Path: "r.fr"},
			Right: rules.Now{},
		}),
		domesticRule("R-OK", 2, rules.Compare{
			Op:    rules.OpGe,
			Left:  rules.Field{Path: "v.dn"},
			Right: rules.Field{Path: "v.sd"},
		}),
	}, clock)

	results := Evaluate(set, vaccCert(2, 2, "EU/1/20/1528", clock.AddDate(0, -6, 0)), evalCtx())
	require.Len(t, results, 2)

	assert.Equal(t, VerdictError, results[0].Verdict)
	require.Len(t, results[0].Errors, 1)
	assert.Contains(t, results[0].Errors[0].Error(), `field "r.fr" not present`)

	assert.Equal(t, VerdictPassed, results[1].Verdict)
	assert.Empty(t, results[1].Errors)
}

func TestEvaluate_failedRule(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		domesticRule("R-DOSES", 1, rules.Compare{
			Op:    rules.OpGe,
			Left:  rules.Field{Path: "v.dn"},
			Right: rules.Field{Path: "v.sd"},
		}),
	}, clock)

	results := Evaluate(set, vaccCert(1, 2, "EU/1/20/1528", clock.AddDate(0, -1, 0)), evalCtx())
	require.Len(t, results, 1)
	assert.Equal(t, VerdictFailed, results[0].Verdict)
}

func TestEvaluate_usesValidationClockNotWallClock(t *testing.T) {
	// rule passes only if the latest dose is at least 400 days before the
	// validation clock
	set := rules.NewSet([]rules.Rule{
		domesticRule("R-INTERVAL", 1, rules.Compare{
			Op:    rules.OpLe,
			Left:  rules.PlusDays{Arg: rules.Field{Path: "v.dt"}, Days: 400},
			Right: rules.Now{},
		}),
	}, clock)

	cert := vaccCert(1, 1, certificate.ProductJohnsonAndJohnson, clock.AddDate(0, 0, -400))

	ctx := evalCtx()
	results := Evaluate(set, cert, ctx)
	require.Len(t, results, 1)
	assert.Equal(t, VerdictPassed, results[0].Verdict)

	ctx.Clock = clock.AddDate(0, 0, -1)
	results = Evaluate(set, cert, ctx)
	require.Len(t, results, 1)
	assert.Equal(t, VerdictFailed, results[0].Verdict)
}

func TestEvaluate_deterministicAcrossRuns(t *testing.T) {
	set := rules.NewSet([]rules.Rule{
		domesticRule("R-1", 1, rules.Lit{Value: rules.Bool(true)}),
		domesticRule("R-2", 2, rules.Lit{Value: rules.Bool(false)}),
	}, clock)
	cert := vaccCert(2, 2, "EU/1/20/1528", clock.AddDate(0, -6, 0))

	first := Evaluate(set, cert, evalCtx())
	for range 3 {
		again := Evaluate(set, cert, evalCtx())
		require.Len(t, again, len(first))
		for i := range first {
			assert.Equal(t, first[i].Rule.Identifier, again[i].Rule.Identifier)
			assert.Equal(t, first[i].Verdict, again[i].Verdict)
		}
	}
}

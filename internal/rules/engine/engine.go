// Package engine evaluates a rule-set snapshot against one certificate and a
// validation context. It reports raw per-rule verdicts; classifying them into
// user-facing severities is the validation use case's job.
package engine

import (
	"time"

	"veripass/internal/certificate"
	"veripass/internal/rules"
)

// Verdict is the outcome of one rule against one certificate.
type Verdict uint8

const (
	VerdictPassed Verdict = iota
	VerdictFailed
	// VerdictError marks an evaluation error: a missing field or a type
	// mismatch in the rule expression. It is not a functional failure.
	VerdictError
)

func (v Verdict) String() string {
	switch v {
	case VerdictPassed:
		return "passed"
	case VerdictFailed:
		return "failed"
	default:
		return "error"
	}
}

// Result is one per-rule outcome. Rule is nil only for structural failures
// produced outside rule evaluation.
type Result struct {
	Rule    *rules.Rule
	Verdict Verdict
	Errors  []error
}

// Context scopes an evaluation run. Clock is the validation clock supplied by
// the caller; the engine never reads wall time.
type Context struct {
	Type      rules.LogicType
	Country   string
	Region    string
	Clock     time.Time
	ValueSets map[string][]string
}

// Evaluate runs the matching rules of set against cert. Rules outside the
// (country, region) scope or outside their validity window are excluded
// before evaluation, so their absence is indistinguishable from no-match.
// One rule's expression error never blocks the remaining rules; result order
// matches rule order.
func Evaluate(set *rules.Set, cert certificate.Certificate, ctx Context) []Result {
	scoped := set.Rules(ctx.Type, ctx.Country, ctx.Region)
	if len(scoped) == 0 {
		return nil
	}

	env := &rules.Env{
		Fields:    fieldsFor(cert),
		ValueSets: ctx.ValueSets,
		Clock:     ctx.Clock,
	}

	results := make([]Result, 0, len(scoped))
	for i := range scoped {
		rule := scoped[i]
		if !rule.ActiveAt(ctx.Clock) {
			continue
		}
		passed, err := rules.EvalBool(rule.Expr, env)
		switch {
		case err != nil:
			results = append(results, Result{Rule: &scoped[i], Verdict: VerdictError, Errors: []error{err}})
		case passed:
			results = append(results, Result{Rule: &scoped[i], Verdict: VerdictPassed})
		default:
			results = append(results, Result{Rule: &scoped[i], Verdict: VerdictFailed})
		}
	}
	return results
}

// fieldsFor builds the typed accessor map rule expressions look fields up
// in. Only fields of entries actually present appear; a rule touching an
// absent entry gets a lookup error, which surfaces as VerdictError.
func fieldsFor(cert certificate.Certificate) map[string]rules.Value {
	fields := map[string]rules.Value{
		"iss":      rules.String(cert.Issuer),
		"iat":      rules.Time(cert.IssuedAt),
		"exp":      rules.Time(cert.ExpiresAt),
		"name.fnt": rules.String(cert.DGC.Name.StandardizedFamilyName),
		"name.gnt": rules.String(cert.DGC.Name.StandardizedGivenName),
		"dob":      rules.Time(cert.DGC.BirthDate.Time),
	}

	if v, ok := cert.DGC.LatestVaccination(); ok {
		fields["v.tg"] = rules.String(v.Target)
		fields["v.vp"] = rules.String(v.Prophylaxis)
		fields["v.mp"] = rules.String(v.Product)
		fields["v.ma"] = rules.String(v.Manufacturer)
		fields["v.dn"] = rules.Int(int64(v.DoseNumber))
		fields["v.sd"] = rules.Int(int64(v.SeriesDoses))
		fields["v.dt"] = rules.Time(v.Date.Time)
		fields["v.co"] = rules.String(v.Country)
		fields["v.ci"] = rules.String(v.UVCI)
	}
	if t, ok := cert.DGC.LatestTest(); ok {
		fields["t.tg"] = rules.String(t.Target)
		fields["t.tt"] = rules.String(t.TestType)
		fields["t.ma"] = rules.String(t.Manufacturer)
		fields["t.sc"] = rules.Time(t.SampleCollection.Time)
		fields["t.tr"] = rules.String(t.Result)
		fields["t.co"] = rules.String(t.Country)
		fields["t.ci"] = rules.String(t.UVCI)
	}
	if r, ok := cert.DGC.LatestRecovery(); ok {
		fields["r.tg"] = rules.String(r.Target)
		fields["r.fr"] = rules.Time(r.FirstResult.Time)
		fields["r.df"] = rules.Time(r.ValidFrom.Time)
		fields["r.du"] = rules.Time(r.ValidUntil.Time)
		fields["r.co"] = rules.String(r.Country)
		fields["r.ci"] = rules.String(r.UVCI)
	}
	return fields
}

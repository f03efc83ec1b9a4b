package validation

import (
	"errors"

	"veripass/internal/rules/engine"
)

type classification uint8

const (
	classPassed classification = iota
	classFailedTechnical
	classFailedFunctional
)

var errNoRulesMatched = errors.New("no rule matched the certificate")

// classify folds a batch of per-rule results into one severity. Any
// evaluation error makes the whole batch technical, because a certificate
// that cannot be checked must not pass. An empty batch is technical too: a
// stage with zero applicable rules gives no verdict, and silence is not
// approval. Otherwise a single clean rejection is functional.
func classify(results []engine.Result) (classification, []string, error) {
	if len(results) == 0 {
		return classFailedTechnical, nil, errNoRulesMatched
	}

	var (
		failed    []string
		technical []error
	)
	for _, r := range results {
		switch r.Verdict {
		case engine.VerdictError:
			technical = append(technical, r.Errors...)
		case engine.VerdictFailed:
			if r.Rule != nil {
				failed = append(failed, r.Rule.Identifier)
			}
		}
	}

	if len(technical) > 0 {
		return classFailedTechnical, nil, errors.Join(technical...)
	}
	if len(failed) > 0 {
		return classFailedFunctional, failed, nil
	}
	return classPassed, nil, nil
}

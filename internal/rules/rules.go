// Package rules holds the jurisdiction rule model: typed logical rules keyed
// by (logic type, country, region), immutable snapshots of a loaded rule set,
// and the expression AST the rules are written in.
package rules

import (
	"sort"
	"time"
)

// LogicType names a category of rules. Region-scoped lookups treat an empty
// region as the EU/default rule set.
type LogicType string

const (
	TypeDomesticAcceptance   LogicType = "domestic_acceptance"
	TypeDomesticInvalidation LogicType = "domestic_invalidation"
	TypeEUInvalidation       LogicType = "eu_invalidation"
	TypeEntry                LogicType = "entry"
	TypeMask                 LogicType = "mask"
	TypeBoosterEligibility   LogicType = "booster_eligibility"
	TypeVaccinationCycle     LogicType = "vaccination_cycle"
)

// Rule is one logical rule: an applicability scope, a validity window and a
// boolean expression over certificate fields.
type Rule struct {
	Identifier  string    `json:"identifier"`
	Description string    `json:"description,omitempty"`
	Type        LogicType `json:"type"`
	Country     string    `json:"country"`
	Region      string    `json:"region,omitempty"`
	ValidFrom   time.Time `json:"validFrom"`
	ValidTo     time.Time `json:"validTo"`
	// Priority orders rules within a (type, country, region) scope; lower
	// evaluates first. Cycle-completion variants rely on this order.
	Priority int  `json:"priority"`
	Expr     Expr `json:"expr"`
}

// ActiveAt reports whether the validation clock falls inside the rule's
// validity window. A rule outside its window is never evaluated as active.
func (r Rule) ActiveAt(clock time.Time) bool {
	if !r.ValidFrom.IsZero() && clock.Before(r.ValidFrom) {
		return false
	}
	if !r.ValidTo.IsZero() && clock.After(r.ValidTo) {
		return false
	}
	return true
}

type scopeKey struct {
	typ     LogicType
	country string
	region  string
}

// Set is an immutable snapshot of loaded rules. Evaluation always runs
// against one Set value, so concurrent readers never observe a mixture of old
// and new rules; updates build a fresh Set and swap it in via Store.
type Set struct {
	byScope   map[scopeKey][]Rule
	updatedAt time.Time
}

// NewSet builds a snapshot from rules, ordering each scope by priority then
// identifier for deterministic evaluation order.
func NewSet(all []Rule, updatedAt time.Time) *Set {
	byScope := make(map[scopeKey][]Rule)
	for _, r := range all {
		k := scopeKey{typ: r.Type, country: r.Country, region: r.Region}
		byScope[k] = append(byScope[k], r)
	}
	for k := range byScope {
		scoped := byScope[k]
		sort.SliceStable(scoped, func(i, j int) bool {
			if scoped[i].Priority != scoped[j].Priority {
				return scoped[i].Priority < scoped[j].Priority
			}
			return scoped[i].Identifier < scoped[j].Identifier
		})
	}
	return &Set{byScope: byScope, updatedAt: updatedAt}
}

// Rules returns the ordered rules for (typ, country, region). A region with
// no rules of its own falls back to the country's default (empty region)
// rules.
func (s *Set) Rules(typ LogicType, country, region string) []Rule {
	if s == nil {
		return nil
	}
	if region != "" {
		if scoped, ok := s.byScope[scopeKey{typ: typ, country: country, region: region}]; ok {
			return scoped
		}
	}
	return s.byScope[scopeKey{typ: typ, country: country, region: ""}]
}

// Available reports whether any rules exist for (typ, country, region),
// counting the default-region fallback. Availability is a separate signal
// from evaluation: "no rules loaded" must stay distinguishable from "all
// rules filtered out by their validity windows".
func (s *Set) Available(typ LogicType, country, region string) bool {
	return len(s.Rules(typ, country, region)) > 0
}

// UpdatedAt returns when this snapshot was loaded.
func (s *Set) UpdatedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.updatedAt
}

// Stale reports whether the snapshot is older than maxAge. Staleness is a
// UI-hinting flag, orthogonal to pass/fail verdicts.
func (s *Set) Stale(now time.Time, maxAge time.Duration) bool {
	if s == nil {
		return true
	}
	return now.Sub(s.updatedAt) > maxAge
}

// Len returns the total number of rules in the snapshot.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, scoped := range s.byScope {
		n += len(scoped)
	}
	return n
}

// Package entitlement defines the atomic authorization tuple the rest of
// the core reasons about: Entitlement, the Permission bundles built from
// it, ConflictSet pairs, and the RiskLevel scale shared by the rule
// engine, organizational filter, and certification engine.
package entitlement

import (
	"sort"
	"strings"
)

// Wildcard denotes "any value" on either side of a match.
const Wildcard = "*"

// Entitlement is the atomic authorization unit: a grant scoped to an
// external system, namespace (authObject) and field, holding a value and
// an optional activity.
type Entitlement struct {
	System     string
	AuthObject string
	Field      string
	Value      string
	Activity   string
}

// Key derives the canonical string key used for set membership and
// conflict-signature computation. It does not special-case Wildcard: a
// literal "*" value produces a literal key, because Key only identifies
// entitlements (Permission.Keys, ConflictSignature) and is never used
// for matching; wildcard semantics apply only in Matches.
func (e Entitlement) Key() string {
	var b strings.Builder
	b.WriteString(e.System)
	b.WriteByte(':')
	b.WriteString(e.AuthObject)
	b.WriteByte(':')
	b.WriteString(e.Field)
	b.WriteByte(':')
	b.WriteString(e.Value)
	if e.Activity != "" {
		b.WriteByte(':')
		b.WriteString(e.Activity)
	}
	return b.String()
}

// Matches reports whether a rule-side entitlement (the receiver) is
// satisfied by a concrete user-side entitlement, honoring the wildcard
// semantics of value and activity on either side, requiring an exact
// match on authObject/field, and on system when both sides name one.
func (e Entitlement) Matches(user Entitlement) bool {
	if e.System != "" && user.System != "" && e.System != user.System {
		return false
	}
	if e.AuthObject != user.AuthObject || e.Field != user.Field {
		return false
	}
	if e.Value != Wildcard && user.Value != Wildcard && e.Value != user.Value {
		return false
	}
	if e.Activity != "" && user.Activity != "" && e.Activity != user.Activity {
		return false
	}
	return true
}

// Permission is a named bundle of entitlements representing a
// business-level action (a "function" in SoD terminology).
type Permission struct {
	Name         string
	Entitlements []Entitlement
}

// Keys returns the canonical key set for the bundle.
func (p Permission) Keys() []string {
	keys := make([]string, len(p.Entitlements))
	for i, e := range p.Entitlements {
		keys[i] = e.Key()
	}
	return keys
}

// HasAll reports whether every entitlement in the bundle is matched by at
// least one entitlement in userEntitlements, honoring wildcard semantics.
func (p Permission) HasAll(userEntitlements []Entitlement) bool {
	for _, want := range p.Entitlements {
		if !matchesAny(want, userEntitlements) {
			return false
		}
	}
	return true
}

func matchesAny(want Entitlement, have []Entitlement) bool {
	for _, got := range have {
		if want.Matches(got) {
			return true
		}
	}
	return false
}

// ConflictSet is a pair of disjoint functions (named entitlement bundles)
// that must not both be held by the same user.
type ConflictSet struct {
	Name       string
	FunctionA  Permission
	FunctionB  Permission
}

// ConflictResult is the outcome of checking a ConflictSet against a
// user's entitlements.
type ConflictResult struct {
	HasConflict bool
	HasA        bool
	HasB        bool
}

// Check evaluates the ConflictSet against a user's resolved entitlements.
func (cs ConflictSet) Check(userEntitlements []Entitlement) ConflictResult {
	hasA := cs.FunctionA.HasAll(userEntitlements)
	hasB := cs.FunctionB.HasAll(userEntitlements)
	return ConflictResult{HasConflict: hasA && hasB, HasA: hasA, HasB: hasB}
}

// ConflictSignature returns the deterministic, sorted key list used to
// identify a specific conflict instance for deduplication, combining
// both functions' canonical keys.
func (cs ConflictSet) ConflictSignature() []string {
	keys := append(cs.FunctionA.Keys(), cs.FunctionB.Keys()...)
	sort.Strings(keys)
	return keys
}

// RiskLevel is the shared ordered severity scale used by the rule engine,
// organizational filter, and certification engine, resolving spec Open
// Question 2 (a single threshold table instead of inconsistent ones).
type RiskLevel int

const (
	RiskLow      RiskLevel = 10
	RiskMedium   RiskLevel = 30
	RiskHigh     RiskLevel = 60
	RiskCritical RiskLevel = 100
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseRiskLevel maps a human label to its numeric scale value.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(s) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	case "critical":
		return RiskCritical, true
	default:
		return 0, false
	}
}

// LevelForScore maps an aggregate [0,100] score to a RiskLevel using a
// single shared threshold table: critical ≥ 80, high ≥ 60, medium ≥ 30,
// else low.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	default:
		return RiskLow
	}
}

// UserAccess is an immutable snapshot of one user's access at a point in
// time. A new snapshot must be taken to reflect any change; this value is
// never mutated in place.
type UserAccess struct {
	UserID         string
	Department     string
	CostCenter     string
	CompanyCode    string
	RoleNames      []string
	Entitlements   []Entitlement
	EmploymentType string
}

// WithAdditional returns a new snapshot with extra entitlements appended,
// used by the risk-preview path to simulate a proposed assignment without
// mutating the original snapshot (invariant 3, §8: monotonic on add).
func (u UserAccess) WithAdditional(extra []Entitlement) UserAccess {
	merged := make([]Entitlement, 0, len(u.Entitlements)+len(extra))
	merged = append(merged, u.Entitlements...)
	merged = append(merged, extra...)
	u.Entitlements = merged
	return u
}

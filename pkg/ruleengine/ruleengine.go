// Package ruleengine evaluates UserAccess snapshots against SoD and
// sensitive-access rules, producing RiskViolations. Rule-set publishing
// is copy-on-write so evaluation never blocks on a concurrent rule edit
// (§5 of the concurrency model: "Rule set + indices" is shared, read-heavy,
// copy-on-write).
package ruleengine

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"github.com/ocx/grc-core/internal/apperrors"
	"github.com/ocx/grc-core/pkg/entitlement"
)

// Kind is the rule evaluator kind. Only SoD and Sensitive carry defined
// evaluation semantics; the remainder are capability tags reserved for
// future evaluator plug-ins (spec's Design Notes, "plug-in evaluator kinds").
type Kind string

const (
	KindSoD            Kind = "sod"
	KindSensitive      Kind = "sensitive"
	KindCriticalAction Kind = "critical_action"
	KindBehavioral     Kind = "behavioral"
	KindContextual     Kind = "contextual"
	KindAttribute      Kind = "attribute"
	KindComposite      Kind = "composite"
)

// ViolationStatus tracks remediation state of a produced violation.
type ViolationStatus string

const (
	StatusOpen       ViolationStatus = "open"
	StatusRemediated ViolationStatus = "remediated"
	StatusAccepted   ViolationStatus = "accepted"
)

// Applicability gates whether a rule considers a given user at all.
// Each list supports a literal wildcard entry ("*") meaning "no restriction";
// an empty list also means no restriction.
type Applicability struct {
	Systems     []string `yaml:"systems,omitempty"`
	Departments []string `yaml:"departments,omitempty"`
	UserTypes   []string `yaml:"userTypes,omitempty"`
}

func matchesAny(restriction []string, value string) bool {
	if len(restriction) == 0 {
		return true
	}
	for _, r := range restriction {
		if r == entitlement.Wildcard || strings.EqualFold(r, value) {
			return true
		}
	}
	return false
}

// Exceptions excludes specific users or roles from a rule regardless of
// applicability.
type Exceptions struct {
	Users []string `yaml:"users,omitempty"`
	Roles []string `yaml:"roles,omitempty"`
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

func containsAny(list []string, values []string) bool {
	for _, v := range values {
		if contains(list, v) {
			return true
		}
	}
	return false
}

// RiskRule is one SoD or sensitive-access rule.
type RiskRule struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	Severity    entitlement.RiskLevel
	Category    string

	// Conflicts is non-empty for SoD rules.
	Conflicts []entitlement.ConflictSet

	// SensitiveEntitlements is non-empty for Sensitive rules.
	SensitiveEntitlements []entitlement.Entitlement

	AppliesTo  Applicability
	Exceptions Exceptions

	EffectiveFrom *time.Time
	ExpiryDate    *time.Time

	Enabled bool
	Version int

	BusinessImpact  string
	Recommendations []string
}

// validate enforces the load-time invariants of §3.1: a SoD rule must
// carry at least one ConflictSet, a Sensitive rule at least one entitlement.
func (r RiskRule) validate() error {
	if r.ID == "" {
		return apperrors.NewFatalError("rule id must not be empty")
	}
	switch r.Kind {
	case KindSoD:
		if len(r.Conflicts) == 0 {
			return apperrors.Newf(apperrors.Fatal, "SoD rule %s has no conflict sets", r.ID)
		}
	case KindSensitive:
		if len(r.SensitiveEntitlements) == 0 {
			return apperrors.Newf(apperrors.Fatal, "sensitive rule %s has no required entitlements", r.ID)
		}
	}
	return nil
}

func (r RiskRule) isApplicable(user entitlement.UserAccess, now time.Time) bool {
	if !r.Enabled {
		return false
	}
	if r.EffectiveFrom != nil && now.Before(*r.EffectiveFrom) {
		return false
	}
	if r.ExpiryDate != nil {
		expiryEnd := time.Date(r.ExpiryDate.Year(), r.ExpiryDate.Month(), r.ExpiryDate.Day(), 23, 59, 59, 999000000, time.UTC)
		if now.After(expiryEnd) {
			return false
		}
	}
	if contains(r.Exceptions.Users, user.UserID) {
		return false
	}
	if containsAny(r.Exceptions.Roles, user.RoleNames) {
		return false
	}
	if !matchesAny(r.AppliesTo.Departments, user.Department) {
		return false
	}
	if !matchesAny(r.AppliesTo.UserTypes, user.EmploymentType) {
		return false
	}
	if len(r.AppliesTo.Systems) > 0 {
		matched := false
		for _, e := range user.Entitlements {
			if matchesAny(r.AppliesTo.Systems, e.System) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Violation is produced by Evaluate/EvaluateBatch.
type Violation struct {
	ID                string
	RuleID            string
	Kind              Kind
	Severity          entitlement.RiskLevel
	Category          string
	UserID            string
	FunctionA         string
	FunctionB         string
	ConflictSignature []string
	BusinessImpact    string
	Recommendations   []string
	Status            ViolationStatus
}

// DedupKey is the (ruleId, conflictSignature) tuple callers use to
// reconcile against historical violations (invariant 1, §8).
func (v Violation) DedupKey() string {
	return v.RuleID + "|" + strings.Join(v.ConflictSignature, ",")
}

// Summary aggregates a violation list.
type Summary struct {
	CountBySeverity map[string]int
	CountByCategory map[string]int
	AggregateScore  float64
}

// defaultBatchConcurrency bounds EvaluateBatch's worker pool when the
// caller hasn't set one explicitly, mirroring the teacher's webhook
// dispatcher default worker count.
const defaultBatchConcurrency = 4

// Engine evaluates users against a published rule set.
type Engine struct {
	mu            sync.RWMutex
	rules         map[string]*RiskRule
	byCategory    map[string][]string
	byKind        map[Kind][]string
	evaluations   int
	violationsHit int
	concurrency   int
}

// New creates an empty engine. Use NewWithDefaultRules for the seeded
// SAP catalogue.
func New() *Engine {
	return &Engine{
		rules:       make(map[string]*RiskRule),
		byCategory:  make(map[string][]string),
		byKind:      make(map[Kind][]string),
		concurrency: defaultBatchConcurrency,
	}
}

// SetConcurrency bounds the worker pool EvaluateBatch uses to process
// independent users in parallel (§5 back-pressure: batch evaluation is
// bounded by a configured concurrency ceiling). n<=0 resets to the default.
func (e *Engine) SetConcurrency(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 {
		n = defaultBatchConcurrency
	}
	e.concurrency = n
}

// AddRule inserts or replaces a rule by id, rebuilding the category/kind
// indices under a single write lock (copy-on-write publish).
func (e *Engine) AddRule(rule RiskRule) error {
	if err := rule.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := rule
	e.rules[r.ID] = &r
	e.rebuildIndicesLocked()
	return nil
}

// RemoveRule deletes a rule by id. A missing id is a no-op.
func (e *Engine) RemoveRule(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, id)
	e.rebuildIndicesLocked()
}

func (e *Engine) rebuildIndicesLocked() {
	byCategory := make(map[string][]string)
	byKind := make(map[Kind][]string)
	for id, r := range e.rules {
		byCategory[r.Category] = append(byCategory[r.Category], id)
		byKind[r.Kind] = append(byKind[r.Kind], id)
	}
	for _, ids := range byCategory {
		sort.Strings(ids)
	}
	for _, ids := range byKind {
		sort.Strings(ids)
	}
	e.byCategory = byCategory
	e.byKind = byKind
}

func (e *Engine) snapshot(ruleIDs []string) []*RiskRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(ruleIDs) == 0 {
		out := make([]*RiskRule, 0, len(e.rules))
		for _, r := range e.rules {
			out = append(out, r)
		}
		return out
	}
	out := make([]*RiskRule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		if r, ok := e.rules[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate runs all applicable rules (or the given subset) against user,
// returning violations ordered by (severity DESC, ruleId ASC, signature ASC).
func (e *Engine) Evaluate(user entitlement.UserAccess, ruleIDs []string) []Violation {
	now := time.Now().UTC()
	rules := e.snapshot(ruleIDs)

	var violations []Violation
	for _, r := range rules {
		if !r.isApplicable(user, now) {
			continue
		}
		switch r.Kind {
		case KindSoD:
			violations = append(violations, evaluateSoD(r, user)...)
		case KindSensitive:
			if v, ok := evaluateSensitive(r, user); ok {
				violations = append(violations, v)
			}
		}
	}

	sortViolations(violations)

	e.mu.Lock()
	e.evaluations++
	e.violationsHit += len(violations)
	e.mu.Unlock()

	return violations
}

func evaluateSoD(r *RiskRule, user entitlement.UserAccess) []Violation {
	var out []Violation
	for _, cs := range r.Conflicts {
		result := cs.Check(user.Entitlements)
		if !result.HasConflict {
			continue
		}
		out = append(out, Violation{
			ID:                uuid.NewString(),
			RuleID:            r.ID,
			Kind:              r.Kind,
			Severity:          r.Severity,
			Category:          r.Category,
			UserID:            user.UserID,
			FunctionA:         cs.FunctionA.Name,
			FunctionB:         cs.FunctionB.Name,
			ConflictSignature: cs.ConflictSignature(),
			BusinessImpact:    r.BusinessImpact,
			Recommendations:   r.Recommendations,
			Status:            StatusOpen,
		})
	}
	return out
}

func evaluateSensitive(r *RiskRule, user entitlement.UserAccess) (Violation, bool) {
	bundle := entitlement.Permission{Name: r.Name, Entitlements: r.SensitiveEntitlements}
	if !bundle.HasAll(user.Entitlements) {
		return Violation{}, false
	}
	sig := bundle.Keys()
	sort.Strings(sig)
	return Violation{
		ID:                uuid.NewString(),
		RuleID:            r.ID,
		Kind:              r.Kind,
		Severity:          r.Severity,
		Category:          r.Category,
		UserID:            user.UserID,
		ConflictSignature: sig,
		BusinessImpact:    r.BusinessImpact,
		Recommendations:   r.Recommendations,
		Status:            StatusOpen,
	}, true
}

func sortViolations(v []Violation) {
	sort.Slice(v, func(i, j int) bool {
		if v[i].Severity != v[j].Severity {
			return v[i].Severity > v[j].Severity
		}
		if v[i].RuleID != v[j].RuleID {
			return v[i].RuleID < v[j].RuleID
		}
		return strings.Join(v[i].ConflictSignature, ",") < strings.Join(v[j].ConflictSignature, ",")
	})
}

// EvaluateBatch runs Evaluate independently per user over a bounded worker
// pool (§5: "parallel-safe over independent users"; back-pressure: "batch
// evaluation is bounded by a configured concurrency ceiling"). Each user's
// result depends only on the immutable rule snapshot and that user's own
// UserAccess, so results never depend on scheduling order.
func (e *Engine) EvaluateBatch(users []entitlement.UserAccess, ruleIDs []string) map[string][]Violation {
	e.mu.RLock()
	workers := e.concurrency
	e.mu.RUnlock()
	if workers <= 0 {
		workers = defaultBatchConcurrency
	}
	if workers > len(users) {
		workers = len(users)
	}

	out := make(map[string][]Violation, len(users))
	if len(users) == 0 {
		return out
	}

	var mu sync.Mutex
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				u := users[idx]
				v := e.Evaluate(u, ruleIDs)
				mu.Lock()
				out[u.UserID] = v
				mu.Unlock()
			}
		}()
	}
	for i := range users {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

// Summarize computes severity/category counts and the aggregate risk score.
func Summarize(violations []Violation) Summary {
	s := Summary{CountBySeverity: map[string]int{}, CountByCategory: map[string]int{}}
	if len(violations) == 0 {
		return s
	}
	var total float64
	for _, v := range violations {
		s.CountBySeverity[v.Severity.String()]++
		s.CountByCategory[v.Category]++
		total += float64(v.Severity)
	}
	s.AggregateScore = total / float64(len(violations))
	return s
}

// Statistics reports engine-wide counters: rules loaded (also broken down
// by kind), evaluations run, and violations produced. There is no
// per-category breakdown.
type Statistics struct {
	RulesLoaded        int
	RulesByKind        map[Kind]int
	EvaluationsRun     int
	ViolationsProduced int
}

func (e *Engine) Statistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byKind := make(map[Kind]int, len(e.byKind))
	for k, ids := range e.byKind {
		byKind[k] = len(ids)
	}
	return Statistics{
		RulesLoaded:        len(e.rules),
		RulesByKind:        byKind,
		EvaluationsRun:     e.evaluations,
		ViolationsProduced: e.violationsHit,
	}
}

// --- declarative rule-set serialization (spec §6) ---

type ruleSpec struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Kind        string          `yaml:"kind"`
	Severity    string          `yaml:"severity"`
	Category    string          `yaml:"category"`
	Conflicts   []conflictSpec  `yaml:"conflicts,omitempty"`
	Sensitive   []entitlementSpec `yaml:"sensitiveEntitlements,omitempty"`
	AppliesTo   Applicability   `yaml:"appliesTo,omitempty"`
	Exceptions  Exceptions      `yaml:"exceptions,omitempty"`
	Effective   string          `yaml:"effectiveFrom,omitempty"`
	Expiry      string          `yaml:"expiryDate,omitempty"`
	Enabled     bool            `yaml:"enabled"`
	Version     int             `yaml:"version"`
}

type conflictSpec struct {
	Name                 string            `yaml:"name"`
	FunctionAName        string            `yaml:"functionAName"`
	FunctionAEntitlements []entitlementSpec `yaml:"functionAEntitlements"`
	FunctionBName        string            `yaml:"functionBName"`
	FunctionBEntitlements []entitlementSpec `yaml:"functionBEntitlements"`
}

type entitlementSpec struct {
	System     string `yaml:"system,omitempty"`
	AuthObject string `yaml:"authObject"`
	Field      string `yaml:"field"`
	Value      string `yaml:"value"`
	Activity   string `yaml:"activity,omitempty"`
}

func toEntitlement(s entitlementSpec) entitlement.Entitlement {
	sys := s.System
	if sys == "" {
		sys = "SAP"
	}
	return entitlement.Entitlement{System: sys, AuthObject: s.AuthObject, Field: s.Field, Value: s.Value, Activity: s.Activity}
}

func fromEntitlement(e entitlement.Entitlement) entitlementSpec {
	return entitlementSpec{System: e.System, AuthObject: e.AuthObject, Field: e.Field, Value: e.Value, Activity: e.Activity}
}

const dateLayout = "2006-01-02"

// LoadRulesFromSpec parses a declarative rule document (spec §6) and
// loads every rule it contains, replacing any existing rule with the same id.
func (e *Engine) LoadRulesFromSpec(doc []byte) error {
	var parsed struct {
		Rules []ruleSpec `yaml:"rules"`
	}
	if err := yaml.Unmarshal(doc, &parsed); err != nil {
		return apperrors.Wrap(err, apperrors.Fatal, "malformed rule spec document")
	}

	for _, rs := range parsed.Rules {
		rule, err := parseRuleSpec(rs)
		if err != nil {
			return err
		}
		if err := e.AddRule(rule); err != nil {
			return err
		}
	}
	return nil
}

func parseRuleSpec(rs ruleSpec) (RiskRule, error) {
	severity, ok := entitlement.ParseRiskLevel(rs.Severity)
	if !ok {
		return RiskRule{}, apperrors.Newf(apperrors.Fatal, "rule %s has unknown severity %q", rs.ID, rs.Severity)
	}

	rule := RiskRule{
		ID:          rs.ID,
		Name:        rs.Name,
		Description: rs.Description,
		Kind:        Kind(rs.Kind),
		Severity:    severity,
		Category:    rs.Category,
		AppliesTo:   rs.AppliesTo,
		Exceptions:  rs.Exceptions,
		Enabled:     rs.Enabled,
		Version:     rs.Version,
	}

	if rs.Effective != "" {
		t, err := time.Parse(dateLayout, rs.Effective)
		if err != nil {
			return RiskRule{}, apperrors.Wrapf(err, apperrors.Fatal, "rule %s has malformed effectiveFrom", rs.ID)
		}
		rule.EffectiveFrom = &t
	}
	if rs.Expiry != "" {
		t, err := time.Parse(dateLayout, rs.Expiry)
		if err != nil {
			return RiskRule{}, apperrors.Wrapf(err, apperrors.Fatal, "rule %s has malformed expiryDate", rs.ID)
		}
		rule.ExpiryDate = &t
	}

	for _, cs := range rs.Conflicts {
		a := make([]entitlement.Entitlement, len(cs.FunctionAEntitlements))
		for i, es := range cs.FunctionAEntitlements {
			a[i] = toEntitlement(es)
		}
		b := make([]entitlement.Entitlement, len(cs.FunctionBEntitlements))
		for i, es := range cs.FunctionBEntitlements {
			b[i] = toEntitlement(es)
		}
		rule.Conflicts = append(rule.Conflicts, entitlement.ConflictSet{
			Name:      cs.Name,
			FunctionA: entitlement.Permission{Name: cs.FunctionAName, Entitlements: a},
			FunctionB: entitlement.Permission{Name: cs.FunctionBName, Entitlements: b},
		})
	}

	for _, es := range rs.Sensitive {
		rule.SensitiveEntitlements = append(rule.SensitiveEntitlements, toEntitlement(es))
	}

	return rule, nil
}

// Export serializes the current rule set back to the declarative spec
// structure, round-tripping runtime edits (AddRule) to storage.
func (e *Engine) Export() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.rules))
	for id := range e.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	doc := struct {
		Rules []ruleSpec `yaml:"rules"`
	}{}

	for _, id := range ids {
		r := e.rules[id]
		rs := ruleSpec{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Kind:        string(r.Kind),
			Severity:    r.Severity.String(),
			Category:    r.Category,
			AppliesTo:   r.AppliesTo,
			Exceptions:  r.Exceptions,
			Enabled:     r.Enabled,
			Version:     r.Version,
		}
		if r.EffectiveFrom != nil {
			rs.Effective = r.EffectiveFrom.Format(dateLayout)
		}
		if r.ExpiryDate != nil {
			rs.Expiry = r.ExpiryDate.Format(dateLayout)
		}
		for _, cs := range r.Conflicts {
			aEnts := make([]entitlementSpec, len(cs.FunctionA.Entitlements))
			for i, e := range cs.FunctionA.Entitlements {
				aEnts[i] = fromEntitlement(e)
			}
			bEnts := make([]entitlementSpec, len(cs.FunctionB.Entitlements))
			for i, e := range cs.FunctionB.Entitlements {
				bEnts[i] = fromEntitlement(e)
			}
			rs.Conflicts = append(rs.Conflicts, conflictSpec{
				Name:                  cs.Name,
				FunctionAName:         cs.FunctionA.Name,
				FunctionAEntitlements: aEnts,
				FunctionBName:         cs.FunctionB.Name,
				FunctionBEntitlements: bEnts,
			})
		}
		for _, se := range r.SensitiveEntitlements {
			rs.Sensitive = append(rs.Sensitive, fromEntitlement(se))
		}
		doc.Rules = append(doc.Rules, rs)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Fatal, "marshal rule export")
	}
	return out, nil
}

// Package orgfilter filters candidate SoD violations by organizational
// context: two conflicting functions performed by the same user in
// different company codes, plants, or sales orgs are frequently a false
// positive rather than a real risk. It also carries supplementary
// conditions that can exclude a violation outright or bump its severity.
package orgfilter

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RuleType distinguishes exclusion rules (filter when org scopes don't
// overlap) from inclusion rules (keep only when they do).
type RuleType string

const (
	RuleExclusion RuleType = "exclusion"
	RuleInclusion RuleType = "inclusion"
)

// FieldType names the organizational dimension an OrgFieldValue restricts.
type FieldType string

const (
	FieldCompanyCode     FieldType = "company_code"
	FieldPlant           FieldType = "plant"
	FieldSalesOrg        FieldType = "sales_org"
	FieldPurchasingOrg   FieldType = "purchasing_org"
	FieldCostCenter      FieldType = "cost_center"
	FieldProfitCenter    FieldType = "profit_center"
	FieldBusinessArea    FieldType = "business_area"
	FieldControllingArea FieldType = "controlling_area"
	FieldCountry         FieldType = "country"
	FieldRegion          FieldType = "region"
	FieldDepartment      FieldType = "department"
	FieldCustom          FieldType = "custom"
)

// OrgFieldValue names one org dimension and, for a custom field, the key
// used to look it up in a footprint map.
type OrgFieldValue struct {
	FieldType  FieldType
	FieldName  string
	IncludeAll bool
}

func (f OrgFieldValue) key() string {
	if f.FieldName != "" {
		return f.FieldName
	}
	return string(f.FieldType)
}

// overlap reports whether a and b share at least one element.
func overlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := seen[v]; ok {
			return true
		}
	}
	return false
}

// Footprint maps an org field key (FieldType or custom FieldName) to the
// values a function touches for that field, e.g. {"company_code": ["1000"]}.
type Footprint map[string][]string

// OrgRule filters or keeps a candidate violation based on whether the two
// conflicting functions' organizational footprints overlap.
type OrgRule struct {
	ID               string
	Name             string
	Description      string
	Type             RuleType
	RiskIDs          []string
	RiskCategories   []string
	OrgFields        []OrgFieldValue
	RequireAllFields bool
	Systems          []string
	Priority         int
	Active           bool
	ValidFrom        *time.Time
	ValidTo          *time.Time
}

func (r *OrgRule) appliesToRisk(riskID, riskCategory string) bool {
	if len(r.RiskIDs) > 0 && !contains(r.RiskIDs, riskID) {
		return false
	}
	if len(r.RiskCategories) > 0 && !contains(r.RiskCategories, riskCategory) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// shouldFilter reports whether this rule filters the candidate violation
// given the two sides' footprints. True means the violation is a false
// positive and should be dropped.
func (r *OrgRule) shouldFilter(a, b Footprint) bool {
	switch r.Type {
	case RuleExclusion:
		return r.evaluateExclusion(a, b)
	case RuleInclusion:
		return !r.evaluateInclusion(a, b)
	default:
		return false
	}
}

func (r *OrgRule) evaluateExclusion(a, b Footprint) bool {
	for _, f := range r.OrgFields {
		if f.IncludeAll {
			continue
		}
		hasOverlap := overlap(a[f.key()], b[f.key()])
		if r.RequireAllFields {
			if hasOverlap {
				return false
			}
		} else {
			if !hasOverlap {
				return true
			}
		}
	}
	return r.RequireAllFields
}

func (r *OrgRule) evaluateInclusion(a, b Footprint) bool {
	for _, f := range r.OrgFields {
		if f.IncludeAll {
			continue
		}
		hasOverlap := overlap(a[f.key()], b[f.key()])
		if r.RequireAllFields {
			if !hasOverlap {
				return false
			}
		} else {
			if hasOverlap {
				return true
			}
		}
	}
	return r.RequireAllFields
}

// Condition is one comparison clause of a SupplementaryRule, matched
// against a context map at evaluation time.
type Condition struct {
	Field    string
	Operator string
	Value    interface{}
}

func (c Condition) compare(actual interface{}) bool {
	switch c.Operator {
	case "eq":
		return compareEqual(actual, c.Value)
	case "ne":
		return !compareEqual(actual, c.Value)
	case "gt":
		r, ok := compareOrdered(actual, c.Value)
		return ok && r > 0
	case "gte":
		r, ok := compareOrdered(actual, c.Value)
		return ok && r >= 0
	case "lt":
		r, ok := compareOrdered(actual, c.Value)
		return ok && r < 0
	case "lte":
		r, ok := compareOrdered(actual, c.Value)
		return ok && r <= 0
	case "in":
		return inSlice(actual, c.Value)
	case "not_in":
		return !inSlice(actual, c.Value)
	case "contains":
		return strings.Contains(fmt.Sprint(actual), fmt.Sprint(c.Value))
	case "starts_with":
		return strings.HasPrefix(fmt.Sprint(actual), fmt.Sprint(c.Value))
	default:
		return false
	}
}

func compareEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareOrdered(a, b interface{}) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func inSlice(actual, set interface{}) bool {
	vals, ok := set.([]string)
	if !ok {
		return false
	}
	return contains(vals, fmt.Sprint(actual))
}

// SupplementaryRule layers additional conditions on top of a base risk
// rule: on match it either excludes the violation or adjusts its level.
type SupplementaryRule struct {
	ID           string
	Name         string
	Description  string
	BaseRiskID   string
	Conditions   []Condition
	Action       string // elevate, reduce, exclude
	NewRiskLevel string
	Active       bool
}

// evaluate returns the action outcome ("excluded" or the new risk level)
// if every condition matches, or "" if the rule does not apply.
func (s *SupplementaryRule) evaluate(context map[string]interface{}) string {
	for _, cond := range s.Conditions {
		actual, present := context[cond.Field]
		if !present || !cond.compare(actual) {
			return ""
		}
	}
	if s.Action == "exclude" {
		return "excluded"
	}
	return s.NewRiskLevel
}

// Result is the outcome of filtering one candidate violation.
type Result struct {
	Filtered          bool
	Reason            string
	AppliedRules      []string
	AdjustedRiskLevel string
}

// Statistics summarizes the rule catalogue.
type Statistics struct {
	TotalOrgRules            int
	ActiveOrgRules           int
	TotalSupplementaryRules  int
	RulesByType              map[RuleType]int
	RulesByField             map[FieldType]int
}

// Engine holds the organizational rule catalogue and applies it to
// candidate violations.
type Engine struct {
	orgRules            map[string]*OrgRule
	supplementaryRules  map[string]*SupplementaryRule
}

// New returns an engine seeded with the standard company-code/plant/org
// separation rules and the high-amount/test-user supplementary rules.
func New() *Engine {
	e := &Engine{
		orgRules:           make(map[string]*OrgRule),
		supplementaryRules: make(map[string]*SupplementaryRule),
	}
	for _, r := range defaultOrgRules() {
		rule := r
		e.orgRules[rule.ID] = &rule
	}
	for _, r := range defaultSupplementaryRules() {
		rule := r
		e.supplementaryRules[rule.ID] = &rule
	}
	return e
}

func defaultOrgRules() []OrgRule {
	return []OrgRule{
		{
			ID: "ORG-CC-SEP", Name: "Company Code Separation",
			Description:      "Filter SoD if functions are in different company codes",
			Type:              RuleExclusion,
			OrgFields:         []OrgFieldValue{{FieldType: FieldCompanyCode}},
			RiskCategories:    []string{"SOD"},
			RequireAllFields:  true,
			Priority:          1,
			Active:            true,
		},
		{
			ID: "ORG-PLANT-SEP", Name: "Plant Separation",
			Description:      "Filter SoD if functions are in different plants",
			Type:              RuleExclusion,
			OrgFields:         []OrgFieldValue{{FieldType: FieldPlant}},
			RiskCategories:    []string{"SOD"},
			RequireAllFields:  true,
			Priority:          2,
			Active:            false,
		},
		{
			ID: "ORG-EKORG-SEP", Name: "Purchasing Organization Separation",
			Description:      "Filter procurement SoD if in different purchasing orgs",
			Type:              RuleExclusion,
			OrgFields:         []OrgFieldValue{{FieldType: FieldPurchasingOrg}},
			RiskCategories:    []string{"SOD-P2P", "SOD-PROCUREMENT"},
			RequireAllFields:  true,
			Priority:          3,
			Active:            true,
		},
		{
			ID: "ORG-VKORG-SEP", Name: "Sales Organization Separation",
			Description:      "Filter sales SoD if in different sales orgs",
			Type:              RuleExclusion,
			OrgFields:         []OrgFieldValue{{FieldType: FieldSalesOrg}},
			RiskCategories:    []string{"SOD-O2C", "SOD-SALES"},
			RequireAllFields:  true,
			Priority:          4,
			Active:            true,
		},
		{
			ID: "ORG-CC-CRITICAL", Name: "Critical Company Code Focus",
			Description:      "Only flag risks in critical company codes",
			Type:              RuleInclusion,
			OrgFields:         []OrgFieldValue{{FieldType: FieldCompanyCode}},
			RequireAllFields:  true,
			Priority:          5,
			Active:            false,
		},
	}
}

func defaultSupplementaryRules() []SupplementaryRule {
	return []SupplementaryRule{
		{
			ID:           "SUP-HIGH-AMOUNT",
			Name:         "High Amount Transactions",
			Description:  "Elevate risk for high-value transactions",
			Conditions:   []Condition{{Field: "transaction_limit", Operator: "gt", Value: 100000.0}},
			Action:       "elevate",
			NewRiskLevel: "critical",
			Active:       true,
		},
		{
			ID:          "SUP-TEST-USER",
			Name:        "Test User Exclusion",
			Description: "Exclude test users from risk analysis",
			Conditions:  []Condition{{Field: "user_id", Operator: "starts_with", Value: "TEST"}},
			Action:      "exclude",
			Active:      true,
		},
	}
}

// FilterRisk applies org rules in priority order, then supplementary rules,
// to decide whether a candidate violation is a false positive, should be
// excluded, or should have its level adjusted.
func (e *Engine) FilterRisk(riskID, riskCategory string, funcA, funcB Footprint, context map[string]interface{}) Result {
	result := Result{AppliedRules: []string{}}

	ordered := make([]*OrgRule, 0, len(e.orgRules))
	for _, r := range e.orgRules {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, rule := range ordered {
		if !rule.Active || !rule.appliesToRisk(riskID, riskCategory) {
			continue
		}
		if rule.shouldFilter(funcA, funcB) {
			result.Filtered = true
			result.AppliedRules = append(result.AppliedRules, rule.ID)
			result.Reason = fmt.Sprintf("Filtered by %s: organizational separation detected", rule.Name)
			break
		}
	}

	if !result.Filtered && context != nil {
		names := make([]string, 0, len(e.supplementaryRules))
		for id := range e.supplementaryRules {
			names = append(names, id)
		}
		sort.Strings(names)

		for _, id := range names {
			rule := e.supplementaryRules[id]
			if !rule.Active {
				continue
			}
			if rule.BaseRiskID != "" && rule.BaseRiskID != riskID {
				continue
			}
			outcome := rule.evaluate(context)
			if outcome == "" {
				continue
			}
			result.AppliedRules = append(result.AppliedRules, rule.ID)
			if outcome == "excluded" {
				result.Filtered = true
				result.Reason = fmt.Sprintf("Excluded by %s", rule.Name)
			} else {
				result.AdjustedRiskLevel = outcome
				result.Reason = fmt.Sprintf("Risk level adjusted by %s", rule.Name)
			}
		}
	}

	return result
}

// ListOrgRules returns org rules ordered by priority, optionally only active ones.
func (e *Engine) ListOrgRules(activeOnly bool) []*OrgRule {
	out := make([]*OrgRule, 0, len(e.orgRules))
	for _, r := range e.orgRules {
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Engine) GetOrgRule(id string) (*OrgRule, bool) {
	r, ok := e.orgRules[id]
	return r, ok
}

func (e *Engine) CreateOrgRule(r OrgRule) *OrgRule {
	rule := r
	e.orgRules[rule.ID] = &rule
	return &rule
}

// UpdateOrgRule applies mutate to the stored rule in place and returns it.
func (e *Engine) UpdateOrgRule(id string, mutate func(*OrgRule)) (*OrgRule, bool) {
	r, ok := e.orgRules[id]
	if !ok {
		return nil, false
	}
	mutate(r)
	return r, true
}

func (e *Engine) DeleteOrgRule(id string) bool {
	if _, ok := e.orgRules[id]; !ok {
		return false
	}
	delete(e.orgRules, id)
	return true
}

func (e *Engine) ToggleOrgRule(id string) (*OrgRule, bool) {
	r, ok := e.orgRules[id]
	if !ok {
		return nil, false
	}
	r.Active = !r.Active
	return r, true
}

func (e *Engine) ListSupplementaryRules() []*SupplementaryRule {
	out := make([]*SupplementaryRule, 0, len(e.supplementaryRules))
	for _, r := range e.supplementaryRules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) CreateSupplementaryRule(r SupplementaryRule) *SupplementaryRule {
	rule := r
	e.supplementaryRules[rule.ID] = &rule
	return &rule
}

func (e *Engine) Statistics() Statistics {
	stats := Statistics{
		TotalOrgRules:           len(e.orgRules),
		TotalSupplementaryRules: len(e.supplementaryRules),
		RulesByType:             map[RuleType]int{RuleExclusion: 0, RuleInclusion: 0},
		RulesByField:            map[FieldType]int{},
	}
	for _, r := range e.orgRules {
		if r.Active {
			stats.ActiveOrgRules++
		}
		stats.RulesByType[r.Type]++
		for _, f := range r.OrgFields {
			stats.RulesByField[f.FieldType]++
		}
	}
	return stats
}

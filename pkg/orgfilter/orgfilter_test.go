package orgfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterRisk_CompanyCodeSeparationFiltersNonOverlap(t *testing.T) {
	e := New()
	result := e.FilterRisk("FI_P2P_001", "SOD",
		Footprint{"company_code": {"1000"}},
		Footprint{"company_code": {"2000"}},
		nil,
	)
	assert.True(t, result.Filtered)
	assert.Contains(t, result.AppliedRules, "ORG-CC-SEP")
}

func TestFilterRisk_CompanyCodeOverlapIsNotFiltered(t *testing.T) {
	e := New()
	result := e.FilterRisk("FI_P2P_001", "SOD",
		Footprint{"company_code": {"1000"}},
		Footprint{"company_code": {"1000"}},
		nil,
	)
	assert.False(t, result.Filtered)
}

func TestFilterRisk_SymmetricUnderSwap(t *testing.T) {
	e := New()
	a := Footprint{"company_code": {"1000"}}
	b := Footprint{"company_code": {"2000"}}

	forward := e.FilterRisk("FI_P2P_001", "SOD", a, b, nil)
	backward := e.FilterRisk("FI_P2P_001", "SOD", b, a, nil)
	assert.Equal(t, forward.Filtered, backward.Filtered)
}

func TestFilterRisk_CategoryNotMatchedSkipsRule(t *testing.T) {
	e := New()
	result := e.FilterRisk("OTHER", "NOT_SOD",
		Footprint{"company_code": {"1000"}},
		Footprint{"company_code": {"2000"}},
		nil,
	)
	assert.False(t, result.Filtered)
	assert.Empty(t, result.AppliedRules)
}

func TestFilterRisk_DisabledRuleDoesNotApply(t *testing.T) {
	e := New()
	_, ok := e.ToggleOrgRule("ORG-EKORG-SEP")
	require.True(t, ok)

	result := e.FilterRisk("PO_001", "SOD-P2P",
		Footprint{"purchasing_org": {"P100"}},
		Footprint{"purchasing_org": {"P200"}},
		nil,
	)
	assert.False(t, result.Filtered)
}

func TestFilterRisk_SupplementaryExcludesTestUser(t *testing.T) {
	e := New()
	result := e.FilterRisk("FI_P2P_001", "OTHER", Footprint{}, Footprint{}, map[string]interface{}{
		"user_id": "TEST_BOT_1",
	})
	assert.True(t, result.Filtered)
	assert.Contains(t, result.AppliedRules, "SUP-TEST-USER")
}

func TestFilterRisk_SupplementaryElevatesHighAmount(t *testing.T) {
	e := New()
	result := e.FilterRisk("FI_P2P_001", "OTHER", Footprint{}, Footprint{}, map[string]interface{}{
		"transaction_limit": 250000.0,
	})
	assert.False(t, result.Filtered)
	assert.Equal(t, "critical", result.AdjustedRiskLevel)
}

func TestFilterRisk_SupplementarySkippedWhenOrgFilterAlreadyFiltered(t *testing.T) {
	e := New()
	result := e.FilterRisk("FI_P2P_001", "SOD",
		Footprint{"company_code": {"1000"}},
		Footprint{"company_code": {"2000"}},
		map[string]interface{}{"transaction_limit": 250000.0},
	)
	assert.True(t, result.Filtered)
	assert.Empty(t, result.AdjustedRiskLevel)
}

func TestInclusionRule_OnlyKeepsOverlap(t *testing.T) {
	e := New()
	_, ok := e.ToggleOrgRule("ORG-CC-CRITICAL")
	require.True(t, ok)
	rule, _ := e.GetOrgRule("ORG-CC-CRITICAL")
	rule.OrgFields = []OrgFieldValue{{FieldType: FieldCompanyCode}}

	overlap := e.FilterRisk("ANY", "ANY",
		Footprint{"company_code": {"1000"}},
		Footprint{"company_code": {"1000"}},
		nil,
	)
	assert.False(t, overlap.Filtered)

	noOverlap := e.FilterRisk("ANY", "ANY",
		Footprint{"company_code": {"1000"}},
		Footprint{"company_code": {"2000"}},
		nil,
	)
	assert.True(t, noOverlap.Filtered)
}

func TestCondition_OperatorsCoverTable(t *testing.T) {
	cases := []struct {
		name     string
		cond     Condition
		actual   interface{}
		expected bool
	}{
		{"eq true", Condition{Operator: "eq", Value: "a"}, "a", true},
		{"ne true", Condition{Operator: "ne", Value: "a"}, "b", true},
		{"gt true", Condition{Operator: "gt", Value: 10.0}, 20.0, true},
		{"gte equal", Condition{Operator: "gte", Value: 10.0}, 10.0, true},
		{"lt true", Condition{Operator: "lt", Value: 10.0}, 5.0, true},
		{"lte equal", Condition{Operator: "lte", Value: 10.0}, 10.0, true},
		{"in true", Condition{Operator: "in", Value: []string{"a", "b"}}, "a", true},
		{"not_in true", Condition{Operator: "not_in", Value: []string{"a", "b"}}, "c", true},
		{"contains true", Condition{Operator: "contains", Value: "bc"}, "abcd", true},
		{"starts_with true", Condition{Operator: "starts_with", Value: "TEST"}, "TEST_1", true},
		{"unknown operator false", Condition{Operator: "bogus", Value: "a"}, "a", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, c.cond.compare(c.actual))
		})
	}
}

func TestStatistics_CountsDefaults(t *testing.T) {
	e := New()
	stats := e.Statistics()
	assert.Equal(t, 5, stats.TotalOrgRules)
	assert.Equal(t, 2, stats.TotalSupplementaryRules)
	assert.Equal(t, 3, stats.ActiveOrgRules)
}

func TestDeleteOrgRule(t *testing.T) {
	e := New()
	assert.True(t, e.DeleteOrgRule("ORG-CC-SEP"))
	assert.False(t, e.DeleteOrgRule("ORG-CC-SEP"))
	_, ok := e.GetOrgRule("ORG-CC-SEP")
	assert.False(t, ok)
}

package ruleengine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/grc-core/pkg/entitlement"
)

func vendorPaymentRule() RiskRule {
	return RiskRule{
		ID:       "FI_P2P_001",
		Kind:     KindSoD,
		Severity: entitlement.RiskCritical,
		Category: "Financial",
		Enabled:  true,
		Conflicts: []entitlement.ConflictSet{{
			FunctionA: entitlement.Permission{Name: "A", Entitlements: []entitlement.Entitlement{tcode("XK01")}},
			FunctionB: entitlement.Permission{Name: "B", Entitlements: []entitlement.Entitlement{tcode("F110")}},
		}},
	}
}

func TestEvaluate_SoDHit(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(vendorPaymentRule()))

	user := entitlement.UserAccess{UserID: "u1", Entitlements: []entitlement.Entitlement{tcode("XK01"), tcode("F110")}}
	violations := e.Evaluate(user, nil)

	require.Len(t, violations, 1)
	assert.Equal(t, "FI_P2P_001", violations[0].RuleID)

	summary := Summarize(violations)
	assert.Equal(t, 1, summary.CountBySeverity["critical"])
	assert.Equal(t, 100.0, summary.AggregateScore)
}

func TestEvaluate_NoHitWhenOnlyOneFunctionPresent(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(vendorPaymentRule()))

	user := entitlement.UserAccess{UserID: "u1", Entitlements: []entitlement.Entitlement{tcode("XK01")}}
	assert.Empty(t, e.Evaluate(user, nil))
}

func TestEvaluate_DisabledRuleRemovesOnlyItsViolations(t *testing.T) {
	e := New()
	r1 := vendorPaymentRule()
	r2 := vendorPaymentRule()
	r2.ID = "FI_P2P_999"
	require.NoError(t, e.AddRule(r1))
	require.NoError(t, e.AddRule(r2))

	user := entitlement.UserAccess{UserID: "u1", Entitlements: []entitlement.Entitlement{tcode("XK01"), tcode("F110")}}
	before := e.Evaluate(user, nil)
	require.Len(t, before, 2)

	r1.Enabled = false
	require.NoError(t, e.AddRule(r1))

	after := e.Evaluate(user, nil)
	require.Len(t, after, 1)
	assert.Equal(t, "FI_P2P_999", after[0].RuleID)
}

func TestEvaluate_MonotonicOnAdd(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(vendorPaymentRule()))

	user := entitlement.UserAccess{UserID: "u1", Entitlements: []entitlement.Entitlement{tcode("XK01")}}
	before := e.Evaluate(user, nil)
	assert.Empty(t, before)

	extended := user.WithAdditional([]entitlement.Entitlement{tcode("F110")})
	after := e.Evaluate(extended, nil)
	assert.Len(t, after, 1)
}

func TestEvaluate_DeterministicAcrossCalls(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(vendorPaymentRule()))

	user := entitlement.UserAccess{UserID: "u1", Entitlements: []entitlement.Entitlement{tcode("XK01"), tcode("F110")}}
	first := e.Evaluate(user, nil)
	second := e.Evaluate(user, nil)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].DedupKey(), second[0].DedupKey())
}

func TestEvaluate_SensitiveRule(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(RiskRule{
		ID:                    "IT_SENS_001",
		Kind:                  KindSensitive,
		Severity:              entitlement.RiskCritical,
		Category:              "Basis",
		Enabled:               true,
		SensitiveEntitlements: []entitlement.Entitlement{tcode("SU01")},
	}))

	user := entitlement.UserAccess{UserID: "u1", Entitlements: []entitlement.Entitlement{tcode("SU01")}}
	violations := e.Evaluate(user, nil)
	require.Len(t, violations, 1)
	assert.Equal(t, KindSensitive, violations[0].Kind)
}

func TestEvaluate_ExceptionUserIsSkipped(t *testing.T) {
	e := New()
	rule := vendorPaymentRule()
	rule.Exceptions.Users = []string{"u1"}
	require.NoError(t, e.AddRule(rule))

	user := entitlement.UserAccess{UserID: "u1", Entitlements: []entitlement.Entitlement{tcode("XK01"), tcode("F110")}}
	assert.Empty(t, e.Evaluate(user, nil))
}

func TestEvaluateBatch_IsIndependentPerUser(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(vendorPaymentRule()))

	users := []entitlement.UserAccess{
		{UserID: "u1", Entitlements: []entitlement.Entitlement{tcode("XK01"), tcode("F110")}},
		{UserID: "u2", Entitlements: []entitlement.Entitlement{tcode("XK01")}},
	}
	results := e.EvaluateBatch(users, nil)
	assert.Len(t, results["u1"], 1)
	assert.Empty(t, results["u2"])
}

func TestEvaluateBatch_WithConcurrencyCeilingEvaluatesEveryUser(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(vendorPaymentRule()))
	e.SetConcurrency(2)

	users := make([]entitlement.UserAccess, 20)
	for i := range users {
		users[i] = entitlement.UserAccess{
			UserID:       fmt.Sprintf("u%d", i),
			Entitlements: []entitlement.Entitlement{tcode("XK01"), tcode("F110")},
		}
	}
	results := e.EvaluateBatch(users, nil)
	assert.Len(t, results, len(users))
	for _, u := range users {
		assert.Len(t, results[u.UserID], 1)
	}
}

func TestAddRule_RejectsSoDWithNoConflicts(t *testing.T) {
	e := New()
	err := e.AddRule(RiskRule{ID: "bad", Kind: KindSoD, Enabled: true})
	assert.Error(t, err)
}

func TestExportAndReload_RoundTrips(t *testing.T) {
	e := NewWithDefaultRules()
	doc, err := e.Export()
	require.NoError(t, err)

	reloaded := New()
	require.NoError(t, reloaded.LoadRulesFromSpec(doc))

	assert.Equal(t, e.Statistics().RulesLoaded, reloaded.Statistics().RulesLoaded)
}

func TestStatistics_TracksEvaluations(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(vendorPaymentRule()))
	e.Evaluate(entitlement.UserAccess{UserID: "u1"}, nil)
	e.Evaluate(entitlement.UserAccess{UserID: "u2"}, nil)

	stats := e.Statistics()
	assert.Equal(t, 2, stats.EvaluationsRun)
	assert.Equal(t, 1, stats.RulesLoaded)
}

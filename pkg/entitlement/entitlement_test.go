package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntitlement_KeyIncludesActivityOnlyWhenSet(t *testing.T) {
	withActivity := Entitlement{System: "SAP", AuthObject: "S_TCODE", Field: "TCD", Value: "XK01", Activity: "01"}
	withoutActivity := Entitlement{System: "SAP", AuthObject: "S_TCODE", Field: "TCD", Value: "XK01"}

	assert.Equal(t, "SAP:S_TCODE:TCD:XK01:01", withActivity.Key())
	assert.Equal(t, "SAP:S_TCODE:TCD:XK01", withoutActivity.Key())
}

func TestEntitlement_MatchesWildcardValueBothSides(t *testing.T) {
	ruleSide := Entitlement{AuthObject: "S_TCODE", Field: "TCD", Value: Wildcard}
	userSide := Entitlement{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01"}
	assert.True(t, ruleSide.Matches(userSide))

	userWildcard := Entitlement{AuthObject: "S_TCODE", Field: "TCD", Value: Wildcard}
	concreteRule := Entitlement{AuthObject: "S_TCODE", Field: "TCD", Value: "F110"}
	assert.True(t, concreteRule.Matches(userWildcard))
}

func TestEntitlement_MatchesRequiresSameAuthObjectAndField(t *testing.T) {
	a := Entitlement{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01"}
	b := Entitlement{AuthObject: "S_TCODE", Field: "OTHER", Value: "XK01"}
	assert.False(t, a.Matches(b))
}

func TestEntitlement_MatchesActivityAbsentMatchesAny(t *testing.T) {
	ruleSide := Entitlement{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01"}
	userSide := Entitlement{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01", Activity: "02"}
	assert.True(t, ruleSide.Matches(userSide))
}

func TestEntitlement_MatchesActivityMismatchFails(t *testing.T) {
	ruleSide := Entitlement{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01", Activity: "01"}
	userSide := Entitlement{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01", Activity: "02"}
	assert.False(t, ruleSide.Matches(userSide))
}

func TestConflictSet_CheckBothFunctionsPresent(t *testing.T) {
	cs := ConflictSet{
		Name:      "Vendor master vs payment",
		FunctionA: Permission{Name: "CreateVendor", Entitlements: []Entitlement{{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01"}}},
		FunctionB: Permission{Name: "PostPayment", Entitlements: []Entitlement{{AuthObject: "S_TCODE", Field: "TCD", Value: "F110"}}},
	}

	result := cs.Check([]Entitlement{
		{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01"},
		{AuthObject: "S_TCODE", Field: "TCD", Value: "F110"},
	})
	assert.True(t, result.HasConflict)
}

func TestConflictSet_CheckOnlyOneFunctionPresent(t *testing.T) {
	cs := ConflictSet{
		FunctionA: Permission{Entitlements: []Entitlement{{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01"}}},
		FunctionB: Permission{Entitlements: []Entitlement{{AuthObject: "S_TCODE", Field: "TCD", Value: "F110"}}},
	}
	result := cs.Check([]Entitlement{{AuthObject: "S_TCODE", Field: "TCD", Value: "XK01"}})
	assert.False(t, result.HasConflict)
	assert.True(t, result.HasA)
	assert.False(t, result.HasB)
}

func TestConflictSet_ConflictSignatureIsSorted(t *testing.T) {
	cs := ConflictSet{
		FunctionA: Permission{Entitlements: []Entitlement{{AuthObject: "Z", Field: "Z", Value: "Z"}}},
		FunctionB: Permission{Entitlements: []Entitlement{{AuthObject: "A", Field: "A", Value: "A"}}},
	}
	sig := cs.ConflictSignature()
	assert.Equal(t, []string{":A:A:A", ":Z:Z:Z"}, sig)
}

func TestLevelForScore(t *testing.T) {
	assert.Equal(t, RiskLow, LevelForScore(0))
	assert.Equal(t, RiskLow, LevelForScore(29.9))
	assert.Equal(t, RiskMedium, LevelForScore(30))
	assert.Equal(t, RiskHigh, LevelForScore(60))
	assert.Equal(t, RiskCritical, LevelForScore(80))
}

func TestParseRiskLevel(t *testing.T) {
	lvl, ok := ParseRiskLevel("High")
	assert.True(t, ok)
	assert.Equal(t, RiskHigh, lvl)

	_, ok = ParseRiskLevel("nonsense")
	assert.False(t, ok)
}

func TestUserAccess_WithAdditionalDoesNotMutateOriginal(t *testing.T) {
	original := UserAccess{UserID: "u1", Entitlements: []Entitlement{{AuthObject: "A", Field: "F", Value: "V1"}}}
	extended := original.WithAdditional([]Entitlement{{AuthObject: "A", Field: "F", Value: "V2"}})

	assert.Len(t, original.Entitlements, 1)
	assert.Len(t, extended.Entitlements, 2)
}

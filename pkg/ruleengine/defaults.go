package ruleengine

import "github.com/ocx/grc-core/pkg/entitlement"

func tcode(value string) entitlement.Entitlement {
	return entitlement.Entitlement{System: "SAP", AuthObject: "S_TCODE", Field: "TCD", Value: value}
}

// NewWithDefaultRules builds an engine pre-seeded with the standard SAP
// SoD/sensitive-access catalogue used across GRC deployments: vendor
// master vs. payment run, PO creation vs. goods receipt, GL posting vs.
// journal approval, payroll entry vs. payroll run, user admin vs. role
// assignment, and two sensitive-access rules (basis superuser, debug/change).
func NewWithDefaultRules() *Engine {
	e := New()
	for _, r := range defaultRules() {
		if err := e.AddRule(r); err != nil {
			panic(err) // default catalogue is a programmer error if invalid
		}
	}
	return e
}

func defaultRules() []RiskRule {
	return []RiskRule{
		{
			ID:       "FI_P2P_001",
			Name:     "Maintain Vendor Master vs. Process Payment Run",
			Kind:     KindSoD,
			Severity: entitlement.RiskCritical,
			Category: "Financial",
			Enabled:  true,
			Version:  1,
			Conflicts: []entitlement.ConflictSet{{
				Name:      "Vendor master vs payment run",
				FunctionA: entitlement.Permission{Name: "MaintainVendorMaster", Entitlements: []entitlement.Entitlement{tcode("XK01"), tcode("XK02")}},
				FunctionB: entitlement.Permission{Name: "ProcessPaymentRun", Entitlements: []entitlement.Entitlement{tcode("F110")}},
			}},
			BusinessImpact:  "A user who can create or modify vendor bank details and also execute payment runs can redirect payments to an account they control.",
			Recommendations: []string{"Split vendor master maintenance and payment execution across two roles", "Require dual control on vendor bank detail changes"},
		},
		{
			ID:       "FI_P2P_002",
			Name:     "Create Purchase Order vs. Post Goods Receipt",
			Kind:     KindSoD,
			Severity: entitlement.RiskHigh,
			Category: "Procurement",
			Enabled:  true,
			Version:  1,
			Conflicts: []entitlement.ConflictSet{{
				Name:      "PO creation vs goods receipt",
				FunctionA: entitlement.Permission{Name: "CreatePurchaseOrder", Entitlements: []entitlement.Entitlement{tcode("ME21N")}},
				FunctionB: entitlement.Permission{Name: "PostGoodsReceipt", Entitlements: []entitlement.Entitlement{tcode("MIGO")}},
			}},
			BusinessImpact:  "A user who both orders goods and confirms their receipt can create fictitious purchases.",
			Recommendations: []string{"Assign goods receipt confirmation to warehouse staff, not buyers"},
		},
		{
			ID:       "FI_GL_001",
			Name:     "Post Journal Entry vs. Approve Journal Entry",
			Kind:     KindSoD,
			Severity: entitlement.RiskHigh,
			Category: "Financial",
			Enabled:  true,
			Version:  1,
			Conflicts: []entitlement.ConflictSet{{
				Name:      "GL posting vs approval",
				FunctionA: entitlement.Permission{Name: "PostJournalEntry", Entitlements: []entitlement.Entitlement{tcode("FB50")}},
				FunctionB: entitlement.Permission{Name: "ApproveJournalEntry", Entitlements: []entitlement.Entitlement{tcode("FBV0")}},
			}},
			BusinessImpact:  "Self-approval of journal entries defeats the four-eyes principle on the general ledger.",
			Recommendations: []string{"Route approval to a second, independent approver"},
		},
		{
			ID:       "HR_PAY_001",
			Name:     "Maintain Payroll Master Data vs. Execute Payroll Run",
			Kind:     KindSoD,
			Severity: entitlement.RiskCritical,
			Category: "HR_Payroll",
			Enabled:  true,
			Version:  1,
			Conflicts: []entitlement.ConflictSet{{
				Name:      "Payroll data vs run",
				FunctionA: entitlement.Permission{Name: "MaintainPayrollData", Entitlements: []entitlement.Entitlement{tcode("PA30")}},
				FunctionB: entitlement.Permission{Name: "ExecutePayrollRun", Entitlements: []entitlement.Entitlement{tcode("PC00_M99_CALC")}},
			}},
			BusinessImpact:  "A user who edits salary data and runs payroll can inflate their own or a colleague's pay.",
			Recommendations: []string{"Segregate payroll master data maintenance from payroll execution"},
		},
		{
			ID:       "IT_SEC_001",
			Name:     "User Administration vs. Role Assignment",
			Kind:     KindSoD,
			Severity: entitlement.RiskCritical,
			Category: "IT_Security",
			Enabled:  true,
			Version:  1,
			Conflicts: []entitlement.ConflictSet{{
				Name:      "User admin vs role assignment",
				FunctionA: entitlement.Permission{Name: "AdministerUsers", Entitlements: []entitlement.Entitlement{tcode("SU01")}},
				FunctionB: entitlement.Permission{Name: "AssignRoles", Entitlements: []entitlement.Entitlement{tcode("PFCG")}},
			}},
			BusinessImpact:  "A user who creates accounts and assigns roles can self-provision any level of access.",
			Recommendations: []string{"Separate identity lifecycle management from role design and assignment"},
		},
		{
			ID:       "IT_SENS_001",
			Name:     "Basis Superuser Access",
			Kind:     KindSensitive,
			Severity: entitlement.RiskCritical,
			Category: "Basis",
			Enabled:  true,
			Version:  1,
			SensitiveEntitlements: []entitlement.Entitlement{
				tcode("SU01"),
				{System: "SAP", AuthObject: "S_RFC", Field: "ACTVT", Value: entitlement.Wildcard},
			},
			BusinessImpact:  "Basis superuser access bypasses application-layer controls entirely.",
			Recommendations: []string{"Restrict to firefighter/emergency-access accounts with session logging"},
		},
		{
			ID:       "IT_SENS_002",
			Name:     "Debug and Program Change in Production",
			Kind:     KindSensitive,
			Severity: entitlement.RiskCritical,
			Category: "IT_Security",
			Enabled:  true,
			Version:  1,
			SensitiveEntitlements: []entitlement.Entitlement{
				{System: "SAP", AuthObject: "S_DEVELOP", Field: "ACTVT", Value: "02"},
				{System: "SAP", AuthObject: "S_DEVELOP", Field: "OBJTYPE", Value: "DEBUG"},
			},
			BusinessImpact:  "Debug-and-replace in production can alter any in-flight transaction undetected.",
			Recommendations: []string{"Disable debug-replace in production clients; route changes through transport"},
		},
	}
}

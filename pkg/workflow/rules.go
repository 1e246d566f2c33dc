package workflow

import "github.com/ocx/grc-core/pkg/entitlement"

func boolPtr(b bool) *bool { return &b }

// defaultApprovalRules ports the standard manager/security/role-owner/
// compliance/IT-admin approval catalogue: manager approval always
// applies, security review for high/critical risk, role owner approval
// for admin-pattern roles, compliance review on SoD violations, and IT
// admin approval for production systems.
func defaultApprovalRules() []ApprovalRule {
	return []ApprovalRule{
		{
			ID:           "RULE_MGR_001",
			Name:         "Manager Approval",
			Description:  "Direct manager must approve all access requests",
			ApproverType: ApproverDirectManager,
			StepName:     "Manager Approval",
			SLAHours:     48,
			Priority:     10,
			Required:     true,
			Enabled:      true,
		},
		{
			ID:          "RULE_SEC_001",
			Name:        "Security Review - High Risk",
			Description: "Security team review for high/critical risk requests",
			Condition: Condition{
				RiskLevels: []entitlement.RiskLevel{entitlement.RiskHigh, entitlement.RiskCritical},
			},
			ApproverType:      ApproverSecurityTeam,
			SpecificApprovers: []string{"security.team@company.com"},
			StepName:          "Security Review",
			SLAHours:          24,
			Priority:          20,
			Enabled:           true,
		},
		{
			ID:          "RULE_COMP_001",
			Name:        "Compliance Review - SoD",
			Description: "Compliance team must review requests with SoD violations",
			Condition: Condition{
				HasSoDViolations: boolPtr(true),
			},
			ApproverType:      ApproverComplianceTeam,
			SpecificApprovers: []string{"compliance.team@company.com"},
			StepName:          "Compliance Review",
			SLAHours:          72,
			Priority:          25,
			Enabled:           true,
		},
		{
			ID:          "RULE_OWNER_001",
			Name:        "Role Owner Approval",
			Description: "Role owner must approve sensitive role assignments",
			Condition: Condition{
				RolePatterns: []string{"*_ADMIN", "Z_SENSITIVE_*", "SAP_*"},
			},
			ApproverType: ApproverRoleOwner,
			StepName:     "Role Owner Approval",
			SLAHours:     48,
			Priority:     30,
			Enabled:      true,
		},
		{
			ID:          "RULE_IT_001",
			Name:        "IT Admin - Production",
			Description: "IT Admin approval for production system access",
			Condition: Condition{
				TargetSystems: []string{"SAP_PROD", "PROD", "PRD"},
			},
			ApproverType:      ApproverITAdmin,
			SpecificApprovers: []string{"it.admin@company.com"},
			StepName:          "IT Admin Approval",
			SLAHours:          24,
			Priority:          40,
			Enabled:           true,
		},
	}
}

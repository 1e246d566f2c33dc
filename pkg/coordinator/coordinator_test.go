package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/grc-core/internal/apperrors"
	"github.com/ocx/grc-core/internal/clock"
	"github.com/ocx/grc-core/pkg/entitlement"
	"github.com/ocx/grc-core/pkg/orgfilter"
	"github.com/ocx/grc-core/pkg/ruleengine"
	"github.com/ocx/grc-core/pkg/workflow"
)

// --- fakes ---

type fakeSource struct {
	entitlements map[string][]entitlement.Entitlement
	roles        map[string][]string
}

func (f *fakeSource) UsersInScope(ctx context.Context, filter entitlement.ScopeFilter) ([]string, error) {
	return nil, nil
}

func (f *fakeSource) EntitlementsOf(ctx context.Context, userID string) ([]entitlement.Entitlement, error) {
	return f.entitlements[userID], nil
}

func (f *fakeSource) RolesOf(ctx context.Context, userID string) ([]string, error) {
	return f.roles[userID], nil
}

func (f *fakeSource) CheckFirefighterAvailability(ctx context.Context, userID string) (entitlement.FirefighterStatus, error) {
	return entitlement.FirefighterStatus{}, nil
}

type fakeCatalog struct {
	items map[string][]entitlement.Entitlement
}

func (f *fakeCatalog) EntitlementsFor(ctx context.Context, system, accessName string) ([]entitlement.Entitlement, error) {
	key := system + ":" + accessName
	ents, ok := f.items[key]
	if !ok {
		return nil, apperrors.NewValidationError("unknown access item " + key)
	}
	return ents, nil
}

type fakeResolver struct{}

func (fakeResolver) ManagerOf(ctx context.Context, userID string) (string, error) {
	return "manager1", nil
}
func (fakeResolver) EmailOf(ctx context.Context, userID string) (string, error) { return userID + "@co.com", nil }
func (fakeResolver) NameOf(ctx context.Context, userID string) (string, error)  { return userID, nil }
func (fakeResolver) RoleOwnerOf(ctx context.Context, roleName string) (string, error) {
	return "", nil
}
func (fakeResolver) DataOwnerOf(ctx context.Context, resource string) (string, error) { return "", nil }
func (fakeResolver) CostCenterOwnerOf(ctx context.Context, cc string) (string, error)  { return "", nil }

type fakeNotifier struct{ sent int }

func (f *fakeNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	f.sent++
	return nil
}

type fakeProvisioner struct {
	calls    int
	failN    int
	revoked  []string
	lastErr  error
}

func (f *fakeProvisioner) Provision(ctx context.Context, requestID string, items []workflow.RequestedAccess) error {
	f.calls++
	if f.calls <= f.failN {
		return apperrors.NewTransientExternalError("provisioning system temporarily unavailable")
	}
	return f.lastErr
}

func (f *fakeProvisioner) Revoke(ctx context.Context, requestID string) error {
	f.revoked = append(f.revoked, requestID)
	return nil
}

func buildManager(t *testing.T, catalogItems map[string][]entitlement.Entitlement, source *fakeSource, now time.Time) (*Manager, *ruleengine.Engine, *fakeProvisioner) {
	t.Helper()

	re := ruleengine.New()
	wfEngine := workflow.New(fakeResolver{}, &fakeNotifier{}, nil,
		workflow.Config{DefaultSLAHours: 48, MaxApprovalLevels: 5, RequireManagerApproval: true},
		clock.Fixed{At: now}, nil)
	of := orgfilter.New()
	catalog := &fakeCatalog{items: catalogItems}
	prov := &fakeProvisioner{}

	mgr := New(re, of, wfEngine, source, catalog, prov, &fakeNotifier{}, nil, nil, nil, nil,
		Config{MinJustificationLength: 20}, clock.Fixed{At: now}, nil)
	return mgr, re, prov
}

func basicInput() CreateInput {
	return CreateInput{
		RequesterID:   "REQ_USER",
		TargetUserID:  "JSMITH",
		RequestType:   "new_access",
		Justification: "onboarding new hire to finance team",
		Items:         []workflow.RequestedAccess{{System: "SAP_PRD", AccessName: "Z_BASIC"}},
	}
}

func TestCreateRequest_RejectsShortJustification(t *testing.T) {
	mgr, _, _ := buildManager(t, map[string][]entitlement.Entitlement{
		"SAP_PRD:Z_BASIC": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB01"}},
	}, &fakeSource{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	in := basicInput()
	in.Justification = "too short"

	_, err := mgr.CreateRequest(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.Validation))
}

func TestCreateRequest_RejectsUnknownAccessItem(t *testing.T) {
	mgr, _, _ := buildManager(t, map[string][]entitlement.Entitlement{}, &fakeSource{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := mgr.CreateRequest(context.Background(), basicInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.Validation))
}

func TestCreateRequest_RejectsTemporaryWithoutEndDate(t *testing.T) {
	mgr, _, _ := buildManager(t, map[string][]entitlement.Entitlement{
		"SAP_PRD:Z_BASIC": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB01"}},
	}, &fakeSource{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	in := basicInput()
	in.IsTemporary = true

	_, err := mgr.CreateRequest(context.Background(), in)
	require.Error(t, err)
}

func TestSubmit_NoViolationsGeneratesPlanAndAwaitsApproval(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, _, _ := buildManager(t, map[string][]entitlement.Entitlement{
		"SAP_PRD:Z_BASIC": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB01"}},
	}, &fakeSource{}, now)

	req, err := mgr.CreateRequest(context.Background(), basicInput())
	require.NoError(t, err)

	req, err = mgr.Submit(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingApproval, req.Status)
	assert.NotEmpty(t, req.Plan)
	assert.False(t, req.HasSoDViolations)
}

func TestSubmit_SoDViolationRaisesRiskAndFlagsConflict(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	source := &fakeSource{entitlements: map[string][]entitlement.Entitlement{
		"JSMITH": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "ME21N"}},
	}}
	catalogItems := map[string][]entitlement.Entitlement{
		"SAP_PRD:Z_AP_POST": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB60"}},
	}
	mgr, re, _ := buildManager(t, catalogItems, source, now)

	require.NoError(t, re.AddRule(ruleengine.RiskRule{
		ID: "SOD-P2P-01", Name: "Create Vendor vs Post Invoice", Kind: ruleengine.KindSoD,
		Severity: entitlement.RiskHigh, Category: "SOD-P2P", Enabled: true,
		Conflicts: []entitlement.ConflictSet{{
			Name: "PO vs AP",
			FunctionA: entitlement.Permission{Name: "Create PO", Entitlements: []entitlement.Entitlement{
				{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "ME21N"},
			}},
			FunctionB: entitlement.Permission{Name: "Post AP Invoice", Entitlements: []entitlement.Entitlement{
				{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB60"},
			}},
		}},
	}))

	in := basicInput()
	in.Items = []workflow.RequestedAccess{{System: "SAP_PRD", AccessName: "Z_AP_POST"}}
	req, err := mgr.CreateRequest(context.Background(), in)
	require.NoError(t, err)

	req, err = mgr.Submit(context.Background(), req.ID)
	require.NoError(t, err)
	assert.True(t, req.HasSoDViolations)
	assert.Equal(t, entitlement.RiskHigh, req.RiskLevel)
}

func TestPreviewRisk_ReportsNewViolationWithoutMutatingRequest(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{entitlements: map[string][]entitlement.Entitlement{
		"JSMITH": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "ME21N"}},
	}}
	catalogItems := map[string][]entitlement.Entitlement{
		"SAP_PRD:Z_AP_POST": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB60"}},
	}
	mgr, re, _ := buildManager(t, catalogItems, source, now)
	require.NoError(t, re.AddRule(ruleengine.RiskRule{
		ID: "SOD-P2P-01", Kind: ruleengine.KindSoD, Severity: entitlement.RiskHigh, Category: "SOD-P2P", Enabled: true,
		Conflicts: []entitlement.ConflictSet{{
			FunctionA: entitlement.Permission{Name: "Create PO", Entitlements: []entitlement.Entitlement{
				{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "ME21N"},
			}},
			FunctionB: entitlement.Permission{Name: "Post AP Invoice", Entitlements: []entitlement.Entitlement{
				{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB60"},
			}},
		}},
	}))

	in := basicInput()
	in.Items = []workflow.RequestedAccess{{System: "SAP_PRD", AccessName: "Z_AP_POST"}}
	req, err := mgr.CreateRequest(context.Background(), in)
	require.NoError(t, err)

	preview, err := mgr.PreviewRisk(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, preview.NewViolations, 1)
	assert.Equal(t, workflow.StatusDraft, req.Status)
}

func TestProcessApproval_ApprovingFinalStepTriggersProvisioning(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, _, prov := buildManager(t, map[string][]entitlement.Entitlement{
		"SAP_PRD:Z_BASIC": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB01"}},
	}, &fakeSource{}, now)

	req, err := mgr.CreateRequest(context.Background(), basicInput())
	require.NoError(t, err)
	req, err = mgr.Submit(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, req.Plan, 1)

	req, err = mgr.ProcessApproval(context.Background(), req.ID, req.Plan[0].Number, workflow.ActionApprove, "manager1", "approved", "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, req.Status)

	require.Eventually(t, func() bool {
		fresh, err := mgr.ByID(req.ID)
		return err == nil && fresh.Status == workflow.StatusProvisioned
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, prov.calls)
}

func TestProcessApproval_RejectingTerminatesRequest(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, _, _ := buildManager(t, map[string][]entitlement.Entitlement{
		"SAP_PRD:Z_BASIC": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB01"}},
	}, &fakeSource{}, now)

	req, err := mgr.CreateRequest(context.Background(), basicInput())
	require.NoError(t, err)
	req, err = mgr.Submit(context.Background(), req.ID)
	require.NoError(t, err)

	req, err = mgr.ProcessApproval(context.Background(), req.ID, req.Plan[0].Number, workflow.ActionReject, "manager1", "not justified", "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected, req.Status)
}

func TestExpirySweep_RevokesPastDueTemporaryAccess(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, _, prov := buildManager(t, map[string][]entitlement.Entitlement{
		"SAP_PRD:Z_BASIC": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB01"}},
	}, &fakeSource{}, now)

	past := now.Add(-time.Hour)
	req := &workflow.Request{
		ID: "REQ-EXPIRE-1", RequesterID: "REQ_USER", TargetUserID: "JSMITH",
		Status: workflow.StatusProvisioned, IsTemporary: true, ExpiresAt: &past,
	}
	mgr.mu.Lock()
	mgr.requests[req.ID] = req
	mgr.mu.Unlock()

	count := mgr.ExpirySweep(context.Background())
	assert.Equal(t, 1, count)

	fresh, err := mgr.ByID(req.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusExpired, fresh.Status)
	assert.Contains(t, prov.revoked, req.ID)
}

func TestByRequesterAndByTarget(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, _, _ := buildManager(t, map[string][]entitlement.Entitlement{
		"SAP_PRD:Z_BASIC": {{System: "SAP_PRD", AuthObject: "S_TCODE", Field: "TCD", Value: "FB01"}},
	}, &fakeSource{}, now)

	req, err := mgr.CreateRequest(context.Background(), basicInput())
	require.NoError(t, err)

	assert.Len(t, mgr.ByRequester("REQ_USER"), 1)
	assert.Len(t, mgr.ByTarget("JSMITH"), 1)
	assert.Len(t, mgr.ByRequester("NOBODY"), 0)
	assert.Equal(t, req.ID, mgr.ByRequester("REQ_USER")[0].ID)
}

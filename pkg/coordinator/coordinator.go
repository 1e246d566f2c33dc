// Package coordinator ties the Entitlement Model, Rule Engine,
// Organizational Filter and Workflow Engine together for the
// access-request lifecycle: create, preview, submit,
// approve, provision, expire. It is the only component that mutates an
// AccessRequest; every mutation runs under a per-request exclusive lock —
// a blocking per-request critical section, since submit, approve and
// provision must serialize on the same request rather than fail fast.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ocx/grc-core/internal/apperrors"
	"github.com/ocx/grc-core/internal/clock"
	"github.com/ocx/grc-core/internal/events"
	"github.com/ocx/grc-core/pkg/entitlement"
	"github.com/ocx/grc-core/pkg/orgfilter"
	"github.com/ocx/grc-core/pkg/ruleengine"
	"github.com/ocx/grc-core/pkg/workflow"
)

// RoleCatalog resolves a requested access item (a role, profile or
// entitlement-bundle name scoped to a system) to the concrete
// entitlements it grants. Backed externally by a role-design or connector
// service; an unknown access name is a ValidationError at request-creation
// time, never a panic.
type RoleCatalog interface {
	EntitlementsFor(ctx context.Context, system, accessName string) ([]entitlement.Entitlement, error)
}

// Provisioner carries out an approved request and reverses it on expiry.
// Expected idempotent on requestID; the coordinator retries transient
// failures up to a configured bound before transitioning the request to
// Failed.
type Provisioner interface {
	Provision(ctx context.Context, requestID string, items []workflow.RequestedAccess) error
	Revoke(ctx context.Context, requestID string) error
}

// Notifier fires and logs; the coordinator never blocks a state
// transition on it.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// Directory supplies the organizational attributes an entitlement.Source
// does not carry (it only resolves entitlements, roles and firefighter
// status), needed to build a full UserAccess snapshot.
type Directory interface {
	DepartmentOf(ctx context.Context, userID string) (string, error)
	CostCenterOf(ctx context.Context, userID string) (string, error)
	CompanyCodeOf(ctx context.Context, userID string) (string, error)
	EmploymentTypeOf(ctx context.Context, userID string) (string, error)
}

// FootprintResolver supplies the per-function organizational scope the
// Organizational Filter needs to tell apart two conflicting functions
// that happen to be assigned to the same user but scoped to different
// company codes, plants or sales orgs. Without one, both sides of a
// conflict default to the user's own footprint, which makes every
// Exclusion/Inclusion rule a no-op — the common single-org deployment.
type FootprintResolver interface {
	FootprintOf(ctx context.Context, userID, functionName string) (orgfilter.Footprint, error)
}

// ActorVerifier optionally authenticates the actor behind a step action
// before approver-set membership is even checked (e.g.
// pkg/adapters/spiffeid's SPIFFE workload identity check). An actor that
// fails verification is PermissionDenied regardless of approver-set
// membership.
type ActorVerifier interface {
	Verify(ctx context.Context, actorID string) error
}

// CreateInput is the caller-supplied shape of a new access request.
type CreateInput struct {
	RequesterID      string
	TargetUserID     string
	TargetDepartment string
	RequestType      string
	Items            []workflow.RequestedAccess
	Justification    string
	IsTemporary      bool
	RequestedEndDate *time.Time
}

// Config tunes request validation and lifecycle defaults.
type Config struct {
	MinJustificationLength  int
	MaxTemporaryDays        int
	AutoApproveLowRisk      bool
	ProvisionMaxRetries     int
	ProvisionRetryBaseDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.MinJustificationLength <= 0 {
		c.MinJustificationLength = 20
	}
	if c.MaxTemporaryDays <= 0 {
		c.MaxTemporaryDays = 90
	}
	if c.ProvisionMaxRetries <= 0 {
		c.ProvisionMaxRetries = 3
	}
	if c.ProvisionRetryBaseDelay <= 0 {
		c.ProvisionRetryBaseDelay = 500 * time.Millisecond
	}
}

// Manager is the Request Coordinator: it owns the AccessRequest registry
// and exclusively serializes mutations to each request.
type Manager struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	requests map[string]*workflow.Request
	sweeping int32

	ruleEngine     *ruleengine.Engine
	orgFilter      *orgfilter.Engine
	workflowEngine *workflow.Engine
	source         entitlement.Source
	catalog        RoleCatalog
	provisioner    Provisioner
	notifier       Notifier
	directory      Directory
	footprints     FootprintResolver
	verifier       ActorVerifier
	emitter        events.Emitter
	cfg            Config
	clock          clock.Clock
	log            *slog.Logger
}

// New builds a Request Coordinator. The org filter, Directory,
// FootprintResolver, ActorVerifier, Provisioner, Notifier and emitter are
// optional (nil disables the behavior they back); a nil clock or logger
// falls back to clock.Real and slog.Default. The rule engine, workflow
// engine, entitlement source and role catalog are required.
func New(
	ruleEngine *ruleengine.Engine,
	orgFilter *orgfilter.Engine,
	workflowEngine *workflow.Engine,
	source entitlement.Source,
	catalog RoleCatalog,
	provisioner Provisioner,
	notifier Notifier,
	directory Directory,
	footprints FootprintResolver,
	verifier ActorVerifier,
	emitter events.Emitter,
	cfg Config,
	clk clock.Clock,
	log *slog.Logger,
) *Manager {
	cfg.applyDefaults()
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		locks:          make(map[string]*sync.Mutex),
		requests:       make(map[string]*workflow.Request),
		ruleEngine:     ruleEngine,
		orgFilter:      orgFilter,
		workflowEngine: workflowEngine,
		source:         source,
		catalog:        catalog,
		provisioner:    provisioner,
		notifier:       notifier,
		directory:      directory,
		footprints:     footprints,
		verifier:       verifier,
		emitter:        emitter,
		cfg:            cfg,
		clock:          clk,
		log:            log,
	}
}

// lock acquires the per-request mutex for requestID, creating it on first
// use, and returns the function that releases it.
func (m *Manager) lock(requestID string) func() {
	m.mu.Lock()
	l, ok := m.locks[requestID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[requestID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (m *Manager) get(requestID string) (*workflow.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return nil, apperrors.Newf(apperrors.NotFound, "access request %s not found", requestID)
	}
	return req, nil
}

// CreateRequest validates input and registers a new Draft AccessRequest.
func (m *Manager) CreateRequest(ctx context.Context, in CreateInput) (*workflow.Request, error) {
	if len(strings.TrimSpace(in.Justification)) < m.cfg.MinJustificationLength {
		return nil, apperrors.Newf(apperrors.Validation, "business justification must be at least %d characters", m.cfg.MinJustificationLength)
	}
	if len(in.Items) == 0 {
		return nil, apperrors.New(apperrors.Validation, "at least one requested access item is required")
	}
	if in.IsTemporary {
		if in.RequestedEndDate == nil {
			return nil, apperrors.New(apperrors.Validation, "temporary access requires a requested end date")
		}
		maxEnd := m.clock.Now().AddDate(0, 0, m.cfg.MaxTemporaryDays)
		if in.RequestedEndDate.After(maxEnd) {
			return nil, apperrors.Newf(apperrors.Validation, "temporary access end date exceeds the maximum of %d days", m.cfg.MaxTemporaryDays)
		}
	}
	if _, err := m.resolveItems(ctx, in.Items); err != nil {
		return nil, err
	}

	req := &workflow.Request{
		ID:               "REQ-" + uuid.NewString(),
		RequesterID:      in.RequesterID,
		TargetUserID:     in.TargetUserID,
		TargetDepartment: in.TargetDepartment,
		RequestType:      in.RequestType,
		RequestedItems:   in.Items,
		IsTemporary:      in.IsTemporary,
		ExpiresAt:        in.RequestedEndDate,
		Status:           workflow.StatusDraft,
	}

	m.mu.Lock()
	m.requests[req.ID] = req
	m.mu.Unlock()

	if m.emitter != nil {
		m.emitter.Emit(events.RequestCreated, "coordinator", req.ID, map[string]interface{}{
			"requester": in.RequesterID, "target": in.TargetUserID, "justification": in.Justification,
		})
	}
	return req, nil
}

// PreviewRisk computes the current and would-be risk of req's target
// user without mutating the request.
func (m *Manager) PreviewRisk(ctx context.Context, req *workflow.Request) (workflow.Preview, error) {
	user, err := m.snapshotUser(ctx, req.TargetUserID)
	if err != nil {
		return workflow.Preview{}, err
	}

	currentViolations := m.filterViolations(ctx, m.ruleEngine.Evaluate(user, nil), user)
	currentSummary := ruleengine.Summarize(currentViolations)

	proposed, err := m.resolveItems(ctx, req.RequestedItems)
	if err != nil {
		return workflow.Preview{}, err
	}
	futureUser := user.WithAdditional(proposed)
	futureViolations := m.filterViolations(ctx, m.ruleEngine.Evaluate(futureUser, nil), futureUser)
	futureSummary := ruleengine.Summarize(futureViolations)

	preview := workflow.BuildPreview(currentViolations, futureViolations, currentSummary.AggregateScore, futureSummary.AggregateScore)
	if m.emitter != nil {
		m.emitter.Emit(events.RequestRiskPreviewed, "coordinator", req.ID, map[string]interface{}{
			"current_score": preview.CurrentRiskScore, "future_score": preview.FutureRiskScore,
		})
	}
	return preview, nil
}

// Submit performs full risk analysis, generates the approval plan and
// transitions req from Draft to PendingApproval (or straight to Approved
// if auto_approve_low_risk applies).
func (m *Manager) Submit(ctx context.Context, requestID string) (*workflow.Request, error) {
	unlock := m.lock(requestID)
	defer unlock()

	req, err := m.get(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != workflow.StatusDraft {
		return nil, apperrors.Newf(apperrors.StateError, "request %s is not in draft (status: %s)", requestID, req.Status)
	}

	user, err := m.snapshotUser(ctx, req.TargetUserID)
	if err != nil {
		return nil, err
	}
	proposed, err := m.resolveItems(ctx, req.RequestedItems)
	if err != nil {
		return nil, err
	}
	futureUser := user.WithAdditional(proposed)

	violations := m.filterViolations(ctx, m.ruleEngine.Evaluate(futureUser, nil), futureUser)
	summary := ruleengine.Summarize(violations)
	for _, v := range violations {
		if m.emitter != nil {
			m.emitter.Emit(events.ViolationDetected, "coordinator", req.ID, map[string]interface{}{
				"rule_id": v.RuleID, "severity": v.Severity.String(),
			})
		}
	}

	req.RiskScore = summary.AggregateScore
	req.RiskLevel = entitlement.LevelForScore(summary.AggregateScore)
	req.HasSoDViolations = hasSoD(violations)

	plan, err := m.workflowEngine.GenerateWorkflow(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return nil, apperrors.New(apperrors.StateError, "plan generation produced no approval steps")
	}
	req.Plan = plan
	req.CurrentStep = 0

	now := m.clock.Now()
	req.SubmittedAt = &now
	req.Status = workflow.StatusPendingApproval

	if m.cfg.AutoApproveLowRisk && !req.HasSoDViolations && req.RiskLevel == entitlement.RiskLow {
		m.autoApprove(req)
	} else {
		m.notifyStep(ctx, req, req.Plan[0])
	}

	if m.emitter != nil {
		m.emitter.Emit(events.RequestSubmitted, "coordinator", req.ID, map[string]interface{}{
			"risk_score": req.RiskScore, "risk_level": req.RiskLevel.String(), "has_sod": req.HasSoDViolations,
		})
	}
	return req, nil
}

func (m *Manager) autoApprove(req *workflow.Request) {
	now := m.clock.Now()
	for _, s := range req.Plan {
		s.Status = workflow.StepApproved
		for i := range s.Paths {
			s.Paths[i].Status = workflow.StepApproved
		}
	}
	req.CurrentStep = len(req.Plan)
	req.Status = workflow.StatusApproved
	req.FinalDecision = "auto_approved_low_risk"
	req.FinalDecisionBy = "SYSTEM"
	req.FinalDecisionAt = &now
	if m.emitter != nil {
		m.emitter.Emit(events.RequestApproved, "coordinator", req.ID, map[string]interface{}{"auto_approved": true})
	}
}

// ProcessApproval delegates the action to the Workflow Engine under the
// request's lock and, on a terminal Approved transition, triggers
// provisioning asynchronously.
func (m *Manager) ProcessApproval(ctx context.Context, requestID string, stepNumber int, action workflow.Action, actorID, comments, delegateTo string) (*workflow.Request, error) {
	if m.verifier != nil {
		if err := m.verifier.Verify(ctx, actorID); err != nil {
			return nil, apperrors.Wrap(err, apperrors.PermissionDenied, "actor identity could not be verified")
		}
	}

	unlock := m.lock(requestID)
	req, err := m.get(requestID)
	if err != nil {
		unlock()
		return nil, err
	}

	wasApproved := req.Status == workflow.StatusApproved
	if err := m.workflowEngine.ProcessApproval(ctx, req, stepNumber, action, actorID, comments, delegateTo); err != nil {
		unlock()
		return nil, err
	}
	nowApproved := req.Status == workflow.StatusApproved
	unlock()

	if nowApproved && !wasApproved {
		reqID := req.ID
		go func() {
			if err := m.Provision(context.Background(), reqID); err != nil {
				m.log.Error("provisioning failed", "request_id", reqID, "error", err)
			}
		}()
	}
	return req, nil
}

// Provision runs the external Provisioner against an Approved request,
// retrying transient failures up to cfg.ProvisionMaxRetries before
// transitioning the request to Failed. Safe to call directly (e.g. from a
// reconciliation sweep) as well as from ProcessApproval's async trigger.
func (m *Manager) Provision(ctx context.Context, requestID string) error {
	unlock := m.lock(requestID)
	req, err := m.get(requestID)
	if err != nil {
		unlock()
		return err
	}
	if req.Status != workflow.StatusApproved {
		unlock()
		return apperrors.Newf(apperrors.StateError, "request %s is not approved (status: %s)", requestID, req.Status)
	}
	req.Status = workflow.StatusProvisioning
	items := append([]workflow.RequestedAccess(nil), req.RequestedItems...)
	unlock()

	provErr := m.callProvisioner(ctx, requestID, items)

	unlock = m.lock(requestID)
	defer unlock()
	req, err = m.get(requestID)
	if err != nil {
		return err
	}
	if provErr != nil {
		req.Status = workflow.StatusFailed
		req.ProvisionError = provErr.Error()
		if m.emitter != nil {
			m.emitter.Emit(events.RequestProvisionFailed, "coordinator", req.ID, map[string]interface{}{"error": provErr.Error()})
		}
		return provErr
	}

	req.Status = workflow.StatusProvisioned
	if m.emitter != nil {
		m.emitter.Emit(events.RequestProvisioned, "coordinator", req.ID, nil)
	}
	return nil
}

// callProvisioner retries transient failures with exponential backoff,
// bounded by cfg.ProvisionMaxRetries.
func (m *Manager) callProvisioner(ctx context.Context, requestID string, items []workflow.RequestedAccess) error {
	if m.provisioner == nil {
		return apperrors.New(apperrors.Fatal, "no provisioner configured")
	}

	delay := m.cfg.ProvisionRetryBaseDelay
	var lastErr error
	for attempt := 0; attempt < m.cfg.ProvisionMaxRetries; attempt++ {
		err := m.provisioner.Provision(ctx, requestID, items)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperrors.Retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

// ExpirySweep transitions past-due Provisioned temporary requests to
// Expired and calls the provisioner's Revoke.
func (m *Manager) ExpirySweep(ctx context.Context) int {
	now := m.clock.Now()

	m.mu.Lock()
	var candidates []string
	for id, req := range m.requests {
		if req.Status == workflow.StatusProvisioned && req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
			candidates = append(candidates, id)
		}
	}
	m.mu.Unlock()

	count := 0
	for _, id := range candidates {
		unlock := m.lock(id)
		req, err := m.get(id)
		if err != nil {
			unlock()
			continue
		}
		if req.Status != workflow.StatusProvisioned {
			unlock()
			continue
		}
		req.Status = workflow.StatusExpired
		unlock()

		if m.provisioner != nil {
			if err := m.provisioner.Revoke(ctx, id); err != nil {
				m.log.Warn("revoke on expiry failed", "request_id", id, "error", err)
			}
		}
		if m.emitter != nil {
			m.emitter.Emit(events.RequestExpired, "coordinator", id, nil)
		}
		count++
	}
	return count
}

// ExpiryNotifications warns requesters whose temporary access expires
// within daysAhead days.
func (m *Manager) ExpiryNotifications(ctx context.Context, daysAhead int) int {
	if m.notifier == nil {
		return 0
	}
	now := m.clock.Now()
	threshold := now.AddDate(0, 0, daysAhead)

	m.mu.Lock()
	var targets []*workflow.Request
	for _, req := range m.requests {
		if req.Status == workflow.StatusProvisioned && req.ExpiresAt != nil &&
			req.ExpiresAt.After(now) && !req.ExpiresAt.After(threshold) {
			targets = append(targets, req)
		}
	}
	m.mu.Unlock()

	for _, req := range targets {
		body := fmt.Sprintf("Temporary access for %s expires on %s.", req.TargetUserID, req.ExpiresAt.Format(time.RFC3339))
		if err := m.notifier.Notify(ctx, req.RequesterID, fmt.Sprintf("Access Request %s Expiring Soon", req.ID), body); err != nil {
			m.log.Warn("expiry notification failed", "request_id", req.ID, "error", err)
		}
	}
	return len(targets)
}

// SlaSweep delegates to the Workflow Engine one request at a time, each
// under its own lock, and short-circuits if a previous sweep is still
// running rather than overlap sweeps.
func (m *Manager) SlaSweep(ctx context.Context) int {
	if !atomic.CompareAndSwapInt32(&m.sweeping, 0, 1) {
		return 0
	}
	defer atomic.StoreInt32(&m.sweeping, 0)

	m.mu.Lock()
	ids := make([]string, 0, len(m.requests))
	for id := range m.requests {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	total := 0
	for _, id := range ids {
		unlock := m.lock(id)
		if req, err := m.get(id); err == nil {
			total += m.workflowEngine.SlaSweep(ctx, []*workflow.Request{req})
		}
		unlock()
	}
	return total
}

// ByID returns a request by id.
func (m *Manager) ByID(requestID string) (*workflow.Request, error) {
	return m.get(requestID)
}

// ByRequester returns every request a requester created.
func (m *Manager) ByRequester(requesterID string) []*workflow.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*workflow.Request
	for _, req := range m.requests {
		if req.RequesterID == requesterID {
			out = append(out, req)
		}
	}
	return out
}

// ByTarget returns every request targeting a given user.
func (m *Manager) ByTarget(targetUserID string) []*workflow.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*workflow.Request
	for _, req := range m.requests {
		if req.TargetUserID == targetUserID {
			out = append(out, req)
		}
	}
	return out
}

// PendingFor returns the approval worklist for a given approver.
func (m *Manager) PendingFor(approverID string) []workflow.PendingApproval {
	m.mu.Lock()
	reqs := make([]*workflow.Request, 0, len(m.requests))
	for _, req := range m.requests {
		reqs = append(reqs, req)
	}
	m.mu.Unlock()
	return m.workflowEngine.PendingApprovalsFor(approverID, reqs)
}

func (m *Manager) notifyStep(ctx context.Context, req *workflow.Request, step *workflow.Step) {
	if m.notifier == nil {
		return
	}
	for _, path := range step.Paths {
		for _, approver := range path.ApproverIDs {
			if err := m.notifier.Notify(ctx, approver,
				fmt.Sprintf("Access Request %s - Approval Needed", req.ID),
				fmt.Sprintf("Step %q requires your approval.", step.Name)); err != nil {
				m.log.Warn("notification failed", "request_id", req.ID, "error", err)
			}
		}
	}
}

func (m *Manager) resolveItems(ctx context.Context, items []workflow.RequestedAccess) ([]entitlement.Entitlement, error) {
	var out []entitlement.Entitlement
	for _, item := range items {
		ents, err := m.catalog.EntitlementsFor(ctx, item.System, item.AccessName)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.Validation, "unresolved access %q in system %q", item.AccessName, item.System)
		}
		out = append(out, ents...)
	}
	return out, nil
}

func (m *Manager) snapshotUser(ctx context.Context, userID string) (entitlement.UserAccess, error) {
	ents, err := m.source.EntitlementsOf(ctx, userID)
	if err != nil {
		return entitlement.UserAccess{}, classifySourceErr(err)
	}
	roles, err := m.source.RolesOf(ctx, userID)
	if err != nil {
		return entitlement.UserAccess{}, classifySourceErr(err)
	}

	user := entitlement.UserAccess{
		UserID:       userID,
		RoleNames:    roles,
		Entitlements: ents,
	}
	if m.directory != nil {
		if dept, err := m.directory.DepartmentOf(ctx, userID); err == nil {
			user.Department = dept
		}
		if cc, err := m.directory.CostCenterOf(ctx, userID); err == nil {
			user.CostCenter = cc
		}
		if code, err := m.directory.CompanyCodeOf(ctx, userID); err == nil {
			user.CompanyCode = code
		}
		if et, err := m.directory.EmploymentTypeOf(ctx, userID); err == nil {
			user.EmploymentType = et
		}
	}
	return user, nil
}

func classifySourceErr(err error) error {
	if apperrors.IsType(err, apperrors.TransientExternal) || apperrors.IsType(err, apperrors.PermanentExternal) {
		return err
	}
	return apperrors.Wrap(err, apperrors.TransientExternal, "entitlement source call failed")
}

// filterViolations applies the Organizational Filter to every SoD
// violation (Sensitive violations have no second side to scope, so they
// pass through unfiltered), adjusting or dropping candidates whose two
// sides don't actually share an organizational footprint.
func (m *Manager) filterViolations(ctx context.Context, violations []ruleengine.Violation, user entitlement.UserAccess) []ruleengine.Violation {
	if m.orgFilter == nil {
		return violations
	}
	base := defaultFootprint(user)

	out := make([]ruleengine.Violation, 0, len(violations))
	for _, v := range violations {
		if v.Kind != ruleengine.KindSoD {
			out = append(out, v)
			continue
		}
		footA, footB := base, base
		resolved := false
		if m.footprints != nil {
			if fa, err := m.footprints.FootprintOf(ctx, user.UserID, v.FunctionA); err == nil && fa != nil {
				footA = fa
				resolved = true
			}
			if fb, err := m.footprints.FootprintOf(ctx, user.UserID, v.FunctionB); err == nil && fb != nil {
				footB = fb
				resolved = true
			}
		}
		if !resolved {
			// Both sides share the user's own footprint: nothing to separate.
			out = append(out, v)
			continue
		}

		result := m.orgFilter.FilterRisk(v.RuleID, v.Category, footA, footB, nil)
		if result.Filtered {
			continue
		}
		if result.AdjustedRiskLevel != "" {
			if lvl, ok := entitlement.ParseRiskLevel(result.AdjustedRiskLevel); ok {
				v.Severity = lvl
			}
		}
		out = append(out, v)
	}
	return out
}

func defaultFootprint(user entitlement.UserAccess) orgfilter.Footprint {
	fp := orgfilter.Footprint{}
	if user.CompanyCode != "" {
		fp[string(orgfilter.FieldCompanyCode)] = []string{user.CompanyCode}
	}
	if user.Department != "" {
		fp[string(orgfilter.FieldDepartment)] = []string{user.Department}
	}
	if user.CostCenter != "" {
		fp[string(orgfilter.FieldCostCenter)] = []string{user.CostCenter}
	}
	return fp
}

func hasSoD(violations []ruleengine.Violation) bool {
	for _, v := range violations {
		if v.Kind == ruleengine.KindSoD {
			return true
		}
	}
	return false
}

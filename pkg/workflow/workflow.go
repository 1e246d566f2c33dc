// Package workflow drives an access request through its approval
// lifecycle: plan generation from configured approval rules, a
// multi-stage multi-path approval state machine, SLA escalation, and
// delegation. It never owns a request registry — the caller (the
// Request Coordinator) holds the request and serializes mutations to it;
// the engine only computes transitions.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ocx/grc-core/internal/apperrors"
	"github.com/ocx/grc-core/internal/clock"
	"github.com/ocx/grc-core/internal/events"
	"github.com/ocx/grc-core/pkg/entitlement"
	"github.com/ocx/grc-core/pkg/ruleengine"
)

// Status is the lifecycle state of an AccessRequest.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingApproval  Status = "pending_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusProvisioning     Status = "provisioning"
	StatusProvisioned      Status = "provisioned"
	StatusFailed           Status = "failed"
	StatusExpired          Status = "expired"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusProvisioned, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// StepStatus is the state of one approval path or the aggregate state
// of a step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepApproved  StepStatus = "approved"
	StepRejected  StepStatus = "rejected"
	StepEscalated StepStatus = "escalated"
)

// Action is an event an actor applies to the current step.
type Action string

const (
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionDelegate    Action = "delegate"
	ActionEscalate    Action = "escalate"
	ActionRequestInfo Action = "request_info"
)

// ApproverType identifies how a rule's approver set is resolved.
type ApproverType string

const (
	ApproverDirectManager   ApproverType = "direct_manager"
	ApproverDataOwner       ApproverType = "data_owner"
	ApproverRoleOwner       ApproverType = "role_owner"
	ApproverSecurityTeam    ApproverType = "security_team"
	ApproverRiskTeam        ApproverType = "risk_team"
	ApproverComplianceTeam  ApproverType = "compliance_team"
	ApproverITAdmin         ApproverType = "it_admin"
	ApproverSpecificUser    ApproverType = "specific_user"
	ApproverCostCenterOwner ApproverType = "cost_center_owner"
)

// RequestedAccess is one item of access being requested.
type RequestedAccess struct {
	System     string
	AccessName string
	AccessType string
}

// Request is the in-flight access request the engine advances. The
// Coordinator owns the registry of these; the workflow engine only
// mutates the one passed to it, under the Coordinator's per-request lock.
type Request struct {
	ID                 string
	RequesterID        string
	TargetUserID       string
	TargetDepartment   string
	RequestType        string
	RequestedItems     []RequestedAccess
	IsTemporary        bool
	RiskLevel          entitlement.RiskLevel
	RiskScore          float64
	HasSoDViolations   bool
	Status             Status
	Plan               []*Step
	CurrentStep        int
	SubmittedAt        *time.Time
	LastUpdatedAt      *time.Time
	FinalDecision      string
	FinalDecisionBy    string
	FinalDecisionAt    *time.Time
	RejectionReason    string
	ProvisionError     string
	ExpiresAt          *time.Time
}

// Path is one parallel approval track within a Step.
type Path struct {
	ID            string
	ApproverIDs   []string
	ApproverNames []string
	RequireAll    bool
	Required      bool
	Status        StepStatus
	approvals     map[string]struct{}
}

func newPath(approverIDs, approverNames []string, requireAll, required bool) Path {
	return Path{
		ID:            uuid.NewString(),
		ApproverIDs:   approverIDs,
		ApproverNames: approverNames,
		RequireAll:    requireAll,
		Required:      required,
		Status:        StepPending,
		approvals:     make(map[string]struct{}),
	}
}

func (p *Path) hasApprover(id string) bool {
	for _, a := range p.ApproverIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Step is one stage of the approval plan, made of one or more parallel paths.
type Step struct {
	ID                  string
	Number              int
	Name                string
	ApproverType        string
	RuleID              string
	SLAHours            int
	Due                 time.Time
	Paths               []Path
	Status              StepStatus
	EscalationTriggered bool
	Comments            string
	ActionedBy          string
	ActionedAt          *time.Time
}

func (s *Step) pathWithApprover(actorID string) (*Path, bool) {
	for i := range s.Paths {
		if s.Paths[i].hasApprover(actorID) {
			return &s.Paths[i], true
		}
	}
	return nil, false
}

func (s *Step) recompute() {
	allRequiredApproved := true
	anyRequiredRejected := false
	for _, p := range s.Paths {
		if !p.Required {
			continue
		}
		if p.Status == StepRejected {
			anyRequiredRejected = true
		}
		if p.Status != StepApproved {
			allRequiredApproved = false
		}
	}
	switch {
	case anyRequiredRejected:
		s.Status = StepRejected
	case allRequiredApproved:
		s.Status = StepApproved
	default:
		s.Status = StepPending
	}
}

// UserResolver supplies identity and ownership lookups the engine cannot
// know on its own. A resolution failure is reported as an error but the
// engine treats it the same as an empty result: the step is skipped
// unless its rule is Required.
type UserResolver interface {
	ManagerOf(ctx context.Context, userID string) (string, error)
	EmailOf(ctx context.Context, userID string) (string, error)
	NameOf(ctx context.Context, userID string) (string, error)
	RoleOwnerOf(ctx context.Context, roleName string) (string, error)
	DataOwnerOf(ctx context.Context, resource string) (string, error)
	CostCenterOwnerOf(ctx context.Context, costCenter string) (string, error)
}

// Notifier fires and logs; the engine never blocks a transition on it.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// Condition is the conjunction of predicates an ApprovalRule evaluates
// against a Request. A nil field means "don't check this condition".
type Condition struct {
	RiskLevels       []entitlement.RiskLevel
	HasSoDViolations *bool
	RequestTypes     []string
	MinRiskScore     *float64
	MaxRiskScore     *float64
	TargetSystems    []string
	RolePatterns     []string
	IsTemporary      *bool
	Departments      []string
}

func (c Condition) matches(req *Request) bool {
	if len(c.RiskLevels) > 0 && !containsLevel(c.RiskLevels, req.RiskLevel) {
		return false
	}
	if c.HasSoDViolations != nil && *c.HasSoDViolations != req.HasSoDViolations {
		return false
	}
	if len(c.RequestTypes) > 0 && !containsStr(c.RequestTypes, req.RequestType) {
		return false
	}
	if c.MinRiskScore != nil && req.RiskScore < *c.MinRiskScore {
		return false
	}
	if c.MaxRiskScore != nil && req.RiskScore > *c.MaxRiskScore {
		return false
	}
	if len(c.TargetSystems) > 0 {
		matched := false
		for _, item := range req.RequestedItems {
			if containsStr(c.TargetSystems, item.System) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(c.RolePatterns) > 0 {
		matched := false
		for _, pattern := range c.RolePatterns {
			for _, item := range req.RequestedItems {
				if ok, _ := filepath.Match(pattern, item.AccessName); ok {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}
	if c.IsTemporary != nil && *c.IsTemporary != req.IsTemporary {
		return false
	}
	if len(c.Departments) > 0 && !containsStr(c.Departments, req.TargetDepartment) {
		return false
	}
	return true
}

func containsStr(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func containsLevel(list []entitlement.RiskLevel, v entitlement.RiskLevel) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// ApprovalRule binds a Condition to an approval step template. Rules are
// evaluated in ascending Priority order.
type ApprovalRule struct {
	ID                string
	Name              string
	Description       string
	Condition         Condition
	ApproverType      ApproverType
	SpecificApprovers []string
	StepName          string
	SLAHours          int
	RequireAll        bool
	CanSkipIfSelf     bool
	Required          bool
	Priority          int
	Enabled           bool
}

func (r ApprovalRule) evaluate(req *Request) bool {
	if !r.Enabled {
		return false
	}
	return r.Condition.matches(req)
}

// Config tunes plan generation and escalation behavior.
type Config struct {
	DefaultSLAHours        int
	EscalationAfterHours   int
	MaxApprovalLevels      int
	RequireManagerApproval bool
	TeamApprovers          map[ApproverType][]string
}

func defaultTeamApprovers() map[ApproverType][]string {
	return map[ApproverType][]string{
		ApproverSecurityTeam:   {"security.team@company.com"},
		ApproverComplianceTeam: {"compliance.team@company.com"},
		ApproverITAdmin:        {"it.admin@company.com"},
		ApproverRoleOwner:      {"role.owner@company.com"},
		ApproverDataOwner:      {"data.owner@company.com"},
	}
}

// Engine generates approval plans and advances the approval state
// machine. It holds no request registry; callers pass the *Request to
// mutate under their own locking.
type Engine struct {
	rules    []ApprovalRule
	resolver UserResolver
	notifier Notifier
	emitter  events.Emitter
	cfg      Config
	clock    clock.Clock
	log      *slog.Logger
}

// New builds an engine with the standard manager/security/role-owner/
// compliance/IT-admin approval catalogue.
func New(resolver UserResolver, notifier Notifier, emitter events.Emitter, cfg Config, clk clock.Clock, log *slog.Logger) *Engine {
	if cfg.TeamApprovers == nil {
		cfg.TeamApprovers = defaultTeamApprovers()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{resolver: resolver, notifier: notifier, emitter: emitter, cfg: cfg, clock: clk, log: log}
	e.rules = defaultApprovalRules()
	e.sortRules()
	return e
}

func (e *Engine) sortRules() {
	sort.SliceStable(e.rules, func(i, j int) bool { return e.rules[i].Priority < e.rules[j].Priority })
}

func (e *Engine) AddRule(rule ApprovalRule) {
	e.rules = append(e.rules, rule)
	e.sortRules()
}

func (e *Engine) RemoveRule(id string) {
	out := e.rules[:0]
	for _, r := range e.rules {
		if r.ID != id {
			out = append(out, r)
		}
	}
	e.rules = out
}

// GenerateWorkflow builds the ordered approval plan for req. It is a
// pure function of (rules, req, resolver responses): calling it twice on
// an unmutated request produces equal plans modulo step/path ids and due
// timestamps.
func (e *Engine) GenerateWorkflow(ctx context.Context, req *Request) ([]*Step, error) {
	var steps []*Step
	number := 1

	for _, rule := range e.rules {
		if !rule.evaluate(req) {
			continue
		}
		step, err := e.createStep(ctx, req, rule, number)
		if err != nil {
			return nil, err
		}
		if step == nil {
			continue
		}
		steps = append(steps, step)
		number++
		if number > e.cfg.MaxApprovalLevels {
			e.log.Warn("max approval levels reached", "request_id", req.ID)
			break
		}
	}

	if len(steps) == 0 && e.cfg.RequireManagerApproval {
		step, err := e.createManagerStep(ctx, req, 1)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	now := e.clock.Now()
	for _, s := range steps {
		s.Due = now.Add(time.Duration(s.SLAHours) * time.Hour)
	}
	return steps, nil
}

func (e *Engine) createStep(ctx context.Context, req *Request, rule ApprovalRule, number int) (*Step, error) {
	approvers, err := e.resolveApprovers(ctx, req, rule)
	if err != nil {
		return nil, err
	}
	if len(approvers) == 0 {
		if rule.Required {
			return nil, apperrors.Newf(apperrors.StateError, "required approval rule %s resolved no approvers", rule.ID)
		}
		e.log.Warn("no approvers resolved for rule, skipping step", "rule_id", rule.ID)
		return nil, nil
	}
	if rule.CanSkipIfSelf && containsStr(approvers, req.RequesterID) {
		return nil, nil
	}

	names := make([]string, len(approvers))
	for i, a := range approvers {
		if n, err := e.resolver.NameOf(ctx, a); err == nil && n != "" {
			names[i] = n
		} else {
			names[i] = a
		}
	}

	path := newPath(approvers, names, rule.RequireAll, true)
	return &Step{
		ID:           uuid.NewString(),
		Number:       number,
		Name:         rule.StepName,
		ApproverType: string(rule.ApproverType),
		RuleID:       rule.ID,
		SLAHours:     rule.SLAHours,
		Status:       StepPending,
		Paths:        []Path{path},
	}, nil
}

func (e *Engine) createManagerStep(ctx context.Context, req *Request, number int) (*Step, error) {
	manager, err := e.resolver.ManagerOf(ctx, req.TargetUserID)
	if err != nil || manager == "" {
		manager = "default.manager@company.com"
	}
	name, err := e.resolver.NameOf(ctx, manager)
	if err != nil || name == "" {
		name = manager
	}
	path := newPath([]string{manager}, []string{name}, false, true)
	return &Step{
		ID:           uuid.NewString(),
		Number:       number,
		Name:         "Manager Approval",
		ApproverType: string(ApproverDirectManager),
		SLAHours:     e.cfg.DefaultSLAHours,
		Status:       StepPending,
		Paths:        []Path{path},
	}, nil
}

func (e *Engine) resolveApprovers(ctx context.Context, req *Request, rule ApprovalRule) ([]string, error) {
	if len(rule.SpecificApprovers) > 0 {
		return rule.SpecificApprovers, nil
	}

	switch rule.ApproverType {
	case ApproverDirectManager:
		mgr, err := e.resolver.ManagerOf(ctx, req.TargetUserID)
		if err != nil {
			e.log.Warn("manager resolution failed", "error", err)
			return nil, nil
		}
		if mgr == "" {
			return nil, nil
		}
		return []string{mgr}, nil
	case ApproverRoleOwner:
		for _, item := range req.RequestedItems {
			if owner, err := e.resolver.RoleOwnerOf(ctx, item.AccessName); err == nil && owner != "" {
				return []string{owner}, nil
			}
		}
		return e.cfg.TeamApprovers[ApproverRoleOwner], nil
	case ApproverDataOwner:
		for _, item := range req.RequestedItems {
			if owner, err := e.resolver.DataOwnerOf(ctx, item.AccessName); err == nil && owner != "" {
				return []string{owner}, nil
			}
		}
		return e.cfg.TeamApprovers[ApproverDataOwner], nil
	case ApproverCostCenterOwner:
		owner, err := e.resolver.CostCenterOwnerOf(ctx, req.TargetDepartment)
		if err != nil || owner == "" {
			return nil, nil
		}
		return []string{owner}, nil
	case ApproverSecurityTeam, ApproverComplianceTeam, ApproverITAdmin, ApproverRiskTeam:
		return e.cfg.TeamApprovers[rule.ApproverType], nil
	default:
		return nil, nil
	}
}

// ProcessApproval applies action to req's current step on behalf of actorID.
func (e *Engine) ProcessApproval(ctx context.Context, req *Request, stepNumber int, action Action, actorID, comments, delegateTo string) error {
	if req.Status != StatusPendingApproval {
		return apperrors.Newf(apperrors.StateError, "request %s is not pending approval (status: %s)", req.ID, req.Status)
	}
	idx, step := e.stepAtNumber(req, stepNumber)
	if step == nil {
		return apperrors.Newf(apperrors.NotFound, "approval step %d not found", stepNumber)
	}
	if idx != req.CurrentStep {
		return apperrors.Newf(apperrors.StateError, "step %d is not the current step (current: %d)", stepNumber, req.CurrentStep)
	}
	if step.Status != StepPending {
		return apperrors.Newf(apperrors.StateError, "step %d is not pending (status: %s)", stepNumber, step.Status)
	}

	path, ok := step.pathWithApprover(actorID)
	if !ok {
		return apperrors.Newf(apperrors.PermissionDenied, "actor %s is not authorized to act on step %d", actorID, stepNumber)
	}

	if action == ActionEscalate {
		if step.EscalationTriggered {
			return apperrors.Newf(apperrors.StateError, "step %d has already been escalated", stepNumber)
		}
		if step.Due.IsZero() || step.Due.After(e.clock.Now()) {
			return apperrors.Newf(apperrors.StateError, "step %d is not overdue", stepNumber)
		}
	}

	now := e.clock.Now()
	step.ActionedBy = actorID
	step.ActionedAt = &now

	switch action {
	case ActionApprove:
		e.recordApproval(path, actorID)
		step.recompute()
		e.advance(ctx, req, idx, step)
	case ActionReject:
		path.Status = StepRejected
		step.recompute()
		if step.Status == StepRejected {
			e.rejectRequest(req, actorID, comments)
		}
	case ActionDelegate:
		if delegateTo == "" {
			return apperrors.New(apperrors.Validation, "delegation requires a delegate target")
		}
		path.ApproverIDs = []string{delegateTo}
		path.ApproverNames = []string{delegateTo}
		path.approvals = make(map[string]struct{})
		path.Status = StepPending
		step.Status = StepPending
	case ActionEscalate:
		e.escalateStep(ctx, req, step)
	case ActionRequestInfo:
		step.Comments = fmt.Sprintf("[INFO REQUESTED] %s", comments)
	default:
		return apperrors.Newf(apperrors.Validation, "unknown approval action %q", action)
	}

	updated := e.clock.Now()
	req.LastUpdatedAt = &updated
	if e.emitter != nil {
		e.emitter.Emit(events.StepActioned, "workflow", req.ID, map[string]interface{}{
			"step": stepNumber, "action": string(action), "actor": actorID,
		})
	}
	return nil
}

func (e *Engine) recordApproval(path *Path, actorID string) {
	if _, already := path.approvals[actorID]; already {
		return
	}
	path.approvals[actorID] = struct{}{}
	if !path.RequireAll {
		path.Status = StepApproved
		return
	}
	if len(path.approvals) >= len(path.ApproverIDs) {
		path.Status = StepApproved
	}
}

func (e *Engine) advance(ctx context.Context, req *Request, idx int, step *Step) {
	if step.Status != StepApproved {
		return
	}
	if idx+1 == len(req.Plan) {
		now := e.clock.Now()
		req.Status = StatusApproved
		req.FinalDecision = "approved"
		req.FinalDecisionBy = step.ActionedBy
		req.FinalDecisionAt = &now
		if e.emitter != nil {
			e.emitter.Emit(events.RequestApproved, "workflow", req.ID, nil)
		}
		return
	}
	req.CurrentStep = idx + 1
	next := req.Plan[req.CurrentStep]
	e.notifyStepApprovers(ctx, next, req)
}

func (e *Engine) rejectRequest(req *Request, actorID, reason string) {
	now := e.clock.Now()
	req.Status = StatusRejected
	req.FinalDecision = "rejected"
	req.FinalDecisionBy = actorID
	req.FinalDecisionAt = &now
	req.RejectionReason = reason
	if e.emitter != nil {
		e.emitter.Emit(events.RequestRejected, "workflow", req.ID, map[string]interface{}{"reason": reason})
	}
}

func (e *Engine) notifyStepApprovers(ctx context.Context, step *Step, req *Request) {
	if e.notifier == nil {
		return
	}
	for _, path := range step.Paths {
		for i, approver := range path.ApproverIDs {
			recipient := approver
			if email, err := e.resolver.EmailOf(ctx, approver); err == nil && email != "" {
				recipient = email
			}
			_ = i
			if err := e.notifier.Notify(ctx, recipient, fmt.Sprintf("Access Request %s - Approval Needed", req.ID),
				fmt.Sprintf("Step %q requires your approval.", step.Name)); err != nil {
				e.log.Warn("notification failed", "error", err)
			}
		}
	}
}

func (e *Engine) stepAtNumber(req *Request, number int) (int, *Step) {
	for i, s := range req.Plan {
		if s.Number == number {
			return i, s
		}
	}
	return -1, nil
}

// SlaSweep visits every pending, overdue, not-yet-escalated step across
// the given requests and escalates it. Safe to call repeatedly: a step is
// escalated at most once thanks to EscalationTriggered.
func (e *Engine) SlaSweep(ctx context.Context, requests []*Request) int {
	escalated := 0
	now := e.clock.Now()
	for _, req := range requests {
		if req.Status != StatusPendingApproval {
			continue
		}
		for _, step := range req.Plan {
			if step.Status != StepPending || step.EscalationTriggered {
				continue
			}
			if step.Due.IsZero() || step.Due.After(now) {
				continue
			}
			e.escalateStep(ctx, req, step)
			escalated++
		}
	}
	return escalated
}

func (e *Engine) escalateStep(ctx context.Context, req *Request, step *Step) {
	step.EscalationTriggered = true

	var firstApprover string
	for _, p := range step.Paths {
		if len(p.ApproverIDs) > 0 {
			firstApprover = p.ApproverIDs[0]
			break
		}
	}
	if firstApprover != "" {
		if escalationTarget, err := e.resolver.ManagerOf(ctx, firstApprover); err == nil && escalationTarget != "" {
			for i := range step.Paths {
				if !containsStr(step.Paths[i].ApproverIDs, escalationTarget) {
					step.Paths[i].ApproverIDs = append(step.Paths[i].ApproverIDs, escalationTarget)
				}
			}
		}
	}

	if e.emitter != nil {
		e.emitter.Emit(events.StepEscalated, "workflow", req.ID, map[string]interface{}{"step": step.Number})
	}
	if e.notifier == nil {
		return
	}
	for _, p := range step.Paths {
		for _, approver := range p.ApproverIDs {
			recipient := approver
			if email, err := e.resolver.EmailOf(ctx, approver); err == nil && email != "" {
				recipient = email
			}
			if err := e.notifier.Notify(ctx, recipient, fmt.Sprintf("[ESCALATION] Access Request %s Overdue", req.ID),
				"Request is overdue for approval. Please take action immediately."); err != nil {
				e.log.Warn("escalation notification failed", "error", err)
			}
		}
	}
	e.log.Warn("escalated step", "step_id", step.ID, "request_id", req.ID)
}

// PendingApproval is a summary row for a user's approval queue.
type PendingApproval struct {
	RequestID    string
	StepNumber   int
	StepName     string
	IsOverdue    bool
	DaysPending  int
}

// PendingApprovalsFor returns every step across requests awaiting action
// from userID, either as a direct approver or a delegate.
func (e *Engine) PendingApprovalsFor(userID string, requests []*Request) []PendingApproval {
	now := e.clock.Now()
	var out []PendingApproval
	for _, req := range requests {
		if req.Status != StatusPendingApproval {
			continue
		}
		for _, step := range req.Plan {
			if step.Status != StepPending {
				continue
			}
			involved := false
			for _, p := range step.Paths {
				if p.hasApprover(userID) {
					involved = true
					break
				}
			}
			if !involved {
				continue
			}
			days := 0
			if req.SubmittedAt != nil {
				days = int(now.Sub(*req.SubmittedAt).Hours() / 24)
			}
			out = append(out, PendingApproval{
				RequestID:   req.ID,
				StepNumber:  step.Number,
				StepName:    step.Name,
				IsOverdue:   !step.Due.IsZero() && step.Due.Before(now),
				DaysPending: days,
			})
		}
	}
	return out
}

// Preview is the outcome of a pre-submission risk comparison.
type Preview struct {
	CurrentRiskScore     float64
	FutureRiskScore      float64
	CurrentViolationCount int
	FutureViolationCount  int
	NewViolations        []ruleengine.Violation
	ResolvedViolations   []ruleengine.Violation
	FutureRiskLevel      entitlement.RiskLevel
	Recommendation       string
	RequiresMitigation    bool
}

const (
	RecommendationProceed             = "PROCEED"
	RecommendationProceedWithCaution  = "PROCEED_WITH_CAUTION"
	RecommendationReviewRequired      = "REVIEW_REQUIRED"
)

// BuildPreview computes the risk delta between a user's current and
// would-be violation sets, as used for the pre-submission risk preview.
func BuildPreview(current, future []ruleengine.Violation, currentScore, futureScore float64) Preview {
	currentKeys := make(map[string]struct{}, len(current))
	for _, v := range current {
		currentKeys[v.DedupKey()] = struct{}{}
	}
	futureKeys := make(map[string]struct{}, len(future))
	for _, v := range future {
		futureKeys[v.DedupKey()] = struct{}{}
	}

	var newV, resolvedV []ruleengine.Violation
	for _, v := range future {
		if _, ok := currentKeys[v.DedupKey()]; !ok {
			newV = append(newV, v)
		}
	}
	for _, v := range current {
		if _, ok := futureKeys[v.DedupKey()]; !ok {
			resolvedV = append(resolvedV, v)
		}
	}

	level := entitlement.LevelForScore(futureScore)
	recommendation := RecommendationProceed
	requiresMitigation := false
	switch level {
	case entitlement.RiskCritical, entitlement.RiskHigh:
		recommendation = RecommendationReviewRequired
		requiresMitigation = true
	case entitlement.RiskMedium:
		recommendation = RecommendationProceedWithCaution
	}

	return Preview{
		CurrentRiskScore:      currentScore,
		FutureRiskScore:       futureScore,
		CurrentViolationCount: len(current),
		FutureViolationCount:  len(future),
		NewViolations:         newV,
		ResolvedViolations:    resolvedV,
		FutureRiskLevel:       level,
		Recommendation:        recommendation,
		RequiresMitigation:    requiresMitigation,
	}
}

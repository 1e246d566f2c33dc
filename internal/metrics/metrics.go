// Package metrics holds the Prometheus collectors this core exposes for
// violations found, request lifecycle transitions, SLA escalations, and
// certification campaign throughput.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector this core registers.
type Metrics struct {
	// Rule engine
	ViolationsFound   *prometheus.CounterVec
	EvaluationLatency *prometheus.HistogramVec

	// Request coordinator / workflow
	RequestsByStatus    *prometheus.GaugeVec
	RequestTransitions  *prometheus.CounterVec
	SLAEscalations      *prometheus.CounterVec
	ProvisioningLatency *prometheus.HistogramVec
	ProvisioningFailures *prometheus.CounterVec

	// Certification
	CampaignsActive     *prometheus.GaugeVec
	CampaignItemsPending *prometheus.GaugeVec
	CampaignDecisions   *prometheus.CounterVec
}

// New creates and registers every collector against the default registry.
func New() *Metrics {
	return &Metrics{
		ViolationsFound: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grc_violations_found_total",
				Help: "Total risk violations produced by the rule engine",
			},
			[]string{"kind", "severity", "category"},
		),
		EvaluationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grc_rule_evaluation_duration_seconds",
				Help:    "Duration of a single user risk evaluation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{},
		),
		RequestsByStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "grc_access_requests_by_status",
				Help: "Current count of access requests in each lifecycle status",
			},
			[]string{"status"},
		),
		RequestTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grc_access_request_transitions_total",
				Help: "Total access request status transitions",
			},
			[]string{"from", "to"},
		),
		SLAEscalations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grc_sla_escalations_total",
				Help: "Total approval steps escalated for SLA breach",
			},
			[]string{"step_name"},
		),
		ProvisioningLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grc_provisioning_duration_seconds",
				Help:    "Duration of a provisioning call to the target system",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"system"},
		),
		ProvisioningFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grc_provisioning_failures_total",
				Help: "Total provisioning failures, by whether they were retried",
			},
			[]string{"system", "retryable"},
		),
		CampaignsActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "grc_certification_campaigns_active",
				Help: "Current count of in-progress certification campaigns",
			},
			[]string{"campaign_type"},
		),
		CampaignItemsPending: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "grc_certification_items_pending",
				Help: "Current count of certification items awaiting a reviewer decision",
			},
			[]string{"campaign_id"},
		),
		CampaignDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grc_certification_decisions_total",
				Help: "Total certification decisions recorded, by action",
			},
			[]string{"action"},
		),
	}
}

// RecordViolation increments the violation counter for one produced violation.
func (m *Metrics) RecordViolation(kind, severity, category string) {
	m.ViolationsFound.WithLabelValues(kind, severity, category).Inc()
}

// RecordEvaluation observes the duration of one user risk evaluation.
func (m *Metrics) RecordEvaluation(seconds float64) {
	m.EvaluationLatency.WithLabelValues().Observe(seconds)
}

// SetRequestsByStatus overwrites the gauge for one status bucket, typically
// called from a periodic reconciliation sweep over the live request set.
func (m *Metrics) SetRequestsByStatus(status string, count float64) {
	m.RequestsByStatus.WithLabelValues(status).Set(count)
}

// RecordTransition records a request moving from one lifecycle status to another.
func (m *Metrics) RecordTransition(from, to string) {
	m.RequestTransitions.WithLabelValues(from, to).Inc()
}

// RecordEscalation records an SLA-triggered step escalation.
func (m *Metrics) RecordEscalation(stepName string) {
	m.SLAEscalations.WithLabelValues(stepName).Inc()
}

// RecordProvisioning observes a provisioning call's outcome and duration.
func (m *Metrics) RecordProvisioning(system string, seconds float64, err error, retryable bool) {
	m.ProvisioningLatency.WithLabelValues(system).Observe(seconds)
	if err != nil {
		retryLabel := "false"
		if retryable {
			retryLabel = "true"
		}
		m.ProvisioningFailures.WithLabelValues(system, retryLabel).Inc()
	}
}

// SetCampaignsActive overwrites the active-campaign gauge for one campaign type.
func (m *Metrics) SetCampaignsActive(campaignType string, count float64) {
	m.CampaignsActive.WithLabelValues(campaignType).Set(count)
}

// SetCampaignItemsPending overwrites the pending-item gauge for one campaign.
func (m *Metrics) SetCampaignItemsPending(campaignID string, count float64) {
	m.CampaignItemsPending.WithLabelValues(campaignID).Set(count)
}

// RecordDecision records a certification decision by its action.
func (m *Metrics) RecordDecision(action string) {
	m.CampaignDecisions.WithLabelValues(action).Inc()
}

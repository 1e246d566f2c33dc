// Package events implements the CloudEvents 1.0 envelope and in-process
// pub/sub bus the core uses to publish the events named in the Request
// Coordinator, Workflow Engine and Certification Engine sections. Event
// persistence is an external concern: subscribe a Persistence adapter if
// the event log needs to survive the process.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Event type catalogue.
const (
	RequestCreated        = "com.ocx.grc.request.created"
	RequestSubmitted      = "com.ocx.grc.request.submitted"
	RequestRiskPreviewed  = "com.ocx.grc.request.risk_previewed"
	StepActioned          = "com.ocx.grc.workflow.step_actioned"
	StepEscalated         = "com.ocx.grc.workflow.step_escalated"
	StepDelegated         = "com.ocx.grc.workflow.step_delegated"
	RequestApproved       = "com.ocx.grc.request.approved"
	RequestRejected       = "com.ocx.grc.request.rejected"
	RequestProvisioned    = "com.ocx.grc.request.provisioned"
	RequestProvisionFailed = "com.ocx.grc.request.provision_failed"
	RequestExpired        = "com.ocx.grc.request.expired"
	ViolationDetected     = "com.ocx.grc.rules.violation_detected"
	CampaignStarted       = "com.ocx.grc.certification.campaign_started"
	CampaignItemDecided   = "com.ocx.grc.certification.item_decided"
	CampaignCompleted     = "com.ocx.grc.certification.campaign_completed"
)

// Emitter is the interface the coordinator, workflow and certification
// engines depend on, so they never need a concrete *Bus.
type Emitter interface {
	Emit(eventType, source, subject string, data map[string]interface{})
}

// Category groups the event catalogue by the module that owns the
// transition being reported, matching spec.md's Request Coordinator /
// Workflow Engine / Rule Engine / Certification Engine sections. A
// subscriber that cares about "anything the workflow engine does" can
// subscribe to CategoryWorkflow instead of naming every StepActioned,
// StepEscalated, StepDelegated constant individually.
type Category string

const (
	CategoryRequest       Category = "request"
	CategoryWorkflow      Category = "workflow"
	CategoryRule          Category = "rule"
	CategoryCertification Category = "certification"
	CategoryUnknown       Category = "unknown"
)

// CategoryOf classifies an event type constant into its owning module.
// New event types must sort into one of these four categories or they
// fall into CategoryUnknown and no category subscriber sees them; exact
// type and wildcard subscribers still receive them.
func CategoryOf(eventType string) Category {
	switch {
	case strings.Contains(eventType, ".request."):
		return CategoryRequest
	case strings.Contains(eventType, ".workflow."):
		return CategoryWorkflow
	case strings.Contains(eventType, ".rules."):
		return CategoryRule
	case strings.Contains(eventType, ".certification."):
		return CategoryCertification
	default:
		return CategoryUnknown
	}
}

// CloudEvent is the CloudEvents 1.0 envelope for every event this core emits.
type CloudEvent struct {
	SpecVersion string                 `json:"specversion"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source"`
	ID          string                 `json:"id"`
	Time        time.Time              `json:"time"`
	Subject     string                 `json:"subject,omitempty"`
	Data        map[string]interface{} `json:"data"`
}

func NewCloudEvent(eventType, source, subject string, data map[string]interface{}) *CloudEvent {
	return &CloudEvent{
		SpecVersion: "1.0",
		Type:        eventType,
		Source:      source,
		ID:          fmt.Sprintf("ce-%d", time.Now().UnixNano()),
		Time:        time.Now(),
		Subject:     subject,
		Data:        data,
	}
}

func (ce *CloudEvent) JSON() ([]byte, error) {
	return json.Marshal(ce)
}

// Bus is an in-process pub/sub event bus. Subscribers receive events in
// real time over buffered channels; a slow subscriber drops events rather
// than blocking the publisher, since evaluation and state transitions must
// never suspend on I/O.
type Bus struct {
	mu           sync.RWMutex
	subscribers  map[string][]chan *CloudEvent
	categorySubs map[Category][]chan *CloudEvent
	allSubs      []chan *CloudEvent
	logger       *slog.Logger
	bufferSize   int
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers:  make(map[string][]chan *CloudEvent),
		categorySubs: make(map[Category][]chan *CloudEvent),
		allSubs:      make([]chan *CloudEvent, 0),
		logger:       logger,
		bufferSize:   100,
	}
}

// Subscribe creates a channel that receives events of the given types.
// Pass no eventTypes to receive everything.
func (b *Bus) Subscribe(eventTypes ...string) chan *CloudEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *CloudEvent, b.bufferSize)
	if len(eventTypes) == 0 {
		b.allSubs = append(b.allSubs, ch)
	} else {
		for _, et := range eventTypes {
			b.subscribers[et] = append(b.subscribers[et], ch)
		}
	}
	return ch
}

// SubscribeCategory creates a channel that receives every event whose
// CategoryOf matches one of the given categories — e.g. CategoryWorkflow
// for every step transition regardless of the specific constant, without
// the subscriber having to enumerate StepActioned/StepEscalated/
// StepDelegated by hand.
func (b *Bus) SubscribeCategory(categories ...Category) chan *CloudEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *CloudEvent, b.bufferSize)
	for _, cat := range categories {
		b.categorySubs[cat] = append(b.categorySubs[cat], ch)
	}
	return ch
}

func (b *Bus) Unsubscribe(ch chan *CloudEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for et, subs := range b.subscribers {
		b.subscribers[et] = removeChan(subs, ch)
	}
	for cat, subs := range b.categorySubs {
		b.categorySubs[cat] = removeChan(subs, ch)
	}
	b.allSubs = removeChan(b.allSubs, ch)
	close(ch)
}

func removeChan(subs []chan *CloudEvent, target chan *CloudEvent) []chan *CloudEvent {
	filtered := make([]chan *CloudEvent, 0, len(subs))
	for _, s := range subs {
		if s != target {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// Publish dispatches event to three independent subscriber sets: exact
// type matches, category matches (derived from CategoryOf), and wildcard
// subscribers. A channel reachable through more than one set (e.g. an
// exact-type subscriber that also subscribed to the owning category)
// receives the event once per set it belongs to — callers that want
// exactly-once delivery should pick either exact-type or category
// subscription for a given channel, not both.
func (b *Bus) Publish(event *CloudEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("event dropped, subscriber channel full", "type", event.Type, "id", event.ID)
		}
	}
	category := CategoryOf(event.Type)
	for _, ch := range b.categorySubs[category] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("event dropped, category subscriber channel full", "category", string(category), "type", event.Type, "id", event.ID)
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Emit creates and publishes an event in one call. Satisfies Emitter.
func (b *Bus) Emit(eventType, source, subject string, data map[string]interface{}) {
	b.Publish(NewCloudEvent(eventType, source, subject, data))
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.allSubs)
	for _, subs := range b.subscribers {
		count += len(subs)
	}
	for _, subs := range b.categorySubs {
		count += len(subs)
	}
	return count
}

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeAndEmit(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.Subscribe(RequestApproved)

	bus.Emit(RequestApproved, "coordinator", "req-1", map[string]interface{}{"requestId": "req-1"})

	select {
	case ev := <-ch:
		assert.Equal(t, RequestApproved, ev.Type)
		assert.Equal(t, "req-1", ev.Subject)
		assert.Equal(t, "1.0", ev.SpecVersion)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestBus_UnsubscribedTypeNotDelivered(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.Subscribe(RequestApproved)

	bus.Emit(RequestRejected, "coordinator", "req-2", nil)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event delivered: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_SubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.Subscribe()

	bus.Emit(CampaignStarted, "certification", "camp-1", nil)

	select {
	case ev := <-ch:
		assert.Equal(t, CampaignStarted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered to wildcard subscriber")
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.Subscribe(RequestApproved)
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
}

func TestCategoryOf_ClassifiesEveryCatalogueEntry(t *testing.T) {
	cases := map[string]Category{
		RequestCreated:         CategoryRequest,
		RequestRiskPreviewed:   CategoryRequest,
		RequestProvisioned:     CategoryRequest,
		RequestProvisionFailed: CategoryRequest,
		StepActioned:           CategoryWorkflow,
		StepEscalated:          CategoryWorkflow,
		StepDelegated:          CategoryWorkflow,
		ViolationDetected:      CategoryRule,
		CampaignStarted:        CategoryCertification,
		CampaignItemDecided:    CategoryCertification,
		CampaignCompleted:      CategoryCertification,
	}
	for eventType, want := range cases {
		assert.Equal(t, want, CategoryOf(eventType), eventType)
	}
	assert.Equal(t, CategoryUnknown, CategoryOf("com.ocx.grc.unrecognized.thing"))
}

func TestBus_SubscribeCategoryReceivesAnyMatchingType(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.SubscribeCategory(CategoryWorkflow)

	bus.Emit(StepEscalated, "workflow", "req-1", nil)

	select {
	case ev := <-ch:
		assert.Equal(t, StepEscalated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("category subscriber did not receive a matching event")
	}

	bus.Emit(CampaignStarted, "certification", "camp-1", nil)
	select {
	case ev := <-ch:
		t.Fatalf("workflow-category subscriber received unrelated event: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_UnsubscribeRemovesCategorySubscription(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.SubscribeCategory(CategoryRequest)
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
}

func TestBus_SubscriberCount(t *testing.T) {
	bus := NewBus(nil)
	require.Equal(t, 0, bus.SubscriberCount())
	bus.Subscribe(RequestApproved)
	bus.Subscribe()
	assert.Equal(t, 2, bus.SubscriberCount())
}

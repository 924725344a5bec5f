package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"slotbook/internal/models"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe("test_event", handler)

	payload := map[string]string{"foo": "bar"}
	err := bus.PublishJSON(context.Background(), "test_event", payload)
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != "test_event" {
		t.Errorf("expected type test_event, got %s", received.Type)
	}

	var decoded map[string]string
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %s", decoded["foo"])
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(context.Background(), &Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus(nil)
	var called bool

	bus.Subscribe("event", func(_ *Event) error { return errors.New("boom") })
	bus.Subscribe("event", func(_ *Event) error { called = true; return nil })

	if err := bus.PublishJSON(context.Background(), "event", struct{}{}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
	if !called {
		t.Errorf("expected second handler to run after first failed")
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	// Should not panic
	bus.Publish(context.Background(), &Event{Type: "unknown"})
	err := bus.PublishJSON(context.Background(), "unknown", nil)
	if err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON(context.Background(), "x", nil); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}

func TestEventContextPropagates(t *testing.T) {
	bus := NewEventBus(nil)
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	var got interface{}
	bus.Subscribe("event", func(e *Event) error { got = e.Context().Value(key{}); return nil })
	bus.Publish(ctx, &Event{Type: "event"})

	if got != "v" {
		t.Errorf("expected context value v, got %v", got)
	}
	if (&Event{}).Context() == nil {
		t.Errorf("expected background context for unpublished event")
	}
}

func TestNewJSONEvent(t *testing.T) {
	payload := BookingEventPayload{BookingID: "bk-123"}
	event, err := NewJSONEvent("type", payload)
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}

	if event.Type != "type" {
		t.Errorf("expected type, got %s", event.Type)
	}

	if event.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded BookingEventPayload
	if err := event.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if decoded.BookingID != "bk-123" {
		t.Errorf("expected BookingID bk-123, got %s", decoded.BookingID)
	}
}

func TestBookingPayloadRoundTrip(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	b := &models.Booking{
		ID:              "bk-1",
		BusinessID:      "biz-1",
		ServiceID:       "svc-1",
		ServiceName:     "Haircut",
		CustomerName:    "Ann",
		CustomerEmail:   "ann@example.com",
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		DurationMinutes: 30,
		Status:          models.StatusConfirmed,
	}

	back := NewBookingPayload(b).Booking()
	if back.ID != b.ID || back.BusinessID != b.BusinessID || !back.EndTime.Equal(b.EndTime) {
		t.Errorf("unexpected booking after round trip: %+v", back)
	}
	if back.DurationMinutes != 30 || back.ServiceName != "Haircut" {
		t.Errorf("snapshot fields lost: %+v", back)
	}
}

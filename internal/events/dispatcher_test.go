package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mpesa_backend/internal/domain"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type fakeRecorder struct {
	outcomes []domain.CallbackOutcome
	err      error
}

func (f *fakeRecorder) Record(_ context.Context, out domain.CallbackOutcome) error {
	f.outcomes = append(f.outcomes, out)
	return f.err
}

type fakePublisher struct {
	events []domain.Event
	err    error
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, ev domain.Event) error {
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func appliedOutcome(status domain.TxStatus) domain.CallbackOutcome {
	return domain.CallbackOutcome{
		Kind:              domain.OutcomeApplied,
		CheckoutRequestID: "ws_CO_1",
		Status:            status,
		Transaction:       &domain.Transaction{CheckoutRequestID: "ws_CO_1", Status: status},
	}
}

func TestDispatchPublishesOneEventPerAppliedOutcome(t *testing.T) {
	cases := []struct {
		status domain.TxStatus
		want   domain.EventType
	}{
		{domain.StatusCompleted, domain.EventPaymentCompleted},
		{domain.StatusFailed, domain.EventPaymentFailed},
	}
	for _, c := range cases {
		rec := &fakeRecorder{}
		pub := &fakePublisher{}
		d := NewDispatcher(rec, pub)

		d.Dispatch(context.Background(), appliedOutcome(c.status))

		if len(rec.outcomes) != 1 {
			t.Errorf("%s: audited %d outcomes", c.status, len(rec.outcomes))
		}
		if len(pub.events) != 1 {
			t.Fatalf("%s: published %d events, want 1", c.status, len(pub.events))
		}
		ev := pub.events[0]
		if ev.Type != c.want || ev.Transaction.CheckoutRequestID != "ws_CO_1" {
			t.Errorf("%s: event = %+v", c.status, ev)
		}
		if _, err := uuid.Parse(ev.ID); err != nil {
			t.Errorf("event id %q is not a uuid", ev.ID)
		}
	}
}

func TestDispatchSkipsEventsForUnappliedOutcomes(t *testing.T) {
	for _, kind := range []domain.OutcomeKind{domain.OutcomeNotFound, domain.OutcomeMalformed, domain.OutcomeError} {
		rec := &fakeRecorder{}
		pub := &fakePublisher{}
		d := NewDispatcher(rec, pub)

		d.Dispatch(context.Background(), domain.CallbackOutcome{Kind: kind, CheckoutRequestID: "ws_CO_1"})

		if len(pub.events) != 0 {
			t.Errorf("%s: published %d events", kind, len(pub.events))
		}
		if len(rec.outcomes) != 1 || rec.outcomes[0].Kind != kind {
			t.Errorf("%s: audit = %+v", kind, rec.outcomes)
		}
	}
}

func TestDispatchSwallowsErrors(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("redis down")}
	pub := &fakePublisher{err: errors.New("broker down")}
	d := NewDispatcher(rec, pub)

	d.Dispatch(context.Background(), appliedOutcome(domain.StatusCompleted))

	if len(pub.events) != 1 {
		t.Fatalf("audit failure must not block publishing, got %d events", len(pub.events))
	}
}

func TestMultiPublisher(t *testing.T) {
	a := &fakePublisher{}
	b := &fakePublisher{err: errors.New("broker down")}
	m := MultiPublisher{a, b}

	err := m.Publish(context.Background(), domain.Event{Type: domain.EventPaymentFailed})
	if err == nil || len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("err=%v a=%d b=%d", err, len(a.events), len(b.events))
	}
	if err := m.Close(); err != nil || !a.closed || !b.closed {
		t.Fatalf("close: %v", err)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherMessage(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := domain.Event{
		ID:          "e-1",
		Type:        domain.EventPaymentCompleted,
		OccurredAt:  at,
		Transaction: domain.Transaction{CheckoutRequestID: "ws_CO_1", Status: domain.StatusCompleted},
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != TopicPaymentCompleted || string(msg.Key) != "ws_CO_1" || !msg.Time.Equal(at) {
		t.Errorf("message = %+v", msg)
	}

	var decoded domain.Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != "e-1" || decoded.Transaction.Status != domain.StatusCompleted {
		t.Errorf("decoded = %+v", decoded)
	}

	if TopicFor(domain.EventPaymentFailed) != TopicPaymentFailed {
		t.Error("failed events go to the failed topic")
	}
}

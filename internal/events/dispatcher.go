package events

import (
	"context"
	"log"
	"time"

	"mpesa_backend/internal/audit"
	"mpesa_backend/internal/domain"

	"github.com/google/uuid"
)

// Dispatcher observes callback outcomes. Every outcome is audited; an applied
// outcome also produces exactly one terminal-state event.
type Dispatcher struct {
	rec   audit.Recorder
	pub   Publisher
	newID func() string
	now   func() time.Time
}

func NewDispatcher(rec audit.Recorder, pub Publisher) *Dispatcher {
	if rec == nil {
		rec = audit.LogRecorder{}
	}
	if pub == nil {
		pub = LogPublisher{}
	}
	return &Dispatcher{
		rec:   rec,
		pub:   pub,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Dispatch never fails the caller. Audit and publish errors are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, out domain.CallbackOutcome) {
	if err := d.rec.Record(ctx, out); err != nil {
		log.Printf("callback audit failed: checkout_request_id=%s kind=%s err=%v", out.CheckoutRequestID, out.Kind, err)
	}

	ev, ok := d.EventFor(out)
	if !ok {
		return
	}
	if err := d.pub.Publish(ctx, ev); err != nil {
		log.Printf("publish %s failed: event_id=%s checkout_request_id=%s err=%v",
			ev.Type, ev.ID, out.CheckoutRequestID, err)
	}
}

// EventFor maps an outcome to its event. Only applied outcomes carrying the
// refreshed transaction produce one.
func (d *Dispatcher) EventFor(out domain.CallbackOutcome) (domain.Event, bool) {
	if out.Kind != domain.OutcomeApplied || out.Transaction == nil {
		return domain.Event{}, false
	}

	typ := domain.EventPaymentFailed
	if out.Transaction.Status == domain.StatusCompleted {
		typ = domain.EventPaymentCompleted
	}
	return domain.Event{
		ID:          d.newID(),
		Type:        typ,
		OccurredAt:  d.now().UTC(),
		Transaction: *out.Transaction,
	}, true
}

func (d *Dispatcher) Close() error { return d.pub.Close() }

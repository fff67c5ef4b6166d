package events

import (
	"context"
	"errors"
	"log"

	"mpesa_backend/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
	Close() error
}

// LogPublisher writes events to the process log. It is the default when no
// broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev domain.Event) error {
	log.Printf("event %s: id=%s checkout_request_id=%s status=%s",
		ev.Type, ev.ID, ev.Transaction.CheckoutRequestID, ev.Transaction.Status)
	return nil
}

func (LogPublisher) Close() error { return nil }

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

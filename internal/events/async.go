package events

import (
	"context"
	"log"
	"sync"
	"time"

	"mpesa_backend/internal/domain"
)

const (
	DefaultQueueSize       = 256
	DefaultDispatchTimeout = 30 * time.Second
)

// AsyncDispatcher runs a Dispatcher on its own goroutine so that auditing and
// publishing never hold up the acknowledgment sent to the gateway.
type AsyncDispatcher struct {
	d       *Dispatcher
	queue   chan domain.CallbackOutcome
	timeout time.Duration
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncDispatcher(d *Dispatcher, size int) *AsyncDispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &AsyncDispatcher{
		d:       d,
		queue:   make(chan domain.CallbackOutcome, size),
		timeout: DefaultDispatchTimeout,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncDispatcher) run() {
	defer close(a.done)
	for out := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		a.d.Dispatch(ctx, out)
		cancel()
	}
}

// Observe queues the outcome and returns at once. A full queue or a closed
// dispatcher drops the outcome with a log line.
func (a *AsyncDispatcher) Observe(out domain.CallbackOutcome) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		log.Printf("callback dispatcher closed, dropping outcome: checkout_request_id=%s kind=%s", out.CheckoutRequestID, out.Kind)
		return
	}
	select {
	case a.queue <- out:
	default:
		log.Printf("callback dispatch queue full, dropping outcome: checkout_request_id=%s kind=%s status=%s",
			out.CheckoutRequestID, out.Kind, out.Status)
	}
}

// Close stops accepting outcomes, drains the queue and closes the publisher.
func (a *AsyncDispatcher) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	<-a.done
	return a.d.Close()
}

// Package notify delivers engine notifications off the transition path: a
// bounded queue drained by workers, fanned out to every configured sink.
package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/example/stay-scheduler/internal/domain/notification"
)

const deliverTimeout = 10 * time.Second

// Dispatcher queues notifications and delivers them in the background.
// Send never blocks; when the queue is full, or Run has already returned,
// the notification is dropped.
type Dispatcher struct {
	queue   chan notification.Notification
	workers int
	sinks   []notification.Sink
	log     logrus.FieldLogger

	mu      sync.RWMutex
	stopped bool
	dropped atomic.Int64
}

func NewDispatcher(queueSize, workers int, log logrus.FieldLogger, sinks ...notification.Sink) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:   make(chan notification.Notification, queueSize),
		workers: workers,
		sinks:   sinks,
		log:     log,
	}
}

func (d *Dispatcher) Send(_ context.Context, n notification.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(n, "dispatcher stopped, dropping notification")
		return
	}
	select {
	case d.queue <- n:
	default:
		d.drop(n, "notification queue full, dropping notification")
	}
}

func (d *Dispatcher) drop(n notification.Notification, msg string) {
	d.dropped.Add(1)
	d.log.WithFields(logrus.Fields{
		"recipient_id":   n.RecipientID,
		"kind":           n.Kind,
		"reservation_id": n.ReservationID,
	}).Warn(msg)
}

// Dropped counts notifications refused because the queue was full or the
// dispatcher had stopped.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Run drains the queue until ctx ends, then stops accepting notifications
// and delivers whatever is still queued before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case n := <-d.queue:
					d.deliver(ctx, n)
				}
			}
		})
	}
	_ = g.Wait()

	// close intake, so the flush below sees everything that was accepted
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	flush, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	for {
		select {
		case n := <-d.queue:
			d.deliver(flush, n)
		default:
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n notification.Notification) {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, n); err != nil {
			d.log.WithFields(logrus.Fields{
				"sink":           fmt.Sprintf("%T", s),
				"recipient_id":   n.RecipientID,
				"kind":           n.Kind,
				"reservation_id": n.ReservationID,
			}).WithError(err).Error("notification delivery failed")
		}
	}
}

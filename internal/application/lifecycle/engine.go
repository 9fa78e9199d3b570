// Package lifecycle drives a reservation from request to completion: the
// status machine, overlap resolution among competing requests, deferred
// time-driven transitions and reconciliation after downtime.
//
// Every transition runs under a lock keyed by the reservation's
// accommodation, so manual actions, deferred tasks and the overlap pass for
// the same accommodation never interleave their read-guard-write steps.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/stay-scheduler/internal/clock"
	"github.com/example/stay-scheduler/internal/domain/account"
	"github.com/example/stay-scheduler/internal/domain/notification"
	"github.com/example/stay-scheduler/internal/domain/reservation"
	"github.com/example/stay-scheduler/internal/scheduler"
)

// Scheduler registers deferred callbacks.
type Scheduler interface {
	Schedule(at time.Time, name string, fn scheduler.Task) scheduler.Handle
	Cancel(h scheduler.Handle) bool
}

// Locker provides mutual exclusion per key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Notifier hands a notification off for delivery without waiting for it.
type Notifier interface {
	Send(ctx context.Context, n notification.Notification)
}

type Deps struct {
	Store          reservation.Store
	Accommodations reservation.Accommodations
	Accounts       account.Directory
	Notifier       Notifier
	Scheduler      Scheduler

	// Optional.
	Locker Locker
	Clock  clock.Clock
	Logger logrus.FieldLogger
	NewID  func() string
}

type Engine struct {
	store          reservation.Store
	accommodations reservation.Accommodations
	accounts       account.Directory
	notifier       Notifier
	scheduler      Scheduler
	locks          Locker
	clock          clock.Clock
	log            logrus.FieldLogger
	tracer         trace.Tracer
	validate       *validator.Validate
	newID          func() string

	tasksMu sync.Mutex
	tasks   map[string]*stayTasks
}

// stayTasks are the deferred tasks currently registered for a reservation.
type stayTasks struct {
	autoDeny scheduler.Handle
	activate scheduler.Handle
	complete scheduler.Handle
}

func New(d Deps) (*Engine, error) {
	switch {
	case d.Store == nil:
		return nil, fmt.Errorf("lifecycle: store is nil")
	case d.Accommodations == nil:
		return nil, fmt.Errorf("lifecycle: accommodations is nil")
	case d.Accounts == nil:
		return nil, fmt.Errorf("lifecycle: account directory is nil")
	case d.Notifier == nil:
		return nil, fmt.Errorf("lifecycle: notifier is nil")
	case d.Scheduler == nil:
		return nil, fmt.Errorf("lifecycle: scheduler is nil")
	}
	e := &Engine{
		store:          d.Store,
		accommodations: d.Accommodations,
		accounts:       d.Accounts,
		notifier:       d.Notifier,
		scheduler:      d.Scheduler,
		locks:          d.Locker,
		clock:          d.Clock,
		log:            d.Logger,
		newID:          d.NewID,
		tracer:         otel.Tracer("github.com/example/stay-scheduler/lifecycle"),
		validate:       validator.New(),
		tasks:          make(map[string]*stayTasks),
	}
	if e.locks == nil {
		e.locks = NewKeyedMutex()
	}
	if e.clock == nil {
		e.clock = clock.System{}
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.NewString() }
	}
	return e, nil
}

func (e *Engine) today() time.Time {
	return reservation.Day(e.clock.Now())
}

func (e *Engine) withAccommodation(ctx context.Context, accommodationID string, fn func(ctx context.Context) error) error {
	unlock, err := e.locks.Lock(ctx, "accommodation:"+accommodationID)
	if err != nil {
		return fmt.Errorf("lock accommodation %s: %w", accommodationID, err)
	}
	defer unlock()
	return fn(ctx)
}

// withReservation loads the reservation, locks its accommodation and hands
// fn a copy re-read under the lock.
func (e *Engine) withReservation(ctx context.Context, id string, fn func(ctx context.Context, r reservation.Reservation) error) error {
	r, err := e.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get reservation %s: %w", id, err)
	}
	return e.withAccommodation(ctx, r.AccommodationID, func(ctx context.Context) error {
		cur, err := e.store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get reservation %s: %w", id, err)
		}
		return fn(ctx, cur)
	})
}

// setStatus persists a legal transition. Callers hold the accommodation lock.
// The write only applies while the stored status is still the one r carries.
func (e *Engine) setStatus(ctx context.Context, r *reservation.Reservation, to reservation.Status) error {
	from := r.Status
	if !reservation.CanTransition(from, to) {
		return &reservation.TransitionError{ID: r.ID, From: from, Action: "move to " + string(to)}
	}
	r.Status = to
	if err := e.store.UpdateStatus(ctx, *r, from); err != nil {
		r.Status = from
		return fmt.Errorf("save reservation %s: %w", r.ID, err)
	}
	e.log.WithFields(logrus.Fields{
		"reservation_id":   r.ID,
		"accommodation_id": r.AccommodationID,
		"from":             from,
		"to":               to,
	}).Info("reservation status changed")
	return nil
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "lifecycle."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package lifecycle

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/example/stay-scheduler/internal/domain/reservation"
	"github.com/example/stay-scheduler/internal/scheduler"
)

type taskKind int

const (
	taskAutoDeny taskKind = iota
	taskActivate
	taskComplete
)

func (k taskKind) String() string {
	switch k {
	case taskAutoDeny:
		return "auto-deny"
	case taskActivate:
		return "activate"
	default:
		return "complete"
	}
}

func (t *stayTasks) slot(k taskKind) *scheduler.Handle {
	switch k {
	case taskAutoDeny:
		return &t.autoDeny
	case taskActivate:
		return &t.activate
	default:
		return &t.complete
	}
}

// scheduleAutoDeny arms the task that denies r if it is still Pending when
// the stay starts.
func (e *Engine) scheduleAutoDeny(r reservation.Reservation) {
	e.arm(r, taskAutoDeny, e.ExpirePending)
	e.log.WithFields(logrus.Fields{
		"reservation_id": r.ID,
		"at":             r.ActivationAt().Format(dateLayout),
	}).Debug("scheduled auto-deny")
}

// scheduleStay arms the activation and completion tasks still ahead of r.
func (e *Engine) scheduleStay(r reservation.Reservation) {
	switch r.Status {
	case reservation.StatusApproved:
		e.arm(r, taskActivate, e.Activate)
		e.arm(r, taskComplete, e.Complete)
	case reservation.StatusActive:
		e.arm(r, taskComplete, e.Complete)
	}
}

// arm registers a deferred task unless one of the same kind is already
// registered for the reservation.
func (e *Engine) arm(r reservation.Reservation, kind taskKind, body func(ctx context.Context, id string) error) {
	at := r.ActivationAt()
	if kind == taskComplete {
		at = r.CompletionAt()
	}

	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()
	ts, ok := e.tasks[r.ID]
	if !ok {
		ts = &stayTasks{}
		e.tasks[r.ID] = ts
	}
	slot := ts.slot(kind)
	if *slot != 0 {
		return
	}

	id := r.ID
	ref := new(scheduler.Handle)
	*ref = e.scheduler.Schedule(at, kind.String()+" "+id, func(ctx context.Context) {
		e.forget(id, kind, ref)
		e.runDeferred(ctx, kind, id, body)
	})
	*slot = *ref
}

// forget clears a handle once its task has fired. ref is written under
// tasksMu, so it is only read under it.
func (e *Engine) forget(id string, kind taskKind, ref *scheduler.Handle) {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()
	ts, ok := e.tasks[id]
	if !ok {
		return
	}
	if slot := ts.slot(kind); *slot == *ref {
		*slot = 0
	}
	if *ts == (stayTasks{}) {
		delete(e.tasks, id)
	}
}

// cancelTasks withdraws registered tasks of the given kinds.
func (e *Engine) cancelTasks(id string, kinds ...taskKind) {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()
	ts, ok := e.tasks[id]
	if !ok {
		return
	}
	for _, k := range kinds {
		slot := ts.slot(k)
		if *slot != 0 {
			e.scheduler.Cancel(*slot)
			*slot = 0
		}
	}
	if *ts == (stayTasks{}) {
		delete(e.tasks, id)
	}
}

func (e *Engine) cancelAllTasks(id string) {
	e.cancelTasks(id, taskAutoDeny, taskActivate, taskComplete)
}

// runDeferred executes a task body. Guard failures are silent; a missing
// reservation means it was deleted in the meantime, and a status changed
// under the write means another writer got there first.
func (e *Engine) runDeferred(ctx context.Context, kind taskKind, id string, body func(ctx context.Context, id string) error) {
	ctx, span := e.startSpan(ctx, "deferred."+kind.String())
	err := body(ctx, id)
	endSpan(span, err)

	fields := logrus.Fields{"reservation_id": id, "task": kind.String()}
	switch {
	case err == nil:
	case errors.Is(err, reservation.ErrNotFound):
		e.log.WithFields(fields).Debug("deferred task target no longer exists")
	case errors.Is(err, reservation.ErrStatusChanged):
		e.log.WithFields(fields).Debug("deferred task lost a race with another transition")
	default:
		e.log.WithFields(fields).WithError(err).Error("deferred task failed")
	}
}

// pendingTasks reports how many deferred tasks are registered for id.
func (e *Engine) pendingTasks(id string) int {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()
	ts, ok := e.tasks[id]
	if !ok {
		return 0
	}
	n := 0
	for _, h := range []scheduler.Handle{ts.autoDeny, ts.activate, ts.complete} {
		if h != 0 {
			n++
		}
	}
	return n
}

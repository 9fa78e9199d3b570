package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/stay-scheduler/internal/domain/reservation"
)

// Reconcile re-derives the status of every open reservation from the
// current date and re-arms the deferred tasks still ahead of it. It makes up
// for tasks that could not fire while the process was down, and for
// reservations changed by another process. It returns how many reservations
// changed status.
func (e *Engine) Reconcile(ctx context.Context) (changed int, err error) {
	ctx, span := e.startSpan(ctx, "Reconcile")
	defer func() { endSpan(span, err) }()

	open, err := e.store.ListByStatus(ctx, reservation.OpenStatuses...)
	if err != nil {
		return 0, fmt.Errorf("list open reservations: %w", err)
	}

	var errs []error
	for _, r := range open {
		id := r.ID
		err := e.withAccommodation(ctx, r.AccommodationID, func(ctx context.Context) error {
			cur, err := e.store.Get(ctx, id)
			if errors.Is(err, reservation.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("get reservation %s: %w", id, err)
			}
			if to := reconcileTarget(cur, e.clock.Now()); to != cur.Status {
				err := e.setStatus(ctx, &cur, to)
				if errors.Is(err, reservation.ErrStatusChanged) {
					return nil
				}
				if err != nil {
					return err
				}
				changed++
			}
			e.rearm(cur)
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	e.log.WithFields(logrus.Fields{"scanned": len(open), "changed": changed}).Info("reconciliation finished")
	return changed, errors.Join(errs...)
}

// reconcileTarget is the status r must have at instant now.
func reconcileTarget(r reservation.Reservation, now time.Time) reservation.Status {
	if r.Status.Terminal() {
		return r.Status
	}
	if !now.Before(r.CompletionAt()) {
		return reservation.StatusDone
	}
	if !now.Before(r.ActivationAt()) {
		switch r.Status {
		case reservation.StatusApproved:
			return reservation.StatusActive
		case reservation.StatusPending:
			return reservation.StatusDenied
		}
	}
	return r.Status
}

func (e *Engine) rearm(r reservation.Reservation) {
	switch r.Status {
	case reservation.StatusPending:
		e.scheduleAutoDeny(r)
	case reservation.StatusApproved, reservation.StatusActive:
		e.scheduleStay(r)
	default:
		e.cancelAllTasks(r.ID)
	}
}

// RunReconciler reconciles once immediately and then on every interval
// until ctx ends.
func (e *Engine) RunReconciler(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	e.reconcileLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			e.reconcileLogged(ctx)
		}
	}
}

func (e *Engine) reconcileLogged(ctx context.Context) {
	if _, err := e.Reconcile(ctx); err != nil {
		e.log.WithError(err).Error("reconciliation failed")
	}
}

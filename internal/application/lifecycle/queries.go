package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/stay-scheduler/internal/domain/reservation"
)

func (e *Engine) Get(ctx context.Context, id string) (reservation.Reservation, error) {
	r, err := e.store.Get(ctx, id)
	if err != nil {
		return reservation.Reservation{}, fmt.Errorf("get reservation %s: %w", id, err)
	}
	return r, nil
}

func (e *Engine) ListByGuest(ctx context.Context, guestID string) ([]reservation.Reservation, error) {
	return e.store.ListByGuest(ctx, guestID)
}

func (e *Engine) ListByHost(ctx context.Context, hostID string) ([]reservation.Reservation, error) {
	return e.store.ListByHost(ctx, hostID)
}

// RequestsByHost lists the requests still waiting for the host's decision.
func (e *Engine) RequestsByHost(ctx context.Context, hostID string) ([]reservation.Reservation, error) {
	all, err := e.store.ListByHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	return filter(all, func(s reservation.Status) bool { return s == reservation.StatusPending }), nil
}

// RequestsByGuest lists the guest's requests that are waiting or approved
// but not started yet.
func (e *Engine) RequestsByGuest(ctx context.Context, guestID string) ([]reservation.Reservation, error) {
	all, err := e.store.ListByGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	return filter(all, func(s reservation.Status) bool {
		return s == reservation.StatusPending || s == reservation.StatusApproved
	}), nil
}

func (e *Engine) DecidedByHost(ctx context.Context, hostID string) ([]reservation.Reservation, error) {
	all, err := e.store.ListByHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	return filter(all, func(s reservation.Status) bool {
		switch s {
		case reservation.StatusPending, reservation.StatusCancelled, reservation.StatusDenied:
			return false
		}
		return true
	}), nil
}

func (e *Engine) DecidedByGuest(ctx context.Context, guestID string) ([]reservation.Reservation, error) {
	all, err := e.store.ListByGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	return filter(all, func(s reservation.Status) bool { return s != reservation.StatusPending }), nil
}

func (e *Engine) HasActiveReservations(ctx context.Context, guestID string) (bool, error) {
	all, err := e.store.ListByGuest(ctx, guestID)
	if err != nil {
		return false, err
	}
	return anyActive(all), nil
}

func (e *Engine) HasHostActiveReservations(ctx context.Context, hostID string) (bool, error) {
	all, err := e.store.ListByHost(ctx, hostID)
	if err != nil {
		return false, err
	}
	return anyActive(all), nil
}

// OverlapsActive reports whether a stay is in progress at the accommodation
// somewhere within [start, end).
func (e *Engine) OverlapsActive(ctx context.Context, accommodationID string, start, end time.Time) (bool, error) {
	iv := reservation.Interval{Start: reservation.Day(start), End: reservation.Day(end)}
	if iv.Start.After(iv.End) {
		return false, reservation.ErrInvalidInterval
	}
	active, err := e.store.ListByAccommodation(ctx, accommodationID, reservation.StatusActive)
	if err != nil {
		return false, err
	}
	for _, r := range active {
		if r.Interval().Overlaps(iv) {
			return true, nil
		}
	}
	return false, nil
}

// CancellationDeadline returns the last day an approved stay may still be
// cancelled.
func (e *Engine) CancellationDeadline(ctx context.Context, id string) (time.Time, error) {
	r, err := e.Get(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return r.CancellationDeadline(), nil
}

// DeleteRequest removes a request that was never decided.
func (e *Engine) DeleteRequest(ctx context.Context, id string) (err error) {
	ctx, span := e.startSpan(ctx, "DeleteRequest", attribute.String("reservation.id", id))
	defer func() { endSpan(span, err) }()

	return e.withReservation(ctx, id, func(ctx context.Context, r reservation.Reservation) error {
		if r.Status != reservation.StatusPending {
			return &reservation.TransitionError{ID: r.ID, From: r.Status, Action: "delete"}
		}
		if err := e.store.Delete(ctx, r.ID); err != nil {
			return fmt.Errorf("delete reservation %s: %w", r.ID, err)
		}
		e.cancelAllTasks(r.ID)
		e.log.WithField("reservation_id", r.ID).Info("reservation request deleted")
		return nil
	})
}

// DeleteGuestReservations removes every reservation of a guest that has no
// stay in progress, releasing the dates held by approved stays. The work is
// done per accommodation under its lock; each accommodation's share is
// deleted completely or not at all, and shares finished before a failure
// stay deleted.
func (e *Engine) DeleteGuestReservations(ctx context.Context, guestID string) (n int, err error) {
	ctx, span := e.startSpan(ctx, "DeleteGuestReservations", attribute.String("guest.id", guestID))
	defer func() { endSpan(span, err) }()

	all, err := e.store.ListByGuest(ctx, guestID)
	if err != nil {
		return 0, err
	}
	if anyActive(all) {
		return 0, fmt.Errorf("guest %s: %w", guestID, reservation.ErrHasBlockingReservations)
	}

	byAccommodation := make(map[string][]string)
	for _, r := range all {
		byAccommodation[r.AccommodationID] = append(byAccommodation[r.AccommodationID], r.ID)
	}
	accommodationIDs := make([]string, 0, len(byAccommodation))
	for id := range byAccommodation {
		accommodationIDs = append(accommodationIDs, id)
	}
	sort.Strings(accommodationIDs)

	log := e.log.WithField("guest_id", guestID)
	for _, accommodationID := range accommodationIDs {
		ids := byAccommodation[accommodationID]
		err := e.withAccommodation(ctx, accommodationID, func(ctx context.Context) error {
			deleted, err := e.deleteStays(ctx, ids)
			n += deleted
			return err
		})
		if err != nil {
			log.WithField("deleted", n).WithError(err).Error("guest reservations partially deleted")
			return n, fmt.Errorf("delete reservations of guest %s: %w", guestID, err)
		}
	}
	log.WithField("deleted", n).Info("guest reservations deleted")
	return n, nil
}

// deleteStays deletes reservations of one accommodation. Callers hold its
// lock. On failure the store and the ledger are left as they were.
func (e *Engine) deleteStays(ctx context.Context, ids []string) (int, error) {
	stays := make([]reservation.Reservation, 0, len(ids))
	for _, id := range ids {
		cur, err := e.store.Get(ctx, id)
		if errors.Is(err, reservation.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("get reservation %s: %w", id, err)
		}
		if cur.Status == reservation.StatusActive {
			return 0, fmt.Errorf("reservation %s: %w", cur.ID, reservation.ErrHasBlockingReservations)
		}
		stays = append(stays, cur)
	}

	var restored []reservation.Reservation
	undo := func() {
		ctx := context.WithoutCancel(ctx)
		for _, r := range restored {
			iv := r.Interval()
			if err := e.accommodations.Reserve(ctx, r.AccommodationID, r.ID, iv.Start, iv.End); err != nil {
				e.log.WithField("reservation_id", r.ID).WithError(err).Error("re-reserve after failed deletion")
			}
		}
	}

	stayIDs := make([]string, 0, len(stays))
	for _, r := range stays {
		stayIDs = append(stayIDs, r.ID)
		if r.Status != reservation.StatusApproved {
			continue
		}
		iv := r.Interval()
		if err := e.accommodations.Restore(ctx, r.AccommodationID, r.ID, iv.Start, iv.End); err != nil {
			undo()
			return 0, fmt.Errorf("restore %s for reservation %s: %w", r.AccommodationID, r.ID, err)
		}
		restored = append(restored, r)
	}
	if err := e.store.DeleteMany(ctx, stayIDs); err != nil {
		undo()
		return 0, fmt.Errorf("delete reservations: %w", err)
	}
	for _, id := range stayIDs {
		e.cancelAllTasks(id)
	}
	return len(stayIDs), nil
}

func filter(rs []reservation.Reservation, keep func(reservation.Status) bool) []reservation.Reservation {
	out := make([]reservation.Reservation, 0, len(rs))
	for _, r := range rs {
		if keep(r.Status) {
			out = append(out, r)
		}
	}
	return out
}

func anyActive(rs []reservation.Reservation) bool {
	for _, r := range rs {
		if r.Status == reservation.StatusActive {
			return true
		}
	}
	return false
}

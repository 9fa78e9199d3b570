package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/stay-scheduler/internal/domain/notification"
	"github.com/example/stay-scheduler/internal/domain/reservation"
)

// Submit records a new reservation request. Requests for an auto-approving
// accommodation are approved on the spot; all others stay Pending and are
// denied automatically if nobody decides before the stay starts.
func (e *Engine) Submit(ctx context.Context, req reservation.SubmitRequest) (out reservation.Reservation, err error) {
	ctx, span := e.startSpan(ctx, "Submit",
		attribute.String("accommodation.id", req.AccommodationID),
		attribute.String("guest.id", req.GuestID))
	defer func() { endSpan(span, err) }()

	if req.DurationDays < 1 {
		return reservation.Reservation{}, reservation.ErrInvalidInterval
	}
	iv, err := reservation.NewInterval(req.StartDate, req.DurationDays)
	if err != nil {
		return reservation.Reservation{}, err
	}
	if err := e.validate.Struct(req); err != nil {
		return reservation.Reservation{}, fmt.Errorf("invalid reservation request: %w", err)
	}

	policy, err := e.accommodations.Policy(ctx, req.AccommodationID)
	if err != nil {
		return reservation.Reservation{}, fmt.Errorf("accommodation %s policy: %w", req.AccommodationID, err)
	}

	err = e.withAccommodation(ctx, req.AccommodationID, func(ctx context.Context) error {
		exists, err := e.store.ExistsSameRequest(ctx, req.AccommodationID, req.GuestID, iv.Start)
		if err != nil {
			return fmt.Errorf("check duplicate request: %w", err)
		}
		if exists {
			return reservation.ErrDuplicateRequest
		}

		hostID := req.HostID
		if hostID == "" {
			hostID = policy.HostID
		}
		r := reservation.Reservation{
			ID:              e.newID(),
			AccommodationID: req.AccommodationID,
			GuestID:         req.GuestID,
			HostID:          hostID,
			StartDate:       iv.Start,
			DurationDays:    req.DurationDays,
			DateCreated:     e.today(),
			Price:           req.Price,
			Status:          reservation.StatusPending,
		}
		if err := e.store.Put(ctx, r); err != nil {
			return fmt.Errorf("save reservation: %w", err)
		}
		e.log.WithFields(logrus.Fields{
			"reservation_id":   r.ID,
			"accommodation_id": r.AccommodationID,
			"guest_id":         r.GuestID,
			"start":            r.StartDate.Format(dateLayout),
			"days":             r.DurationDays,
		}).Info("reservation requested")

		e.notifyNewRequest(ctx, r)

		if !policy.AutoApprove {
			e.scheduleAutoDeny(r)
			out = r
			return nil
		}
		// The request is already stored and the host notified, so a failed
		// approval leaves it Pending for the host to decide.
		if err := e.approve(ctx, &r, policy); err != nil {
			entry := e.log.WithFields(logrus.Fields{
				"reservation_id":   r.ID,
				"accommodation_id": r.AccommodationID,
			}).WithError(err)
			if errors.Is(err, reservation.ErrUnavailable) {
				entry.Warn("auto-approval failed, request left pending")
			} else {
				entry.Error("auto-approval failed, request left pending")
			}
			e.scheduleAutoDeny(r)
		}
		out = r
		return nil
	})
	if err != nil {
		return reservation.Reservation{}, err
	}
	return out, nil
}

// Accept approves a Pending request.
func (e *Engine) Accept(ctx context.Context, id string) (out reservation.Reservation, err error) {
	ctx, span := e.startSpan(ctx, "Accept", attribute.String("reservation.id", id))
	defer func() { endSpan(span, err) }()

	err = e.withReservation(ctx, id, func(ctx context.Context, r reservation.Reservation) error {
		if r.Status != reservation.StatusPending {
			return &reservation.TransitionError{ID: r.ID, From: r.Status, Action: "accept"}
		}
		policy, err := e.accommodations.Policy(ctx, r.AccommodationID)
		if err != nil {
			return fmt.Errorf("accommodation %s policy: %w", r.AccommodationID, err)
		}
		if err := e.approve(ctx, &r, policy); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// approve reserves the interval, applies the immediate disposition, arms the
// stay tasks still ahead and denies competing requests. Callers hold the
// accommodation lock and pass a Pending reservation.
func (e *Engine) approve(ctx context.Context, r *reservation.Reservation, policy reservation.Policy) error {
	iv := r.Interval()
	if err := e.accommodations.Reserve(ctx, r.AccommodationID, r.ID, iv.Start, iv.End); err != nil {
		return fmt.Errorf("reserve %s for reservation %s: %w", r.AccommodationID, r.ID, err)
	}

	prevDeadline := r.CancellationDeadlineDays
	r.CancellationDeadlineDays = policy.CancellationDeadlineDays
	if err := e.setStatus(ctx, r, r.Disposition(e.clock.Now())); err != nil {
		r.CancellationDeadlineDays = prevDeadline
		if rerr := e.accommodations.Restore(ctx, r.AccommodationID, r.ID, iv.Start, iv.End); rerr != nil {
			e.log.WithField("reservation_id", r.ID).WithError(rerr).Error("restore after failed approval")
		}
		return err
	}

	e.cancelTasks(r.ID, taskAutoDeny)
	e.scheduleStay(*r)

	if n, err := e.denyOverlapping(ctx, iv, r.AccommodationID); err != nil {
		e.log.WithFields(logrus.Fields{
			"reservation_id":   r.ID,
			"accommodation_id": r.AccommodationID,
			"denied":           n,
		}).WithError(err).Error("overlap resolution incomplete")
	}

	e.notifyResponse(ctx, *r, "approved")
	return nil
}

// Deny rejects a Pending request.
func (e *Engine) Deny(ctx context.Context, id string) (out reservation.Reservation, err error) {
	ctx, span := e.startSpan(ctx, "Deny", attribute.String("reservation.id", id))
	defer func() { endSpan(span, err) }()

	err = e.withReservation(ctx, id, func(ctx context.Context, r reservation.Reservation) error {
		if r.Status != reservation.StatusPending {
			return &reservation.TransitionError{ID: r.ID, From: r.Status, Action: "deny"}
		}
		if err := e.setStatus(ctx, &r, reservation.StatusDenied); err != nil {
			return err
		}
		e.cancelTasks(r.ID, taskAutoDeny)
		e.notifyResponse(ctx, r, "denied")
		out = r
		return nil
	})
	return out, err
}

// Cancel withdraws a Pending request unconditionally, or an Approved stay
// while its cancellation window is open.
func (e *Engine) Cancel(ctx context.Context, id string) (out reservation.Reservation, err error) {
	ctx, span := e.startSpan(ctx, "Cancel", attribute.String("reservation.id", id))
	defer func() { endSpan(span, err) }()

	err = e.withReservation(ctx, id, func(ctx context.Context, r reservation.Reservation) error {
		switch r.Status {
		case reservation.StatusPending:
			if err := e.setStatus(ctx, &r, reservation.StatusCancelled); err != nil {
				return err
			}
			e.cancelTasks(r.ID, taskAutoDeny)

		case reservation.StatusApproved:
			if r.CancellationDeadline().Before(e.today()) {
				return fmt.Errorf("reservation %s: %w", r.ID, reservation.ErrCancellationWindowExpired)
			}
			iv := r.Interval()
			if err := e.accommodations.Restore(ctx, r.AccommodationID, r.ID, iv.Start, iv.End); err != nil {
				return fmt.Errorf("restore %s for reservation %s: %w", r.AccommodationID, r.ID, err)
			}
			if err := e.setStatus(ctx, &r, reservation.StatusCancelled); err != nil {
				if rerr := e.accommodations.Reserve(ctx, r.AccommodationID, r.ID, iv.Start, iv.End); rerr != nil {
					e.log.WithField("reservation_id", r.ID).WithError(rerr).Error("re-reserve after failed cancellation")
				}
				return err
			}
			e.cancelTasks(r.ID, taskActivate, taskComplete)
			if err := e.accounts.IncrementCancellations(ctx, r.GuestID); err != nil {
				e.log.WithField("guest_id", r.GuestID).WithError(err).Error("increment cancellation counter")
			}

		default:
			return &reservation.TransitionError{ID: r.ID, From: r.Status, Action: "cancel"}
		}

		e.notifyCancellation(ctx, r)
		out = r
		return nil
	})
	return out, err
}

// ExpirePending denies a request that is still Pending. It is the auto-deny
// task body and a no-op for any other status.
func (e *Engine) ExpirePending(ctx context.Context, id string) error {
	return e.withReservation(ctx, id, func(ctx context.Context, r reservation.Reservation) error {
		if r.Status != reservation.StatusPending {
			return nil
		}
		return e.setStatus(ctx, &r, reservation.StatusDenied)
	})
}

// Activate starts an Approved stay, or completes it when the stay is already
// over. Any other status is left alone.
func (e *Engine) Activate(ctx context.Context, id string) error {
	return e.withReservation(ctx, id, func(ctx context.Context, r reservation.Reservation) error {
		if r.Status != reservation.StatusApproved {
			return nil
		}
		if !e.clock.Now().Before(r.CompletionAt()) {
			return e.setStatus(ctx, &r, reservation.StatusDone)
		}
		return e.setStatus(ctx, &r, reservation.StatusActive)
	})
}

// Complete finishes an Active stay. Any other status is left alone.
func (e *Engine) Complete(ctx context.Context, id string) error {
	return e.withReservation(ctx, id, func(ctx context.Context, r reservation.Reservation) error {
		if r.Status != reservation.StatusActive {
			return nil
		}
		return e.setStatus(ctx, &r, reservation.StatusDone)
	})
}

func (e *Engine) notifyNewRequest(ctx context.Context, r reservation.Reservation) {
	text := fmt.Sprintf("Guest %s has created reservation request for your accommodation!", e.displayName(ctx, r.GuestID))
	e.notify(ctx, r.HostID, notification.KindRequestCreated, r, text)
}

func (e *Engine) notifyResponse(ctx context.Context, r reservation.Reservation, verdict string) {
	text := fmt.Sprintf("Host %s has %s your reservation request!", e.displayName(ctx, r.HostID), verdict)
	e.notify(ctx, r.GuestID, notification.KindRequestResponse, r, text)
}

func (e *Engine) notifyCancellation(ctx context.Context, r reservation.Reservation) {
	text := fmt.Sprintf("Guest %s has cancelled reservation request for your accommodation!", e.displayName(ctx, r.GuestID))
	e.notify(ctx, r.HostID, notification.KindCancellation, r, text)
}

// notify is best effort: lookup failures are logged and never undo the
// transition that triggered it.
func (e *Engine) notify(ctx context.Context, recipientID string, kind notification.Kind, r reservation.Reservation, text string) {
	if recipientID == "" {
		return
	}
	ok, err := e.accounts.HasNotificationPreference(ctx, recipientID, kind)
	if err != nil {
		e.log.WithFields(logrus.Fields{"recipient_id": recipientID, "kind": kind}).WithError(err).Warn("notification preference lookup failed")
		return
	}
	if !ok {
		return
	}
	e.notifier.Send(ctx, notification.Notification{
		RecipientID:   recipientID,
		Kind:          kind,
		ReservationID: r.ID,
		Text:          text,
		CreatedAt:     e.clock.Now(),
	})
}

func (e *Engine) displayName(ctx context.Context, accountID string) string {
	a, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return accountID
	}
	return a.DisplayName()
}

const dateLayout = "2006-01-02"

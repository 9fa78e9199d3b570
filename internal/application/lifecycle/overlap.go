package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/stay-scheduler/internal/domain/reservation"
)

// DenyOverlapping denies every Pending request of the accommodation whose
// stay intersects iv. Nobody is notified. It returns how many requests were
// denied.
func (e *Engine) DenyOverlapping(ctx context.Context, iv reservation.Interval, accommodationID string) (n int, err error) {
	if err := iv.Validate(); err != nil {
		return 0, err
	}
	err = e.withAccommodation(ctx, accommodationID, func(ctx context.Context) error {
		var err error
		n, err = e.denyOverlapping(ctx, iv, accommodationID)
		return err
	})
	return n, err
}

// denyOverlapping runs under the accommodation lock, right after the
// approved interval was reserved.
func (e *Engine) denyOverlapping(ctx context.Context, iv reservation.Interval, accommodationID string) (n int, err error) {
	ctx, span := e.startSpan(ctx, "DenyOverlapping", attribute.String("accommodation.id", accommodationID))
	defer func() { endSpan(span, err) }()

	pending, err := e.store.ListByAccommodation(ctx, accommodationID, reservation.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("list pending requests of %s: %w", accommodationID, err)
	}
	for _, r := range pending {
		if !iv.Overlaps(r.Interval()) {
			continue
		}
		err := e.setStatus(ctx, &r, reservation.StatusDenied)
		if errors.Is(err, reservation.ErrStatusChanged) {
			continue
		}
		if err != nil {
			return n, err
		}
		e.cancelTasks(r.ID, taskAutoDeny)
		n++
	}
	span.SetAttributes(attribute.Int("denied", n))
	return n, nil
}

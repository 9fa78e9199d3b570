package reservation

import (
	"errors"
	"fmt"

	"github.com/example/stay-scheduler/internal/internaltypes"
)

var (
	ErrNotFound                  = internaltypes.ErrNotFound
	ErrDuplicateRequest          = errors.New("reservation already exists for these dates for this accommodation")
	ErrInvalidInterval           = errors.New("start date must be before end date")
	ErrInvalidStateTransition    = errors.New("invalid state transition")
	ErrCancellationWindowExpired = errors.New("cancellation deadline is expired")
	ErrHasBlockingReservations   = errors.New("account has active reservations")
	ErrUnavailable               = fmt.Errorf("dates already reserved: %w", internaltypes.ErrConflict)

	// ErrStatusChanged is returned by a conditional status write that found
	// another status stored than the one it read.
	ErrStatusChanged = fmt.Errorf("reservation status changed by another writer: %w", ErrInvalidStateTransition)
)

// TransitionError reports an action attempted from the wrong status.
type TransitionError struct {
	ID     string
	From   Status
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s reservation %s in status %s", e.Action, e.ID, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

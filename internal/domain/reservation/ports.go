package reservation

import (
	"context"
	"time"
)

// Store is durable keyed storage of reservations.
type Store interface {
	Get(ctx context.Context, id string) (Reservation, error)
	Put(ctx context.Context, r Reservation) error
	// UpdateStatus writes r only while the stored status is still from, and
	// fails with ErrStatusChanged otherwise.
	UpdateStatus(ctx context.Context, r Reservation, from Status) error
	ListByAccommodation(ctx context.Context, accommodationID string, statuses ...Status) ([]Reservation, error)
	ListByGuest(ctx context.Context, guestID string) ([]Reservation, error)
	ListByHost(ctx context.Context, hostID string) ([]Reservation, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]Reservation, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
	ExistsSameRequest(ctx context.Context, accommodationID, guestID string, startDate time.Time) (bool, error)
}

// Accommodations exposes the booking policy and the timeslot ledger of the
// accommodation catalog. Reserve and Restore are attributed to a single
// reservation; Restore undoes exactly what Reserve took.
type Accommodations interface {
	Policy(ctx context.Context, accommodationID string) (Policy, error)
	Reserve(ctx context.Context, accommodationID, reservationID string, start, end time.Time) error
	Restore(ctx context.Context, accommodationID, reservationID string, start, end time.Time) error
}

package reservation

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusActive    Status = "Active"
	StatusDenied    Status = "Denied"
	StatusCancelled Status = "Cancelled"
	StatusDone      Status = "Done"
)

// OpenStatuses are the statuses a reservation can still leave.
var OpenStatuses = []Status{StatusPending, StatusApproved, StatusActive}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusActive, StatusDenied, StatusCancelled, StatusDone:
		return st, nil
	}
	return "", fmt.Errorf("unknown reservation status %q", s)
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDenied || s == StatusCancelled || s == StatusDone
}

// transitions lists every legal edge. Pending -> Active and Pending -> Done
// let an approval apply the immediate disposition in a single write when the
// stay has already started or ended. Reconciliation also takes Pending -> Done
// when a request outlived its whole stay.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusActive, StatusDone, StatusDenied, StatusCancelled},
	StatusApproved: {StatusActive, StatusDone, StatusCancelled},
	StatusActive:   {StatusDone},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Reservation struct {
	ID              string
	AccommodationID string
	GuestID         string
	HostID          string

	// StartDate and DateCreated are UTC calendar days.
	StartDate    time.Time
	DurationDays int
	DateCreated  time.Time

	Price  float64
	Status Status

	// Snapshot of the accommodation policy taken when the stay was approved.
	CancellationDeadlineDays int
}

func (r Reservation) EndDate() time.Time {
	return r.StartDate.AddDate(0, 0, r.DurationDays)
}

func (r Reservation) Interval() Interval {
	return Interval{Start: r.StartDate, End: r.EndDate()}
}

// ActivationAt is the instant the stay begins (start of the first day, UTC).
func (r Reservation) ActivationAt() time.Time { return r.StartDate }

// CompletionAt is the instant the stay is over (start of the end day, UTC).
func (r Reservation) CompletionAt() time.Time { return r.EndDate() }

// CancellationDeadline is counted from the day the request was made, not
// from the start of the stay.
func (r Reservation) CancellationDeadline() time.Time {
	return r.DateCreated.AddDate(0, 0, r.CancellationDeadlineDays)
}

// Disposition is the status an approved stay has at instant now.
func (r Reservation) Disposition(now time.Time) Status {
	switch {
	case !now.Before(r.CompletionAt()):
		return StatusDone
	case !now.Before(r.ActivationAt()):
		return StatusActive
	default:
		return StatusApproved
	}
}

type SubmitRequest struct {
	AccommodationID string    `validate:"required"`
	GuestID         string    `validate:"required"`
	HostID          string    // defaults to the accommodation's host
	StartDate       time.Time `validate:"required"`
	DurationDays    int       `validate:"gte=1"`
	Price           float64   `validate:"gte=0"`
}

// Policy is the accommodation-level booking policy.
type Policy struct {
	HostID                   string
	AutoApprove              bool
	CancellationDeadlineDays int
}

package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/stay-scheduler/internal/domain/reservation"
)

// Accommodations keeps booking policies and a per-day ledger of which
// reservation holds each day.
type Accommodations struct {
	mu       sync.Mutex
	policies map[string]reservation.Policy
	slots    map[string]map[time.Time]string
}

func NewAccommodations() *Accommodations {
	return &Accommodations{
		policies: make(map[string]reservation.Policy),
		slots:    make(map[string]map[time.Time]string),
	}
}

func (a *Accommodations) SetPolicy(accommodationID string, p reservation.Policy) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.policies[accommodationID] = p
}

func (a *Accommodations) Upsert(_ context.Context, accommodationID string, p reservation.Policy) error {
	a.SetPolicy(accommodationID, p)
	return nil
}

func (a *Accommodations) Policy(_ context.Context, accommodationID string) (reservation.Policy, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.policies[accommodationID]
	if !ok {
		return reservation.Policy{}, fmt.Errorf("accommodation %s: %w", accommodationID, reservation.ErrNotFound)
	}
	return p, nil
}

// Reserve takes every day of [start, end) for the reservation, or none of
// them. Days already held by the same reservation are fine.
func (a *Accommodations) Reserve(_ context.Context, accommodationID, reservationID string, start, end time.Time) error {
	iv := reservation.Interval{Start: reservation.Day(start), End: reservation.Day(end)}
	if err := iv.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.policies[accommodationID]; !ok {
		return fmt.Errorf("accommodation %s: %w", accommodationID, reservation.ErrNotFound)
	}
	days := a.slots[accommodationID]
	if days == nil {
		days = make(map[time.Time]string)
		a.slots[accommodationID] = days
	}
	for _, d := range iv.Days() {
		if holder, ok := days[d]; ok && holder != reservationID {
			return reservation.ErrUnavailable
		}
	}
	for _, d := range iv.Days() {
		days[d] = reservationID
	}
	return nil
}

// Restore releases the days of [start, end) held by the reservation.
func (a *Accommodations) Restore(_ context.Context, accommodationID, reservationID string, start, end time.Time) error {
	iv := reservation.Interval{Start: reservation.Day(start), End: reservation.Day(end)}
	if err := iv.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	days := a.slots[accommodationID]
	for _, d := range iv.Days() {
		if days[d] == reservationID {
			delete(days, d)
		}
	}
	return nil
}

// Available reports whether no day of [start, end) is held.
func (a *Accommodations) Available(accommodationID string, start, end time.Time) bool {
	iv := reservation.Interval{Start: reservation.Day(start), End: reservation.Day(end)}
	a.mu.Lock()
	defer a.mu.Unlock()
	days := a.slots[accommodationID]
	for _, d := range iv.Days() {
		if _, ok := days[d]; ok {
			return false
		}
	}
	return true
}

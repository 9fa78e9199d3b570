// Package memory holds in-process implementations of the reservation store,
// the accommodation catalog and the account directory. They back the
// "memory" store backend and the tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/stay-scheduler/internal/domain/reservation"
)

type ReservationStore struct {
	mu   sync.RWMutex
	byID map[string]reservation.Reservation
}

func NewReservationStore() *ReservationStore {
	return &ReservationStore{byID: make(map[string]reservation.Reservation)}
}

func (s *ReservationStore) Get(_ context.Context, id string) (reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}
	return r, nil
}

func (s *ReservationStore) Put(_ context.Context, r reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[r.ID] = r
	return nil
}

func (s *ReservationStore) UpdateStatus(_ context.Context, r reservation.Reservation, from reservation.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[r.ID]
	if !ok {
		return reservation.ErrNotFound
	}
	if cur.Status != from {
		return reservation.ErrStatusChanged
	}
	s.byID[r.ID] = r
	return nil
}

func (s *ReservationStore) ListByAccommodation(_ context.Context, accommodationID string, statuses ...reservation.Status) ([]reservation.Reservation, error) {
	return s.list(func(r reservation.Reservation) bool {
		return r.AccommodationID == accommodationID && hasStatus(r.Status, statuses)
	}), nil
}

func (s *ReservationStore) ListByGuest(_ context.Context, guestID string) ([]reservation.Reservation, error) {
	return s.list(func(r reservation.Reservation) bool { return r.GuestID == guestID }), nil
}

func (s *ReservationStore) ListByHost(_ context.Context, hostID string) ([]reservation.Reservation, error) {
	return s.list(func(r reservation.Reservation) bool { return r.HostID == hostID }), nil
}

func (s *ReservationStore) ListByStatus(_ context.Context, statuses ...reservation.Status) ([]reservation.Reservation, error) {
	return s.list(func(r reservation.Reservation) bool { return hasStatus(r.Status, statuses) }), nil
}

func (s *ReservationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return reservation.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *ReservationStore) DeleteMany(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.byID, id)
	}
	return nil
}

// ExistsSameRequest matches any status, so a guest cannot re-submit the same
// start date even after a denial.
func (s *ReservationStore) ExistsSameRequest(_ context.Context, accommodationID, guestID string, startDate time.Time) (bool, error) {
	day := reservation.Day(startDate)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.byID {
		if r.AccommodationID == accommodationID && r.GuestID == guestID && r.StartDate.Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

// list returns matches ordered by start date, then creation and id, so
// callers see a stable order.
func (s *ReservationStore) list(keep func(reservation.Reservation) bool) []reservation.Reservation {
	s.mu.RLock()
	out := make([]reservation.Reservation, 0)
	for _, r := range s.byID {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if !a.DateCreated.Equal(b.DateCreated) {
			return a.DateCreated.Before(b.DateCreated)
		}
		return a.ID < b.ID
	})
	return out
}

func hasStatus(s reservation.Status, statuses []reservation.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, st := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

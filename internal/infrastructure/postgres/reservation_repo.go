package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/example/stay-scheduler/internal/db"
	"github.com/example/stay-scheduler/internal/domain/reservation"
	"github.com/example/stay-scheduler/internal/internaltypes"
)

const reservationColumns = `id,accommodation_id,guest_id,host_id,start_date,duration_days,date_created,price,status,cancellation_deadline_days`

type ReservationRepo struct{ db *db.DB }

func NewReservationRepo(d *db.DB) *ReservationRepo { return &ReservationRepo{db: d} }

func (r *ReservationRepo) Get(ctx context.Context, id string) (reservation.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id)
	res, err := scanReservation(row)
	if err != nil {
		return reservation.Reservation{}, db.Wrap(err)
	}
	return res, nil
}

// Put inserts or replaces a reservation. A second row for the same
// accommodation, guest and start date is refused by the unique constraint.
func (r *ReservationRepo) Put(ctx context.Context, res reservation.Reservation) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO reservations(`+reservationColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
	accommodation_id=EXCLUDED.accommodation_id,
	guest_id=EXCLUDED.guest_id,
	host_id=EXCLUDED.host_id,
	start_date=EXCLUDED.start_date,
	duration_days=EXCLUDED.duration_days,
	date_created=EXCLUDED.date_created,
	price=EXCLUDED.price,
	status=EXCLUDED.status,
	cancellation_deadline_days=EXCLUDED.cancellation_deadline_days,
	updated_at=now()`,
		res.ID, res.AccommodationID, res.GuestID, res.HostID, res.StartDate, res.DurationDays,
		res.DateCreated, res.Price, string(res.Status), res.CancellationDeadlineDays,
	)
	if db.IsUniqueViolation(err) {
		return reservation.ErrDuplicateRequest
	}
	return db.Wrap(err)
}

// UpdateStatus is a compare-and-set on the status column, so writers in
// other processes cannot overwrite a transition they did not observe.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, res reservation.Reservation, from reservation.Status) error {
	n, err := r.db.Exec(ctx, `
UPDATE reservations
SET status=$2, cancellation_deadline_days=$3, updated_at=now()
WHERE id=$1 AND status=$4`,
		res.ID, string(res.Status), res.CancellationDeadlineDays, string(from),
	)
	if err != nil {
		return db.Wrap(err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reservations WHERE id=$1)`, res.ID).Scan(&exists); err != nil {
		return db.Wrap(err)
	}
	if !exists {
		return internaltypes.ErrNotFound
	}
	return reservation.ErrStatusChanged
}

func (r *ReservationRepo) ListByAccommodation(ctx context.Context, accommodationID string, statuses ...reservation.Status) ([]reservation.Reservation, error) {
	if len(statuses) == 0 {
		return r.list(ctx, `WHERE accommodation_id=$1`, accommodationID)
	}
	return r.list(ctx, `WHERE accommodation_id=$1 AND status = ANY($2)`, accommodationID, statusStrings(statuses))
}

func (r *ReservationRepo) ListByGuest(ctx context.Context, guestID string) ([]reservation.Reservation, error) {
	return r.list(ctx, `WHERE guest_id=$1`, guestID)
}

func (r *ReservationRepo) ListByHost(ctx context.Context, hostID string) ([]reservation.Reservation, error) {
	return r.list(ctx, `WHERE host_id=$1`, hostID)
}

func (r *ReservationRepo) ListByStatus(ctx context.Context, statuses ...reservation.Status) ([]reservation.Reservation, error) {
	if len(statuses) == 0 {
		return r.list(ctx, ``)
	}
	return r.list(ctx, `WHERE status = ANY($1)`, statusStrings(statuses))
}

func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	n, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, id)
	if err != nil {
		return db.Wrap(err)
	}
	if n == 0 {
		return internaltypes.ErrNotFound
	}
	return nil
}

func (r *ReservationRepo) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE id = ANY($1)`, ids)
	return db.Wrap(err)
}

func (r *ReservationRepo) ExistsSameRequest(ctx context.Context, accommodationID, guestID string, startDate time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM reservations WHERE accommodation_id=$1 AND guest_id=$2 AND start_date=$3)`,
		accommodationID, guestID, reservation.Day(startDate),
	).Scan(&exists)
	return exists, db.Wrap(err)
}

func (r *ReservationRepo) list(ctx context.Context, where string, args ...any) ([]reservation.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reservationColumns+` FROM reservations `+where+` ORDER BY start_date, date_created, id`, args...)
	if err != nil {
		return nil, db.Wrap(err)
	}
	defer rows.Close()

	var out []reservation.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, db.Wrap(rows.Err())
}

func scanReservation(row db.Row) (reservation.Reservation, error) {
	var (
		res    reservation.Reservation
		status string
	)
	if err := row.Scan(
		&res.ID, &res.AccommodationID, &res.GuestID, &res.HostID, &res.StartDate, &res.DurationDays,
		&res.DateCreated, &res.Price, &status, &res.CancellationDeadlineDays,
	); err != nil {
		return reservation.Reservation{}, err
	}
	st, err := reservation.ParseStatus(status)
	if err != nil {
		return reservation.Reservation{}, fmt.Errorf("reservation %s: %w", res.ID, err)
	}
	res.Status = st
	res.StartDate = reservation.Day(res.StartDate)
	res.DateCreated = reservation.Day(res.DateCreated)
	return res, nil
}

func statusStrings(statuses []reservation.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

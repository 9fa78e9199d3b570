package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/example/stay-scheduler/internal/db"
	"github.com/example/stay-scheduler/internal/domain/reservation"
	"github.com/example/stay-scheduler/internal/internaltypes"
)

// AccommodationRepo stores booking policies and the per-day timeslot ledger.
type AccommodationRepo struct{ db *db.DB }

func NewAccommodationRepo(d *db.DB) *AccommodationRepo { return &AccommodationRepo{db: d} }

func (r *AccommodationRepo) Upsert(ctx context.Context, accommodationID string, p reservation.Policy) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO accommodations(id, host_id, auto_approve, cancellation_deadline_days)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET
	host_id=EXCLUDED.host_id,
	auto_approve=EXCLUDED.auto_approve,
	cancellation_deadline_days=EXCLUDED.cancellation_deadline_days`,
		accommodationID, p.HostID, p.AutoApprove, p.CancellationDeadlineDays,
	)
	return db.Wrap(err)
}

func (r *AccommodationRepo) Policy(ctx context.Context, accommodationID string) (reservation.Policy, error) {
	var p reservation.Policy
	err := r.db.QueryRow(ctx,
		`SELECT host_id, auto_approve, cancellation_deadline_days FROM accommodations WHERE id=$1`, accommodationID,
	).Scan(&p.HostID, &p.AutoApprove, &p.CancellationDeadlineDays)
	if err != nil {
		return reservation.Policy{}, fmt.Errorf("accommodation %s: %w", accommodationID, db.Wrap(err))
	}
	return p, nil
}

// Reserve claims every day of [start, end) for the reservation in one
// transaction. Days the reservation already holds count as claimed; a day
// held by anyone else rolls the whole claim back.
func (r *AccommodationRepo) Reserve(ctx context.Context, accommodationID, reservationID string, start, end time.Time) error {
	iv := reservation.Interval{Start: reservation.Day(start), End: reservation.Day(end)}
	if err := iv.Validate(); err != nil {
		return err
	}
	want := int64(len(iv.Days()))

	return r.db.InTx(ctx, func(q db.Querier) error {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accommodations WHERE id=$1)`, accommodationID).Scan(&exists); err != nil {
			return db.Wrap(err)
		}
		if !exists {
			return fmt.Errorf("accommodation %s: %w", accommodationID, internaltypes.ErrNotFound)
		}

		n, err := q.Exec(ctx, `
INSERT INTO accommodation_timeslots(accommodation_id, day, reservation_id)
SELECT $1, d::date, $2 FROM generate_series($3::date, $4::date - 1, interval '1 day') AS d
ON CONFLICT (accommodation_id, day) DO UPDATE SET reservation_id=EXCLUDED.reservation_id
WHERE accommodation_timeslots.reservation_id=EXCLUDED.reservation_id`,
			accommodationID, reservationID, iv.Start, iv.End,
		)
		if err != nil {
			return db.Wrap(err)
		}
		if n != want {
			return reservation.ErrUnavailable
		}
		return nil
	})
}

// Restore frees the days of [start, end) held by the reservation.
func (r *AccommodationRepo) Restore(ctx context.Context, accommodationID, reservationID string, start, end time.Time) error {
	iv := reservation.Interval{Start: reservation.Day(start), End: reservation.Day(end)}
	if err := iv.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
DELETE FROM accommodation_timeslots
WHERE accommodation_id=$1 AND reservation_id=$2 AND day >= $3 AND day < $4`,
		accommodationID, reservationID, iv.Start, iv.End,
	)
	return db.Wrap(err)
}

// Reserved lists the days of [start, end) that are taken.
func (r *AccommodationRepo) Reserved(ctx context.Context, accommodationID string, start, end time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `
SELECT day FROM accommodation_timeslots
WHERE accommodation_id=$1 AND day >= $2 AND day < $3
ORDER BY day`,
		accommodationID, reservation.Day(start), reservation.Day(end),
	)
	if err != nil {
		return nil, db.Wrap(err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, reservation.Day(d))
	}
	return out, db.Wrap(rows.Err())
}

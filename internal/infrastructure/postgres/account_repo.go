package postgres

import (
	"context"
	"fmt"

	"github.com/example/stay-scheduler/internal/db"
	"github.com/example/stay-scheduler/internal/domain/account"
	"github.com/example/stay-scheduler/internal/domain/notification"
	"github.com/example/stay-scheduler/internal/internaltypes"
)

type AccountRepo struct{ db *db.DB }

func NewAccountRepo(d *db.DB) *AccountRepo { return &AccountRepo{db: d} }

// Upsert creates the account or replaces its profile and settings. The
// cancellation counter is left untouched on update.
func (r *AccountRepo) Upsert(ctx context.Context, a account.Account) error {
	settings := make([]string, len(a.Settings))
	for i, k := range a.Settings {
		settings[i] = string(k)
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO accounts(id, role, first_name, last_name, email, settings)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
	role=EXCLUDED.role,
	first_name=EXCLUDED.first_name,
	last_name=EXCLUDED.last_name,
	email=EXCLUDED.email,
	settings=EXCLUDED.settings`,
		a.ID, string(a.Role), a.FirstName, a.LastName, a.Email, settings,
	)
	return db.Wrap(err)
}

func (r *AccountRepo) Get(ctx context.Context, id string) (account.Account, error) {
	var (
		a        account.Account
		role     string
		settings []string
	)
	err := r.db.QueryRow(ctx, `
SELECT id, role, first_name, last_name, email, settings, times_cancelled, created_at
FROM accounts WHERE id=$1`, id).
		Scan(&a.ID, &role, &a.FirstName, &a.LastName, &a.Email, &settings, &a.TimesCancelled, &a.CreatedAt)
	if err != nil {
		return account.Account{}, fmt.Errorf("account %s: %w", id, db.Wrap(err))
	}
	a.Role = account.Role(role)
	for _, s := range settings {
		a.Settings = append(a.Settings, notification.Kind(s))
	}
	return a, nil
}

func (r *AccountRepo) HasNotificationPreference(ctx context.Context, accountID string, kind notification.Kind) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT $2 = ANY(settings) FROM accounts WHERE id=$1`, accountID, string(kind)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("account %s: %w", accountID, db.Wrap(err))
	}
	return ok, nil
}

func (r *AccountRepo) IncrementCancellations(ctx context.Context, guestID string) error {
	n, err := r.db.Exec(ctx, `UPDATE accounts SET times_cancelled = times_cancelled + 1 WHERE id=$1`, guestID)
	if err != nil {
		return db.Wrap(err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", guestID, internaltypes.ErrNotFound)
	}
	return nil
}

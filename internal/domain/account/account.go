package account

import (
	"context"
	"time"

	"github.com/example/stay-scheduler/internal/domain/notification"
)

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
)

type Account struct {
	ID        string
	Role      Role
	FirstName string
	LastName  string
	Email     string

	// Settings holds the notification kinds the account opted into.
	Settings []notification.Kind

	// TimesCancelled counts approved stays the guest cancelled.
	TimesCancelled int

	CreatedAt time.Time
}

func (a Account) Wants(kind notification.Kind) bool {
	for _, k := range a.Settings {
		if k == kind {
			return true
		}
	}
	return false
}

func (a Account) DisplayName() string {
	if a.FirstName == "" && a.LastName == "" {
		return a.ID
	}
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// Directory is the account store the engine reads preferences from.
type Directory interface {
	Get(ctx context.Context, id string) (Account, error)
	HasNotificationPreference(ctx context.Context, accountID string, kind notification.Kind) (bool, error)
	IncrementCancellations(ctx context.Context, guestID string) error
}

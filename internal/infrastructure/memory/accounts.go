package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/stay-scheduler/internal/domain/account"
	"github.com/example/stay-scheduler/internal/domain/notification"
	"github.com/example/stay-scheduler/internal/internaltypes"
)

type Accounts struct {
	mu   sync.RWMutex
	byID map[string]account.Account
}

func NewAccounts(seed ...account.Account) *Accounts {
	a := &Accounts{byID: make(map[string]account.Account)}
	for _, acc := range seed {
		a.byID[acc.ID] = acc
	}
	return a
}

func (a *Accounts) Upsert(_ context.Context, acc account.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byID[acc.ID] = acc
	return nil
}

func (a *Accounts) Get(_ context.Context, id string) (account.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.byID[id]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", id, internaltypes.ErrNotFound)
	}
	return acc, nil
}

func (a *Accounts) HasNotificationPreference(ctx context.Context, accountID string, kind notification.Kind) (bool, error) {
	acc, err := a.Get(ctx, accountID)
	if err != nil {
		return false, err
	}
	return acc.Wants(kind), nil
}

func (a *Accounts) IncrementCancellations(_ context.Context, guestID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.byID[guestID]
	if !ok {
		return fmt.Errorf("account %s: %w", guestID, internaltypes.ErrNotFound)
	}
	acc.TimesCancelled++
	a.byID[guestID] = acc
	return nil
}

package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/stay-scheduler/internal/domain/notification"
	"github.com/example/stay-scheduler/internal/domain/reservation"
	"github.com/example/stay-scheduler/internal/scheduler"
)

func TestSubmitManualStaysPendingUntilAutoDeny(t *testing.T) {
	f := newFixture(t)

	r := f.submit(t, accManual, guestA, day(10), 3)
	assert.Equal(t, reservation.StatusPending, r.Status)
	assert.Equal(t, hostID, r.HostID)
	assert.Equal(t, reservation.Date(2024, time.June, 10), r.DateCreated)
	assert.Equal(t, []notification.Kind{notification.KindRequestCreated}, f.notes.to(hostID))
	assert.Equal(t, 1, f.engine.pendingTasks(r.ID))

	assert.Zero(t, f.advance(day(9)))
	assert.Equal(t, reservation.StatusPending, f.status(t, r.ID))

	assert.Equal(t, 1, f.advance(day(10)))
	assert.Equal(t, reservation.StatusDenied, f.status(t, r.ID))
	assert.Zero(t, f.engine.pendingTasks(r.ID))
	assert.Empty(t, f.notes.to(guestA), "auto-deny is silent")
}

func TestSubmitAutoApproveDisposition(t *testing.T) {
	today := reservation.Date(2024, time.June, 10)

	cases := []struct {
		name  string
		start time.Time
		days  int
		want  reservation.Status
		tasks int
	}{
		{"future stay", day(10), 3, reservation.StatusApproved, 2},
		{"starts today", today, 3, reservation.StatusActive, 1},
		{"started yesterday", today.AddDate(0, 0, -1), 3, reservation.StatusActive, 1},
		{"already over", today.AddDate(0, 0, -5), 2, reservation.StatusDone, 0},
		{"ended today", today.AddDate(0, 0, -2), 2, reservation.StatusDone, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			r := f.submit(t, accAuto, guestA, tc.start, tc.days)

			assert.Equal(t, tc.want, r.Status)
			assert.Equal(t, tc.want, f.status(t, r.ID))
			assert.Equal(t, 3, r.CancellationDeadlineDays)
			assert.Equal(t, tc.tasks, f.engine.pendingTasks(r.ID))
			assert.False(t, f.acc.Available(accAuto, r.StartDate, r.EndDate()))
			assert.Equal(t, []notification.Kind{notification.KindRequestResponse}, f.notes.to(guestA))
		})
	}
}

func TestApprovedStayActivatesAndCompletes(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, accAuto, guestA, day(10), 3)
	require.Equal(t, reservation.StatusApproved, r.Status)

	f.advance(day(10))
	assert.Equal(t, reservation.StatusActive, f.status(t, r.ID))
	assert.Equal(t, 1, f.engine.pendingTasks(r.ID))

	f.advance(day(12).Add(23 * time.Hour))
	assert.Equal(t, reservation.StatusActive, f.status(t, r.ID))

	f.advance(day(13))
	assert.Equal(t, reservation.StatusDone, f.status(t, r.ID))
	assert.Zero(t, f.engine.pendingTasks(r.ID))
}

func TestActivationAfterStayEndedCompletesDirectly(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, accAuto, guestA, day(10), 3)

	// The process slept through the whole stay; the activation task fires
	// first and must fall back to Done.
	f.clock.Set(day(20))
	require.NoError(t, f.engine.Activate(context.Background(), r.ID))
	assert.Equal(t, reservation.StatusDone, f.status(t, r.ID))
}

func TestSubmitRejectsDuplicateWithoutMutation(t *testing.T) {
	f := newFixture(t)
	first := f.submit(t, accManual, guestA, day(10), 3)

	_, err := f.engine.Submit(context.Background(), reservation.SubmitRequest{
		AccommodationID: accManual,
		GuestID:         guestA,
		StartDate:       day(10).Add(5 * time.Hour),
		DurationDays:    7,
	})
	require.ErrorIs(t, err, reservation.ErrDuplicateRequest)

	all, err := f.store.ListByGuest(context.Background(), guestA)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first, all[0])
	assert.Len(t, f.notes.to(hostID), 1)
	assert.Equal(t, 1, f.sched.Len())
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Submit(ctx, reservation.SubmitRequest{AccommodationID: accManual, GuestID: guestA, StartDate: day(10)})
	assert.ErrorIs(t, err, reservation.ErrInvalidInterval)

	_, err = f.engine.Submit(ctx, reservation.SubmitRequest{AccommodationID: accManual, StartDate: day(10), DurationDays: 2})
	assert.Error(t, err)

	_, err = f.engine.Submit(ctx, reservation.SubmitRequest{AccommodationID: "nowhere", GuestID: guestA, StartDate: day(10), DurationDays: 2})
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	all, err := f.store.ListByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmitAutoApproveWhenDatesTakenStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.acc.Reserve(ctx, accAuto, "elsewhere", day(11), day(12)))

	r := f.submit(t, accAuto, guestA, day(10), 3)
	assert.Equal(t, reservation.StatusPending, r.Status)
	assert.Equal(t, reservation.StatusPending, f.status(t, r.ID))
	assert.Equal(t, 1, f.engine.pendingTasks(r.ID))
	assert.True(t, f.acc.Available(accAuto, day(10), day(11)), "a failed reserve takes nothing")

	f.advance(day(10))
	assert.Equal(t, reservation.StatusDenied, f.status(t, r.ID))
}

func TestSubmitAutoApproveLedgerErrorLeavesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.reserveErr = func(string) error { return errors.New("connection reset") }

	r, err := f.engine.Submit(ctx, reservation.SubmitRequest{
		AccommodationID: accAuto,
		GuestID:         guestA,
		StartDate:       day(10),
		DurationDays:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPending, r.Status)
	assert.Zero(t, r.CancellationDeadlineDays)
	assert.Equal(t, reservation.StatusPending, f.status(t, r.ID))
	assert.Equal(t, 1, f.engine.pendingTasks(r.ID), "auto-deny armed")
	assert.Equal(t, []notification.Kind{notification.KindRequestCreated}, f.notes.to(hostID))
	assert.Empty(t, f.notes.to(guestA))

	// the host can still decide once the ledger is back
	f.ledger.reserveErr = nil
	approved, err := f.engine.Accept(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusApproved, approved.Status)
	assert.Equal(t, 2, f.engine.pendingTasks(r.ID))
}

func TestAcceptApprovesAndNotifiesGuest(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, accManual, guestA, day(10), 3)

	got, err := f.engine.Accept(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusApproved, got.Status)
	assert.Equal(t, 3, got.CancellationDeadlineDays)
	assert.False(t, f.acc.Available(accManual, day(10), day(13)))
	assert.Equal(t, []notification.Kind{notification.KindRequestResponse}, f.notes.to(guestA))

	// auto-deny withdrawn, activation and completion armed
	assert.Equal(t, 2, f.engine.pendingTasks(r.ID))
	assert.Equal(t, 2, f.sched.Len())
}

func TestAcceptAndDenyRequirePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.submit(t, accManual, guestA, day(10), 3)

	_, err := f.engine.Accept(ctx, r.ID)
	require.NoError(t, err)

	_, err = f.engine.Accept(ctx, r.ID)
	assert.ErrorIs(t, err, reservation.ErrInvalidStateTransition)
	var te *reservation.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, reservation.StatusApproved, te.From)

	_, err = f.engine.Deny(ctx, r.ID)
	assert.ErrorIs(t, err, reservation.ErrInvalidStateTransition)

	_, err = f.engine.Accept(ctx, "missing")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestDeny(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, accManual, guestA, day(10), 3)

	got, err := f.engine.Deny(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusDenied, got.Status)
	assert.Zero(t, f.engine.pendingTasks(r.ID))
	assert.Zero(t, f.sched.Len())
	assert.Equal(t, []notification.Kind{notification.KindRequestResponse}, f.notes.to(guestA))
}

func TestCancelPending(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, accManual, guestA, day(10), 3)

	got, err := f.engine.Cancel(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, got.Status)
	assert.Zero(t, f.sched.Len())

	g, err := f.accounts.Get(context.Background(), guestA)
	require.NoError(t, err)
	assert.Zero(t, g.TimesCancelled)
	assert.Equal(t, []notification.Kind{notification.KindRequestCreated, notification.KindCancellation}, f.notes.to(hostID))
}

func TestCancelApprovedHonoursDeadline(t *testing.T) {
	// Created 2024-06-10 with a 3 day window: cancellable through 2024-06-13.
	cases := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"on creation day", reservation.Date(2024, time.June, 10).Add(20 * time.Hour), nil},
		{"on deadline day", reservation.Date(2024, time.June, 13).Add(23 * time.Hour), nil},
		{"day after deadline", reservation.Date(2024, time.June, 14), reservation.ErrCancellationWindowExpired},
		{"week after deadline", reservation.Date(2024, time.June, 20), reservation.ErrCancellationWindowExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			r := f.submit(t, accAuto, guestA, day(10), 3)
			require.Equal(t, reservation.StatusApproved, r.Status)

			f.clock.Set(tc.now)
			_, err := f.engine.Cancel(ctx, r.ID)
			g, gerr := f.accounts.Get(ctx, guestA)
			require.NoError(t, gerr)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, reservation.StatusApproved, f.status(t, r.ID))
				assert.False(t, f.acc.Available(accAuto, day(10), day(13)))
				assert.Zero(t, g.TimesCancelled)
				assert.Equal(t, 2, f.engine.pendingTasks(r.ID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, reservation.StatusCancelled, f.status(t, r.ID))
			assert.True(t, f.acc.Available(accAuto, day(10), day(13)))
			assert.Equal(t, 1, g.TimesCancelled)
			assert.Zero(t, f.engine.pendingTasks(r.ID))
			assert.Contains(t, f.notes.to(hostID), notification.KindCancellation)
		})
	}
}

func TestCancelActiveFails(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, accAuto, guestA, reservation.Date(2024, time.June, 10), 3)
	require.Equal(t, reservation.StatusActive, r.Status)

	_, err := f.engine.Cancel(context.Background(), r.ID)
	assert.ErrorIs(t, err, reservation.ErrInvalidStateTransition)
	assert.Equal(t, reservation.StatusActive, f.status(t, r.ID))
}

func TestDeferredCallbacksAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.submit(t, accAuto, guestA, day(10), 3)

	f.clock.Set(day(10))
	require.NoError(t, f.engine.Activate(ctx, r.ID))
	require.NoError(t, f.engine.Activate(ctx, r.ID))
	assert.Equal(t, reservation.StatusActive, f.status(t, r.ID))
	require.NoError(t, f.engine.ExpirePending(ctx, r.ID))
	assert.Equal(t, reservation.StatusActive, f.status(t, r.ID))

	f.clock.Set(day(13))
	require.NoError(t, f.engine.Complete(ctx, r.ID))
	require.NoError(t, f.engine.Complete(ctx, r.ID))
	require.NoError(t, f.engine.Activate(ctx, r.ID))
	assert.Equal(t, reservation.StatusDone, f.status(t, r.ID))

	p := f.submit(t, accManual, guestB, day(10).AddDate(0, 1, 0), 2)
	require.NoError(t, f.engine.ExpirePending(ctx, p.ID))
	require.NoError(t, f.engine.ExpirePending(ctx, p.ID))
	assert.Equal(t, reservation.StatusDenied, f.status(t, p.ID))
}

func TestTerminalStatesNeverChange(t *testing.T) {
	ctx := context.Background()

	setups := map[reservation.Status]func(t *testing.T, f *fixture) string{
		reservation.StatusDenied: func(t *testing.T, f *fixture) string {
			r := f.submit(t, accManual, guestA, day(10), 3)
			_, err := f.engine.Deny(ctx, r.ID)
			require.NoError(t, err)
			return r.ID
		},
		reservation.StatusCancelled: func(t *testing.T, f *fixture) string {
			r := f.submit(t, accManual, guestA, day(10), 3)
			_, err := f.engine.Cancel(ctx, r.ID)
			require.NoError(t, err)
			return r.ID
		},
		reservation.StatusDone: func(t *testing.T, f *fixture) string {
			return f.submit(t, accAuto, guestA, reservation.Date(2024, time.June, 1), 2).ID
		},
	}
	for want, setup := range setups {
		t.Run(string(want), func(t *testing.T) {
			f := newFixture(t)
			id := setup(t, f)
			require.Equal(t, want, f.status(t, id))

			_, err := f.engine.Accept(ctx, id)
			assert.ErrorIs(t, err, reservation.ErrInvalidStateTransition)
			_, err = f.engine.Deny(ctx, id)
			assert.ErrorIs(t, err, reservation.ErrInvalidStateTransition)
			_, err = f.engine.Cancel(ctx, id)
			assert.ErrorIs(t, err, reservation.ErrInvalidStateTransition)

			f.clock.Set(day(31))
			assert.NoError(t, f.engine.ExpirePending(ctx, id))
			assert.NoError(t, f.engine.Activate(ctx, id))
			assert.NoError(t, f.engine.Complete(ctx, id))
			f.sched.RunDue(ctx)
			_, err = f.engine.Reconcile(ctx)
			assert.NoError(t, err)

			assert.Equal(t, want, f.status(t, id))
		})
	}
}

func TestNotificationsFollowPreferences(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, accAuto, guestMute, day(10), 3)
	require.Equal(t, reservation.StatusApproved, r.Status)

	assert.Empty(t, f.notes.to(guestMute))
	assert.Equal(t, []notification.Kind{notification.KindRequestCreated}, f.notes.to(hostID))
}

func TestAcceptRacingAutoDeny(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		ctx := context.Background()
		r := f.submit(t, accManual, guestA, day(10), 3)
		f.clock.Set(day(10))

		var (
			wg        sync.WaitGroup
			acceptErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = f.engine.Accept(ctx, r.ID)
		}()
		go func() {
			defer wg.Done()
			f.sched.RunDue(ctx)
		}()
		wg.Wait()
		f.sched.RunDue(ctx)

		if acceptErr == nil {
			assert.Equal(t, reservation.StatusActive, f.status(t, r.ID))
			assert.False(t, f.acc.Available(accManual, day(10), day(13)))
		} else {
			assert.ErrorIs(t, acceptErr, reservation.ErrInvalidStateTransition)
			assert.Equal(t, reservation.StatusDenied, f.status(t, r.ID))
			assert.True(t, f.acc.Available(accManual, day(10), day(13)))
		}
	}
}

func TestAcceptInOtherProcessLosesToAutoDeny(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.submit(t, accManual, guestA, day(10), 3)

	// cli shares the store and ledger with f.engine but not its locks; the
	// auto-deny lands between cli reading Pending and writing Approved.
	cli := f.newEngine(t, scheduler.New(f.clock, time.Millisecond, f.log))
	f.ledger.beforeReserve = func(id string) {
		f.ledger.beforeReserve = nil
		require.NoError(t, f.engine.ExpirePending(ctx, id))
	}

	_, err := cli.Accept(ctx, r.ID)
	assert.ErrorIs(t, err, reservation.ErrStatusChanged)
	assert.ErrorIs(t, err, reservation.ErrInvalidStateTransition)

	assert.Equal(t, reservation.StatusDenied, f.status(t, r.ID))
	assert.True(t, f.acc.Available(accManual, day(10), day(13)), "reserved days are given back")
	assert.Zero(t, cli.pendingTasks(r.ID))
	assert.Empty(t, f.notes.to(guestA))
}

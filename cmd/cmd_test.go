package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/stay-scheduler/internal/domain/notification"
	"github.com/example/stay-scheduler/internal/domain/reservation"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "memory")
	for _, k := range []string{"DATABASE_URL", "REDIS_URL", "MONGO_URI", "SMTP_HOST", "JAEGER_ADDRESS", "LOG_FILE"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "staysched dev (commit=none, built=unknown)\n", out)
}

func TestReconcileMemoryBackend(t *testing.T) {
	memoryEnv(t)
	out, err := run(t, "reconcile")
	require.NoError(t, err)
	assert.Equal(t, "reconciled: 0 reservation(s) changed status\n", out)
}

func TestShowUnknownReservation(t *testing.T) {
	memoryEnv(t)
	_, err := run(t, "reservation", "show", "nope")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestSubmitRejectsBadDate(t *testing.T) {
	memoryEnv(t)
	_, err := run(t, "reservation", "submit", "--accommodation", "a", "--guest", "g", "--start", "07/01/2024")
	assert.EqualError(t, err, "invalid --start (want YYYY-MM-DD)")
}

func TestListNeedsOneOwner(t *testing.T) {
	memoryEnv(t)
	_, err := run(t, "reservation", "list")
	assert.Error(t, err)
	_, err = run(t, "reservation", "list", "--guest", "g", "--host", "h")
	assert.Error(t, err)
}

func TestNotificationsNeedInbox(t *testing.T) {
	memoryEnv(t)
	_, err := run(t, "notifications", "list", "--recipient", "guest-a")
	assert.ErrorContains(t, err, "MONGO_URI")
}

func TestInvalidBackend(t *testing.T) {
	memoryEnv(t)
	t.Setenv("STORE_BACKEND", "sqlite")
	_, err := run(t, "reconcile")
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestParseDay(t *testing.T) {
	d, err := parseDay(" 2024-07-03 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDay("2024-13-01")
	assert.Error(t, err)
}

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds("request, cancel,RESERVATION_CANCEL_NOTIFICATION,,")
	require.NoError(t, err)
	assert.Equal(t, []notification.Kind{notification.KindRequestCreated, notification.KindCancellation}, kinds)

	kinds, err = parseKinds("")
	require.NoError(t, err)
	assert.Empty(t, kinds)

	_, err = parseKinds("sms")
	assert.EqualError(t, err, `unknown notification kind "sms"`)
}

func TestPrintReservation(t *testing.T) {
	var buf bytes.Buffer
	printReservation(&buf, reservation.Reservation{
		ID:              "r1",
		AccommodationID: "acc",
		GuestID:         "g",
		HostID:          "h",
		StartDate:       time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		DurationDays:    3,
		DateCreated:     time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Price:           120,
		Status:          reservation.StatusApproved,
	})
	assert.Equal(t, "id=r1 status=Approved accommodation=acc guest=g host=h stay=2024-07-01..2024-07-04 nights=3 price=120.00 created=2024-06-10\n", buf.String())
}

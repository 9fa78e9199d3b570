package redis

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/stay-scheduler/internal/domain/notification"
)

func openTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	c, err := Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLockerExcludesSecondHolder(t *testing.T) {
	c := openTestRedis(t)
	l := NewLocker(c, time.Second, quietLogger())
	key := "test:" + uuid.NewString()

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	again, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	again()
}

func TestLockerReleaseKeepsForeignToken(t *testing.T) {
	c := openTestRedis(t)
	l := NewLocker(c, 50*time.Millisecond, quietLogger())
	key := "test:" + uuid.NewString()

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	other, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock()

	exists, err := c.Exists(context.Background(), l.prefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists, "stale holder must not free the new holder's lock")
	other()
}

func TestPublisherDeliversJSON(t *testing.T) {
	c := openTestRedis(t)
	ctx := context.Background()
	channel := "test-" + uuid.NewString()

	sub := c.Subscribe(ctx, channel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := notification.Notification{RecipientID: "g1", Kind: notification.KindCancellation, ReservationID: "r1", Text: "hi"}
	require.NoError(t, NewPublisher(c, channel).Deliver(ctx, n))

	select {
	case msg := <-sub.Channel():
		var got notification.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, n.ReservationID, got.ReservationID)
		assert.Equal(t, n.Kind, got.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

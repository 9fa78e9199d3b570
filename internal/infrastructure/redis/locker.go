// Package redis shares engine state across processes: accommodation locks
// and a pub/sub feed of notifications.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a distributed lock on SET NX PX. A holder that outlives TTL
// loses the lock.
type Locker struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    logrus.FieldLogger
}

func NewLocker(client goredis.UniversalClient, ttl time.Duration, log logrus.FieldLogger) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{
		client: client,
		prefix: "staysched:lock:",
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		log:    log,
	}
}

// Lock blocks until the key is acquired or ctx ends.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()

	t := time.NewTicker(l.retry)
	defer t.Stop()
	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(k, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	switch {
	case err != nil && !errors.Is(err, goredis.Nil):
		l.log.WithField("key", key).WithError(err).Error("redis lock release failed")
	case n == 0:
		l.log.WithField("key", key).Warn("redis lock expired before release")
	}
}

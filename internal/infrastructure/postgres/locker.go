package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/stay-scheduler/internal/db"
)

// Locker serializes work on a key across processes with session-level
// advisory locks. Every held lock pins one connection, so it should get a
// pool of its own.
type Locker struct {
	db  *db.DB
	log logrus.FieldLogger
}

func NewLocker(d *db.DB, log logrus.FieldLogger) *Locker {
	return &Locker{db: d, log: log}
}

// Lock blocks until the key is acquired or ctx ends.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisory lock %s: %w", key, err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, key); err != nil {
		// a cancelled wait may leave the session mid-query
		conn.Discard()
		return nil, fmt.Errorf("advisory lock %s: %w", key, db.Wrap(err))
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key); err != nil {
			l.log.WithField("key", key).WithError(err).Error("advisory unlock failed, closing session")
			conn.Discard()
			return
		}
		conn.Release()
	}, nil
}

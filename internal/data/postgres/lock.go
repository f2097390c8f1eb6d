package postgres

import (
	"context"
	"database/sql"
	"hash/fnv"

	"gitlab.com/distributed_lab/kit/pgdb"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// LeaderLock is a postgres advisory lock enforcing the single-consumer rule on
// the indexer cursor: concurrent indexers against the same contract would
// double-apply events or race on cursor advancement. Advisory locks are
// session-scoped, so the lock lives on a dedicated connection pinned for the
// lock's lifetime; taking it through the shared pool would tie it to whichever
// pooled session ran the query, and an idle-connection recycle would drop the
// lock while the worker keeps indexing.
type LeaderLock struct {
	db   *pgdb.DB
	key  int64
	conn *sql.Conn
}

func NewLeaderLock(db *pgdb.DB, contract string) *LeaderLock {
	h := fnv.New64a()
	_, _ = h.Write([]byte("indexer_cursor/" + contract))
	return &LeaderLock{db: db, key: int64(h.Sum64())}
}

func (l *LeaderLock) TryAcquire(ctx context.Context) (bool, error) {
	if l.conn == nil {
		conn, err := l.db.RawDB().Conn(ctx)
		if err != nil {
			return false, errors.Wrap(err, "failed to pin lock connection")
		}
		l.conn = conn
	}

	var locked bool
	err := l.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&locked)
	if err != nil {
		// The pinned session is unusable; drop it so the next attempt repins.
		_ = l.conn.Close()
		l.conn = nil
		return false, errors.Wrap(err, "failed to acquire advisory lock")
	}

	return locked, nil
}

// Release unlocks and returns the pinned connection to the pool. Closing the
// connection alone would release the lock too; the explicit unlock surfaces
// the case where the session no longer held it.
func (l *LeaderLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}

	var released bool
	err := l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&released)
	closeErr := l.conn.Close()
	l.conn = nil

	if err != nil {
		return errors.Wrap(err, "failed to release advisory lock")
	}
	if !released {
		return errors.New("advisory lock was not held by this session")
	}
	return errors.Wrap(closeErr, "failed to return lock connection")
}

package lock

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/db"
)

// Advisory serializes keys with Postgres transaction-scoped advisory locks.
// Each held key pins one pooled connection until released.
type Advisory struct {
	pool db.Pool
}

// NewAdvisory creates an advisory locker on pool.
func NewAdvisory(pool db.Pool) *Advisory {
	return &Advisory{pool: pool}
}

// advisoryKey maps a key onto the int64 space of pg_advisory_xact_lock.
func advisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(keyPrefix + key))
	return int64(h.Sum64())
}

// Lock implements Locker. It blocks in Postgres until the key is free;
// cancelling ctx aborts the wait.
func (a *Advisory) Lock(ctx context.Context, key string) (func(), error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "lock: begin advisory tx for %s", key)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryKey(key)); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, eris.Wrapf(err, "lock: advisory lock %s", key)
	}
	return func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tx.Rollback(relCtx); err != nil {
			zap.L().Warn("lock: advisory release failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

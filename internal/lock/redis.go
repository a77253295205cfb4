package lock

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const keyPrefix = "hunter:lock:"

// Redis is a distributed Locker built on SET NX PX with a per-acquisition
// owner token. Keys expire after ttl so a crashed holder cannot wedge a key.
type Redis struct {
	client  redis.UniversalClient
	ttl     time.Duration
	ownerID string

	minWait time.Duration
	maxWait time.Duration
}

// NewRedis creates a Redis locker. ttl bounds how long a lock survives a
// holder that never releases it.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		client:  client,
		ttl:     ttl,
		ownerID: generateOwnerID(),
		minWait: 10 * time.Millisecond,
		maxWait: 250 * time.Millisecond,
	}
}

// generateOwnerID returns hostname:pid:random.
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	b := make([]byte, 8)
	_, _ = crand.Read(b)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(b))
}

// releaseScript deletes the key only if the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Lock implements Locker. It polls with jittered exponential backoff until
// the key is free or ctx ends.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := r.ownerID + ":" + randomToken()
	wait := r.minWait

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, eris.Wrapf(err, "lock: acquire %s", key)
		}
		if ok {
			break
		}

		jitter := time.Duration(rand.Int64N(int64(wait)/2 + 1))
		timer := time.NewTimer(wait + jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, r.maxWait)
	}

	return func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := releaseScript.Run(relCtx, r.client, []string{redisKey}, token).Result(); err != nil && err != redis.Nil {
			zap.L().Warn("lock: release failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func randomToken() string {
	b := make([]byte, 6)
	_, _ = crand.Read(b)
	return hex.EncodeToString(b)
}

package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	pe "vanish.io/linkcore/errors"
)

// namespaced redis key holding a one-time link's consumption flag
const keyTmplOneTime = `one-time:%s`

const (
	flagUnconsumed = "0"
	flagConsumed   = "1"
)

// ConsumptionGuard enforces the one-time-read invariant. A flag exists only for
// links created with the one-time option; it transitions unconsumed->consumed
// exactly once and then rides its TTL out of the store.
type ConsumptionGuard interface {
	// Register creates the unconsumed flag with a TTL equal to the link's
	// remaining lifetime, so the flag can never outlive its record.
	Register(ctx context.Context, linkID string, ttl time.Duration) *pe.Err
	// Claim atomically marks the flag consumed and reports whether this call
	// performed the transition. false with a nil error means somebody else beat us
	// to it (or the flag is already gone) and the caller must treat the link as Gone.
	Claim(ctx context.Context, linkID string) (bool, *pe.Err)
	Close() *pe.Err
}

// redisOps is the slice of the go-redis client the guard needs. Carved out so
// tests can stand in a mock.
type redisOps interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetArgs(ctx context.Context, key string, value interface{}, a redis.SetArgs) *redis.StatusCmd
	Close() error
}

// RedisGuard implements ConsumptionGuard with Redis.
type RedisGuard struct {
	DB          redisOps
	CallTimeout time.Duration
}

func NewRedisGuard(db redisOps, callTimeout time.Duration) *RedisGuard {
	if callTimeout <= 0 {
		callTimeout = 3 * time.Second
	}
	return &RedisGuard{DB: db, CallTimeout: callTimeout}
}

func (g *RedisGuard) key(linkID string) string {
	return fmt.Sprintf(keyTmplOneTime, linkID)
}

func (g *RedisGuard) Register(ctx context.Context, linkID string, ttl time.Duration) *pe.Err {
	clog := log.WithFields(log.Fields{"linkID": linkID, "ttl": ttl})
	ctx, cancel := context.WithTimeout(ctx, g.CallTimeout)
	defer cancel()
	if _, err := g.DB.Set(ctx, g.key(linkID), flagUnconsumed, ttl).Result(); err != nil {
		clog.WithError(err).Error("Register: error calling redis to create consumption flag")
		return pe.NewServiceFailure("error registering one-time flag").WithCause(err)
	}
	return nil
}

// Claim issues a single SET..XX GET KEEPTTL round trip: write the consumed marker
// only if the flag still exists, keep its TTL, and get the prior value back in the
// same command. The prior value decides the winner. A read-then-write pair here
// would open a window where two concurrent readers both observe "unconsumed".
func (g *RedisGuard) Claim(ctx context.Context, linkID string) (bool, *pe.Err) {
	clog := log.WithField("linkID", linkID)
	ctx, cancel := context.WithTimeout(ctx, g.CallTimeout)
	defer cancel()
	prev, err := g.DB.SetArgs(ctx, g.key(linkID), flagConsumed, redis.SetArgs{
		Mode:    "XX",
		Get:     true,
		KeepTTL: true,
	}).Result()
	if errors.Is(err, redis.Nil) {
		// flag absent: TTL ran out, so the link is expired territory anyway
		return false, nil
	}
	if err != nil {
		clog.WithError(err).Error("Claim: error calling redis to claim consumption flag")
		return false, pe.NewServiceFailure("error claiming one-time flag").WithCause(err)
	}
	return prev == flagUnconsumed, nil
}

func (g *RedisGuard) Close() *pe.Err {
	if err := g.DB.Close(); err != nil {
		return pe.NewServiceFailure("error closing redis client").WithCause(err)
	}
	return nil
}

// Package lock serialises ledger writers across service instances with a
// redis lease per budget and category pair.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ErrNotAcquired is returned when the lease stays taken for the whole wait.
var ErrNotAcquired = errors.New("ledger lock not acquired")

var errBusy = errors.New("lock busy")

type Locker struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
	wait   time.Duration
	log    zerolog.Logger
}

func NewLocker(client *redis.Client, ttl time.Duration, log zerolog.Logger) *Locker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{
		client: client,
		script: redis.NewScript(releaseScript),
		ttl:    ttl,
		wait:   ttl,
		log:    log.With().Str("component", "lock").Logger(),
	}
}

func PairKey(budgetID, kekvID uuid.UUID) string {
	return fmt.Sprintf("ledger:budget:%s:kekv:%s", budgetID, kekvID)
}

// AcquirePair blocks until the budget/category lease is held, then returns
// the function that releases it. A nil Locker acquires nothing.
func (l *Locker) AcquirePair(ctx context.Context, budgetID, kekvID uuid.UUID) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}

	key := PairKey(budgetID, kekvID)
	token := uuid.NewString()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errBusy
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(25*time.Millisecond)),
		backoff.WithMaxElapsedTime(l.wait),
	)
	if err != nil {
		if errors.Is(err, errBusy) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}

	return func() {
		// release must outlive a cancelled request context
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := l.script.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("failed to release ledger lock")
		}
	}, nil
}

func (l *Locker) Ping(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Ping(ctx).Err()
}

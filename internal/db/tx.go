package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Transactor runs units of work atomically, retrying the whole unit when
// the store reports a transient failure. Business errors returned by the
// unit are never retried.
type Transactor struct {
	db         *gorm.DB
	maxTries   uint
	log        zerolog.Logger
	newBackOff func() backoff.BackOff
}

func NewTransactor(db *gorm.DB, maxRetries int, log zerolog.Logger) *Transactor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Transactor{
		db:       db,
		maxTries: uint(maxRetries) + 1,
		log:      log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

func (t *Transactor) DB() *gorm.DB {
	return t.db
}

func (t *Transactor) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := t.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		t.log.Warn().Err(err).Int("attempt", attempt).Msg("transient storage failure, retrying transaction")
		return struct{}{}, err
	}, backoff.WithBackOff(t.newBackOff()), backoff.WithMaxTries(t.maxTries))
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}

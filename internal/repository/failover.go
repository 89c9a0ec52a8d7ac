package repository

import (
	"context"
	"sync/atomic"
	"time"

	"courtbook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverClaimStore uses the primary store and switches to the fallback
// when the primary errors. The primary is retried once per recoveryInterval.
// Once the fallback has taken claims it is consulted before the primary, so
// a key claimed during an outage is not claimed again after recovery.
type FailoverClaimStore struct {
	primary   domain.ClaimStore
	fallback  domain.ClaimStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	fellBack  atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverClaimStore(primary, fallback domain.ClaimStore, logger *zerolog.Logger) *FailoverClaimStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverClaimStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverClaimStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary claim store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverClaimStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.usePrimary() {
		if r.fellBack.Load() {
			held, err := r.fallback.Claim(ctx, key, ttl)
			if err == nil && !held {
				return false, nil
			}
		}
		ok, err := r.primary.Claim(ctx, key, ttl)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary claim store recovered")
			}
			return ok, nil
		}
		r.markDown(err)
	}

	r.fellBack.Store(true)
	return r.fallback.Claim(ctx, key, ttl)
}

func (r *FailoverClaimStore) Release(ctx context.Context, key string) error {
	if !r.isDown.Load() {
		err := r.primary.Release(ctx, key)
		if err == nil {
			if r.fellBack.Load() {
				if err := r.fallback.Release(ctx, key); err != nil {
					r.logger.Warn().Err(err).Str("key", key).Msg("Failed to release fallback claim")
				}
			}
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Release(ctx, key)
}

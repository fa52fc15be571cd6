package store

import (
	"time"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/memcload/internal/common/loaderrors"
)

// RetryingStore retries transient failures of the wrapped store a bounded number of times.
type RetryingStore struct {
	Store
	attempts uint
	delay    time.Duration
}

func NewRetryingStore(s Store, attempts uint, delay time.Duration) *RetryingStore {
	return &RetryingStore{Store: s, attempts: attempts, delay: delay}
}

func (s *RetryingStore) Put(key string, value []byte) error {
	return retry.Do(
		func() error {
			return s.Store.Put(key, value)
		},
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(loaderrors.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Debugf("Retrying write of %s to %s (attempt %d)", key, s.Addr(), n+1)
		}),
	)
}

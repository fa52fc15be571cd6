package store

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/memcload/internal/common/loaderrors"
	"github.com/G-Research/memcload/internal/memcload/configuration"
)

// Store is a single shard of the key-value store. Implementations own their connection, timeout and retry
// policy; callers never retry a failed Put.
type Store interface {
	// Put stores value under key. Errors are returned as *loaderrors.ErrStore.
	Put(key string, value []byte) error
	Addr() string
	Close() error
}

// LogScoper is implemented by stores whose own log lines should carry the fields of the caller's logger.
type LogScoper interface {
	WithLogger(logger *log.Entry) Store
}

// WithLogger returns s scoped to logger if it supports that, and s itself otherwise.
func WithLogger(s Store, logger *log.Entry) Store {
	if scoper, ok := s.(LogScoper); ok {
		return scoper.WithLogger(logger)
	}
	return s
}

// New creates the store for the shard at addr according to config. In dry-run mode no connection is made and
// writes are only logged.
func New(config configuration.StoreConfig, addr string, dry bool) (Store, error) {
	var s Store
	switch {
	case dry:
		return NewDryRunStore(addr), nil
	case config.Kind == configuration.StoreKindRedis:
		s = NewRedisStore(addr, config)
	case config.Kind == configuration.StoreKindMemcache || config.Kind == "":
		s = NewMemcacheStore(addr, config)
	default:
		return nil, errors.Errorf("unknown store kind %q", config.Kind)
	}
	if config.Attempts > 1 {
		s = NewRetryingStore(s, config.Attempts, config.RetryDelay)
	}
	return s, nil
}

// NewAll creates one store per address.
func NewAll(config configuration.StoreConfig, addrs []string, dry bool) (map[string]Store, error) {
	stores := make(map[string]Store, len(addrs))
	for _, addr := range addrs {
		s, err := New(config, addr, dry)
		if err != nil {
			CloseAll(stores)
			return nil, err
		}
		stores[addr] = s
	}
	return stores, nil
}

// CloseAll closes every store, returning the first error encountered.
func CloseAll(stores map[string]Store) error {
	var first error
	for _, s := range stores {
		if err := s.Close(); err != nil && first == nil {
			first = errors.WithMessagef(err, "closing store %s", s.Addr())
		}
	}
	return first
}

func storeError(addr, key string, err error) error {
	return &loaderrors.ErrStore{Addr: addr, Key: key, Err: err}
}

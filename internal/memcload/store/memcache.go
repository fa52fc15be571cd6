package store

import (
	"github.com/bradfitz/gomemcache/memcache"

	"github.com/G-Research/memcload/internal/memcload/configuration"
)

// MemcacheStore writes values to a single memcached instance. Connections are kept open between writes.
type MemcacheStore struct {
	addr   string
	client *memcache.Client
}

func NewMemcacheStore(addr string, config configuration.StoreConfig) *MemcacheStore {
	client := memcache.New(addr)
	if config.Timeout > 0 {
		client.Timeout = config.Timeout
	}
	if config.MaxIdleConns > 0 {
		client.MaxIdleConns = config.MaxIdleConns
	}
	return &MemcacheStore{addr: addr, client: client}
}

func (s *MemcacheStore) Put(key string, value []byte) error {
	if err := s.client.Set(&memcache.Item{Key: key, Value: value}); err != nil {
		return storeError(s.addr, key, err)
	}
	return nil
}

func (s *MemcacheStore) Addr() string {
	return s.addr
}

// Close is a no-op: idle memcached connections are released when the process exits.
func (s *MemcacheStore) Close() error {
	return nil
}

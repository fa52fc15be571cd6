package store

import (
	"github.com/go-redis/redis"

	"github.com/G-Research/memcload/internal/memcload/configuration"
)

// RedisStore writes values with SET to a single redis instance.
type RedisStore struct {
	addr string
	db   redis.UniversalClient
}

func NewRedisStore(addr string, config configuration.StoreConfig) *RedisStore {
	db := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		MinIdleConns: config.MaxIdleConns,
	})
	return NewRedisStoreWithClient(addr, db)
}

func NewRedisStoreWithClient(addr string, db redis.UniversalClient) *RedisStore {
	return &RedisStore{addr: addr, db: db}
}

func (s *RedisStore) Put(key string, value []byte) error {
	if err := s.db.Set(key, value, 0).Err(); err != nil {
		return storeError(s.addr, key, err)
	}
	return nil
}

func (s *RedisStore) Addr() string {
	return s.addr
}

func (s *RedisStore) Close() error {
	return s.db.Close()
}

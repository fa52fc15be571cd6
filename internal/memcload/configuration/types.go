package configuration

import (
	"time"
)

type StoreKind string

const (
	StoreKindMemcache StoreKind = "memcache"
	StoreKindRedis    StoreKind = "redis"
)

type MemcLoadConfiguration struct {
	// Glob pattern selecting the input files. Supports ** and a leading ~.
	Pattern string `validate:"required"`
	// Log intended writes instead of performing them
	Dry bool
	// If set, log to this file instead of stdout
	Log string
	// Log level; defaults to info, or debug when Dry is set
	LogLevel string
	// Run the serialization self check and exit
	Test bool
	// Shard address for each device type
	Shards map[string]string `validate:"required,min=1,dive,keys,required,endkeys,required"`
	// Error rate at or above which a file load is reported as failed
	ErrorRateThreshold float64 `validate:"gt=0,lte=1"`
	// Port to expose prometheus metrics on. Zero disables the endpoint
	MetricsPort uint16
	Pipeline    PipelineConfig
	Store       StoreConfig
}

type PipelineConfig struct {
	// Number of goroutines parsing lines from the intake queue
	ParserWorkers int `validate:"gte=1"`
	// Number of goroutines writing to each shard
	WritersPerShard int `validate:"gte=1"`
	// Capacity of the queue between the file reader and the parsers
	IntakeQueueCapacity int `validate:"gte=1"`
	// Capacity of each shard's queue
	ShardQueueCapacity int `validate:"gte=1"`
}

type StoreConfig struct {
	Kind StoreKind `validate:"oneof=memcache redis"`
	// Timeout applied to connecting to and talking with a shard
	Timeout time.Duration `validate:"gte=0"`
	// Number of attempts per put, including the first one. 1 disables retrying
	Attempts uint `validate:"gte=1"`
	// Delay between attempts
	RetryDelay time.Duration `validate:"gte=0"`
	// Maximum idle connections kept per shard
	MaxIdleConns int `validate:"gte=0"`
}

// ShardLookup returns a copy of the device type -> address mapping.
func (c MemcLoadConfiguration) ShardLookup() map[string]string {
	out := make(map[string]string, len(c.Shards))
	for k, v := range c.Shards {
		out[k] = v
	}
	return out
}

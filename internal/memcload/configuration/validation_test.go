package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() MemcLoadConfiguration {
	return MemcLoadConfiguration{
		Pattern:            "/data/appsinstalled/*.tsv.gz",
		Shards:             map[string]string{"idfa": "127.0.0.1:33013", "gaid": "127.0.0.1:33014"},
		ErrorRateThreshold: 0.01,
		Pipeline: PipelineConfig{
			ParserWorkers:       4,
			WritersPerShard:     2,
			IntakeQueueCapacity: 100,
			ShardQueueCapacity:  100,
		},
		Store: StoreConfig{
			Kind:     StoreKindMemcache,
			Timeout:  time.Second,
			Attempts: 1,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate func(c *MemcLoadConfiguration)
		valid  bool
	}{
		"valid":              {mutate: func(c *MemcLoadConfiguration) {}, valid: true},
		"no pattern":         {mutate: func(c *MemcLoadConfiguration) { c.Pattern = "" }},
		"no shards":          {mutate: func(c *MemcLoadConfiguration) { c.Shards = map[string]string{} }},
		"empty address":      {mutate: func(c *MemcLoadConfiguration) { c.Shards["dvid"] = "" }},
		"zero threshold":     {mutate: func(c *MemcLoadConfiguration) { c.ErrorRateThreshold = 0 }},
		"threshold above 1":  {mutate: func(c *MemcLoadConfiguration) { c.ErrorRateThreshold = 1.5 }},
		"no parsers":         {mutate: func(c *MemcLoadConfiguration) { c.Pipeline.ParserWorkers = 0 }},
		"no writers":         {mutate: func(c *MemcLoadConfiguration) { c.Pipeline.WritersPerShard = 0 }},
		"zero capacity":      {mutate: func(c *MemcLoadConfiguration) { c.Pipeline.ShardQueueCapacity = 0 }},
		"unknown store kind": {mutate: func(c *MemcLoadConfiguration) { c.Store.Kind = "etcd" }},
		"redis store":        {mutate: func(c *MemcLoadConfiguration) { c.Store.Kind = StoreKindRedis }, valid: true},
		"zero attempts":      {mutate: func(c *MemcLoadConfiguration) { c.Store.Attempts = 0 }},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(&c)
			err := c.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestShardLookup_IsACopy(t *testing.T) {
	c := validConfig()
	lookup := c.ShardLookup()
	lookup["idfa"] = "changed"
	assert.Equal(t, "127.0.0.1:33013", c.Shards["idfa"])
}

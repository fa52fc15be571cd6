package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	a := &AppsInstalled{DevType: "idfa", DevId: "1rfw452y52g2gq4g"}
	assert.Equal(t, "idfa:1rfw452y52g2gq4g", a.Key())
}

func TestCounters_Concurrent(t *testing.T) {
	c := NewCounters()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncProcessed()
				if j%10 == 0 {
					c.IncErrors()
				}
			}
		}()
	}
	wg.Wait()
	c.AddErrors(5)

	processed, errors := c.Snapshot()
	assert.Equal(t, uint64(5000), processed)
	assert.Equal(t, uint64(505), errors)
}

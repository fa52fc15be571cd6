package model

import (
	"sync"
)

// AppsInstalled is one parsed input line: the apps installed on a device, plus where the device was seen.
type AppsInstalled struct {
	DevType string
	DevId   string
	Lat     float64
	Lon     float64
	Apps    []int64
}

// Key is the key the record is stored under on its shard.
func (a *AppsInstalled) Key() string {
	return a.DevType + ":" + a.DevId
}

// Counters tallies the outcome of every record of one input file. A single instance is shared by all parser and
// writer workers of a run; values are only meaningful once every worker of the run has stopped.
type Counters struct {
	mu        sync.Mutex
	processed uint64
	errors    uint64
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) IncProcessed() {
	c.mu.Lock()
	c.processed++
	c.mu.Unlock()
}

func (c *Counters) IncErrors() {
	c.AddErrors(1)
}

func (c *Counters) AddErrors(n uint64) {
	c.mu.Lock()
	c.errors += n
	c.mu.Unlock()
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() (processed uint64, errors uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed, c.errors
}

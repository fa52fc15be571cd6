package writer

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/G-Research/memcload/internal/common/loaderrors"
	"github.com/G-Research/memcload/internal/memcload/metrics"
	"github.com/G-Research/memcload/internal/memcload/model"
	"github.com/G-Research/memcload/internal/memcload/queue"
	"github.com/G-Research/memcload/internal/memcload/store"
	"github.com/G-Research/memcload/internal/memcload/userapps"
)

// Pool is the set of workers draining one shard's queue into that shard's store.
//
// A failed write is counted and dropped; it never stops the worker. A worker that panics is logged and stops,
// the remaining workers carry on. If every worker has stopped this way the queue is abandoned so producers
// cannot block on it, and Wait reports an *loaderrors.ErrShutdown.
type Pool struct {
	addr     string
	queue    *queue.Queue[*model.AppsInstalled]
	store    store.Store
	counters *model.Counters
	workers  int
	metrics  *metrics.Metrics
	logger   *log.Entry

	group   errgroup.Group
	mu      sync.Mutex
	live    int
	started bool
}

func NewPool(
	q *queue.Queue[*model.AppsInstalled],
	s store.Store,
	counters *model.Counters,
	workers int,
	m *metrics.Metrics,
	logger *log.Entry,
) *Pool {
	logger = logger.WithField("shard", s.Addr())
	return &Pool{
		addr:     s.Addr(),
		queue:    q,
		store:    store.WithLogger(s, logger),
		counters: counters,
		workers:  workers,
		metrics:  m,
		logger:   logger,
	}
}

// Start launches the workers. It must be called exactly once.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		panic(fmt.Sprintf("writer pool for %s started twice", p.addr))
	}
	p.started = true
	p.live = p.workers
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		id := i
		p.group.Go(func() error {
			return p.work(id)
		})
	}
}

// Wait blocks until every worker has stopped. Workers only stop normally once the queue is closed, so callers
// must Close the queue first. Any records left in an abandoned queue are counted as errors.
func (p *Pool) Wait() error {
	err := p.group.Wait()
	if p.Live() > 0 {
		return nil
	}
	dropped := 0
	for range p.queue.Items() {
		dropped++
	}
	if dropped > 0 {
		p.counters.AddErrors(uint64(dropped))
		p.metrics.RecordErrors(metrics.RecordErrorDropped, dropped)
		p.logger.Errorf("Dropped %d queued records: no writers left", dropped)
	}
	return &loaderrors.ErrShutdown{Message: fmt.Sprintf("all %d writers for shard %s died", p.workers, p.addr), Err: err}
}

// Live returns the number of workers that have not died.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *Pool) work(id int) (err error) {
	logger := p.logger.WithField("worker", id)
	var current *model.AppsInstalled
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writer %d for %s panicked: %v", id, p.addr, r)
			logger.Errorf("Writer died: %v", r)
			if current != nil {
				p.counters.IncErrors()
				p.metrics.RecordError(metrics.RecordErrorStore)
			}
			p.metrics.RecordWorkerDeath("writer")
			p.workerDied()
		}
	}()

	for current = range p.queue.Items() {
		p.write(current, logger)
		current = nil
	}
	return nil
}

func (p *Pool) write(record *model.AppsInstalled, logger *log.Entry) {
	key := record.Key()
	packed := userapps.Marshal(userapps.FromAppsInstalled(record))

	start := time.Now()
	if err := p.store.Put(key, packed); err != nil {
		logger.WithError(err).Errorf("Cannot write to memc %s", p.addr)
		p.counters.IncErrors()
		p.metrics.RecordError(metrics.RecordErrorStore)
		return
	}
	p.counters.IncProcessed()
	p.metrics.RecordStored(p.addr, time.Since(start))
}

func (p *Pool) workerDied() {
	p.mu.Lock()
	p.live--
	remaining := p.live
	p.mu.Unlock()
	if remaining == 0 {
		p.logger.Error("No writers left, abandoning queue")
		p.queue.Abandon()
	}
}

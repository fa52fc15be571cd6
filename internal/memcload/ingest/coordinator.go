package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/G-Research/memcload/internal/common/compress"
	"github.com/G-Research/memcload/internal/common/loaderrors"
	"github.com/G-Research/memcload/internal/memcload/configuration"
	"github.com/G-Research/memcload/internal/memcload/metrics"
	"github.com/G-Research/memcload/internal/memcload/model"
	"github.com/G-Research/memcload/internal/memcload/parse"
	"github.com/G-Research/memcload/internal/memcload/queue"
	"github.com/G-Research/memcload/internal/memcload/route"
	"github.com/G-Research/memcload/internal/memcload/store"
	"github.com/G-Research/memcload/internal/memcload/writer"
)

type State int32

const (
	Idle State = iota
	Running
	Draining
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Result is the outcome of loading one input.
type Result struct {
	Processed uint64
	Errors    uint64
}

type shard struct {
	queue *queue.Queue[*model.AppsInstalled]
	pool  *writer.Pool
}

// Coordinator loads a single line source: it reads lines into the intake queue, runs the parser workers that
// route parsed records onto the shard queues, and runs one writer pool per shard.
//
// Shutdown happens in a fixed order. Once the source is exhausted (or the context is cancelled) the intake queue
// is closed and every parser is waited for; only then are the shard queues closed and every writer waited for.
// The counters are read after that, so the returned Result is final. A Coordinator runs once.
type Coordinator struct {
	config  configuration.PipelineConfig
	router  *route.Router
	stores  map[string]store.Store
	metrics *metrics.Metrics
	logger  *log.Entry
	state   int32

	mu          sync.Mutex
	liveParsers int
}

func NewCoordinator(
	config configuration.PipelineConfig,
	router *route.Router,
	stores map[string]store.Store,
	m *metrics.Metrics,
	logger *log.Entry,
) *Coordinator {
	return &Coordinator{
		config:  config,
		router:  router,
		stores:  stores,
		metrics: m,
		logger:  logger,
	}
}

func (c *Coordinator) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Coordinator) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
	c.logger.Debugf("Coordinator %s", s)
}

// Run loads every line of lines. The returned error is non-nil if the load could not complete cleanly: the
// source failed, ctx was cancelled, or a worker pool died. Even then all workers have stopped when Run returns.
func (c *Coordinator) Run(ctx context.Context, lines compress.LineSource) (Result, error) {
	if !atomic.CompareAndSwapInt32(&c.state, int32(Idle), int32(Running)) {
		return Result{}, errors.Errorf("coordinator already used (state %s)", c.State())
	}
	c.logger.Debugf("Coordinator %s", Running)

	counters := model.NewCounters()
	shards, err := c.startShards(counters)
	if err != nil {
		c.setState(Done)
		return Result{}, err
	}
	intake := queue.New[[]byte]("intake", c.config.IntakeQueueCapacity)
	parsers := c.startParsers(intake, shards, counters)

	var result *multierror.Error
	if err := c.feed(ctx, lines, intake); err != nil {
		result = multierror.Append(result, err)
	}

	c.setState(Draining)
	intake.Close()
	if err := c.waitParsers(parsers, intake, counters); err != nil {
		result = multierror.Append(result, err)
	}
	for _, s := range shards {
		s.queue.Close()
	}
	for addr, s := range shards {
		if err := s.pool.Wait(); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "draining shard %s", addr))
		}
	}
	c.setState(Done)

	processed, errs := counters.Snapshot()
	return Result{Processed: processed, Errors: errs}, result.ErrorOrNil()
}

func (c *Coordinator) startShards(counters *model.Counters) (map[string]*shard, error) {
	shards := make(map[string]*shard, len(c.stores))
	for _, addr := range c.router.Addresses() {
		s, ok := c.stores[addr]
		if !ok {
			return nil, errors.Errorf("no store configured for shard %s", addr)
		}
		q := queue.New[*model.AppsInstalled](addr, c.config.ShardQueueCapacity)
		shards[addr] = &shard{
			queue: q,
			pool:  writer.NewPool(q, s, counters, c.config.WritersPerShard, c.metrics, c.logger),
		}
	}
	for _, s := range shards {
		s.pool.Start()
	}
	return shards, nil
}

// feed pushes every line of the source onto the intake queue. It stops early if ctx is cancelled or if
// every parser has died.
func (c *Coordinator) feed(ctx context.Context, lines compress.LineSource, intake *queue.Queue[[]byte]) error {
	for {
		if ctx.Err() != nil {
			return c.interrupted(ctx)
		}
		line, err := lines.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &loaderrors.ErrShutdown{Message: "reading input", Err: err}
		}
		if err := intake.Push(ctx, line); err != nil {
			if ctx.Err() != nil {
				return c.interrupted(ctx)
			}
			return &loaderrors.ErrShutdown{Message: "intake rejected line", Err: err}
		}
	}
}

func (c *Coordinator) interrupted(ctx context.Context) error {
	c.logger.Warn("Interrupted, draining in-flight work")
	return &loaderrors.ErrShutdown{Message: "interrupted", Err: ctx.Err()}
}

func (c *Coordinator) startParsers(intake *queue.Queue[[]byte], shards map[string]*shard, counters *model.Counters) *errgroup.Group {
	c.mu.Lock()
	c.liveParsers = c.config.ParserWorkers
	c.mu.Unlock()

	g := &errgroup.Group{}
	for i := 0; i < c.config.ParserWorkers; i++ {
		id := i
		g.Go(func() error {
			return c.parseWorker(id, intake, shards, counters)
		})
	}
	return g
}

// waitParsers waits for every parser to stop. Losing some parsers is tolerated; losing all of them fails the
// load, and any lines they left behind are counted as errors.
func (c *Coordinator) waitParsers(parsers *errgroup.Group, intake *queue.Queue[[]byte], counters *model.Counters) error {
	err := parsers.Wait()
	c.mu.Lock()
	live := c.liveParsers
	c.mu.Unlock()
	if live > 0 {
		return nil
	}
	dropped := 0
	for range intake.Items() {
		dropped++
	}
	if dropped > 0 {
		counters.AddErrors(uint64(dropped))
		c.metrics.RecordErrors(metrics.RecordErrorDropped, dropped)
	}
	return &loaderrors.ErrShutdown{Message: fmt.Sprintf("all %d parsers died", c.config.ParserWorkers), Err: err}
}

func (c *Coordinator) parseWorker(id int, intake *queue.Queue[[]byte], shards map[string]*shard, counters *model.Counters) (err error) {
	logger := c.logger.WithField("parser", id)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser %d panicked: %v", id, r)
			logger.Errorf("Parser died: %v", r)
			counters.IncErrors()
			c.metrics.RecordWorkerDeath("parser")
			c.parserDied(intake)
		}
	}()

	for line := range intake.Items() {
		c.processLine(line, shards, counters, logger)
	}
	return nil
}

func (c *Coordinator) parserDied(intake *queue.Queue[[]byte]) {
	c.mu.Lock()
	c.liveParsers--
	remaining := c.liveParsers
	c.mu.Unlock()
	if remaining == 0 {
		c.logger.Error("No parsers left, abandoning intake queue")
		intake.Abandon()
	}
}

// processLine parses, routes and enqueues one line. A line that fails to parse is counted as an error and is
// not routed.
func (c *Coordinator) processLine(line []byte, shards map[string]*shard, counters *model.Counters, logger *log.Entry) {
	record, err := parse.AppsInstalled(line)
	if err != nil {
		logger.WithError(err).Debug("Skipping malformed line")
		counters.IncErrors()
		c.metrics.RecordError(metrics.RecordErrorParse)
		return
	}
	if record == nil {
		return
	}

	addr, err := c.router.Route(record.DevType)
	if err != nil {
		logger.Errorf("Unknown device type: %s", record.DevType)
		counters.IncErrors()
		c.metrics.RecordError(metrics.RecordErrorRouting)
		return
	}

	// Records already parsed are always handed on, even during an interrupt, so the context is not used here.
	if err := shards[addr].queue.Push(context.Background(), record); err != nil {
		logger.WithError(err).Errorf("Dropping %s", record.Key())
		counters.IncErrors()
		c.metrics.RecordError(metrics.RecordErrorDropped)
	}
}

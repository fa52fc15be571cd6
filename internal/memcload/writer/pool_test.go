package writer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/memcload/internal/common/loaderrors"
	"github.com/G-Research/memcload/internal/memcload/metrics"
	"github.com/G-Research/memcload/internal/memcload/model"
	"github.com/G-Research/memcload/internal/memcload/queue"
	"github.com/G-Research/memcload/internal/memcload/store"
	"github.com/G-Research/memcload/internal/memcload/userapps"
)

type fakeStore struct {
	mu        sync.Mutex
	stored    map[string][]byte
	failKeys  map[string]bool
	panics    int
	panicAll  bool
	putCalled int
}

func (s *fakeStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalled++
	if s.panicAll || s.panics > 0 {
		s.panics--
		panic("store exploded")
	}
	if s.failKeys[key] {
		return &loaderrors.ErrStore{Addr: "fake:1", Key: key, Err: fmt.Errorf("timeout")}
	}
	if s.stored == nil {
		s.stored = map[string][]byte{}
	}
	s.stored[key] = value
	return nil
}

func (s *fakeStore) Addr() string { return "fake:1" }

func (s *fakeStore) Close() error { return nil }

func records(n int) []*model.AppsInstalled {
	out := make([]*model.AppsInstalled, n)
	for i := range out {
		out[i] = &model.AppsInstalled{DevType: "idfa", DevId: fmt.Sprintf("D%d", i), Lat: 1, Lon: 2, Apps: []int64{int64(i)}}
	}
	return out
}

func newTestPool(s *fakeStore, workers int, recs []*model.AppsInstalled) (*Pool, *queue.Queue[*model.AppsInstalled], *model.Counters) {
	q := queue.New[*model.AppsInstalled]("fake:1", len(recs)+1)
	for _, r := range recs {
		if err := q.Push(context.Background(), r); err != nil {
			panic(err)
		}
	}
	counters := model.NewCounters()
	return NewPool(q, s, counters, workers, metrics.Get(), log.NewEntry(log.StandardLogger())), q, counters
}

func waitWithTimeout(t *testing.T, p *Pool) error {
	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not drain")
		return nil
	}
}

func TestPool_StoresEveryRecord(t *testing.T) {
	s := &fakeStore{}
	recs := records(100)
	p, q, counters := newTestPool(s, 4, recs)
	p.Start()
	q.Close()
	require.NoError(t, waitWithTimeout(t, p))

	processed, errors := counters.Snapshot()
	assert.Equal(t, uint64(100), processed)
	assert.Equal(t, uint64(0), errors)
	require.Len(t, s.stored, 100)

	decoded, err := userapps.Unmarshal(s.stored["idfa:D7"])
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, decoded.Apps)
	assert.Equal(t, 1.0, decoded.Lat)
	assert.Equal(t, 2.0, decoded.Lon)
}

func TestPool_StoreErrorsAreCountedNotRetried(t *testing.T) {
	s := &fakeStore{failKeys: map[string]bool{"idfa:D3": true, "idfa:D5": true}}
	p, q, counters := newTestPool(s, 3, records(10))
	p.Start()
	q.Close()
	require.NoError(t, waitWithTimeout(t, p))

	processed, errors := counters.Snapshot()
	assert.Equal(t, uint64(8), processed)
	assert.Equal(t, uint64(2), errors)
	assert.Equal(t, 10, s.putCalled)
	assert.Equal(t, 3, p.Live())
}

func TestPool_SurvivesSingleWorkerDeath(t *testing.T) {
	s := &fakeStore{panics: 1}
	p, q, counters := newTestPool(s, 2, records(20))
	p.Start()
	q.Close()
	require.NoError(t, waitWithTimeout(t, p))

	processed, errors := counters.Snapshot()
	assert.Equal(t, uint64(19), processed)
	assert.Equal(t, uint64(1), errors)
	assert.Equal(t, 1, p.Live())
}

func TestPool_AllWorkersDead(t *testing.T) {
	s := &fakeStore{panicAll: true}
	p, q, counters := newTestPool(s, 2, records(5))
	p.Start()
	q.Close()
	err := waitWithTimeout(t, p)

	var shutdownErr *loaderrors.ErrShutdown
	require.ErrorAs(t, err, &shutdownErr)
	assert.Equal(t, 0, p.Live())
	assert.True(t, q.IsAbandoned())

	processed, errors := counters.Snapshot()
	assert.Equal(t, uint64(0), processed)
	assert.Equal(t, uint64(5), errors)
}

func TestPool_RepeatedShutdownIsSafe(t *testing.T) {
	p, q, _ := newTestPool(&fakeStore{}, 2, records(3))
	p.Start()
	q.Close()
	require.NoError(t, waitWithTimeout(t, p))

	q.Close()
	require.NoError(t, waitWithTimeout(t, p))
}

func TestPool_StartTwicePanics(t *testing.T) {
	p, q, _ := newTestPool(&fakeStore{}, 1, nil)
	p.Start()
	assert.Panics(t, p.Start)
	q.Close()
	require.NoError(t, waitWithTimeout(t, p))
}

func TestPool_DryRunWritesCarryRunFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	entry := logger.WithFields(log.Fields{"file": "a.tsv.gz", "runId": "r1"})

	q := queue.New[*model.AppsInstalled]("127.0.0.1:33013", 2)
	require.NoError(t, q.Push(context.Background(), records(1)[0]))
	p := NewPool(q, store.NewDryRunStore("127.0.0.1:33013"), model.NewCounters(), 1, metrics.Get(), entry)
	p.Start()
	q.Close()
	require.NoError(t, waitWithTimeout(t, p))

	var writes []*log.Entry
	for _, e := range hook.AllEntries() {
		if e.Data["shard"] == "127.0.0.1:33013" && e.Data["runId"] == "r1" && e.Data["file"] == "a.tsv.gz" {
			writes = append(writes, e)
		}
	}
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0].Message, "idfa:D0")
}

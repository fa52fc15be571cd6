package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	RecordError string
	FileOutcome string
)

const (
	RecordErrorParse    RecordError = "parse"
	RecordErrorRouting  RecordError = "routing"
	RecordErrorStore    RecordError = "store"
	RecordErrorDropped  RecordError = "dropped"
	FileOutcomeSuccess  FileOutcome = "success"
	FileOutcomeHighRate FileOutcome = "high_error_rate"
	FileOutcomeEmpty    FileOutcome = "empty"
	FileOutcomeFailed   FileOutcome = "failed"
)

const MemcLoadMetricsPrefix = "memcload_"

type Metrics struct {
	recordsStored  *prometheus.CounterVec
	recordErrors   *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
	filesProcessed *prometheus.CounterVec
	workerDeaths   *prometheus.CounterVec
}

func NewMetrics(prefix string) *Metrics {
	return &Metrics{
		recordsStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "records_stored",
			Help: "Number of records successfully written, grouped by shard",
		}, []string{"shard"}),
		recordErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "record_errors",
			Help: "Number of records that could not be loaded, grouped by reason",
		}, []string{"reason"}),
		storeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "store_put_seconds",
			Help:    "Latency of writes to a shard",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"shard"}),
		filesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "files_processed",
			Help: "Number of input files processed, grouped by outcome",
		}, []string{"outcome"}),
		workerDeaths: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "worker_deaths",
			Help: "Number of workers that stopped on an unexpected failure, grouped by pool",
		}, []string{"pool"}),
	}
}

var m = NewMetrics(MemcLoadMetricsPrefix)

func Get() *Metrics {
	return m
}

func (m *Metrics) RecordStored(shard string, taken time.Duration) {
	m.recordsStored.With(map[string]string{"shard": shard}).Inc()
	m.storeLatency.With(map[string]string{"shard": shard}).Observe(taken.Seconds())
}

func (m *Metrics) RecordError(reason RecordError) {
	m.recordErrors.With(map[string]string{"reason": string(reason)}).Inc()
}

func (m *Metrics) RecordErrors(reason RecordError, n int) {
	m.recordErrors.With(map[string]string{"reason": string(reason)}).Add(float64(n))
}

func (m *Metrics) RecordFile(outcome FileOutcome) {
	m.filesProcessed.With(map[string]string{"outcome": string(outcome)}).Inc()
}

func (m *Metrics) RecordWorkerDeath(pool string) {
	m.workerDeaths.With(map[string]string{"pool": pool}).Inc()
}

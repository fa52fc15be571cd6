package memcload

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/memcload/internal/common/compress"
	"github.com/G-Research/memcload/internal/common/loaderrors"
	"github.com/G-Research/memcload/internal/common/util"
	"github.com/G-Research/memcload/internal/memcload/configuration"
	"github.com/G-Research/memcload/internal/memcload/files"
	"github.com/G-Research/memcload/internal/memcload/ingest"
	"github.com/G-Research/memcload/internal/memcload/metrics"
	"github.com/G-Research/memcload/internal/memcload/route"
	"github.com/G-Research/memcload/internal/memcload/store"
)

// Summary totals a whole run.
type Summary struct {
	Files     int
	Failed    int
	Processed uint64
	Errors    uint64
}

// Loader loads every file matching the configured pattern, one file at a time. Connections to the shards are
// opened once and shared by every file.
type Loader struct {
	config  configuration.MemcLoadConfiguration
	router  *route.Router
	stores  map[string]store.Store
	metrics *metrics.Metrics
}

func NewLoader(config configuration.MemcLoadConfiguration) (*Loader, error) {
	router := route.NewRouter(config.ShardLookup())
	stores, err := store.NewAll(config.Store, router.Addresses(), config.Dry)
	if err != nil {
		return nil, err
	}
	return &Loader{
		config:  config,
		router:  router,
		stores:  stores,
		metrics: metrics.Get(),
	}, nil
}

// Run loads every pending file. Files that fail structurally are left in place for the next run and reported
// in the returned error; the remaining files are still loaded. Cancelling ctx stops the run after the current
// file has drained.
func (l *Loader) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	paths, err := files.Enumerate(l.config.Pattern)
	if err != nil {
		return summary, err
	}
	if len(paths) == 0 {
		log.Infof("No files to load match %s", l.config.Pattern)
	}

	var result *multierror.Error
	for _, path := range paths {
		if ctx.Err() != nil {
			log.Warnf("Interrupted, not loading remaining %d files", len(paths)-summary.Files)
			break
		}
		summary.Files++
		r, err := l.LoadFile(ctx, path)
		summary.Processed += r.Processed
		summary.Errors += r.Errors
		if err != nil {
			summary.Failed++
			if loaderrors.IsShutdownError(err) {
				log.WithError(err).Errorf("Failed to load %s, leaving it for the next run", path)
			} else {
				log.WithError(err).Errorf("Failed to load %s", path)
			}
			result = multierror.Append(result, err)
		}
	}

	log.Infof("Loaded %d records from %d files (%d failed)", summary.Processed, summary.Files, summary.Failed)
	log.Infof("Total runtime: %s", time.Since(start))
	return summary, result.ErrorOrNil()
}

// LoadFile runs one file through the pipeline and, unless the load failed structurally, marks it as loaded.
// A high error rate is reported but does not stop the file being marked.
func (l *Loader) LoadFile(ctx context.Context, path string) (ingest.Result, error) {
	logger := log.WithFields(log.Fields{"file": path, "runId": uuid.New().String()})
	logger.Infof("Processing %s", path)

	stream, err := compress.OpenLineStream(path)
	if err != nil {
		l.metrics.RecordFile(metrics.FileOutcomeFailed)
		return ingest.Result{}, &loaderrors.ErrShutdown{File: path, Message: "opening input", Err: err}
	}
	coordinator := ingest.NewCoordinator(l.config.Pipeline, l.router, l.stores, l.metrics, logger)
	result, err := coordinator.Run(ctx, stream)
	util.CloseResource(path, stream)
	if err != nil {
		l.metrics.RecordFile(metrics.FileOutcomeFailed)
		return result, &loaderrors.ErrShutdown{File: path, Message: "loading", Err: err}
	}

	outcome, rate := EvaluateErrorRate(result.Processed, result.Errors, l.config.ErrorRateThreshold)
	switch outcome {
	case metrics.FileOutcomeEmpty:
		logger.Warnf("No records loaded from %s (%d errors)", path, result.Errors)
	case metrics.FileOutcomeSuccess:
		logger.Infof("Acceptable error rate (%s, %d processed, %d errors). Successful load",
			formatRate(rate), result.Processed, result.Errors)
	default:
		logger.Errorf("High error rate (%s >= %s, %d processed, %d errors). Failed load",
			formatRate(rate), formatRate(l.config.ErrorRateThreshold), result.Processed, result.Errors)
	}
	l.metrics.RecordFile(outcome)

	renamed, err := files.DotRename(path)
	if err != nil {
		return result, &loaderrors.ErrShutdown{File: path, Message: "marking as loaded", Err: err}
	}
	logger.Debugf("Renamed %s to %s", path, renamed)
	return result, nil
}

func (l *Loader) Close() error {
	return errors.WithMessage(store.CloseAll(l.stores), "closing stores")
}

// EvaluateErrorRate applies the acceptable error rate policy to one file's counters. A file with nothing
// processed is reported as empty and its rate is not checked; otherwise the load succeeds if errors/processed
// is strictly below threshold.
func EvaluateErrorRate(processed, failed uint64, threshold float64) (metrics.FileOutcome, float64) {
	if processed == 0 {
		return metrics.FileOutcomeEmpty, 0
	}
	rate := float64(failed) / float64(processed)
	if rate < threshold {
		return metrics.FileOutcomeSuccess, rate
	}
	return metrics.FileOutcomeHighRate, rate
}

func formatRate(rate float64) string {
	return fmt.Sprintf("%.4f", rate)
}

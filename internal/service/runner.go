package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/casskit/compactlog/internal/correlator"
	"github.com/casskit/compactlog/internal/errors"
	"github.com/casskit/compactlog/internal/metrics"
	"github.com/casskit/compactlog/internal/parser"
	"github.com/casskit/compactlog/internal/util/workerpool"
)

// Runner drives the batch: it walks input files in order, feeds each line
// to the classifier, and folds the resulting events into a correlator.
//
// Per-event parse failures (malformed paths, multiple outputs) reject the
// offending event without touching the task map; they are accumulated and
// returned as a summary so one bad line cannot sink a whole batch. A
// missing input file is only a warning: the file is skipped and the run
// continues.
type Runner struct {
	classifier   *parser.Classifier
	logger       *zap.Logger
	metrics      *metrics.Metrics
	workers      int
	maxLineBytes int
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	// Workers is the number of files parsed concurrently. With 1 the run
	// is strictly sequential; with more, per-file correlators are merged
	// in input-file order, which reproduces the sequential result.
	Workers      int
	MaxLineBytes int
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// Result is the outcome of one batch run.
type Result struct {
	// Correlator owns the final task_id -> CompactionTask map.
	Correlator *correlator.Correlator

	FilesProcessed int
	FilesSkipped   int
	LinesScanned   uint64

	// EventErrors is the accumulated per-event error summary, nil when
	// the batch was clean.
	EventErrors error
}

// fileOutcome collects what one input file contributed.
type fileOutcome struct {
	processed bool
	lines     uint64
	errs      *multierror.Error
}

// NewRunner creates a runner.
func NewRunner(cfg *RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 1 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	m := cfg.Metrics
	if m == nil {
		// Private registry; callers that want scraping pass their own.
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Runner{
		classifier:   parser.NewClassifier(cfg.Logger),
		logger:       cfg.Logger,
		metrics:      m,
		workers:      cfg.Workers,
		maxLineBytes: cfg.MaxLineBytes,
	}
}

// Run processes the given log files in order and returns the correlated
// task map. The returned error is non-nil only when the run itself could
// not proceed (context canceled); per-event failures land in
// Result.EventErrors.
func (r *Runner) Run(ctx context.Context, files []string) (*Result, error) {
	var (
		result *Result
		err    error
	)
	if r.workers > 1 && len(files) > 1 {
		result, err = r.runParallel(ctx, files)
	} else {
		result, err = r.runSequential(ctx, files)
	}
	if err != nil {
		return nil, err
	}

	completed := 0
	for _, t := range result.Correlator.Tasks() {
		if t.Complete() {
			completed++
		}
	}
	r.metrics.TasksTracked.Set(float64(result.Correlator.Len()))
	r.metrics.TasksCompleted.Set(float64(completed))

	r.logger.Info("Batch complete",
		zap.Int("files_processed", result.FilesProcessed),
		zap.Int("files_skipped", result.FilesSkipped),
		zap.Uint64("lines_scanned", result.LinesScanned),
		zap.Int("tasks", result.Correlator.Len()),
		zap.Int("tasks_complete", completed))

	return result, nil
}

func (r *Runner) runSequential(ctx context.Context, files []string) (*Result, error) {
	result := &Result{Correlator: correlator.New(r.logger)}
	var accumulated *multierror.Error

	for _, path := range files {
		outcome, err := r.parseFile(ctx, path, result.Correlator)
		if err != nil {
			return nil, err
		}
		result.LinesScanned += outcome.lines
		if outcome.processed {
			result.FilesProcessed++
		} else {
			result.FilesSkipped++
		}
		accumulated = multierror.Append(accumulated, outcome.errs)
	}

	result.EventErrors = accumulated.ErrorOrNil()
	return result, nil
}

func (r *Runner) runParallel(ctx context.Context, files []string) (*Result, error) {
	pool := workerpool.New(&workerpool.Config{
		Name:      "parse",
		Workers:   r.workers,
		QueueSize: len(files),
		Logger:    r.logger,
	})
	defer pool.Stop(time.Minute)

	outcomes := make([]fileOutcome, len(files))
	correlators := make([]*correlator.Correlator, len(files))

	var wg sync.WaitGroup
	for i, path := range files {
		i, path := i, path
		wg.Add(1)
		job := workerpool.Job{
			Source: path,
			Fn: func(context.Context) error {
				defer wg.Done()
				fileCorr := correlator.New(r.logger)
				outcome, err := r.parseFile(ctx, path, fileCorr)
				outcomes[i] = outcome
				correlators[i] = fileCorr
				return err
			},
		}
		if err := pool.Submit(ctx, job); err != nil {
			wg.Done()
			break
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Fold per-file results in input-file order so duplicate start/end
	// events resolve exactly as a sequential run would.
	result := &Result{Correlator: correlator.New(r.logger)}
	var accumulated *multierror.Error
	for i := range files {
		if correlators[i] == nil {
			continue
		}
		result.Correlator.MergeFrom(correlators[i])
		result.LinesScanned += outcomes[i].lines
		if outcomes[i].processed {
			result.FilesProcessed++
		} else {
			result.FilesSkipped++
		}
		accumulated = multierror.Append(accumulated, outcomes[i].errs)
	}

	result.EventErrors = accumulated.ErrorOrNil()
	return result, nil
}

// parseFile scans one log file line by line into the given correlator.
// The returned error is context cancellation only; everything else is
// either recovered (missing file) or accumulated per event.
func (r *Runner) parseFile(ctx context.Context, path string, corr *correlator.Correlator) (fileOutcome, error) {
	outcome := fileOutcome{}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Warn("Log file not found, skipping",
				zap.String("file", path),
				zap.Error(errors.NewMissingSource(path, err)))
			r.metrics.FilesSkipped.Inc()
			return outcome, nil
		}
		outcome.errs = multierror.Append(outcome.errs, fmt.Errorf("open %s: %w", path, err))
		r.metrics.FilesSkipped.Inc()
		return outcome, nil
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			outcome.errs = multierror.Append(outcome.errs, fmt.Errorf("open gzip %s: %w", path, err))
			r.metrics.FilesSkipped.Inc()
			return outcome, nil
		}
		defer gz.Close()
		reader = gz
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), r.maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		lineNo++
		outcome.lines++
		r.metrics.LinesScanned.Inc()

		event, err := r.classifier.Classify(scanner.Text())
		if err != nil {
			r.metrics.ParseErrors.WithLabelValues(errors.CodeOf(err).String()).Inc()
			outcome.errs = multierror.Append(outcome.errs,
				fmt.Errorf("%s:%d: %w", path, lineNo, err))
			continue
		}

		switch event.(type) {
		case *parser.StartEvent:
			r.metrics.StartEvents.Inc()
		case *parser.EndEvent:
			r.metrics.EndEvents.Inc()
		default:
			r.metrics.UnmatchedLines.Inc()
			continue
		}
		corr.Apply(event)
	}

	if err := scanner.Err(); err != nil {
		outcome.errs = multierror.Append(outcome.errs, fmt.Errorf("read %s: %w", path, err))
	}

	outcome.processed = true
	r.metrics.FilesProcessed.Inc()
	return outcome, nil
}

package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of work, typically one input file to parse.
type Job struct {
	// Source identifies the job in logs (e.g. the file path).
	Source string
	Fn     func(context.Context) error
}

// Pool runs jobs on a bounded set of goroutines. Jobs are independent;
// the submitter is responsible for ordering any results it collects.
type Pool struct {
	name      string
	workers   int
	jobQueue  chan Job
	logger    *zap.Logger
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopChan  chan struct{}
	completed uint64
	failed    uint64
}

// Config holds pool configuration
type Config struct {
	Name      string
	Workers   int
	QueueSize int
	Logger    *zap.Logger
}

// New creates a pool and starts its workers.
func New(cfg *Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	p := &Pool{
		name:     cfg.Name,
		workers:  cfg.Workers,
		jobQueue: make(chan Job, cfg.QueueSize),
		logger:   cfg.Logger,
		stopChan: make(chan struct{}),
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Debug("Worker pool started",
		zap.String("name", p.name),
		zap.Int("workers", p.workers))

	return p
}

// worker is the main worker goroutine
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case job := <-p.jobQueue:
			p.execute(id, job)
		}
	}
}

// execute runs a single job with panic recovery.
func (p *Pool) execute(workerID int, job Job) {
	start := time.Now()
	err := p.safeRun(job)
	duration := time.Since(start)

	if err != nil {
		atomic.AddUint64(&p.failed, 1)
		p.logger.Error("Job failed",
			zap.String("pool", p.name),
			zap.Int("worker_id", workerID),
			zap.String("source", job.Source),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	atomic.AddUint64(&p.completed, 1)
	p.logger.Debug("Job completed",
		zap.String("pool", p.name),
		zap.Int("worker_id", workerID),
		zap.String("source", job.Source),
		zap.Duration("duration", duration))
}

func (p *Pool) safeRun(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			p.logger.Error("Job panic recovered",
				zap.String("pool", p.name),
				zap.String("source", job.Source),
				zap.Any("panic", r))
		}
	}()
	return job.Fn(context.Background())
}

// Submit enqueues a job, blocking until a worker accepts it, the context
// is canceled, or the pool is stopped.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	// Check for stop first: once stopChan is closed the blocking select
	// below could still win the buffered queue send and drop the job.
	select {
	case <-p.stopChan:
		return fmt.Errorf("worker pool '%s' is stopped", p.name)
	default:
	}

	select {
	case <-p.stopChan:
		return fmt.Errorf("worker pool '%s' is stopped", p.name)
	case <-ctx.Done():
		return ctx.Err()
	case p.jobQueue <- job:
		return nil
	}
}

// Stop stops the pool, waiting up to timeout for in-flight jobs.
func (p *Pool) Stop(timeout time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopChan)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Debug("Worker pool stopped", zap.String("name", p.name))
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool '%s' stop timeout after %v", p.name, timeout)
		}
	})
	return err
}

// Completed returns the number of jobs that finished without error.
func (p *Pool) Completed() uint64 {
	return atomic.LoadUint64(&p.completed)
}

// Failed returns the number of jobs whose Fn returned an error or panicked.
func (p *Pool) Failed() uint64 {
	return atomic.LoadUint64(&p.failed)
}

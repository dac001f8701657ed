// Package worker provides an asynchronous worker pool that persists finished
// answer transcripts to a storage.Driver and announces them on an optional
// eventstream.Publisher.
//
// The pool decouples storage operations from the proxy's HTTP hot path so that
// the client-proxy-upstream interaction is fully transparent.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/algoqa/pkg/eventstream"
	"github.com/papercomputeco/algoqa/pkg/logger"
	"github.com/papercomputeco/algoqa/pkg/storage"
	"github.com/papercomputeco/algoqa/pkg/transcript"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 30 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Transcript transcript.Transcript
	Source     eventstream.EventSource
	Request    eventstream.AnswerRequestMeta
	Decode     eventstream.DecodeMeta
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting transcripts.
	Driver storage.Driver

	// Publisher is the optional event stream. Events are only published for
	// transcripts that were stored successfully.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds storage plus publishing for one job (defaults to 30s).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout == 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	l := c.Logger
	if l == nil {
		l = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: l,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"transcript_id", job.Transcript.ID,
			"status", job.Transcript.Status,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"transcript_id", job.Transcript.ID,
			"status", job.Transcript.Status,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the proxy HTTP server has stopped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores the transcript and, once stored, publishes its event.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	t := job.Transcript
	if err := p.config.Driver.Put(ctx, &t); err != nil {
		p.logger.Error("async transcript storage failed",
			"transcript_id", t.ID,
			"error", err,
		)
		return
	}

	p.logger.Info("transcript stored",
		"transcript_id", t.ID,
		"status", t.Status,
		"latency", t.Latency,
		"references", len(t.References),
	)

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewAnswerCompletedEvent(t, job.Source, job.Request, job.Decode)
	if err := p.config.Publisher.PublishAnswer(ctx, event); err != nil {
		// Storage already succeeded; a lost event is logged, not retried.
		p.logger.Warn("failed to publish answer event",
			"transcript_id", t.ID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}

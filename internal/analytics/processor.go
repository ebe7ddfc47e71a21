// Package analytics moves click tracking off the redirect request path. The
// redirect handler submits a job and answers immediately; worker goroutines
// drain the queue and feed the service's best-effort tracker.
package analytics

import (
	"ShortReach-Backend/internal/service"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ClickJob is one resolved visit queued for tracking.
type ClickJob struct {
	LinkID   int64
	Code     string
	Metadata service.ClickMetadata
}

// Tracker is the consumer side of the pipeline, implemented by the short
// link service. Tracking is best-effort: the result is logged, not acted on.
type Tracker interface {
	TrackClick(ctx context.Context, linkID int64, meta service.ClickMetadata) service.TrackResult
}

// ProcessorConfig holds tuning for the click pipeline.
type ProcessorConfig struct {
	WorkerCount     int
	BufferSize      int
	TrackTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:     3,
		BufferSize:      1000,
		TrackTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Processor runs the worker pool draining submitted clicks.
type Processor struct {
	config  ProcessorConfig
	tracker Tracker
	log     *zap.Logger

	jobQueue chan ClickJob
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	dropped  atomic.Int64
	mu       sync.RWMutex
}

// NewProcessor builds a processor around the given tracker.
func NewProcessor(tracker Tracker, log *zap.Logger, config ProcessorConfig) *Processor {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		config:   config,
		tracker:  tracker,
		log:      log,
		jobQueue: make(chan ClickJob, config.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("processor already started")
	}

	p.log.Info("starting click processor",
		zap.Int("workers", p.config.WorkerCount),
		zap.Int("buffer_size", p.config.BufferSize))

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.started = true
	return nil
}

// Stop drains in-flight work and shuts the pool down, bounded by the
// configured shutdown timeout.
func (p *Processor) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return fmt.Errorf("processor not started")
	}

	p.log.Info("stopping click processor")
	close(p.jobQueue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("click processor stopped")
	case <-time.After(p.config.ShutdownTimeout):
		p.cancel()
		p.log.Warn("click processor shutdown timeout reached")
	}

	p.started = false
	return nil
}

// Submit queues a click for tracking. A full queue drops the job: losing a
// click is acceptable, delaying a redirect is not.
func (p *Processor) Submit(job ClickJob) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		p.log.Warn("click submitted before processor start", zap.String("code", job.Code))
		return
	}

	select {
	case p.jobQueue <- job:
	default:
		p.dropped.Add(1)
		p.log.Error("click queue full, dropping click",
			zap.String("code", job.Code),
			zap.Int("queue_size", len(p.jobQueue)))
	}
}

func (p *Processor) worker(workerID int) {
	defer p.wg.Done()

	log := p.log.With(zap.Int("worker_id", workerID))
	log.Debug("click worker started")

	for job := range p.jobQueue {
		ctx, cancel := context.WithTimeout(p.ctx, p.config.TrackTimeout)
		result := p.tracker.TrackClick(ctx, job.LinkID, job.Metadata)
		cancel()

		if result != service.Tracked {
			log.Warn("click tracking failed",
				zap.String("code", job.Code),
				zap.Int64("link_id", job.LinkID))
		}
	}

	log.Debug("click worker stopped")
}

// GetStats returns a snapshot of processor state for health reporting.
func (p *Processor) GetStats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"started":        p.started,
		"queue_length":   len(p.jobQueue),
		"queue_capacity": cap(p.jobQueue),
		"worker_count":   p.config.WorkerCount,
		"dropped":        p.dropped.Load(),
	}
}

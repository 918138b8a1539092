package middleware

import (
	"context"
	"fmt"
	"sync"

	"KineJump/internal/domain/models"
	domrepo "KineJump/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	ProcessFrame(ctx context.Context, f models.Frame) error
	Reset(ctx context.Context) error
}

// FramePipeline sits between the ingest surface and the analysis chain.
// A single worker drains a bounded FIFO queue, so frames are processed
// strictly in arrival order and control operations (reset, barrier)
// serialize with the frames already queued ahead of them.
type FramePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	bufSize int

	jobs    chan job
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type jobKind int

const (
	jobFrame jobKind = iota
	jobReset
	jobBarrier
)

type job struct {
	kind  jobKind
	frame models.Frame
	done  chan error
}

// PipelineOption configures the pipeline.
type PipelineOption func(*FramePipeline)

// WithBufferSize sets how many frames may queue before ingest is shed.
func WithBufferSize(n int) PipelineOption {
	return func(p *FramePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewFramePipeline creates a pipeline around one session's processor.
func NewFramePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *FramePipeline {
	p := &FramePipeline{
		proc:    proc,
		metrics: metrics,
		bufSize: 256,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.jobs = make(chan job, p.bufSize)
	return p
}

// Start launches the worker. A stopped pipeline may be started again;
// each run gets fresh stop and done channels so a restart never touches
// the previous worker's lifecycle.
func (p *FramePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go func() {
		defer close(doneCh)
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case j := <-p.jobs:
				p.run(ctx, j)
			}
		}
	}()
}

func (p *FramePipeline) run(ctx context.Context, j job) {
	var err error
	switch j.kind {
	case jobFrame:
		err = p.proc.ProcessFrame(ctx, j.frame)
		if err != nil {
			p.metrics.RecordFrame("error")
		}
	case jobReset:
		err = p.proc.Reset(ctx)
	case jobBarrier:
		// nothing to do; reaching here means the queue ahead is drained
	}
	if j.done != nil {
		j.done <- err
	}
}

// Stop halts the worker. Queued frames are dropped.
func (p *FramePipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
	<-p.doneCh
}

// Submit enqueues a frame without blocking. When the queue is full the
// frame is shed: losing a frame is recoverable, stalling the camera feed
// is not.
func (p *FramePipeline) Submit(f models.Frame) error {
	select {
	case p.jobs <- job{kind: jobFrame, frame: f}:
		return nil
	default:
		p.metrics.RecordFrame("shed")
		return fmt.Errorf("pipeline queue full")
	}
}

// Reset enqueues a reset behind the frames already queued and waits for
// it to execute, so a reset never races the frames that preceded it.
func (p *FramePipeline) Reset(ctx context.Context) error {
	return p.sync(ctx, jobReset)
}

// Drain waits until every job queued before it has been processed.
func (p *FramePipeline) Drain(ctx context.Context) error {
	return p.sync(ctx, jobBarrier)
}

func (p *FramePipeline) sync(ctx context.Context, kind jobKind) error {
	p.mu.Lock()
	workerDone := p.doneCh
	p.mu.Unlock()

	done := make(chan error, 1)
	select {
	case p.jobs <- job{kind: kind, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-workerDone:
		return fmt.Errorf("pipeline stopped")
	}
}

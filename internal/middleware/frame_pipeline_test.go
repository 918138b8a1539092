package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KineJump/internal/domain/models"
)

type recordingProc struct {
	mu     sync.Mutex
	order  []float64
	resets int
	slow   time.Duration
}

func (r *recordingProc) ProcessFrame(_ context.Context, f models.Frame) error {
	if r.slow > 0 {
		time.Sleep(r.slow)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, f.Timestamp)
	return nil
}

func (r *recordingProc) Reset(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
	return nil
}

type countingMetrics struct {
	mu   sync.Mutex
	shed int
}

func (c *countingMetrics) RecordFrame(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if outcome == "shed" {
		c.shed++
	}
}
func (c *countingMetrics) RecordPhase(string)              {}
func (c *countingMetrics) RecordAttempt(string)            {}
func (c *countingMetrics) RecordFault(string)              {}
func (c *countingMetrics) RecordHeightDiscrepancy(float64) {}
func (c *countingMetrics) RecordLatency(string, float64)   {}

func TestPipelinePreservesOrder(t *testing.T) {
	proc := &recordingProc{}
	p := NewFramePipeline(proc, &countingMetrics{})
	p.Start(context.Background())
	defer p.Stop()

	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit(models.Frame{Timestamp: float64(i)}))
	}
	require.NoError(t, p.Drain(context.Background()))

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.order, 50)
	for i, ts := range proc.order {
		assert.Equal(t, float64(i), ts)
	}
}

func TestPipelineResetSerializesBehindFrames(t *testing.T) {
	proc := &recordingProc{}
	p := NewFramePipeline(proc, &countingMetrics{})
	p.Start(context.Background())
	defer p.Stop()

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(models.Frame{Timestamp: float64(i)}))
	}
	require.NoError(t, p.Reset(context.Background()))

	proc.mu.Lock()
	defer proc.mu.Unlock()
	// the reset only ran after every queued frame
	assert.Len(t, proc.order, 10)
	assert.Equal(t, 1, proc.resets)
}

func TestPipelineShedsWhenFull(t *testing.T) {
	proc := &recordingProc{slow: 50 * time.Millisecond}
	m := &countingMetrics{}
	p := NewFramePipeline(proc, m, WithBufferSize(2))
	p.Start(context.Background())
	defer p.Stop()

	var shed int
	for i := 0; i < 20; i++ {
		if err := p.Submit(models.Frame{Timestamp: float64(i)}); err != nil {
			shed++
		}
	}
	assert.Greater(t, shed, 0)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, shed, m.shed)
}

func TestPipelineDrainAfterStop(t *testing.T) {
	proc := &recordingProc{}
	p := NewFramePipeline(proc, &countingMetrics{})
	p.Start(context.Background())
	p.Stop()

	err := p.Drain(context.Background())
	assert.Error(t, err)
}

func TestPipelineRestartsAfterStop(t *testing.T) {
	proc := &recordingProc{}
	p := NewFramePipeline(proc, &countingMetrics{})

	p.Start(context.Background())
	require.NoError(t, p.Submit(models.Frame{Timestamp: 0}))
	require.NoError(t, p.Drain(context.Background()))
	p.Stop()

	p.Start(context.Background())
	defer p.Stop()

	require.NoError(t, p.Submit(models.Frame{Timestamp: 1}))
	require.NoError(t, p.Drain(context.Background()))

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []float64{0, 1}, proc.order)
}

package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KineJump/internal/domain/models"
	"KineJump/pkg/config"
	"KineJump/pkg/logger"
)

func standingTestFrame(ts, conf float64) models.Frame {
	l := func(x, y float64) models.Landmark {
		return models.Landmark{X: x, Y: y, Confidence: conf}
	}
	return models.Frame{
		Timestamp: ts,
		Joints: map[models.Joint]models.Landmark{
			models.JointLeftShoulder:  l(0.45, 0.30),
			models.JointRightShoulder: l(0.55, 0.30),
			models.JointLeftHip:       l(0.45, 0.50),
			models.JointRightHip:      l(0.55, 0.50),
			models.JointLeftKnee:      l(0.44, 0.70),
			models.JointRightKnee:     l(0.56, 0.70),
			models.JointLeftAnkle:     l(0.45, 0.90),
			models.JointRightAnkle:    l(0.55, 0.90),
			models.JointLeftHeel:      l(0.44, 0.92),
			models.JointRightHeel:     l(0.56, 0.92),
		},
	}
}

func newTestProcessor(t *testing.T) (*FrameProcessor, *memStore) {
	t.Helper()
	store := newMemStore()
	athlete := testAthlete()
	_, err := store.SaveAthlete(context.Background(), athlete)
	require.NoError(t, err)

	fp, err := NewFrameProcessor(
		config.Default(), logger.Nop(), nopMetrics{}, store, nopSink{},
		athlete, "s1", models.JumpCMJ, time.Now(),
	)
	require.NoError(t, err)
	return fp, store
}

func TestProcessorAutoCalibrates(t *testing.T) {
	fp, _ := newTestProcessor(t)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		require.NoError(t, fp.ProcessFrame(ctx, standingTestFrame(float64(i)*0.033, 0.9)))
	}
	assert.True(t, fp.Calibrated())
	assert.Equal(t, models.PhaseIdle, fp.Phase())
}

func TestProcessorCalibrationRetriesOnBadFrames(t *testing.T) {
	fp, _ := newTestProcessor(t)
	ctx := context.Background()

	// a batch of low-confidence frames never calibrates
	for i := 0; i < 30; i++ {
		require.NoError(t, fp.ProcessFrame(ctx, standingTestFrame(float64(i)*0.033, 0.2)))
	}
	assert.False(t, fp.Calibrated())

	// good frames eventually succeed
	for i := 30; i < 60; i++ {
		require.NoError(t, fp.ProcessFrame(ctx, standingTestFrame(float64(i)*0.033, 0.9)))
	}
	assert.True(t, fp.Calibrated())
}

func TestProcessorRejectsOutOfOrderFrame(t *testing.T) {
	fp, _ := newTestProcessor(t)
	ctx := context.Background()

	require.NoError(t, fp.ProcessFrame(ctx, standingTestFrame(1.0, 0.9)))
	err := fp.ProcessFrame(ctx, standingTestFrame(0.5, 0.9))
	assert.Error(t, err)

	// a duplicate timestamp is stale too
	err = fp.ProcessFrame(ctx, standingTestFrame(1.0, 0.9))
	assert.Error(t, err)
}

func TestProcessorRejectsInvalidJumpType(t *testing.T) {
	store := newMemStore()
	athlete := testAthlete()

	_, err := NewFrameProcessor(
		config.Default(), logger.Nop(), nopMetrics{}, store, nopSink{},
		athlete, "s1", models.JumpType("BACKFLIP"), time.Now(),
	)
	assert.Error(t, err)
}

func TestProcessorRejectsIncompleteAthlete(t *testing.T) {
	store := newMemStore()
	athlete := &models.Athlete{Name: "no mass", Sex: models.SexMale, HeightCM: 180}

	_, err := NewFrameProcessor(
		config.Default(), logger.Nop(), nopMetrics{}, store, nopSink{},
		athlete, "s1", models.JumpCMJ, time.Now(),
	)
	assert.Error(t, err)
}

func TestProcessorSetJumpType(t *testing.T) {
	fp, _ := newTestProcessor(t)

	require.NoError(t, fp.SetJumpType(models.JumpSQJ))
	assert.Equal(t, models.JumpSQJ, fp.JumpType())

	assert.Error(t, fp.SetJumpType(models.JumpType("BACKFLIP")))
}

func TestProcessorFinishPersistsSummary(t *testing.T) {
	fp, store := newTestProcessor(t)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		require.NoError(t, fp.ProcessFrame(ctx, standingTestFrame(float64(i)*0.033, 0.9)))
	}

	s, err := fp.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, 0, s.Total)

	stored, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s, stored)
}

func TestProcessorResetBeforeCalibration(t *testing.T) {
	fp, _ := newTestProcessor(t)
	assert.NoError(t, fp.Reset(context.Background()))
}

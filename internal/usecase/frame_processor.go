package usecase

import (
	"context"
	"fmt"
	"time"

	"KineJump/internal/domain/models"
	drepo "KineJump/internal/domain/repository"
	"KineJump/internal/services/biomech"
	"KineJump/internal/services/engine"
	"KineJump/internal/services/pose"
	"KineJump/pkg/config"
	"KineJump/pkg/logger"
)

// calibrationBatch is how many buffered frames trigger a calibration
// attempt while the session is still uncalibrated.
const calibrationBatch = 30

// FrameProcessor runs the full analysis chain for one session: signal
// conditioning, phase detection, metrics, classification and
// aggregation. It is not safe for concurrent use; the frame pipeline
// serializes access.
type FrameProcessor struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics drepo.Metrics
	store   drepo.AttemptStore
	sink    drepo.EventSink

	sessionID string
	athlete   *models.Athlete
	th        config.Thresholds

	pre        *pose.Preprocessor
	machine    *engine.Machine
	calc       *biomech.Calculator
	classifier *biomech.Classifier
	agg        *SessionAggregator

	calibBuf []models.Frame
	lastTS   float64
	haveTS   bool
}

// NewFrameProcessor builds the analysis chain for a session.
func NewFrameProcessor(
	cfg *config.Config,
	log *logger.Logger,
	metrics drepo.Metrics,
	store drepo.AttemptStore,
	sink drepo.EventSink,
	athlete *models.Athlete,
	sessionID string,
	jumpType models.JumpType,
	startedAt time.Time,
) (*FrameProcessor, error) {
	if err := athlete.Validate(); err != nil {
		return nil, fmt.Errorf("frame processor: %w", err)
	}
	th, err := cfg.Resolve(athlete.Sex, athlete.Level, jumpType)
	if err != nil {
		return nil, fmt.Errorf("frame processor: %w", err)
	}

	sessionLog := log.With(logger.String("session_id", sessionID))
	classifier := biomech.NewClassifier(cfg)

	return &FrameProcessor{
		cfg:        cfg,
		log:        sessionLog,
		metrics:    metrics,
		store:      store,
		sink:       sink,
		sessionID:  sessionID,
		athlete:    athlete,
		th:         th,
		pre:        pose.NewPreprocessor(cfg, sessionLog),
		calc:       biomech.NewCalculator(sessionLog, metrics),
		classifier: classifier,
		agg:        NewSessionAggregator(cfg, classifier, athlete, sessionID, startedAt),
	}, nil
}

// JumpType returns the protocol currently under analysis.
func (fp *FrameProcessor) JumpType() models.JumpType { return fp.th.JumpType }

// Phase returns the current detection phase.
func (fp *FrameProcessor) Phase() models.Phase {
	if fp.machine == nil {
		return models.PhaseIdle
	}
	return fp.machine.Phase()
}

// Calibrated reports whether the pixel-to-meter calibration is in place.
func (fp *FrameProcessor) Calibrated() bool { return fp.pre.Calibrated() }

// ProcessFrame consumes one raw pose frame. Frames must arrive in strict
// timestamp order; a stale frame is rejected rather than reordered.
func (fp *FrameProcessor) ProcessFrame(ctx context.Context, f models.Frame) error {
	start := time.Now()

	if fp.haveTS && f.Timestamp <= fp.lastTS {
		return fmt.Errorf("frame out of order: ts %.4f after %.4f", f.Timestamp, fp.lastTS)
	}
	fp.lastTS = f.Timestamp
	fp.haveTS = true

	if !fp.pre.Calibrated() {
		return fp.calibrateFrom(f)
	}

	sample, outcome := fp.pre.Process(f)
	fp.metrics.RecordFrame(outcome)
	if sample == nil {
		return nil
	}

	for _, ev := range fp.machine.Step(*sample) {
		if ev.Transition != nil {
			fp.metrics.RecordPhase(ev.Transition.Phase.String())
			fp.sink.OnPhase(fp.sessionID, *ev.Transition)
		}
		if ev.Attempt != nil {
			if err := fp.finishAttempt(ctx, ev.Attempt); err != nil {
				return err
			}
		}
	}

	fp.metrics.RecordLatency("frame", time.Since(start).Seconds())
	return nil
}

// calibrateFrom buffers standing frames until a calibration succeeds,
// then brings up the phase machine.
func (fp *FrameProcessor) calibrateFrom(f models.Frame) error {
	fp.metrics.RecordFrame("calibration")
	fp.calibBuf = append(fp.calibBuf, f)
	if len(fp.calibBuf) < calibrationBatch {
		return nil
	}

	calib, err := fp.pre.Calibrate(fp.calibBuf, fp.athlete)
	if err != nil {
		// keep the freshest half and keep collecting
		fp.calibBuf = fp.calibBuf[len(fp.calibBuf)/2:]
		fp.log.Debug("calibration retry", logger.Error(err))
		return nil
	}
	fp.calibBuf = nil
	fp.machine = engine.NewMachine(fp.th, calib, fp.log)
	return nil
}

// SetJumpType switches the protocol between attempts. Switching while an
// attempt is in progress is refused.
func (fp *FrameProcessor) SetJumpType(t models.JumpType) error {
	if fp.machine != nil && fp.machine.Attempt() != nil {
		return fmt.Errorf("set jump type: attempt in progress")
	}
	th, err := fp.cfg.Resolve(fp.athlete.Sex, fp.athlete.Level, t)
	if err != nil {
		return fmt.Errorf("set jump type: %w", err)
	}
	fp.th = th
	if fp.machine != nil {
		fp.machine = engine.NewMachine(th, fp.pre.Calibration(), fp.log)
	}
	fp.log.Info("jump type switched", logger.String("jump_type", string(t)))
	return nil
}

// Reset aborts the attempt in progress and clears the signal state. The
// calibration survives.
func (fp *FrameProcessor) Reset(ctx context.Context) error {
	fp.pre.Reset()
	if fp.machine == nil {
		return nil
	}
	if a := fp.machine.Reset(fp.lastTS); a != nil {
		if err := fp.finishAttempt(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Summary returns the live aggregate over everything recorded so far.
func (fp *FrameProcessor) Summary() *models.SessionSummary {
	return fp.agg.Summary()
}

// Finish aborts any attempt in progress, persists the session summary
// and returns it.
func (fp *FrameProcessor) Finish(ctx context.Context) (*models.SessionSummary, error) {
	if err := fp.Reset(ctx); err != nil {
		return nil, err
	}
	s := fp.agg.Summary()
	if err := fp.store.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("finish session: %w", err)
	}
	fp.log.Info("session finished",
		logger.Int("attempts", s.Total),
		logger.Int("valid", s.Valid),
		logger.Float64("mean_height_m", s.MeanHeightM),
	)
	return s, nil
}

func (fp *FrameProcessor) finishAttempt(ctx context.Context, a *models.JumpAttempt) error {
	fp.calc.Finalize(a, fp.athlete)
	if a.Status == models.AttemptCompleted {
		fp.classifier.ClassifyAttempt(a, fp.th)
	}

	fp.metrics.RecordAttempt(string(a.Status))
	for fault, n := range a.Faults {
		for i := 0; i < n; i++ {
			fp.metrics.RecordFault(string(fault))
		}
	}

	id, err := fp.store.SaveAttempt(ctx, fp.sessionID, a)
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	a.ID = id

	fp.agg.Add(a)
	fp.sink.OnAttempt(fp.sessionID, a)
	return nil
}

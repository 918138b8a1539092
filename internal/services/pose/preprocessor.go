package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"KineJump/internal/domain/models"
	"KineJump/pkg/config"
	"KineJump/pkg/logger"
)

// Frame outcomes reported to the metrics recorder.
const (
	OutcomeAccepted      = "accepted"
	OutcomeLowConfidence = "low_confidence"
	OutcomeJitter        = "jitter"
)

// MinCalibrationFrames is the fewest standing frames a usable calibration
// needs.
const MinCalibrationFrames = 10

// Calibration maps image units to meters and records the athlete's
// standing reference posture.
type Calibration struct {
	// Scale converts image units to meters.
	Scale float64
	// BaselineHipY and BaselineHeelY are the standing positions, image
	// Y growing downward.
	BaselineHipY  float64
	BaselineHeelY float64
	// KneeSpread is the standing knee separation in image units.
	KneeSpread float64
	Frames     int
}

// ToMeters converts an image-unit distance to meters.
func (c Calibration) ToMeters(units float64) float64 {
	return units * c.Scale
}

// Preprocessor turns raw pose frames into smoothed joint angle samples.
// It rejects low-confidence and physically implausible frames, holding
// the last good sample over the gap so downstream consumers always see a
// continuous signal.
type Preprocessor struct {
	cfg config.Config
	log *logger.Logger

	calib Calibration

	knee  *angleChannel
	hip   *angleChannel
	ankle *angleChannel
	trunk *angleChannel

	hipY  *angleChannel
	heelY *angleChannel

	shoulderHist []timedValue

	lastRawKnee   float64
	lastRawKneeTS float64
	haveLast      bool

	last *models.JointAngleSample
}

type timedValue struct {
	ts float64
	v  float64
}

// angleChannel smooths one scalar stream with a fixed-size moving window
// and differentiates it over a short lag.
type angleChannel struct {
	window  int
	velLag  int
	raw     []float64
	history []timedValue
}

func newAngleChannel(window, velLag int) *angleChannel {
	return &angleChannel{window: window, velLag: velLag}
}

func (ch *angleChannel) push(ts, v float64) (smoothed, velocity float64) {
	ch.raw = append(ch.raw, v)
	if len(ch.raw) > ch.window {
		ch.raw = ch.raw[1:]
	}
	smoothed = stat.Mean(ch.raw, nil)

	ch.history = append(ch.history, timedValue{ts: ts, v: smoothed})
	if len(ch.history) > ch.velLag+1 {
		ch.history = ch.history[1:]
	}
	if len(ch.history) > 1 {
		first := ch.history[0]
		lastPt := ch.history[len(ch.history)-1]
		if dt := lastPt.ts - first.ts; dt > 0 {
			velocity = (lastPt.v - first.v) / dt
		}
	}
	return smoothed, velocity
}

func (ch *angleChannel) reset() {
	ch.raw = ch.raw[:0]
	ch.history = ch.history[:0]
}

// NewPreprocessor builds a preprocessor from the pose configuration.
func NewPreprocessor(cfg *config.Config, log *logger.Logger) *Preprocessor {
	w := cfg.Pose.SmoothingWindow
	lag := cfg.Pose.VelocityWindow
	return &Preprocessor{
		cfg:   *cfg,
		log:   log,
		knee:  newAngleChannel(w, lag),
		hip:   newAngleChannel(w, lag),
		ankle: newAngleChannel(w, lag),
		trunk: newAngleChannel(w, lag),
		hipY:  newAngleChannel(w, lag),
		heelY: newAngleChannel(w, lag),
	}
}

// Calibration returns the current calibration, zero if not calibrated.
func (p *Preprocessor) Calibration() Calibration {
	return p.calib
}

// Calibrated reports whether a usable calibration is loaded.
func (p *Preprocessor) Calibrated() bool {
	return p.calib.Scale > 0
}

// Calibrate derives the pixel-to-meter scale and standing baselines from
// frames of the athlete standing still. Frames below the calibration
// confidence floor are ignored; too few usable frames is an error.
func (p *Preprocessor) Calibrate(frames []models.Frame, athlete *models.Athlete) (Calibration, error) {
	spacing := athlete.Segments.KneeSpacingM
	if spacing <= 0 {
		spacing = p.cfg.ProportionFor(athlete.Sex).KneeSpacing * athlete.HeightM()
		// segment proportions shorten slightly with age
		if athlete.Age > 50 {
			spacing *= 0.97
		}
	}
	if spacing <= 0 {
		return Calibration{}, fmt.Errorf("calibrate: athlete knee spacing unknown")
	}

	var hipYs, heelYs, spreads []float64
	for _, f := range frames {
		if !frameUsable(f, p.cfg.Pose.CalibrationConfidence) {
			continue
		}
		lk := f.Joints[models.JointLeftKnee]
		rk := f.Joints[models.JointRightKnee]
		hipYs = append(hipYs, midpoint(f.Joints[models.JointLeftHip], f.Joints[models.JointRightHip]).Y)
		heelYs = append(heelYs, midpoint(f.Joints[models.JointLeftHeel], f.Joints[models.JointRightHeel]).Y)
		spreads = append(spreads, math.Hypot(lk.X-rk.X, lk.Y-rk.Y))
	}
	if len(spreads) < MinCalibrationFrames {
		return Calibration{}, fmt.Errorf("calibrate: %d usable frames, need %d", len(spreads), MinCalibrationFrames)
	}

	spread := stat.Mean(spreads, nil)
	if spread <= 0 {
		return Calibration{}, fmt.Errorf("calibrate: degenerate knee spread")
	}

	p.calib = Calibration{
		Scale:         spacing / spread,
		BaselineHipY:  stat.Mean(hipYs, nil),
		BaselineHeelY: stat.Mean(heelYs, nil),
		KneeSpread:    spread,
		Frames:        len(spreads),
	}
	p.log.Info("calibration complete",
		logger.Float64("scale_m_per_unit", p.calib.Scale),
		logger.Int("frames", p.calib.Frames),
	)
	return p.calib, nil
}

// Process consumes one raw frame and returns the smoothed sample plus the
// outcome label. Rejected frames return the last good sample carried
// forward, nil if nothing has been accepted yet.
func (p *Preprocessor) Process(f models.Frame) (*models.JointAngleSample, string) {
	if !frameUsable(f, p.cfg.Pose.ConfidenceFloor) {
		return p.hold(f.Timestamp), OutcomeLowConfidence
	}

	rawKnee := meanSideAngle(f,
		[3]models.Joint{models.JointLeftHip, models.JointLeftKnee, models.JointLeftAnkle},
		[3]models.Joint{models.JointRightHip, models.JointRightKnee, models.JointRightAnkle},
	)

	// Jitter gate: an angle step implying an impossible rotation rate is
	// tracker noise, not motion.
	if p.haveLast {
		if dt := f.Timestamp - p.lastRawKneeTS; dt > 0 {
			rate := math.Abs(rawKnee-p.lastRawKnee) / dt
			if rate > p.cfg.Pose.MaxAngleRateDeg {
				return p.hold(f.Timestamp), OutcomeJitter
			}
		}
	}
	p.lastRawKnee = rawKnee
	p.lastRawKneeTS = f.Timestamp
	p.haveLast = true

	rawHip := meanSideAngle(f,
		[3]models.Joint{models.JointLeftShoulder, models.JointLeftHip, models.JointLeftKnee},
		[3]models.Joint{models.JointRightShoulder, models.JointRightHip, models.JointRightKnee},
	)
	rawAnkle := meanSideAngle(f,
		[3]models.Joint{models.JointLeftKnee, models.JointLeftAnkle, models.JointLeftHeel},
		[3]models.Joint{models.JointRightKnee, models.JointRightAnkle, models.JointRightHeel},
	)

	shoulderMid := midpoint(f.Joints[models.JointLeftShoulder], f.Joints[models.JointRightShoulder])
	hipMid := midpoint(f.Joints[models.JointLeftHip], f.Joints[models.JointRightHip])
	heelMid := midpoint(f.Joints[models.JointLeftHeel], f.Joints[models.JointRightHeel])
	rawTrunk := InclinationFromVertical(shoulderMid, hipMid)

	ts := f.Timestamp
	knee, kneeVel := p.knee.push(ts, rawKnee)
	hip, hipVel := p.hip.push(ts, rawHip)
	ankle, ankleVel := p.ankle.push(ts, rawAnkle)
	trunk, _ := p.trunk.push(ts, rawTrunk)
	hipYS, hipVelY := p.hipY.push(ts, hipMid.Y)
	heelYS, heelVelY := p.heelY.push(ts, heelMid.Y)

	shoulderVel := p.shoulderVelocity(ts, shoulderMid.Y)

	midlineX := hipMid.X
	lv := valgusDeviation(f.Joints[models.JointLeftHip], f.Joints[models.JointLeftKnee], f.Joints[models.JointLeftAnkle], midlineX)
	rv := valgusDeviation(f.Joints[models.JointRightHip], f.Joints[models.JointRightKnee], f.Joints[models.JointRightAnkle], midlineX)

	sample := &models.JointAngleSample{
		Timestamp:     ts,
		Knee:          knee,
		Hip:           hip,
		Ankle:         ankle,
		Trunk:         trunk,
		KneeVel:       kneeVel,
		HipVel:        hipVel,
		AnkleVel:      ankleVel,
		ShoulderVel:   shoulderVel,
		HipY:          hipYS,
		HeelY:         heelYS,
		HipVelY:       hipVelY,
		HeelVelY:      heelVelY,
		KneeValgusDev: math.Max(lv, rv),
	}
	p.last = sample
	return sample, OutcomeAccepted
}

// Reset clears all signal state but keeps the calibration; the athlete
// has not moved, the attempt has.
func (p *Preprocessor) Reset() {
	p.knee.reset()
	p.hip.reset()
	p.ankle.reset()
	p.trunk.reset()
	p.hipY.reset()
	p.heelY.reset()
	p.shoulderHist = p.shoulderHist[:0]
	p.haveLast = false
	p.last = nil
}

// hold carries the previous sample forward with the rejected frame's
// timestamp. Velocities are zeroed: held signal implies no motion.
func (p *Preprocessor) hold(ts float64) *models.JointAngleSample {
	if p.last == nil {
		return nil
	}
	held := *p.last
	held.Timestamp = ts
	held.KneeVel = 0
	held.HipVel = 0
	held.AnkleVel = 0
	held.ShoulderVel = 0
	held.HipVelY = 0
	held.HeelVelY = 0
	p.last = &held
	return &held
}

// shoulderVelocity tracks the vertical shoulder speed, used for the
// Abalakov arm-drive check. Negative is upward in image coordinates, so
// the sign is flipped to make "driving up" positive.
func (p *Preprocessor) shoulderVelocity(ts, y float64) float64 {
	p.shoulderHist = append(p.shoulderHist, timedValue{ts: ts, v: y})
	if len(p.shoulderHist) > p.cfg.Pose.VelocityWindow+1 {
		p.shoulderHist = p.shoulderHist[1:]
	}
	if len(p.shoulderHist) < 2 {
		return 0
	}
	first := p.shoulderHist[0]
	lastPt := p.shoulderHist[len(p.shoulderHist)-1]
	dt := lastPt.ts - first.ts
	if dt <= 0 {
		return 0
	}
	return -(lastPt.v - first.v) / dt
}

func meanSideAngle(f models.Frame, left, right [3]models.Joint) float64 {
	l := JointAngle(f.Joints[left[0]], f.Joints[left[1]], f.Joints[left[2]])
	r := JointAngle(f.Joints[right[0]], f.Joints[right[1]], f.Joints[right[2]])
	return (l + r) / 2
}

func frameUsable(f models.Frame, floor float64) bool {
	for _, j := range models.RequiredJoints {
		lm, ok := f.Joints[j]
		if !ok || lm.Confidence < floor {
			return false
		}
	}
	return true
}

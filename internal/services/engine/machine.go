package engine

import (
	"math"

	"KineJump/internal/domain/models"
	"KineJump/internal/services/pose"
	"KineJump/pkg/config"
	"KineJump/pkg/logger"
)

// Event is what one processed sample produced: zero or more phase
// transitions, and possibly a finished attempt.
type Event struct {
	Transition *models.PhaseEvent
	Attempt    *models.JumpAttempt
}

// Machine drives the jump phase progression for one attempt at a time.
// All timing comes from sample timestamps, never the wall clock, so the
// same frame sequence always yields the same attempt.
type Machine struct {
	th    config.Thresholds
	calib pose.Calibration
	log   *logger.Logger

	phase      models.Phase
	phaseSince float64
	attempt    *models.JumpAttempt
	faults     *faultTracker

	// dwell debounce for the pending transition
	candidate      models.Phase
	candidateSince float64

	// per-attempt extrema
	minKneeCM      float64
	minKneeLanding float64
	maxHipRiseM    float64
	maxShoulderVel float64

	// squat-jump hold
	holdSince   float64
	holdElapsed float64
	atDepth     bool

	takeoffTS   float64
	touchdownTS float64
}

// NewMachine builds a phase machine for one athlete, protocol and
// calibration.
func NewMachine(th config.Thresholds, calib pose.Calibration, log *logger.Logger) *Machine {
	m := &Machine{th: th, calib: calib, log: log}
	m.toIdle()
	return m
}

// Phase returns the current phase.
func (m *Machine) Phase() models.Phase { return m.phase }

// Attempt returns the in-flight attempt, nil while idle.
func (m *Machine) Attempt() *models.JumpAttempt { return m.attempt }

func (m *Machine) toIdle() {
	m.phase = models.PhaseIdle
	m.attempt = nil
	m.faults = nil
	m.candidate = models.PhaseIdle
	m.minKneeCM = math.MaxFloat64
	m.minKneeLanding = math.MaxFloat64
	m.maxHipRiseM = 0
	m.maxShoulderVel = 0
	m.atDepth = false
	m.holdElapsed = 0
}

// Reset aborts the attempt in progress, if any, and returns it with
// aborted status. The machine is back in Idle afterwards.
func (m *Machine) Reset(ts float64) *models.JumpAttempt {
	if m.attempt == nil {
		m.toIdle()
		return nil
	}
	a := m.attempt
	a.Status = models.AttemptAborted
	a.Reason = models.ReasonManualReset
	m.log.Info("attempt aborted",
		logger.String("phase", m.phase.String()),
		logger.Float64("ts", ts),
	)
	m.toIdle()
	return a
}

// Step advances the machine with one conditioned sample.
func (m *Machine) Step(s models.JointAngleSample) []Event {
	var events []Event

	if m.attempt != nil {
		m.faults.observe(m.attempt, s, m.phase)
		m.trackExtrema(s)
	}

	switch m.phase {
	case models.PhaseIdle:
		events = m.stepIdle(s, events)
	case models.PhaseCounterMovement:
		events = m.stepCounterMovement(s, events)
	case models.PhasePropulsion:
		events = m.stepPropulsion(s, events)
	case models.PhaseFlight:
		events = m.stepFlight(s, events)
	case models.PhaseLanding:
		events = m.stepLanding(s, events)
	case models.PhaseRecovery:
		// terminal within an attempt; toIdle happens on emit
	}

	return events
}

func (m *Machine) stepIdle(s models.JointAngleSample, events []Event) []Event {
	flexing := s.Knee < m.th.KneeExtensionLandingMin
	descending := m.hipDescentSpeed(s) > m.th.MinCMVelocity

	if m.dwell(s.Timestamp, models.PhaseCounterMovement, flexing && descending) {
		start := m.candidateSince
		m.attempt = &models.JumpAttempt{
			Type:   m.th.JumpType,
			Status: models.AttemptCompleted,
			Faults: make(map[models.FaultType]int),
		}
		m.faults = newFaultTracker(m.th)
		events = m.transition(models.PhaseCounterMovement, start, events)
	}
	return events
}

func (m *Machine) stepCounterMovement(s models.JointAngleSample, events []Event) []Event {
	// squat-jump protocol: count how long the deep position is held still
	if m.th.JumpType == models.JumpSQJ {
		m.trackHold(s)
	}

	if s.Timestamp-m.phaseSince > m.th.MaxCountermovementTime {
		return m.invalidate(models.ReasonTimeout, events)
	}

	rising := m.hipRiseSpeed(s) > m.th.MinCMVelocity
	extending := s.KneeVel > 0

	if m.dwell(s.Timestamp, models.PhasePropulsion, rising && extending) {
		m.faults.onCounterMovementExit(m.attempt, m.minKneeCM, m.holdElapsed)
		events = m.transition(models.PhasePropulsion, m.candidateSince, events)
	}
	return events
}

func (m *Machine) stepPropulsion(s models.JointAngleSample, events []Event) []Event {
	airborne := m.heelRiseM(s) > m.th.HeelContactEpsilon &&
		m.hipRiseSpeed(s) >= m.th.LiftoffVelocity

	// takeoff is a physical discontinuity: no dwell, first airborne
	// sample wins
	if airborne {
		m.takeoffTS = s.Timestamp
		m.faults.onTakeoff(m.attempt, m.maxShoulderVel)
		events = m.transition(models.PhaseFlight, s.Timestamp, events)
	}
	return events
}

func (m *Machine) stepFlight(s models.JointAngleSample, events []Event) []Event {
	if rise := m.hipRiseM(s); rise > m.maxHipRiseM {
		m.maxHipRiseM = rise
	}

	grounded := m.heelRiseM(s) <= m.th.HeelContactEpsilon
	if !grounded {
		return events
	}

	m.touchdownTS = s.Timestamp
	flight := m.touchdownTS - m.takeoffTS

	if flight < m.th.MinFlightTime {
		return m.invalidate(models.ReasonFlightTooShort, events)
	}
	if m.maxHipRiseM < m.th.MinVerticalDisplacementM {
		return m.invalidate(models.ReasonLowDisplacement, events)
	}

	m.minKneeLanding = math.MaxFloat64
	events = m.transition(models.PhaseLanding, s.Timestamp, events)
	return events
}

func (m *Machine) stepLanding(s models.JointAngleSample, events []Event) []Event {
	settled := math.Abs(s.KneeVel) < m.th.SettleVelocityDeg &&
		s.Knee > m.th.KneeExtensionLandingMin
	overrun := s.Timestamp-m.phaseSince > m.th.MaxLandingTime

	if overrun || m.dwell(s.Timestamp, models.PhaseRecovery, settled) {
		at := s.Timestamp
		if !overrun {
			at = m.candidateSince
		}
		m.faults.onLandingExit(m.attempt, m.minKneeLanding)
		events = m.transition(models.PhaseRecovery, at, events)
		events = m.complete(events)
	}
	return events
}

// complete closes out the attempt and returns the machine to Idle. The
// attempt carries flight time; downstream fills derived metrics.
func (m *Machine) complete(events []Event) []Event {
	a := m.attempt
	a.Metrics = &models.Metrics{
		FlightTime:        m.touchdownTS - m.takeoffTS,
		TrajectoryHeightM: m.maxHipRiseM,
		CMDepthDeg:        m.minKneeCM,
	}
	m.log.Info("attempt completed",
		logger.String("jump_type", string(a.Type)),
		logger.Float64("flight_time_s", a.Metrics.FlightTime),
	)
	events = append(events, Event{Attempt: a})
	m.toIdle()
	return events
}

// invalidate ends the attempt without metrics and returns to Idle.
func (m *Machine) invalidate(reason models.InvalidReason, events []Event) []Event {
	a := m.attempt
	a.Status = models.AttemptInvalid
	a.Reason = reason
	m.log.Warn("attempt invalid",
		logger.String("reason", string(reason)),
		logger.String("phase", m.phase.String()),
	)
	events = append(events, Event{Attempt: a})
	m.toIdle()
	return events
}

func (m *Machine) transition(p models.Phase, ts float64, events []Event) []Event {
	m.phase = p
	m.phaseSince = ts
	m.candidate = models.PhaseIdle
	ev := models.PhaseEvent{Phase: p, Timestamp: ts}
	if m.attempt != nil {
		m.attempt.Phases = append(m.attempt.Phases, ev)
	}
	m.log.Debug("phase transition",
		logger.String("phase", p.String()),
		logger.Float64("ts", ts),
	)
	return append(events, Event{Transition: &ev})
}

// dwell debounces a transition condition: it must hold continuously for
// the configured window before the transition fires. The reported
// transition time is when the condition first became true.
func (m *Machine) dwell(ts float64, target models.Phase, cond bool) bool {
	if !cond {
		if m.candidate == target {
			m.candidate = models.PhaseIdle
		}
		return false
	}
	if m.candidate != target {
		m.candidate = target
		m.candidateSince = ts
		return false
	}
	return ts-m.candidateSince >= m.th.TransitionDwell
}

func (m *Machine) trackExtrema(s models.JointAngleSample) {
	switch m.phase {
	case models.PhaseCounterMovement:
		if s.Knee < m.minKneeCM {
			m.minKneeCM = s.Knee
		}
	case models.PhasePropulsion:
		if v := s.ShoulderVel * m.calib.Scale; v > m.maxShoulderVel {
			m.maxShoulderVel = v
		}
	case models.PhaseLanding:
		if s.Knee < m.minKneeLanding {
			m.minKneeLanding = s.Knee
		}
	}
}

// trackHold measures how long the squat bottom position is held still.
func (m *Machine) trackHold(s models.JointAngleSample) {
	deep := s.Knee <= m.th.CMDepthLimit()
	still := math.Abs(s.KneeVel) < m.th.SettleVelocityDeg
	if deep && still {
		if !m.atDepth {
			m.atDepth = true
			m.holdSince = s.Timestamp
		}
		if held := s.Timestamp - m.holdSince; held > m.holdElapsed {
			m.holdElapsed = held
		}
		return
	}
	m.atDepth = false
}

// hipDescentSpeed is the downward hip speed in m/s; image Y grows
// downward so a positive HipVelY is a descent.
func (m *Machine) hipDescentSpeed(s models.JointAngleSample) float64 {
	return s.HipVelY * m.calib.Scale
}

func (m *Machine) hipRiseSpeed(s models.JointAngleSample) float64 {
	return -s.HipVelY * m.calib.Scale
}

func (m *Machine) hipRiseM(s models.JointAngleSample) float64 {
	return (m.calib.BaselineHipY - s.HipY) * m.calib.Scale
}

func (m *Machine) heelRiseM(s models.JointAngleSample) float64 {
	return (m.calib.BaselineHeelY - s.HeelY) * m.calib.Scale
}

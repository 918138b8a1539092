package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KineJump/internal/domain/models"
	"KineJump/internal/services/pose"
	"KineJump/pkg/config"
	"KineJump/pkg/logger"
)

// testCalib uses scale 1 so image units read directly as meters.
var testCalib = pose.Calibration{
	Scale:         1,
	BaselineHipY:  0.5,
	BaselineHeelY: 0.9,
	KneeSpread:    0.3,
	Frames:        12,
}

func newTestMachine(t *testing.T, jt models.JumpType) *Machine {
	t.Helper()
	th, err := config.Default().Resolve(models.SexMale, models.LevelBeginner, jt)
	require.NoError(t, err)
	return NewMachine(th, testCalib, logger.Nop())
}

type step struct {
	ts, knee, kneeVel, hipY, hipVelY, heelY float64
}

func feed(m *Machine, steps []step) []Event {
	var events []Event
	for _, st := range steps {
		s := models.JointAngleSample{
			Timestamp: st.ts,
			Knee:      st.knee,
			Hip:       st.knee + 30,
			Ankle:     90,
			Trunk:     5,
			KneeVel:   st.kneeVel,
			HipY:      st.hipY,
			HipVelY:   st.hipVelY,
			HeelY:     st.heelY,
		}
		events = append(events, m.Step(s)...)
	}
	return events
}

// cmjSteps scripts a clean countermovement jump at 50 Hz: descent,
// reversal, takeoff, 0.2 s of flight, absorbed landing, settle.
func cmjSteps() []step {
	var steps []step
	// descent begins
	for ts := 0.0; ts <= 0.061; ts += 0.02 {
		steps = append(steps, step{ts, 150, -100, 0.52, 0.3, 0.9})
	}
	// deep countermovement, knee bottoms out at 80
	for i, ts := 0, 0.08; ts <= 0.201; i, ts = i+1, ts+0.02 {
		steps = append(steps, step{ts, 140 - float64(i)*10, -300, 0.56, 0.3, 0.9})
	}
	// reversal: knee extends, hip rises
	for i, ts := 0, 0.22; ts <= 0.281; i, ts = i+1, ts+0.02 {
		steps = append(steps, step{ts, 85 + float64(i)*12, 400, 0.5, -0.5, 0.9})
	}
	// heels leave the ground
	steps = append(steps, step{0.30, 170, 200, 0.45, -0.5, 0.85})
	// airborne, hip peaks 0.25 m above baseline
	for ts := 0.32; ts <= 0.481; ts += 0.02 {
		steps = append(steps, step{ts, 175, 0, 0.25, -0.2, 0.7})
	}
	// touchdown
	steps = append(steps, step{0.50, 165, -100, 0.48, 0.5, 0.9})
	// absorption
	steps = append(steps, step{0.52, 110, -300, 0.55, 0.1, 0.9})
	steps = append(steps, step{0.54, 100, -100, 0.56, 0.0, 0.9})
	// settle upright
	for ts := 0.56; ts <= 0.641; ts += 0.02 {
		steps = append(steps, step{ts, 165, 5, 0.5, 0.0, 0.9})
	}
	return steps
}

// cmjStepsWithFlight scripts the same jump as cmjSteps but with the
// airborne window lasting exactly the given duration.
func cmjStepsWithFlight(flight float64) []step {
	var steps []step
	for ts := 0.0; ts <= 0.061; ts += 0.02 {
		steps = append(steps, step{ts, 150, -100, 0.52, 0.3, 0.9})
	}
	for i, ts := 0, 0.08; ts <= 0.201; i, ts = i+1, ts+0.02 {
		steps = append(steps, step{ts, 140 - float64(i)*10, -300, 0.56, 0.3, 0.9})
	}
	for i, ts := 0, 0.22; ts <= 0.281; i, ts = i+1, ts+0.02 {
		steps = append(steps, step{ts, 85 + float64(i)*12, 400, 0.5, -0.5, 0.9})
	}
	takeoff := 0.30
	steps = append(steps, step{takeoff, 170, 200, 0.45, -0.5, 0.85})
	touchdown := takeoff + flight
	for ts := takeoff + 0.02; ts < touchdown-1e-9; ts += 0.02 {
		steps = append(steps, step{ts, 175, 0, 0.25, -0.2, 0.7})
	}
	steps = append(steps, step{touchdown, 165, -100, 0.48, 0.5, 0.9})
	steps = append(steps, step{touchdown + 0.02, 110, -300, 0.55, 0.1, 0.9})
	steps = append(steps, step{touchdown + 0.04, 100, -100, 0.56, 0.0, 0.9})
	for ts := touchdown + 0.06; ts <= touchdown+0.141; ts += 0.02 {
		steps = append(steps, step{ts, 165, 5, 0.5, 0.0, 0.9})
	}
	return steps
}

func attemptsOf(events []Event) []*models.JumpAttempt {
	var out []*models.JumpAttempt
	for _, ev := range events {
		if ev.Attempt != nil {
			out = append(out, ev.Attempt)
		}
	}
	return out
}

func phasesOf(events []Event) []models.Phase {
	var out []models.Phase
	for _, ev := range events {
		if ev.Transition != nil {
			out = append(out, ev.Transition.Phase)
		}
	}
	return out
}

func TestMachineCompletesCMJ(t *testing.T) {
	m := newTestMachine(t, models.JumpCMJ)

	events := feed(m, cmjSteps())

	assert.Equal(t, []models.Phase{
		models.PhaseCounterMovement,
		models.PhasePropulsion,
		models.PhaseFlight,
		models.PhaseLanding,
		models.PhaseRecovery,
	}, phasesOf(events))

	attempts := attemptsOf(events)
	require.Len(t, attempts, 1)
	a := attempts[0]
	assert.Equal(t, models.AttemptCompleted, a.Status)
	require.NotNil(t, a.Metrics)
	assert.InDelta(t, 0.20, a.Metrics.FlightTime, 1e-9)
	assert.InDelta(t, 0.25, a.Metrics.TrajectoryHeightM, 1e-9)
	assert.Empty(t, a.Faults)
	assert.Equal(t, models.PhaseIdle, m.Phase())

	// transition timestamps come from the frames, not the wall clock
	to, ok := a.PhaseAt(models.PhaseFlight)
	require.True(t, ok)
	assert.Equal(t, 0.30, to)
}

func TestMachineIsDeterministic(t *testing.T) {
	m1 := newTestMachine(t, models.JumpCMJ)
	m2 := newTestMachine(t, models.JumpCMJ)

	a1 := attemptsOf(feed(m1, cmjSteps()))
	a2 := attemptsOf(feed(m2, cmjSteps()))

	require.Len(t, a1, 1)
	require.Len(t, a2, 1)
	assert.Equal(t, a1[0], a2[0])
}

func TestMachineFlightTooShort(t *testing.T) {
	m := newTestMachine(t, models.JumpCMJ)

	steps := []step{}
	for ts := 0.0; ts <= 0.061; ts += 0.02 {
		steps = append(steps, step{ts, 150, -100, 0.52, 0.3, 0.9})
	}
	steps = append(steps,
		step{0.08, 80, -300, 0.56, 0.3, 0.9},
	)
	for ts := 0.10; ts <= 0.161; ts += 0.02 {
		steps = append(steps, step{ts, 120, 400, 0.5, -0.5, 0.9})
	}
	// a hop: airborne for only 0.06 s
	steps = append(steps,
		step{0.18, 170, 200, 0.45, -0.5, 0.85},
		step{0.20, 175, 0, 0.40, -0.2, 0.85},
		step{0.24, 165, -100, 0.48, 0.5, 0.9},
	)

	attempts := attemptsOf(feed(m, steps))
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptInvalid, attempts[0].Status)
	assert.Equal(t, models.ReasonFlightTooShort, attempts[0].Reason)
	assert.Nil(t, attempts[0].Metrics)
	assert.Equal(t, models.PhaseIdle, m.Phase())
}

func TestMachineFlightTimeBoundary(t *testing.T) {
	// 0.01 s under the 0.15 s floor invalidates
	m := newTestMachine(t, models.JumpCMJ)
	attempts := attemptsOf(feed(m, cmjStepsWithFlight(0.14)))
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptInvalid, attempts[0].Status)
	assert.Equal(t, models.ReasonFlightTooShort, attempts[0].Reason)
	assert.Nil(t, attempts[0].Metrics)

	// 0.01 s over the floor completes
	m = newTestMachine(t, models.JumpCMJ)
	attempts = attemptsOf(feed(m, cmjStepsWithFlight(0.16)))
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptCompleted, attempts[0].Status)
	require.NotNil(t, attempts[0].Metrics)
	assert.InDelta(t, 0.16, attempts[0].Metrics.FlightTime, 1e-9)
}

func TestMachineCounterMovementTimeout(t *testing.T) {
	m := newTestMachine(t, models.JumpCMJ)

	var steps []step
	// descend, then squat forever
	for ts := 0.0; ts <= 0.061; ts += 0.02 {
		steps = append(steps, step{ts, 150, -100, 0.52, 0.3, 0.9})
	}
	for ts := 0.08; ts <= 5.3; ts += 0.02 {
		steps = append(steps, step{ts, 85, 0, 0.6, 0, 0.9})
	}

	attempts := attemptsOf(feed(m, steps))
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptInvalid, attempts[0].Status)
	assert.Equal(t, models.ReasonTimeout, attempts[0].Reason)
}

func TestMachineValgusLatchesOncePerPhase(t *testing.T) {
	m := newTestMachine(t, models.JumpCMJ)

	steps := cmjSteps()
	feed(m, steps[:26]) // through touchdown
	require.Equal(t, models.PhaseLanding, m.Phase())

	// ten consecutive collapsed landing frames count as one fault
	for i := 0; i < 10; i++ {
		s := models.JointAngleSample{
			Timestamp:     0.52 + float64(i)*0.02,
			Knee:          100,
			KneeVel:       -100,
			HipY:          0.55,
			HipVelY:       0.1,
			HeelY:         0.9,
			Trunk:         5,
			KneeValgusDev: 0.08,
		}
		m.Step(s)
	}

	require.Equal(t, models.PhaseLanding, m.Phase())
	assert.Equal(t, 1, m.Attempt().Faults[models.FaultKneeValgus])
}

func TestMachineAlignmentFaultsScopedToLoadedPhases(t *testing.T) {
	m := newTestMachine(t, models.JumpCMJ)

	steps := cmjSteps()
	feed(m, steps[:4]) // into countermovement
	require.Equal(t, models.PhaseCounterMovement, m.Phase())

	// a collapse or lean while still descending does not count
	for i := 0; i < 5; i++ {
		s := models.JointAngleSample{
			Timestamp:     0.08 + float64(i)*0.02,
			Knee:          100,
			KneeVel:       -100,
			HipY:          0.56,
			HipVelY:       0.3,
			HeelY:         0.9,
			Trunk:         60,
			KneeValgusDev: 0.08,
		}
		m.Step(s)
	}

	assert.Zero(t, m.Attempt().Faults[models.FaultKneeValgus])
	assert.Zero(t, m.Attempt().Faults[models.FaultTrunkLean])
}

func TestMachineInsufficientDepth(t *testing.T) {
	m := newTestMachine(t, models.JumpCMJ)

	steps := cmjSteps()
	// raise every countermovement knee angle above the depth limit
	for i := range steps {
		if steps[i].knee < 110 {
			steps[i].knee = 110
		}
	}

	attempts := attemptsOf(feed(m, steps))
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptCompleted, attempts[0].Status)
	assert.Equal(t, 1, attempts[0].Faults[models.FaultInsufficientCM])
}

func TestMachineStiffLanding(t *testing.T) {
	m := newTestMachine(t, models.JumpCMJ)

	steps := cmjSteps()
	// landing knee never flexes below the stiffness floor
	for i := range steps {
		if steps[i].ts > 0.5 && steps[i].knee < 140 {
			steps[i].knee = 140
		}
	}

	attempts := attemptsOf(feed(m, steps))
	require.Len(t, attempts, 1)
	assert.Equal(t, 1, attempts[0].Faults[models.FaultStiffLanding])
}

func TestMachineLandingOverrunCompletes(t *testing.T) {
	m := newTestMachine(t, models.JumpCMJ)

	steps := cmjSteps()
	// never settle after touchdown: stay flexed and moving
	var kept []step
	for _, st := range steps {
		if st.ts < 0.52 {
			kept = append(kept, st)
		}
	}
	for ts := 0.52; ts <= 1.101; ts += 0.02 {
		kept = append(kept, step{ts, 110, -100, 0.56, 0.1, 0.9})
	}

	attempts := attemptsOf(feed(m, kept))
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptCompleted, attempts[0].Status)
	// the landing window ceiling forced the completion
	rec, ok := attempts[0].PhaseAt(models.PhaseRecovery)
	require.True(t, ok)
	assert.Greater(t, rec, 1.0)
}

func TestMachineResetAbortsAttempt(t *testing.T) {
	m := newTestMachine(t, models.JumpCMJ)

	steps := cmjSteps()
	feed(m, steps[:12]) // somewhere past the countermovement entry
	require.NotNil(t, m.Attempt())

	a := m.Reset(0.3)
	require.NotNil(t, a)
	assert.Equal(t, models.AttemptAborted, a.Status)
	assert.Equal(t, models.ReasonManualReset, a.Reason)
	assert.Equal(t, models.PhaseIdle, m.Phase())

	// reset while idle is a no-op
	assert.Nil(t, m.Reset(0.4))
}

func TestMachineSQJUnheldSquatFaults(t *testing.T) {
	m := newTestMachine(t, models.JumpSQJ)

	// a CMJ-style bounce under the SQJ protocol: deep but never held
	attempts := attemptsOf(feed(m, cmjSteps()))
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptCompleted, attempts[0].Status)
	assert.Equal(t, 1, attempts[0].Faults[models.FaultInsufficientCM])
}

func TestMachineAbalakovWeakArmDrive(t *testing.T) {
	th, err := config.Default().Resolve(models.SexMale, models.LevelBeginner, models.JumpAbalakov)
	require.NoError(t, err)
	m := NewMachine(th, testCalib, logger.Nop())

	// shoulders never drive upward during propulsion
	attempts := attemptsOf(feed(m, cmjSteps()))
	require.Len(t, attempts, 1)
	assert.Equal(t, 1, attempts[0].Faults[models.FaultWeakArmDrive])
}

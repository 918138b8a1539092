package engine

import (
	"KineJump/internal/domain/models"
	"KineJump/pkg/config"
)

// faultTracker accrues technique faults over one attempt. Per-frame
// faults (valgus, trunk lean) latch once per phase so a fault held over
// many frames still counts as a single event; the latch reopens when the
// phase changes.
type faultTracker struct {
	th config.Thresholds

	latchPhase  models.Phase
	valgusLatch bool
	trunkLatch  bool
}

func newFaultTracker(th config.Thresholds) *faultTracker {
	return &faultTracker{th: th, latchPhase: models.PhaseIdle}
}

// observe applies the per-frame checks against an attempt. Alignment is
// only judged under load, during propulsion and landing; descent and
// airborne positions are out of scope.
func (f *faultTracker) observe(a *models.JumpAttempt, s models.JointAngleSample, phase models.Phase) {
	if phase != f.latchPhase {
		f.latchPhase = phase
		f.valgusLatch = false
		f.trunkLatch = false
	}
	if phase != models.PhasePropulsion && phase != models.PhaseLanding {
		return
	}

	if !f.valgusLatch && s.KneeValgusDev > f.th.ValgusToleranceX {
		f.valgusLatch = true
		a.Faults[models.FaultKneeValgus]++
	}
	if !f.trunkLatch && s.Trunk > f.th.TrunkMaxLeanDeg+f.th.AngleToleranceDeg {
		f.trunkLatch = true
		a.Faults[models.FaultTrunkLean]++
	}
}

// onCounterMovementExit judges countermovement depth once the descent is
// over. For the squat-jump protocol an unheld squat counts as an
// insufficient countermovement as well.
func (f *faultTracker) onCounterMovementExit(a *models.JumpAttempt, minKnee, holdElapsed float64) {
	insufficient := minKnee > f.th.CMDepthLimit()
	if f.th.JumpType == models.JumpSQJ && holdElapsed < f.th.SQJHoldTime {
		insufficient = true
	}
	if insufficient {
		a.Faults[models.FaultInsufficientCM]++
	}
}

// onTakeoff judges the arm drive, which only the Abalakov protocol
// requires.
func (f *faultTracker) onTakeoff(a *models.JumpAttempt, maxShoulderRise float64) {
	if f.th.JumpType != models.JumpAbalakov {
		return
	}
	if maxShoulderRise < f.th.MinTakeoffVelocity {
		a.Faults[models.FaultWeakArmDrive]++
	}
}

// onLandingExit judges shock absorption: a landing where the knee never
// flexed past the stiffness floor did not absorb the impact.
func (f *faultTracker) onLandingExit(a *models.JumpAttempt, minKnee float64) {
	if minKnee > f.th.StiffLandingFloor() {
		a.Faults[models.FaultStiffLanding]++
	}
}

package config

import (
	"fmt"

	"KineJump/internal/domain/models"
)

// Thresholds is the immutable snapshot the engine works against for one
// attempt. It folds the ROM tables, per-level tolerances and protocol
// parameters together so nothing downstream ever reads Config directly.
type Thresholds struct {
	JumpType models.JumpType
	Level    models.SkillLevel
	Sex      models.Sex

	// Countermovement depth: the knee must flex below this during the
	// countermovement (target widened by the level's angle tolerance).
	KneeFlexionTargetCM float64
	HipFlexionMinCM     float64
	AnkleDorsiflexionCM float64

	// Takeoff extension.
	KneeExtensionTakeoff float64
	HipExtensionTakeoff  float64

	// Landing absorption.
	KneeFlexionLandingMax   float64
	KneeExtensionLandingMin float64

	TrunkMaxLeanDeg          float64
	ValgusToleranceX         float64
	StiffLandingToleranceDeg float64
	AngleToleranceDeg        float64

	MinCMVelocity      float64
	MinTakeoffVelocity float64

	MinFlightTime            float64
	MinVerticalDisplacementM float64
	MaxLandingTime           float64
	MaxCountermovementTime   float64
	TransitionDwell          float64
	SettleVelocityDeg        float64
	LiftoffVelocity          float64
	HeelContactEpsilon       float64
	SQJHoldTime              float64

	Band Band
}

// Resolve folds config tables into the per-attempt snapshot. An unknown
// jump type is rejected here so the state machine can assume a valid
// protocol.
func (c *Config) Resolve(sex models.Sex, level models.SkillLevel, t models.JumpType) (Thresholds, error) {
	if !t.Valid() {
		return Thresholds{}, fmt.Errorf("resolve thresholds: unknown jump type %q", t)
	}
	lp := c.LevelFor(level)
	th := Thresholds{
		JumpType: t,
		Level:    level,
		Sex:      sex,

		KneeFlexionTargetCM: c.ROM.Knee.FlexionTargetCM,
		HipFlexionMinCM:     c.ROM.Hip.FlexionMinCM,
		AnkleDorsiflexionCM: c.ROM.Ankle.DorsiflexionCM,

		KneeExtensionTakeoff: c.ROM.Knee.ExtensionTakeoff,
		HipExtensionTakeoff:  c.ROM.Hip.ExtensionTakeoff,

		KneeFlexionLandingMax:   c.ROM.Knee.FlexionLandingMax,
		KneeExtensionLandingMin: c.ROM.Knee.ExtensionLandingMin,

		TrunkMaxLeanDeg:          c.ROM.Trunk.MaxLeanDeg,
		ValgusToleranceX:         c.Jump.ValgusToleranceX,
		StiffLandingToleranceDeg: c.Jump.StiffLandingToleranceDeg,
		AngleToleranceDeg:        lp.AngleToleranceDeg,

		MinCMVelocity:      lp.MinCMVelocity,
		MinTakeoffVelocity: lp.MinTakeoffVelocity,

		MinFlightTime:            c.Jump.MinFlightTime,
		MinVerticalDisplacementM: c.Jump.MinVerticalDisplacementM,
		MaxLandingTime:           c.Jump.MaxLandingTime,
		MaxCountermovementTime:   c.Jump.MaxCountermovementTime,
		TransitionDwell:          c.Jump.TransitionDwell,
		SettleVelocityDeg:        c.Jump.SettleVelocityDeg,
		LiftoffVelocity:          c.Jump.LiftoffVelocity,
		HeelContactEpsilon:       c.Jump.HeelContactEpsilon,
		SQJHoldTime:              c.Jump.SQJHoldTime,

		Band: c.BandFor(sex, t),
	}
	return th, nil
}

// CMDepthLimit is the knee angle the countermovement must dip below,
// widened by the level tolerance. Lower knee angle means deeper flexion.
func (t Thresholds) CMDepthLimit() float64 {
	return t.KneeFlexionTargetCM + t.AngleToleranceDeg
}

// TakeoffExtensionFloor is the knee angle that counts as full extension
// at takeoff, narrowed by the level tolerance.
func (t Thresholds) TakeoffExtensionFloor() float64 {
	return t.KneeExtensionTakeoff - t.AngleToleranceDeg
}

// StiffLandingFloor is the minimum knee flexion the landing must reach;
// staying above it for the whole absorption marks a stiff landing.
func (t Thresholds) StiffLandingFloor() float64 {
	return t.KneeFlexionLandingMax + t.StiffLandingToleranceDeg + t.AngleToleranceDeg
}

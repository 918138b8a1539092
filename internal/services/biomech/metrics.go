package biomech

import (
	"math"

	"KineJump/internal/domain/models"
	"KineJump/internal/domain/repository"
	"KineJump/pkg/logger"
)

// Gravity in m/s^2.
const Gravity = 9.81

// Calculator derives the mechanical outputs of a completed attempt from
// its flight time. The flight-time height is the authoritative value;
// the hip-trajectory estimate is kept only to watch calibration drift.
type Calculator struct {
	log *logger.Logger
	rec repository.Metrics
}

// NewCalculator builds the metrics calculator.
func NewCalculator(log *logger.Logger, rec repository.Metrics) *Calculator {
	return &Calculator{log: log, rec: rec}
}

// FlightHeight converts flight time to jump height, h = g*t^2/8.
func FlightHeight(flightTime float64) float64 {
	return Gravity * flightTime * flightTime / 8
}

// Power estimates mean mechanical power over the flight, P = m*g*h/t.
func Power(massKG, heightM, flightTime float64) float64 {
	if flightTime <= 0 {
		return 0
	}
	return massKG * Gravity * heightM / flightTime
}

// Finalize fills the derived metrics on a completed attempt. Invalid and
// aborted attempts carry no metrics and pass through untouched.
func (c *Calculator) Finalize(a *models.JumpAttempt, athlete *models.Athlete) {
	if a.Metrics == nil {
		return
	}

	m := a.Metrics
	m.HeightM = FlightHeight(m.FlightTime)
	m.PowerW = Power(athlete.WeightKG, m.HeightM, m.FlightTime)

	gap := math.Abs(m.HeightM - m.TrajectoryHeightM)
	c.rec.RecordHeightDiscrepancy(gap)
	c.log.Debug("attempt metrics",
		logger.Float64("flight_time_s", m.FlightTime),
		logger.Float64("height_m", m.HeightM),
		logger.Float64("trajectory_height_m", m.TrajectoryHeightM),
		logger.Float64("estimate_gap_m", gap),
		logger.Float64("power_w", m.PowerW),
	)
}

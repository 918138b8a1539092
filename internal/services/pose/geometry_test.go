package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"KineJump/internal/domain/models"
)

func lm(x, y float64) models.Landmark {
	return models.Landmark{X: x, Y: y, Confidence: 1}
}

func TestJointAngle(t *testing.T) {
	// right angle at the vertex
	got := JointAngle(lm(0, 1), lm(0, 0), lm(1, 0))
	assert.InDelta(t, 90, got, 1e-9)

	// collinear points read fully extended
	got = JointAngle(lm(0, 0), lm(0, 1), lm(0, 2))
	assert.InDelta(t, 180, got, 1e-9)

	// fully folded
	got = JointAngle(lm(0, 0), lm(0, 1), lm(0, 0))
	assert.InDelta(t, 0, got, 1e-9)
}

func TestJointAngleDegenerate(t *testing.T) {
	// coincident vertex and endpoint never fakes a deep flexion
	got := JointAngle(lm(0.5, 0.5), lm(0.5, 0.5), lm(0.7, 0.7))
	assert.Equal(t, 180.0, got)
}

func TestInclinationFromVertical(t *testing.T) {
	// upper directly above lower (image Y grows downward)
	got := InclinationFromVertical(lm(0.5, 0.3), lm(0.5, 0.5))
	assert.InDelta(t, 0, got, 1e-9)

	// 45 degree lean
	got = InclinationFromVertical(lm(0.7, 0.3), lm(0.5, 0.5))
	assert.InDelta(t, 45, got, 1e-9)

	// horizontal
	got = InclinationFromVertical(lm(0.7, 0.5), lm(0.5, 0.5))
	assert.InDelta(t, 90, got, 1e-9)
}

func TestValgusDeviation(t *testing.T) {
	midline := 0.5

	// knee on the hip-ankle line: no deviation
	dev := valgusDeviation(lm(0.45, 0.5), lm(0.45, 0.7), lm(0.45, 0.9), midline)
	assert.InDelta(t, 0, dev, 1e-9)

	// left-side knee (left of midline) collapsed toward the midline
	dev = valgusDeviation(lm(0.45, 0.5), lm(0.48, 0.7), lm(0.45, 0.9), midline)
	assert.InDelta(t, 0.03, dev, 1e-9)

	// outward movement is not valgus
	dev = valgusDeviation(lm(0.45, 0.5), lm(0.40, 0.7), lm(0.45, 0.9), midline)
	assert.Equal(t, 0.0, dev)

	// right-side knee collapsing left, toward the midline
	dev = valgusDeviation(lm(0.55, 0.5), lm(0.52, 0.7), lm(0.55, 0.9), midline)
	assert.InDelta(t, 0.03, dev, 1e-9)
}

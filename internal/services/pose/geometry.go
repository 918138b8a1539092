package pose

import (
	"math"

	"KineJump/internal/domain/models"
)

// JointAngle computes the angle at vertex b formed by segments b->a and
// b->c, in degrees. A degenerate triple (coincident points) reads as a
// fully extended joint, 180 degrees, so a glitchy frame never fakes a
// deep flexion.
func JointAngle(a, b, c models.Landmark) float64 {
	bax := a.X - b.X
	bay := a.Y - b.Y
	bcx := c.X - b.X
	bcy := c.Y - b.Y

	na := math.Hypot(bax, bay)
	nc := math.Hypot(bcx, bcy)
	if na == 0 || nc == 0 {
		return 180
	}

	cos := (bax*bcx + bay*bcy) / (na * nc)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// InclinationFromVertical returns how far the segment from lower to upper
// leans away from the image vertical, in degrees. 0 means perfectly
// upright. The image Y axis grows downward, so "up" is -Y.
func InclinationFromVertical(upper, lower models.Landmark) float64 {
	dx := upper.X - lower.X
	dy := lower.Y - upper.Y // positive when upper is above lower
	n := math.Hypot(dx, dy)
	if n == 0 {
		return 0
	}
	cos := dy / n
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// midpoint of two landmarks; confidence is the lesser of the pair.
func midpoint(a, b models.Landmark) models.Landmark {
	conf := a.Confidence
	if b.Confidence < conf {
		conf = b.Confidence
	}
	return models.Landmark{
		X:          (a.X + b.X) / 2,
		Y:          (a.Y + b.Y) / 2,
		Z:          (a.Z + b.Z) / 2,
		Confidence: conf,
	}
}

// valgusDeviation measures how far the knee sits inside the hip-ankle
// line along X, in image units. Positive values mean medial collapse
// toward the body midline at midlineX.
func valgusDeviation(hip, knee, ankle models.Landmark, midlineX float64) float64 {
	dy := ankle.Y - hip.Y
	var lineX float64
	if dy == 0 {
		lineX = (hip.X + ankle.X) / 2
	} else {
		t := (knee.Y - hip.Y) / dy
		lineX = hip.X + t*(ankle.X-hip.X)
	}

	dev := knee.X - lineX
	// collapse is movement toward the midline
	if knee.X > midlineX {
		dev = -dev
	}
	if dev < 0 {
		return 0
	}
	return dev
}

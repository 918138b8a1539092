package biomech

import (
	"math"

	"KineJump/internal/domain/models"
	"KineJump/pkg/config"
)

// faultSeverity weights technique faults by injury relevance; alignment
// faults cost double.
var faultSeverity = map[models.FaultType]float64{
	models.FaultInsufficientCM: 1,
	models.FaultKneeValgus:     2,
	models.FaultStiffLanding:   2,
	models.FaultTrunkLean:      1,
	models.FaultWeakArmDrive:   1,
}

// maxSeverity is the normalization ceiling for the severity fraction.
const maxSeverity = 6.0

// Classifier turns jump height and technique quality into a skill level
// with an evaluation and corrective recommendations.
type Classifier struct {
	cfg *config.Config
}

// NewClassifier builds a classifier over the configured band tables.
func NewClassifier(cfg *config.Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// TechnicalScore rates one attempt 0..100. Height relative to the elite
// band bound carries 40%, absence of weighted faults 40%, achieved
// countermovement depth 20%.
func (c *Classifier) TechnicalScore(a *models.JumpAttempt, th config.Thresholds) float64 {
	if a.Metrics == nil {
		return 0
	}

	heightFrac := clamp01(a.Metrics.HeightM * 100 / th.Band.AdvMaxCM)

	var severity float64
	for fault, n := range a.Faults {
		severity += faultSeverity[fault] * float64(n)
	}
	severityFrac := clamp01(severity / maxSeverity)

	lp := c.cfg.LevelFor(th.Level)
	romAchieved := 180 - a.Metrics.CMDepthDeg
	romFrac := clamp01(romAchieved / lp.MinROMCM)

	return 100 * (0.4*heightFrac + 0.4*(1-severityFrac) + 0.2*romFrac)
}

// Classify maps a jump height onto the sex- and protocol-specific band
// table. Near a band boundary the technical score breaks the tie
// downward: a borderline height with sloppy technique does not round up.
func (c *Classifier) Classify(heightM, score float64, th config.Thresholds, faults map[models.FaultType]int) *models.ClassificationResult {
	heightCM := heightM * 100
	band := th.Band

	level := heightLevel(heightCM, band)
	if nearBoundary(heightCM, band, c.cfg.Technique.BandEdgeMarginCM) {
		if tl := c.techLevel(score); tl < level {
			level = tl
		}
	}

	return &models.ClassificationResult{
		Level:           level,
		LevelName:       level.String(),
		TechnicalScore:  score,
		Evaluation:      evaluation(score),
		Recommendations: Recommendations(faults, score),
	}
}

// ClassifyAttempt scores and classifies one completed attempt in place.
func (c *Classifier) ClassifyAttempt(a *models.JumpAttempt, th config.Thresholds) {
	if a.Metrics == nil {
		return
	}
	score := c.TechnicalScore(a, th)
	a.Result = c.Classify(a.Metrics.HeightM, score, th, a.Faults)
}

// heightLevel places a height in its band. Edges belong to the band
// above: a 30 cm men's CMJ is intermediate, not beginner.
func heightLevel(heightCM float64, band config.Band) models.SkillLevel {
	switch {
	case heightCM < band.LowMaxCM:
		return models.LevelBeginner
	case heightCM < band.MidMaxCM:
		return models.LevelIntermediate
	case heightCM < band.AdvMaxCM:
		return models.LevelAdvanced
	default:
		return models.LevelElite
	}
}

func nearBoundary(heightCM float64, band config.Band, margin float64) bool {
	for _, edge := range []float64{band.LowMaxCM, band.MidMaxCM, band.AdvMaxCM} {
		if math.Abs(heightCM-edge) <= margin {
			return true
		}
	}
	return false
}

// techLevel maps the precision bands: below 60 beginner, 60 to 80
// inclusive intermediate, above 80 advanced.
func (c *Classifier) techLevel(score float64) models.SkillLevel {
	switch {
	case score < c.cfg.Technique.PrecisionMidPct:
		return models.LevelBeginner
	case score <= c.cfg.Technique.PrecisionHighPct:
		return models.LevelIntermediate
	default:
		return models.LevelAdvanced
	}
}

func evaluation(score float64) string {
	switch {
	case score >= 80:
		return "excellent technique"
	case score >= 60:
		return "good technique with minor corrections"
	case score >= 40:
		return "developing technique, focus on the fundamentals"
	default:
		return "needs supervised technical work"
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

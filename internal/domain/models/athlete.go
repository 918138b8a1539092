package models

import "fmt"

// Sex selects the anthropometric proportion set and classification bands.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

// SkillLevel is the athlete's current training level. It selects tolerance
// bands from configuration and is the output axis of classification.
type SkillLevel int

const (
	LevelBeginner SkillLevel = iota
	LevelIntermediate
	LevelAdvanced
	// LevelElite is a classification outcome only; athlete profiles train
	// with the advanced tolerance set.
	LevelElite
)

var levelNames = map[SkillLevel]string{
	LevelBeginner:     "beginner",
	LevelIntermediate: "intermediate",
	LevelAdvanced:     "advanced",
	LevelElite:        "elite",
}

func (l SkillLevel) String() string { return levelNames[l] }

// ParseSkillLevel maps a level name to its SkillLevel.
func ParseSkillLevel(s string) (SkillLevel, error) {
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return LevelBeginner, fmt.Errorf("unknown skill level %q", s)
}

// SegmentLengths are body segment estimates in meters, derived from height
// and sex-specific proportions.
type SegmentLengths struct {
	FemurM       float64 `json:"femur_m"`
	TibiaM       float64 `json:"tibia_m"`
	KneeSpacingM float64 `json:"knee_spacing_m"`
}

// Athlete carries the anthropometrics required before any metrics or
// classification can run. Mass, sex and level have no defaults: a zero
// value here is a caller error, not a fallback.
type Athlete struct {
	ID       int64      `json:"id,omitempty"`
	Name     string     `json:"name"`
	Sex      Sex        `json:"sex"`
	Age      int        `json:"age"`
	HeightCM float64    `json:"height_cm"`
	WeightKG float64    `json:"weight_kg"`
	Level    SkillLevel `json:"level"`

	Segments SegmentLengths `json:"segments"`
}

// HeightM returns the athlete height in meters.
func (a *Athlete) HeightM() float64 { return a.HeightCM / 100.0 }

// BMI returns the body mass index, or 0 when height is unset.
func (a *Athlete) BMI() float64 {
	h := a.HeightM()
	if h <= 0 {
		return 0
	}
	return a.WeightKG / (h * h)
}

// Validate checks that the data metrics and classification depend on is
// present. Missing values surface immediately rather than defaulting.
func (a *Athlete) Validate() error {
	if a.Sex != SexMale && a.Sex != SexFemale {
		return fmt.Errorf("athlete sex must be M or F, got %q", a.Sex)
	}
	if a.WeightKG <= 0 {
		return fmt.Errorf("athlete mass is required")
	}
	if a.HeightCM <= 0 {
		return fmt.Errorf("athlete height is required")
	}
	if a.Level < LevelBeginner || a.Level > LevelAdvanced {
		return fmt.Errorf("athlete level must be beginner, intermediate or advanced")
	}
	return nil
}

package models

// ClassificationResult is produced once per completed attempt and once per
// session; it is immutable after creation.
type ClassificationResult struct {
	Level           SkillLevel `json:"level"`
	LevelName       string     `json:"level_name"`
	TechnicalScore  float64    `json:"technical_score"` // 0..100
	Evaluation      string     `json:"evaluation"`
	Recommendations []string   `json:"recommendations"`
}

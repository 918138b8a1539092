package models

import "time"

// SessionSummary is the aggregate view over one athlete's session.
// Cross-protocol indices are pointers: nil means "not computable with the
// attempts recorded so far", which is distinct from a zero index.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	AthleteID int64     `json:"athlete_id"`
	StartedAt time.Time `json:"started_at"`
	Duration  float64   `json:"duration_s"`

	Total   int `json:"total_attempts"`
	Valid   int `json:"valid_attempts"`
	Correct int `json:"correct_attempts"`
	// Precision is the share of valid attempts completed without faults,
	// percent.
	Precision float64 `json:"precision_pct"`

	MeanHeightM     float64 `json:"mean_height_m"`
	MaxHeightM      float64 `json:"max_height_m"`
	HeightStddevM   float64 `json:"height_stddev_m"`
	MeanPowerW      float64 `json:"mean_power_w"`
	MeanFlightTimeS float64 `json:"mean_flight_time_s"`

	ElasticityIndex   *float64 `json:"elasticity_index,omitempty"`
	CoordinationIndex *float64 `json:"coordination_index,omitempty"`

	Faults map[FaultType]int     `json:"faults"`
	Result *ClassificationResult `json:"classification,omitempty"`
}

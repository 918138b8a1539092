package models

// Phase is one biomechanical phase of a vertical jump. Within a single
// attempt phases only ever advance along this order.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCounterMovement
	PhasePropulsion
	PhaseFlight
	PhaseLanding
	PhaseRecovery
)

var phaseNames = map[Phase]string{
	PhaseIdle:            "idle",
	PhaseCounterMovement: "countermovement",
	PhasePropulsion:      "propulsion",
	PhaseFlight:          "flight",
	PhaseLanding:         "landing",
	PhaseRecovery:        "recovery",
}

func (p Phase) String() string { return phaseNames[p] }

// JumpType selects the protocol under analysis.
type JumpType string

const (
	JumpCMJ      JumpType = "CMJ"
	JumpSQJ      JumpType = "SQJ"
	JumpAbalakov JumpType = "ABALAKOV"
)

// Valid reports whether t is a known jump protocol.
func (t JumpType) Valid() bool {
	switch t {
	case JumpCMJ, JumpSQJ, JumpAbalakov:
		return true
	}
	return false
}

// FaultType is a detectable technique error.
type FaultType string

const (
	FaultKneeValgus     FaultType = "knee_valgus"
	FaultStiffLanding   FaultType = "stiff_landing"
	FaultInsufficientCM FaultType = "insufficient_countermovement"
	FaultTrunkLean      FaultType = "trunk_lean"
	FaultWeakArmDrive   FaultType = "weak_arm_drive" // Abalakov only
)

// AttemptStatus is the terminal status of a jump attempt.
type AttemptStatus string

const (
	AttemptCompleted AttemptStatus = "completed"
	AttemptInvalid   AttemptStatus = "invalid"
	AttemptAborted   AttemptStatus = "aborted"
)

// InvalidReason tags why an attempt did not produce metrics.
type InvalidReason string

const (
	ReasonNone            InvalidReason = ""
	ReasonTimeout         InvalidReason = "countermovement_timeout"
	ReasonFlightTooShort  InvalidReason = "flight_time_below_minimum"
	ReasonLowDisplacement InvalidReason = "displacement_below_minimum"
	ReasonManualReset     InvalidReason = "manual_reset"
)

// PhaseEvent marks a phase boundary inside an attempt.
type PhaseEvent struct {
	Phase     Phase   `json:"phase"`
	Timestamp float64 `json:"ts"`
}

// Metrics are the mechanical outputs of one completed attempt. They are
// attached once when the attempt reaches Landing through a valid Flight and
// never change afterwards.
type Metrics struct {
	FlightTime float64 `json:"flight_time_s"`
	// HeightM is the flight-time estimate h = g*t^2/8, the authoritative
	// value for all consumers.
	HeightM float64 `json:"height_m"`
	// TrajectoryHeightM is the hip-displacement estimate, kept as a
	// diagnostic cross-check only.
	TrajectoryHeightM float64 `json:"trajectory_height_m"`
	PowerW            float64 `json:"power_w"`
	// CMDepthDeg is the deepest knee angle reached during the
	// countermovement; lower means deeper.
	CMDepthDeg float64 `json:"cm_depth_deg"`
}

// JumpAttempt aggregates everything observed between leaving Idle and
// reaching Recovery (or a cancellation).
type JumpAttempt struct {
	ID      int64                 `json:"id,omitempty"`
	Type    JumpType              `json:"jump_type"`
	Status  AttemptStatus         `json:"status"`
	Reason  InvalidReason         `json:"reason,omitempty"`
	Phases  []PhaseEvent          `json:"phases"`
	Faults  map[FaultType]int     `json:"faults"`
	Metrics *Metrics              `json:"metrics,omitempty"`
	Result  *ClassificationResult `json:"classification,omitempty"`
}

// PhaseAt returns the timestamp at which the attempt entered the given
// phase, and whether it ever did.
func (a *JumpAttempt) PhaseAt(p Phase) (float64, bool) {
	for _, ev := range a.Phases {
		if ev.Phase == p {
			return ev.Timestamp, true
		}
	}
	return 0, false
}

package repository

import (
	"context"

	"KineJump/internal/domain/models"
)

// AttemptStore persists athletes, attempts and session summaries.
type AttemptStore interface {
	Init(ctx context.Context) error // ensure schema
	SaveAthlete(ctx context.Context, a *models.Athlete) (int64, error)
	GetAthlete(ctx context.Context, id int64) (*models.Athlete, error)
	SaveAttempt(ctx context.Context, sessionID string, a *models.JumpAttempt) (int64, error)
	ListAttempts(ctx context.Context, sessionID string) ([]*models.JumpAttempt, error)
	SaveSession(ctx context.Context, s *models.SessionSummary) error
	GetSession(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	Close() error
}

// EventSink receives engine events as they happen. Implementations must not
// block: the engine calls these synchronously between frames.
type EventSink interface {
	OnPhase(sessionID string, ev models.PhaseEvent)
	OnAttempt(sessionID string, a *models.JumpAttempt)
}

// Metrics abstracts operational counters so the engine does not depend on a
// concrete metrics backend.
type Metrics interface {
	RecordFrame(outcome string) // processed, rejected_confidence, rejected_jitter
	RecordPhase(phase string)
	RecordAttempt(status string)
	RecordFault(kind string)
	RecordHeightDiscrepancy(meters float64)
	RecordLatency(op string, seconds float64)
}

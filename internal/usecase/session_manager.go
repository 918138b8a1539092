package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"KineJump/internal/domain/models"
	drepo "KineJump/internal/domain/repository"
	"KineJump/internal/middleware"
	"KineJump/pkg/config"
	"KineJump/pkg/logger"
)

// Session is one live analysis session: a processor plus the pipeline
// feeding it.
type Session struct {
	ID        string
	Athlete   *models.Athlete
	StartedAt time.Time

	proc     *FrameProcessor
	pipeline *middleware.FramePipeline
}

// SessionManager owns the live sessions. Create, feed, reset and finish
// all go through here; finished sessions are only reachable through the
// store afterwards.
type SessionManager struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics drepo.Metrics
	store   drepo.AttemptStore
	sink    drepo.EventSink

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager builds the manager.
func NewSessionManager(
	cfg *config.Config,
	log *logger.Logger,
	metrics drepo.Metrics,
	store drepo.AttemptStore,
	sink drepo.EventSink,
) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		store:    store,
		sink:     sink,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for a stored athlete and protocol.
func (sm *SessionManager) Create(ctx context.Context, athleteID int64, jumpType models.JumpType) (*Session, error) {
	athlete, err := sm.store.GetAthlete(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	id := newSessionID()
	startedAt := time.Now()

	proc, err := NewFrameProcessor(sm.cfg, sm.log, sm.metrics, sm.store, sm.sink, athlete, id, jumpType, startedAt)
	if err != nil {
		return nil, err
	}

	pipeline := middleware.NewFramePipeline(proc, sm.metrics,
		middleware.WithBufferSize(sm.cfg.Pipeline.BufferSize))
	pipeline.Start(context.Background())

	s := &Session{
		ID:        id,
		Athlete:   athlete,
		StartedAt: startedAt,
		proc:      proc,
		pipeline:  pipeline,
	}

	sm.mu.Lock()
	sm.sessions[id] = s
	sm.mu.Unlock()

	sm.log.Info("session created",
		logger.String("session_id", id),
		logger.Int64("athlete_id", athleteID),
		logger.String("jump_type", string(jumpType)),
	)
	return s, nil
}

// Get returns a live session.
func (sm *SessionManager) Get(id string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return s, nil
}

// SubmitFrame feeds one pose frame into a session's pipeline.
func (sm *SessionManager) SubmitFrame(id string, f models.Frame) error {
	s, err := sm.Get(id)
	if err != nil {
		return err
	}
	return s.pipeline.Submit(f)
}

// Reset aborts the attempt in progress. It executes behind every frame
// already queued.
func (sm *SessionManager) Reset(ctx context.Context, id string) error {
	s, err := sm.Get(id)
	if err != nil {
		return err
	}
	return s.pipeline.Reset(ctx)
}

// SetJumpType switches a session's protocol between attempts.
func (sm *SessionManager) SetJumpType(ctx context.Context, id string, t models.JumpType) error {
	s, err := sm.Get(id)
	if err != nil {
		return err
	}
	// drain first so the switch cannot land mid-attempt on queued frames
	if err := s.pipeline.Drain(ctx); err != nil {
		return err
	}
	return s.proc.SetJumpType(t)
}

// Summary returns the live aggregate without finishing the session.
func (sm *SessionManager) Summary(ctx context.Context, id string) (*models.SessionSummary, error) {
	s, err := sm.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.pipeline.Drain(ctx); err != nil {
		return nil, err
	}
	return s.proc.Summary(), nil
}

// Finish drains the pipeline, persists the summary and removes the live
// session.
func (sm *SessionManager) Finish(ctx context.Context, id string) (*models.SessionSummary, error) {
	s, err := sm.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.pipeline.Drain(ctx); err != nil {
		return nil, err
	}

	summary, err := s.proc.Finish(ctx)
	if err != nil {
		return nil, err
	}

	s.pipeline.Stop()
	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()

	return summary, nil
}

// Close stops every live session without persisting summaries.
func (sm *SessionManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for id, s := range sm.sessions {
		s.pipeline.Stop()
		delete(sm.sessions, id)
	}
}

// Phase exposes a session's current detection phase.
func (s *Session) Phase() models.Phase { return s.proc.Phase() }

// Calibrated reports whether the session has a usable calibration.
func (s *Session) Calibrated() bool { return s.proc.Calibrated() }

// JumpType returns the session's current protocol.
func (s *Session) JumpType() models.JumpType { return s.proc.JumpType() }

func newSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("s%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

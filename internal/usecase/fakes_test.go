package usecase

import (
	"context"
	"fmt"
	"sync"

	"KineJump/internal/domain/models"
)

// memStore is an in-memory AttemptStore for tests.
type memStore struct {
	mu       sync.Mutex
	athletes map[int64]*models.Athlete
	attempts map[string][]*models.JumpAttempt
	sessions map[string]*models.SessionSummary
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		athletes: make(map[int64]*models.Athlete),
		attempts: make(map[string][]*models.JumpAttempt),
		sessions: make(map[string]*models.SessionSummary),
	}
}

func (m *memStore) Init(context.Context) error { return nil }

func (m *memStore) SaveAthlete(_ context.Context, a *models.Athlete) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.athletes[a.ID] = a
	return a.ID, nil
}

func (m *memStore) GetAthlete(_ context.Context, id int64) (*models.Athlete, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.athletes[id]
	if !ok {
		return nil, fmt.Errorf("athlete %d not found", id)
	}
	return a, nil
}

func (m *memStore) SaveAttempt(_ context.Context, sessionID string, a *models.JumpAttempt) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.attempts[sessionID] = append(m.attempts[sessionID], a)
	return m.nextID, nil
}

func (m *memStore) ListAttempts(_ context.Context, sessionID string) ([]*models.JumpAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[sessionID], nil
}

func (m *memStore) SaveSession(_ context.Context, s *models.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *memStore) GetSession(_ context.Context, sessionID string) (*models.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return s, nil
}

func (m *memStore) Close() error { return nil }

// nopSink discards engine events.
type nopSink struct{}

func (nopSink) OnPhase(string, models.PhaseEvent)     {}
func (nopSink) OnAttempt(string, *models.JumpAttempt) {}

// nopMetrics discards operational counters.
type nopMetrics struct{}

func (nopMetrics) RecordFrame(string)              {}
func (nopMetrics) RecordPhase(string)              {}
func (nopMetrics) RecordAttempt(string)            {}
func (nopMetrics) RecordFault(string)              {}
func (nopMetrics) RecordHeightDiscrepancy(float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

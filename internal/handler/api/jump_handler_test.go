package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KineJump/internal/domain/models"
	"KineJump/internal/usecase"
	"KineJump/pkg/cache"
	"KineJump/pkg/config"
	"KineJump/pkg/logger"
)

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

func (s *memStore) Init(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }

func (s *memStore) SaveAthlete(_ context.Context, a *models.Athlete) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextID++
		a.ID = s.nextID
	}
	s.athletes[a.ID] = a
	return a.ID, nil
}

func (s *memStore) GetAthlete(_ context.Context, id int64) (*models.Athlete, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.athletes[id]
	if !ok {
		return nil, fmt.Errorf("athlete %d not found", id)
	}
	return a, nil
}

func (s *memStore) SaveAttempt(_ context.Context, sessionID string, a *models.JumpAttempt) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	s.attempts[sessionID] = append(s.attempts[sessionID], a)
	return a.ID, nil
}

func (s *memStore) ListAttempts(_ context.Context, sessionID string) ([]*models.JumpAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[sessionID], nil
}

func (s *memStore) SaveSession(_ context.Context, sum *models.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sum.SessionID] = sum
	return nil
}

func (s *memStore) GetSession(_ context.Context, id string) (*models.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return sum, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordFrame(string)              {}
func (nopMetrics) RecordPhase(string)              {}
func (nopMetrics) RecordAttempt(string)            {}
func (nopMetrics) RecordFault(string)              {}
func (nopMetrics) RecordHeightDiscrepancy(float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

func newTestHandler(t *testing.T) (*memStore, *echo.Echo) {
	t.Helper()
	cfg := config.Default()
	log := logger.Nop()
	store := newMemStore()
	hub := NewLiveHub(log)
	sessions := usecase.NewSessionManager(cfg, log, nopMetrics{}, store, hub)
	t.Cleanup(sessions.Close)

	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	h := NewJumpHandler(log, sessions, store, mem, hub)
	e := echo.New()
	h.RegisterRoutes(e)
	return store, e
}

// envelope mirrors the APIResponse wrapper: the transport code is always
// 200, the logical status travels in the body.
type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code == http.StatusNoContent {
		return envelope{Status: http.StatusNoContent}
	}
	require.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCreateAthlete(t *testing.T) {
	store, e := newTestHandler(t)

	env := doJSON(t, e, http.MethodPost, "/api/athletes",
		`{"name":"Ana","sex":"F","age":24,"height_cm":170,"weight_kg":62,"level":"intermediate"}`)
	require.Equal(t, http.StatusCreated, env.Status)

	var athlete models.Athlete
	require.NoError(t, json.Unmarshal(env.Data, &athlete))
	assert.NotZero(t, athlete.ID)
	assert.Equal(t, models.SexFemale, athlete.Sex)

	saved, err := store.GetAthlete(context.Background(), athlete.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", saved.Name)
}

func TestCreateAthleteValidation(t *testing.T) {
	_, e := newTestHandler(t)

	cases := map[string]string{
		"missing name": `{"sex":"F","height_cm":170,"weight_kg":62}`,
		"bad sex":      `{"name":"X","sex":"Q","height_cm":170,"weight_kg":62}`,
		"zero height":  `{"name":"X","sex":"M","height_cm":0,"weight_kg":62}`,
		"bad level":    `{"name":"X","sex":"M","height_cm":170,"weight_kg":62,"level":"pro"}`,
		"negative age": `{"name":"X","sex":"M","age":-1,"height_cm":170,"weight_kg":62}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			env := doJSON(t, e, http.MethodPost, "/api/athletes", body)
			assert.Equal(t, http.StatusBadRequest, env.Status)
		})
	}
}

func TestGetAthleteNotFound(t *testing.T) {
	_, e := newTestHandler(t)

	env := doJSON(t, e, http.MethodGet, "/api/athletes/99", "")
	assert.Equal(t, http.StatusNotFound, env.Status)

	env = doJSON(t, e, http.MethodGet, "/api/athletes/abc", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func createTestAthlete(t *testing.T, e *echo.Echo) int64 {
	t.Helper()
	env := doJSON(t, e, http.MethodPost, "/api/athletes",
		`{"name":"Ana","sex":"F","age":24,"height_cm":170,"weight_kg":62,"level":"intermediate"}`)
	require.Equal(t, http.StatusCreated, env.Status)
	var athlete models.Athlete
	require.NoError(t, json.Unmarshal(env.Data, &athlete))
	return athlete.ID
}

func createTestSession(t *testing.T, e *echo.Echo, athleteID int64) string {
	t.Helper()
	env := doJSON(t, e, http.MethodPost, "/api/sessions",
		fmt.Sprintf(`{"athlete_id":%d,"jump_type":"CMJ"}`, athleteID))
	require.Equal(t, http.StatusCreated, env.Status)
	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.SessionID)
	return created.SessionID
}

func TestSessionLifecycle(t *testing.T) {
	_, e := newTestHandler(t)
	athleteID := createTestAthlete(t, e)
	id := createTestSession(t, e, athleteID)

	env := doJSON(t, e, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, env.Status)
	var status struct {
		Phase      string `json:"phase"`
		JumpType   string `json:"jump_type"`
		Calibrated bool   `json:"calibrated"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "idle", status.Phase)
	assert.Equal(t, "CMJ", status.JumpType)
	assert.False(t, status.Calibrated)

	env = doJSON(t, e, http.MethodPut, "/api/sessions/"+id+"/jump-type", `{"jump_type":"SQJ"}`)
	assert.Equal(t, http.StatusNoContent, env.Status)

	env = doJSON(t, e, http.MethodPost, "/api/sessions/"+id+"/finish", "")
	require.Equal(t, http.StatusOK, env.Status)
	var summary models.SessionSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, id, summary.SessionID)
	assert.Zero(t, summary.Total)

	// gone from the manager, second finish fails
	env = doJSON(t, e, http.MethodPost, "/api/sessions/"+id+"/finish", "")
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestCreateSessionUnknownAthlete(t *testing.T) {
	_, e := newTestHandler(t)

	env := doJSON(t, e, http.MethodPost, "/api/sessions", `{"athlete_id":42,"jump_type":"CMJ"}`)
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestSubmitFramesUnknownSession(t *testing.T) {
	_, e := newTestHandler(t)

	env := doJSON(t, e, http.MethodPost, "/api/sessions/nope/frames", `{"frames":[{"ts":0.0}]}`)
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestSessionReportFallsBackToStore(t *testing.T) {
	store, e := newTestHandler(t)

	// nothing live, nothing stored
	env := doJSON(t, e, http.MethodGet, "/api/sessions/old/report", "")
	assert.Equal(t, http.StatusNotFound, env.Status)

	err := store.SaveSession(context.Background(), &models.SessionSummary{
		SessionID: "old",
		Total:     3,
		Valid:     2,
	})
	require.NoError(t, err)

	env = doJSON(t, e, http.MethodGet, "/api/sessions/old/report", "")
	require.Equal(t, http.StatusOK, env.Status)
	var summary models.SessionSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 3, summary.Total)

	// cached copy now serves even if the store row vanishes
	store.mu.Lock()
	delete(store.sessions, "old")
	store.mu.Unlock()

	env = doJSON(t, e, http.MethodGet, "/api/sessions/old/report", "")
	assert.Equal(t, http.StatusOK, env.Status)
}

func TestListAttemptsEmpty(t *testing.T) {
	_, e := newTestHandler(t)
	athleteID := createTestAthlete(t, e)
	id := createTestSession(t, e, athleteID)

	env := doJSON(t, e, http.MethodGet, "/api/sessions/"+id+"/attempts", "")
	require.Equal(t, http.StatusOK, env.Status)
	var list struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Zero(t, list.Total)
}

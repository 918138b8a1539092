package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"KineJump/internal/domain/models"
	domrepo "KineJump/internal/domain/repository"
	"KineJump/internal/usecase"
	"KineJump/pkg/cache"
	xhttp "KineJump/pkg/http"
	xlogger "KineJump/pkg/logger"
)

// reportTTL caches finished-session reports; they are immutable once the
// session is closed.
const reportTTL = 5 * time.Minute

// JumpHandler exposes the session lifecycle and athlete registry over
// HTTP.
type JumpHandler struct {
	log      *xlogger.Logger
	sessions *usecase.SessionManager
	store    domrepo.AttemptStore
	cache    cache.Service
	hub      *LiveHub
}

// NewJumpHandler builds the handler.
func NewJumpHandler(
	log *xlogger.Logger,
	sessions *usecase.SessionManager,
	store domrepo.AttemptStore,
	c cache.Service,
	hub *LiveHub,
) *JumpHandler {
	return &JumpHandler{log: log, sessions: sessions, store: store, cache: c, hub: hub}
}

// RegisterRoutes wires the API surface.
func (h *JumpHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/athletes", h.CreateAthlete)
	g.GET("/athletes/:id", h.GetAthlete)

	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions/:id", h.SessionStatus)
	g.POST("/sessions/:id/frames", h.SubmitFrames)
	g.POST("/sessions/:id/reset", h.ResetSession)
	g.PUT("/sessions/:id/jump-type", h.SetJumpType)
	g.POST("/sessions/:id/finish", h.FinishSession)
	g.GET("/sessions/:id/report", h.SessionReport)
	g.GET("/sessions/:id/attempts", h.ListAttempts)

	g.GET("/live/:id", h.hub.Serve)
}

// --- request bodies ---

type createAthleteRequest struct {
	Name     string                `json:"name" validate:"required"`
	Sex      string                `json:"sex" validate:"required,oneof=M F"`
	Age      int                   `json:"age" validate:"gte=0,lte=120"`
	HeightCM float64               `json:"height_cm" validate:"required,gt=0"`
	WeightKG float64               `json:"weight_kg" validate:"required,gt=0"`
	Level    string                `json:"level" default:"beginner" validate:"oneof=beginner intermediate advanced"`
	Segments models.SegmentLengths `json:"segments"`
}

type createSessionRequest struct {
	AthleteID int64  `json:"athlete_id" validate:"required,gt=0"`
	JumpType  string `json:"jump_type" default:"CMJ" validate:"oneof=CMJ SQJ ABALAKOV"`
}

type submitFramesRequest struct {
	Frames []models.Frame `json:"frames" validate:"required,min=1,dive"`
}

type setJumpTypeRequest struct {
	JumpType string `json:"jump_type" validate:"required,oneof=CMJ SQJ ABALAKOV"`
}

// --- athlete endpoints ---

func (h *JumpHandler) CreateAthlete(c echo.Context) error {
	req := &createAthleteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	level, err := models.ParseSkillLevel(req.Level)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	athlete := &models.Athlete{
		Name:     req.Name,
		Sex:      models.Sex(req.Sex),
		Age:      req.Age,
		HeightCM: req.HeightCM,
		WeightKG: req.WeightKG,
		Level:    level,
		Segments: req.Segments,
	}
	if err := athlete.Validate(); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	if _, err := h.store.SaveAthlete(c.Request().Context(), athlete); err != nil {
		h.log.Error("save athlete", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not save athlete"))
	}
	return xhttp.CreatedResponse(c, athlete)
}

func (h *JumpHandler) GetAthlete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid athlete id"))
	}

	athlete, err := h.store.GetAthlete(c.Request().Context(), id)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("athlete %d not found", id))
	}
	return xhttp.SuccessResponse(c, athlete)
}

// --- session endpoints ---

func (h *JumpHandler) CreateSession(c echo.Context) error {
	req := &createSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	s, err := h.sessions.Create(c.Request().Context(), req.AthleteID, models.JumpType(req.JumpType))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
		}
		h.log.Error("create session", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	return xhttp.CreatedResponse(c, map[string]interface{}{
		"session_id": s.ID,
		"athlete_id": s.Athlete.ID,
		"jump_type":  s.JumpType(),
		"started_at": s.StartedAt,
	})
}

func (h *JumpHandler) SessionStatus(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"session_id": s.ID,
		"jump_type":  s.JumpType(),
		"phase":      s.Phase().String(),
		"calibrated": s.Calibrated(),
	})
}

func (h *JumpHandler) SubmitFrames(c echo.Context) error {
	req := &submitFramesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	id := c.Param("id")
	accepted := 0
	for _, f := range req.Frames {
		if err := h.sessions.SubmitFrame(id, f); err != nil {
			if strings.Contains(err.Error(), "not found") {
				return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
			}
			// queue full: report how far we got, the client may retry
			break
		}
		accepted++
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"accepted": accepted,
		"dropped":  len(req.Frames) - accepted,
	})
}

func (h *JumpHandler) ResetSession(c echo.Context) error {
	if err := h.sessions.Reset(c.Request().Context(), c.Param("id")); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.NoContentResponse(c)
}

func (h *JumpHandler) SetJumpType(c echo.Context) error {
	req := &setJumpTypeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	err := h.sessions.SetJumpType(c.Request().Context(), c.Param("id"), models.JumpType(req.JumpType))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
		}
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
	}
	return xhttp.NoContentResponse(c)
}

func (h *JumpHandler) FinishSession(c echo.Context) error {
	id := c.Param("id")
	summary, err := h.sessions.Finish(c.Request().Context(), id)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	_ = h.cache.Set(c.Request().Context(), reportKey(id), summary, reportTTL)
	return xhttp.SuccessResponse(c, summary)
}

// SessionReport serves the live aggregate for an active session and the
// persisted summary for a finished one.
func (h *JumpHandler) SessionReport(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if summary, err := h.sessions.Summary(ctx, id); err == nil {
		return xhttp.SuccessResponse(c, summary)
	}

	if summary, err := cache.GetTyped[*models.SessionSummary](ctx, h.cache, reportKey(id)); err == nil {
		return xhttp.SuccessResponse(c, summary)
	}

	summary, err := h.store.GetSession(ctx, id)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("session %s not found", id))
	}
	_ = h.cache.Set(ctx, reportKey(id), summary, reportTTL)
	return xhttp.SuccessResponse(c, summary)
}

func (h *JumpHandler) ListAttempts(c echo.Context) error {
	attempts, err := h.store.ListAttempts(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.log.Error("list attempts", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not list attempts"))
	}
	return xhttp.ListResponse(c, attempts, int64(len(attempts)))
}

func reportKey(sessionID string) string { return "report:" + sessionID }

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizora/session-engine/internal/model"
	"github.com/quizora/session-engine/internal/response"
	"github.com/quizora/session-engine/internal/service"
	"github.com/quizora/session-engine/internal/session"
	"github.com/quizora/session-engine/internal/validator"
)

// SessionHandler exposes the session engine's operation set over HTTP.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// CreateSession godoc
// POST /api/v1/sessions
// Creates a NotStarted session over the test's question set.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	testID, err := uuid.Parse(req.TestID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	summary, err := h.sessions.Create(c.Request.Context(), testID, req.DurationSeconds)
	if err != nil {
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": summary})
}

// StartSession godoc
// POST /api/v1/sessions/:session_id/start
// Anchors the deadline and begins both background coordinators.
func (h *SessionHandler) StartSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.sessions.Start(id); err != nil {
		h.failFromError(c, err)
		return
	}

	state, err := h.sessions.State(id)
	if err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// GetState godoc
// GET /api/v1/sessions/:session_id/state
// Returns a consistent snapshot: answers, marks, position and the
// authoritative remaining time. This endpoint covers page reloads.
func (h *SessionHandler) GetState(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	state, err := h.sessions.State(id)
	if err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// SelectAnswer godoc
// POST /api/v1/sessions/:session_id/answers
// Records or clears (option = null) an answer.
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var option *model.OptionKey
	if req.Option != nil {
		key := model.OptionKey(*req.Option)
		option = &key
	}

	if err := h.sessions.SelectAnswer(id, questionID, option, req.ElapsedSeconds); err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// Navigate godoc
// POST /api/v1/sessions/:session_id/navigate
// Moves to another question. Out-of-range indexes are rejected.
func (h *SessionHandler) Navigate(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.Navigate(id, *req.TargetIndex); err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"current_index": *req.TargetIndex})
}

// ToggleReview godoc
// POST /api/v1/sessions/:session_id/review
// Flips the marked-for-review annotation on a question.
func (h *SessionHandler) ToggleReview(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req model.ToggleReviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessions.ToggleReview(id, questionID); err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"toggled": true})
}

// Submit godoc
// POST /api/v1/sessions/:session_id/submit
// Finalizes the session. A failed persistence attempt returns the stats
// alongside SUBMISSION_FAILED; the answers are in the durable backup and
// one retry of this endpoint is permitted.
func (h *SessionHandler) Submit(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	stats, receipt, err := h.sessions.Submit(c.Request.Context(), id)
	if err != nil {
		var persistence *session.PersistenceError
		if errors.As(err, &persistence) {
			response.FailWithData(c, http.StatusBadGateway, response.ErrSubmissionFailed, gin.H{
				"stats":   stats,
				"receipt": receipt,
			})
			return
		}
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"stats":   stats,
		"receipt": receipt,
	})
}

// Recover godoc
// POST /api/v1/sessions/:session_id/recover
// Rebuilds a session from its last autosaved snapshot, e.g. after a process
// restart. Answers, marks, position and fired warnings all come back; the
// deadline is unchanged because it derives from the original start time.
func (h *SessionHandler) Recover(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	state, err := h.sessions.Recover(c.Request.Context(), id)
	if err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// Suspend godoc
// POST /api/v1/sessions/:session_id/suspend
// Stops ticking without discarding the session; the deadline keeps running.
func (h *SessionHandler) Suspend(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Suspend(id); err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"suspended": true})
}

// Resume godoc
// POST /api/v1/sessions/:session_id/resume
// Restarts the coordinators; remaining time is recomputed from the start
// timestamp, so an arbitrary pause costs nothing.
func (h *SessionHandler) Resume(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Resume(id); err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"resumed": true})
}

func (h *SessionHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func (h *SessionHandler) failFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, session.ErrInvalidTransition):
		response.Fail(c, http.StatusConflict, response.ErrInvalidTransition)
	case errors.Is(err, session.ErrAlreadySubmitting):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitting)
	case errors.Is(err, session.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	case errors.Is(err, session.ErrOutOfRange):
		response.Fail(c, http.StatusBadRequest, response.ErrIndexOutOfRange)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/backtrackjee/portal-backend/internal/middleware"
	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/backtrackjee/portal-backend/internal/response"
	"github.com/backtrackjee/portal-backend/internal/service"
	"github.com/backtrackjee/portal-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AttemptHandler serves the attempt lifecycle endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// Start begins (or rejoins) an attempt for the given exam.
// POST /api/v1/portal/attempts
func (h *AttemptHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		h.failAttempt(c, err, "Attempt start failed")
		return
	}
	response.Success(c, http.StatusCreated, attempt)
}

// State returns the restore payload for a running attempt.
// GET /api/v1/portal/attempts/:attempt_id
func (h *AttemptHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	state, err := h.attemptService.State(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		h.failAttempt(c, err, "Attempt state fetch failed")
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SetAnswer upserts or clears one answer on a running attempt.
// PUT /api/v1/portal/attempts/:attempt_id/answers/:question_id
func (h *AttemptHandler) SetAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}
	questionID, err := strconv.Atoi(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SetAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SetAnswer(c.Request.Context(), claims.UserID, attemptID, questionID, req.SelectedAnswer); err != nil {
		h.failAttempt(c, err, "Answer save failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": questionID, "saved": true})
}

// ToggleReview flips the review mark on a question.
// POST /api/v1/portal/attempts/:attempt_id/marks/:question_id
func (h *AttemptHandler) ToggleReview(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}
	questionID, err := strconv.Atoi(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	mark, err := h.attemptService.ToggleReview(c.Request.Context(), claims.UserID, attemptID, questionID)
	if err != nil {
		h.failAttempt(c, err, "Review toggle failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": questionID, "mark": mark})
}

// Submit freezes the answer snapshot and closes the attempt.
// POST /api/v1/portal/attempts/:attempt_id/submit
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), claims.UserID, attemptID, &req)
	if err != nil {
		h.failAttempt(c, err, "Attempt submit failed")
		return
	}
	response.Success(c, http.StatusOK, attempt)
}

// Timeout closes an attempt whose clock ran out, using the autosave buffer
// as the final snapshot.
// POST /api/v1/portal/attempts/:attempt_id/timeout
func (h *AttemptHandler) Timeout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Timeout(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		h.failAttempt(c, err, "Attempt timeout failed")
		return
	}
	response.Success(c, http.StatusOK, attempt)
}

func (h *AttemptHandler) attemptID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// failAttempt maps attempt domain errors onto response codes.
func (h *AttemptHandler) failAttempt(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotAttemptOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, repository.ErrAttemptNotInProgress):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotRunning)
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	case errors.Is(err, service.ErrTooManyQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrTooManyQuestions)
	default:
		h.log.Error().Err(err).Msg(logMsg)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

package handler

import (
	"errors"
	"net/http"

	"github.com/backtrackjee/portal-backend/internal/response"
	"github.com/backtrackjee/portal-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExamHandler serves exam listing and paper fetch endpoints.
type ExamHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService: examService,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// List returns all available exams.
// GET /api/v1/portal/exams
func (h *ExamHandler) List(c *gin.Context) {
	exams, err := h.examService.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Exam list failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, exams)
}

// GetPaper returns the question paper for a (year, slot) pair with the
// answer key stripped.
// GET /api/v1/portal/exams/:year/:slot/paper
func (h *ExamHandler) GetPaper(c *gin.Context) {
	year := c.Param("year")
	slot := c.Param("slot")

	paper, err := h.examService.GetPaper(c.Request.Context(), year, slot)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusNotFound, response.ErrNoQuestions)
		default:
			h.log.Error().Err(err).Str("year", year).Str("slot", slot).Msg("Paper fetch failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, paper)
}

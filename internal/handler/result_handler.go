package handler

import (
	"errors"
	"net/http"

	"github.com/backtrackjee/portal-backend/internal/middleware"
	"github.com/backtrackjee/portal-backend/internal/response"
	"github.com/backtrackjee/portal-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ResultHandler serves score reports.
type ResultHandler struct {
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		log:           log.With().Str("component", "result_handler").Logger(),
	}
}

// Get returns the score report for the authenticated user's attempt on a
// (year, slot) exam. If the background grader has not caught up yet the
// report is materialized on the spot.
// GET /api/v1/portal/results/:year/:slot
func (h *ResultHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	year := c.Param("year")
	slot := c.Param("slot")

	result, err := h.resultService.Get(c.Request.Context(), claims.UserID, year, slot)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		case errors.Is(err, service.ErrResultNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrResultNotFound)
		default:
			h.log.Error().Err(err).Str("year", year).Str("slot", slot).Msg("Result fetch failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, result)
}

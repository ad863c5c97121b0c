package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/backtrackjee/portal-backend/internal/config"
	"github.com/backtrackjee/portal-backend/internal/middleware"
	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/backtrackjee/portal-backend/internal/response"
	"github.com/backtrackjee/portal-backend/internal/service"
	ws "github.com/backtrackjee/portal-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// tickInterval is how often the server pushes the remaining-time countdown.
const tickInterval = 15 * time.Second

// WSHandler serves the live attempt stream: autosave, submit and the
// server-driven countdown over one WebSocket connection.
type WSHandler struct {
	attemptService *service.AttemptService
	upgrader       websocket.Upgrader
	log            zerolog.Logger
}

// NewWSHandler creates a new WSHandler with an origin check built from the
// configured allow list.
func NewWSHandler(attemptService *service.AttemptService, cfg *config.Config, log zerolog.Logger) *WSHandler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[origin] = true
	}

	return &WSHandler{
		attemptService: attemptService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
		log: log.With().Str("component", "ws_handler").Logger(),
	}
}

// AttemptStream upgrades the connection and runs the attempt session loop.
// GET /ws/v1/attempts/:attempt_id
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.attemptService.VerifyInProgress(c.Request.Context(), claims.UserID, attemptID); err != nil {
		switch {
		case errors.Is(err, service.ErrAttemptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrNotAttemptOwner):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		case errors.Is(err, repository.ErrAttemptNotInProgress):
			response.Fail(c, http.StatusConflict, response.ErrAttemptNotRunning)
		default:
			h.log.Error().Err(err).Msg("Attempt verification failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	// The tick loop and the read loop both write; the wrapper serializes them.
	conn := ws.NewConn(raw)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.tickLoop(ctx, conn, claims.UserID, attemptID)
	h.readLoop(ctx, conn, claims.UserID, attemptID)
}

// tickLoop pushes the remaining-time countdown until the connection closes
// or the attempt stops running.
func (h *WSHandler) tickLoop(ctx context.Context, conn *ws.Conn, userID int, attemptID uuid.UUID) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := h.attemptService.State(ctx, userID, attemptID)
			if err != nil {
				return
			}
			if err := conn.WriteTyped(ws.EventTick, ws.TickPayload{RemainingSeconds: state.RemainingTime}); err != nil {
				return
			}
			if state.Status != model.AttemptStatusInProgress {
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *ws.Conn, userID int, attemptID uuid.UUID) {
	for {
		msg, err := conn.ReadClientMessage()
		if err != nil {
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			if err := conn.WriteTyped(ws.EventPong, nil); err != nil {
				return
			}

		case ws.ActionAutosave:
			var payload ws.AutosavePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				conn.WriteError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
				continue
			}
			if err := h.attemptService.SetAnswer(ctx, userID, attemptID, payload.QuestionID, payload.SelectedAnswer); err != nil {
				if errors.Is(err, repository.ErrAttemptNotInProgress) {
					conn.WriteError(string(response.ErrAttemptNotRunning), response.GetMessage(response.ErrAttemptNotRunning))
					return
				}
				h.log.Warn().Err(err).Msg("Autosave failed")
				conn.WriteError(string(response.ErrInternal), response.GetMessage(response.ErrInternal))
				continue
			}
			if err := conn.WriteTyped(ws.EventSaved, ws.SavedPayload{QuestionID: payload.QuestionID}); err != nil {
				return
			}

		case ws.ActionSubmit:
			var req model.SubmitAttemptRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				conn.WriteError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
				continue
			}
			attempt, err := h.attemptService.Submit(ctx, userID, attemptID, &req)
			if err != nil {
				if errors.Is(err, service.ErrAlreadySubmitted) {
					conn.WriteError(string(response.ErrAlreadySubmitted), response.GetMessage(response.ErrAlreadySubmitted))
					return
				}
				h.log.Error().Err(err).Msg("Submit over stream failed")
				conn.WriteError(string(response.ErrInternal), response.GetMessage(response.ErrInternal))
				continue
			}
			conn.WriteTyped(ws.EventSubmitted, attempt)
			return

		default:
			conn.WriteError(string(response.ErrInvalidPayload), "unknown action")
		}
	}
}

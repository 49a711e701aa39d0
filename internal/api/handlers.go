package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"chatroom/internal/chat"
	"chatroom/internal/clock"
	"chatroom/internal/middleware"
	"chatroom/internal/models"
	"chatroom/internal/presence"
	"chatroom/internal/types"

	"github.com/google/uuid"
)

const requestTimeout = 5 * time.Second

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Encode error: %v", err)
	}
}

// writeError maps core errors onto HTTP statuses. Anything unrecognised is
// treated as a storage failure.
func writeError(w http.ResponseWriter, op string, err error) {
	var invalid *models.InvalidMessageError

	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, types.ErrorResponse{Error: models.ErrInvalidMessage.Error(), Fields: invalid.Fields})
	case errors.Is(err, models.ErrInvalidName), errors.Is(err, models.ErrUnknownSender):
		writeJSON(w, http.StatusUnprocessableEntity, types.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNameTaken):
		writeJSON(w, http.StatusConflict, types.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrUnknownParticipant), errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, types.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrForbidden):
		writeJSON(w, http.StatusUnauthorized, types.ErrorResponse{Error: err.Error()})
	default:
		log.Printf("[API] %s failed: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: "Internal server error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Printf("[API] Decode error on %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

func JoinHandler(engine *presence.Engine, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload types.JoinRequest
		if !decode(w, r, &payload) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		p, err := engine.Join(ctx, middleware.Sanitize(payload.Name), clk.Now())
		if err != nil {
			writeError(w, "join", err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func ListParticipantsHandler(engine *presence.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		all, err := engine.Participants(ctx)
		if err != nil {
			writeError(w, "list participants", err)
			return
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func HeartbeatHandler(engine *presence.Engine, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.UserFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if err := engine.Heartbeat(ctx, user, clk.Now()); err != nil {
			writeError(w, "heartbeat", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// parseLimit reads the optional limit query. Absent means no limit.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func ListMessagesHandler(engine *chat.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.UserFromContext(r.Context())

		limit, ok := parseLimit(r)
		if !ok {
			writeJSON(w, http.StatusUnprocessableEntity, types.ErrorResponse{Error: "limit must be a positive integer"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		msgs, err := engine.List(ctx, user, limit)
		if err != nil {
			writeError(w, "list messages", err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func PostMessageHandler(engine *chat.Engine, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.UserFromContext(r.Context())

		var payload types.MessageRequest
		if !decode(w, r, &payload) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		m, err := engine.Post(ctx, models.Draft{
			From: user,
			To:   middleware.Sanitize(payload.To),
			Text: middleware.Sanitize(payload.Text),
			Kind: payload.Type,
		}, clk.Now())
		if err != nil {
			writeError(w, "post message", err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

// messageID parses the {id} path value. An id that is not a uuid cannot
// name a stored message.
func messageID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}

func EditMessageHandler(engine *chat.Engine, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.UserFromContext(r.Context())

		id, ok := messageID(r)
		if !ok {
			writeError(w, "edit message", models.ErrNotFound)
			return
		}

		var payload types.MessageRequest
		if !decode(w, r, &payload) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		err := engine.Edit(ctx, id, user, chat.Body{
			To:   middleware.Sanitize(payload.To),
			Text: middleware.Sanitize(payload.Text),
			Kind: payload.Type,
		}, clk.Now())
		if err != nil {
			writeError(w, "edit message", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func DeleteMessageHandler(engine *chat.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.UserFromContext(r.Context())

		id, ok := messageID(r)
		if !ok {
			writeError(w, "delete message", models.ErrNotFound)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if err := engine.Delete(ctx, id, user); err != nil {
			writeError(w, "delete message", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HealthHandler reports 503 when check fails.
func HealthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := check(ctx); err != nil {
				log.Printf("[API] Health check failed: %v", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

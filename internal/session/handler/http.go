// Package handler exposes the session registry endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"account-security-plane/internal/metrics"
	"account-security-plane/internal/server/httpx"
	"account-security-plane/internal/server/middleware"
	"account-security-plane/internal/session"
	"account-security-plane/internal/telemetry"
	telemetrydomain "account-security-plane/internal/telemetry/domain"
)

// Handler serves the per-user session registry.
type Handler struct {
	registry *session.Registry
	emitter  telemetry.EventEmitter
	logger   zerolog.Logger
}

// NewHandler returns a session handler. emitter may be nil.
func NewHandler(registry *session.Registry, emitter telemetry.EventEmitter, logger zerolog.Logger) *Handler {
	return &Handler{registry: registry, emitter: emitter, logger: logger}
}

// Register mounts the session routes on r. All routes require authentication.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/v1/security/sessions", h.list).Methods(http.MethodGet)
	r.HandleFunc("/v1/security/sessions/revoke-others", h.revokeOthers).Methods(http.MethodPost)
	r.HandleFunc("/v1/security/sessions/{id}/revoke", h.revoke).Methods(http.MethodPost)
}

type listResponse struct {
	Sessions []session.View `json:"sessions"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())

	views, err := h.registry.List(r.Context(), userID, sessionID)
	if err != nil {
		h.internalError(w, "list_sessions", err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, listResponse{Sessions: views})
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())
	target := mux.Vars(r)["id"]

	err := h.registry.Revoke(r.Context(), userID, sessionID, target)
	switch {
	case err == nil:
		metrics.SessionRevocationsTotal.WithLabelValues("registry").Inc()
		telemetry.EmitAsync(h.emitter, r.Context(), &telemetrydomain.Event{
			UserID:    userID,
			SessionID: target,
			EventType: "session_revoked",
			Source:    "session",
			CreatedAt: time.Now().UTC(),
		})
		httpx.RespondJSON(w, http.StatusOK, successResponse{Success: true})
	case errors.Is(err, session.ErrNotFound):
		httpx.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrCannotRevokeCurrent):
		httpx.RespondError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, "revoke_session", err)
	}
}

type revokeOthersResponse struct {
	Revoked int `json:"revoked"`
}

func (h *Handler) revokeOthers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())

	revoked, err := h.registry.RevokeAllOthers(r.Context(), userID, sessionID)
	if err != nil {
		h.internalError(w, "revoke_other_sessions", err)
		return
	}
	if revoked > 0 {
		metrics.SessionRevocationsTotal.WithLabelValues("registry").Add(float64(revoked))
		telemetry.EmitAsync(h.emitter, r.Context(), &telemetrydomain.Event{
			UserID:    userID,
			SessionID: sessionID,
			EventType: "sessions_revoked_others",
			Source:    "session",
			Metadata:  map[string]string{"revoked": strconv.Itoa(revoked)},
			CreatedAt: time.Now().UTC(),
		})
	}
	httpx.RespondJSON(w, http.StatusOK, revokeOthersResponse{Revoked: revoked})
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error().Err(err).Str("op", op).Msg("session handler failure")
	httpx.RespondError(w, http.StatusInternalServerError, "internal error")
}

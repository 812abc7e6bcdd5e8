// Package handler exposes the security posture read model.
package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"account-security-plane/internal/posture"
	"account-security-plane/internal/server/httpx"
	"account-security-plane/internal/server/middleware"
)

// Handler serves the per-user security metrics report.
type Handler struct {
	svc    *posture.Service
	logger zerolog.Logger
}

// NewHandler returns a posture handler.
func NewHandler(svc *posture.Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the posture routes on r. All routes require authentication.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/v1/security/metrics", h.report).Methods(http.MethodGet)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	report, err := h.svc.Report(r.Context(), userID)
	switch {
	case err == nil:
		httpx.RespondJSON(w, http.StatusOK, report)
	case errors.Is(err, posture.ErrUserNotFound):
		httpx.RespondError(w, http.StatusNotFound, "user not found")
	default:
		h.logger.Error().Err(err).Str("op", "posture_report").Msg("posture handler failure")
		httpx.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

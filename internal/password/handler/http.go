// Package handler exposes password strength evaluation over HTTP.
package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"account-security-plane/internal/metrics"
	"account-security-plane/internal/password"
	"account-security-plane/internal/server/httpx"
)

// Handler serves the password validation endpoint. Evaluation is pure and
// stateless; nothing about the submitted password is stored or logged.
type Handler struct{}

// NewHandler returns a password handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Register mounts the password routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/v1/password/validate", h.validate).Methods(http.MethodPost)
}

type validateRequest struct {
	// Pointer so a request without the field can be told apart from an
	// empty password.
	Password *string `json:"password"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password == nil {
		httpx.RespondError(w, http.StatusBadRequest, "password is required")
		return
	}
	assessment := password.Evaluate(*req.Password)
	metrics.PasswordEvaluationsTotal.WithLabelValues(assessment.Strength.String()).Inc()
	httpx.RespondJSON(w, http.StatusOK, assessment)
}

// Package handler exposes the MFA enrollment flow over HTTP. The enrollment
// itself lives in the in-memory store; only the confirmed factor is durable.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"account-security-plane/internal/metrics"
	"account-security-plane/internal/mfa"
	"account-security-plane/internal/mfa/domain"
	"account-security-plane/internal/mfa/sender"
	"account-security-plane/internal/server/httpx"
	"account-security-plane/internal/server/middleware"
	"account-security-plane/internal/telemetry"
	telemetrydomain "account-security-plane/internal/telemetry/domain"
	userdomain "account-security-plane/internal/user/domain"
)

// UserDirectory resolves the account name shown in authenticator apps and
// records phone verification once an SMS factor is confirmed.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	SetPhoneVerified(ctx context.Context, userID, phone string) error
}

// Handler drives one enrollment per user through the state machine.
type Handler struct {
	machine     *mfa.Machine
	enrollments mfa.EnrollmentStore
	users       UserDirectory
	emitter     telemetry.EventEmitter
	logger      zerolog.Logger

	// dev is non-nil only when challenge codes are echoed back to the client
	// instead of being dispatched. Never enabled in production.
	dev *sender.DevSender
}

// NewHandler returns an MFA handler. dev may be nil; emitter may be nil.
func NewHandler(machine *mfa.Machine, enrollments mfa.EnrollmentStore, users UserDirectory, emitter telemetry.EventEmitter, logger zerolog.Logger, dev *sender.DevSender) *Handler {
	return &Handler{
		machine:     machine,
		enrollments: enrollments,
		users:       users,
		emitter:     emitter,
		logger:      logger,
		dev:         dev,
	}
}

// Register mounts the MFA routes on r. All routes require authentication.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/v1/mfa/enroll", h.enroll).Methods(http.MethodPost)
	r.HandleFunc("/v1/mfa/totp-setup", h.setup).Methods(http.MethodPost)
	r.HandleFunc("/v1/mfa/verify", h.verify).Methods(http.MethodPost)
	r.HandleFunc("/v1/mfa/confirm", h.confirm).Methods(http.MethodPost)
	r.HandleFunc("/v1/mfa/back", h.back).Methods(http.MethodPost)
	r.HandleFunc("/v1/mfa/enrollment", h.current).Methods(http.MethodGet)
}

type enrollRequest struct {
	Method      string `json:"method"`
	Destination string `json:"destination"`
}

type stateResponse struct {
	State  string `json:"state"`
	Method string `json:"method,omitempty"`
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	e := h.machine.Start(userID)
	err := h.machine.SelectMethod(e, domain.Method(req.Method), req.Destination)
	switch {
	case err == nil:
		h.enrollments.Put(r.Context(), e)
		httpx.RespondJSON(w, http.StatusOK, stateResponse{State: e.State.String(), Method: string(e.Method)})
	case errors.Is(err, mfa.ErrUnsupportedMethod), errors.Is(err, mfa.ErrNoDestination):
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.internalError(w, "enroll", err)
	}
}

type setupResponse struct {
	State           string `json:"state"`
	Secret          string `json:"secret,omitempty"`
	QRCodeReference string `json:"qrCodeReference,omitempty"`
	DevCode         string `json:"devCode,omitempty"`
}

func (h *Handler) setup(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	e, ok := h.enrollments.Get(r.Context(), userID)
	if !ok {
		httpx.RespondError(w, http.StatusNotFound, "no enrollment in progress")
		return
	}

	account := userID
	if user, err := h.users.GetByID(r.Context(), userID); err == nil && user != nil {
		account = user.Email
	}

	err := h.machine.BeginSetup(r.Context(), e, account)
	switch {
	case err == nil:
		h.enrollments.Put(r.Context(), e)
		resp := setupResponse{
			State:           e.State.String(),
			Secret:          e.Secret,
			QRCodeReference: e.QRCodeReference,
		}
		if h.dev != nil && e.Method != domain.MethodTOTP {
			if code, found := h.dev.LastCode(e.Destination); found {
				resp.DevCode = code
			}
		}
		httpx.RespondJSON(w, http.StatusOK, resp)
	case errors.Is(err, mfa.ErrInvalidTransition):
		httpx.RespondError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, "totp_setup", err)
	}
}

type verifyRequest struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	State       string   `json:"state"`
	BackupCodes []string `json:"backupCodes"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	e, ok := h.enrollments.Get(r.Context(), userID)
	if !ok {
		httpx.RespondError(w, http.StatusNotFound, "no enrollment in progress")
		return
	}

	err := h.machine.SubmitCode(r.Context(), e, req.Code)
	switch {
	case err == nil:
		h.enrollments.Put(r.Context(), e)
		httpx.RespondJSON(w, http.StatusOK, verifyResponse{State: e.State.String(), BackupCodes: e.BackupCodes})
	case errors.Is(err, mfa.ErrMalformedCode):
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, mfa.ErrCodeMismatch):
		httpx.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, mfa.ErrInvalidTransition):
		httpx.RespondError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, "verify", err)
	}
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	e, ok := h.enrollments.Get(r.Context(), userID)
	if !ok {
		httpx.RespondError(w, http.StatusNotFound, "no enrollment in progress")
		return
	}

	err := h.machine.Acknowledge(r.Context(), e)
	switch {
	case err == nil:
		h.enrollments.Delete(r.Context(), userID)
		if e.Method == domain.MethodSMS && e.Destination != "" {
			if err := h.users.SetPhoneVerified(r.Context(), userID, e.Destination); err != nil {
				h.logger.Warn().Err(err).Msg("mark phone verified")
			}
		}
		metrics.MFAEnrollmentsCompletedTotal.WithLabelValues(string(e.Method)).Inc()
		telemetry.EmitAsync(h.emitter, r.Context(), &telemetrydomain.Event{
			UserID:    userID,
			EventType: "mfa_enrolled",
			Source:    "mfa",
			Metadata:  map[string]string{"method": string(e.Method)},
			CreatedAt: time.Now().UTC(),
		})
		httpx.RespondJSON(w, http.StatusOK, stateResponse{State: e.State.String(), Method: string(e.Method)})
	case errors.Is(err, mfa.ErrInvalidTransition):
		httpx.RespondError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, "confirm", err)
	}
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	e, ok := h.enrollments.Get(r.Context(), userID)
	if !ok {
		httpx.RespondError(w, http.StatusNotFound, "no enrollment in progress")
		return
	}

	err := h.machine.Back(e)
	switch {
	case err == nil:
		h.enrollments.Put(r.Context(), e)
		httpx.RespondJSON(w, http.StatusOK, stateResponse{State: e.State.String(), Method: string(e.Method)})
	case errors.Is(err, mfa.ErrInvalidTransition):
		httpx.RespondError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, "back", err)
	}
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	e, ok := h.enrollments.Get(r.Context(), userID)
	if !ok {
		httpx.RespondError(w, http.StatusNotFound, "no enrollment in progress")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stateResponse{State: e.State.String(), Method: string(e.Method)})
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error().Err(err).Str("op", op).Msg("mfa handler failure")
	httpx.RespondError(w, http.StatusInternalServerError, "internal error")
}

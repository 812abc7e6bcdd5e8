// Package handler exposes the authentication endpoints.
package handler

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"account-security-plane/internal/auth"
	"account-security-plane/internal/metrics"
	"account-security-plane/internal/risk"
	"account-security-plane/internal/server/httpx"
	"account-security-plane/internal/server/middleware"
	"account-security-plane/internal/telemetry"
	telemetrydomain "account-security-plane/internal/telemetry/domain"
)

// Handler serves register, login, refresh, logout, and password change.
type Handler struct {
	svc     *auth.Service
	emitter telemetry.EventEmitter
	logger  zerolog.Logger
}

// NewHandler returns an auth handler. emitter may be nil.
func NewHandler(svc *auth.Service, emitter telemetry.EventEmitter, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, emitter: emitter, logger: logger}
}

// Register mounts the unauthenticated auth routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/v1/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/refresh", h.refresh).Methods(http.MethodPost)
}

// RegisterProtected mounts the routes that require a valid access token.
func (h *Handler) RegisterProtected(r *mux.Router) {
	r.HandleFunc("/v1/auth/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/password", h.changePassword).Methods(http.MethodPost)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type registerResponse struct {
	UserID string `json:"userId"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	switch {
	case err == nil:
		httpx.RespondJSON(w, http.StatusCreated, registerResponse{UserID: res.UserID})
	case errors.Is(err, auth.ErrEmailAlreadyRegistered):
		httpx.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.internalError(w, r, "register", err)
	}
}

type loginRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	MFACode           string `json:"mfaCode"`
	DeviceFingerprint string `json:"deviceFingerprint"`
	DeviceName        string `json:"deviceName"`
	Browser           string `json:"browser"`
	Country           string `json:"country"`
}

type tokenResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	ExpiresAt    time.Time        `json:"expiresAt"`
	UserID       string           `json:"userId"`
	SessionID    string           `json:"sessionId"`
	Risk         *risk.Assessment `json:"risk,omitempty"`
}

type mfaRequiredResponse struct {
	Error       string           `json:"error"`
	MFARequired bool             `json:"mfaRequired"`
	Risk        *risk.Assessment `json:"risk,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := auth.LoginInput{
		Email:             req.Email,
		Password:          req.Password,
		MFACode:           req.MFACode,
		DeviceFingerprint: req.DeviceFingerprint,
		DeviceName:        req.DeviceName,
		Browser:           req.Browser,
		Country:           req.Country,
		IPAddress:         clientIP(r),
		UserAgent:         r.UserAgent(),
	}

	res, err := h.svc.Login(r.Context(), in)
	if res != nil && res.Risk != nil {
		metrics.RiskDecisionsTotal.WithLabelValues(res.Risk.Level.String(), res.Risk.Action.String()).Inc()
	}
	switch {
	case err == nil:
		metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
		h.emitLogin(r, res, "login_success")
		httpx.RespondJSON(w, http.StatusOK, toTokenResponse(res))
	case errors.Is(err, auth.ErrMFARequired):
		metrics.LoginAttemptsTotal.WithLabelValues("mfa_challenge").Inc()
		httpx.RespondJSON(w, http.StatusUnauthorized, mfaRequiredResponse{
			Error:       err.Error(),
			MFARequired: true,
			Risk:        riskOf(res),
		})
	case errors.Is(err, auth.ErrLoginBlocked):
		metrics.LoginAttemptsTotal.WithLabelValues("blocked").Inc()
		h.emitLogin(r, res, "login_blocked")
		httpx.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrMFACodeInvalid):
		metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		h.emitLogin(r, res, "login_failure")
		httpx.RespondError(w, http.StatusUnauthorized, err.Error())
	default:
		h.internalError(w, r, "login", err)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
		httpx.RespondJSON(w, http.StatusOK, toTokenResponse(res))
	case errors.Is(err, auth.ErrRefreshTokenReuse):
		h.emitLogin(r, res, "refresh_reuse_detected")
		httpx.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		httpx.RespondError(w, http.StatusUnauthorized, err.Error())
	default:
		h.internalError(w, r, "refresh", err)
	}
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())

	if err := h.svc.Logout(r.Context(), userID, sessionID); err != nil {
		h.internalError(w, r, "logout", err)
		return
	}
	metrics.SessionRevocationsTotal.WithLabelValues("logout").Inc()
	telemetry.EmitAsync(h.emitter, r.Context(), &telemetrydomain.Event{
		UserID:    userID,
		SessionID: sessionID,
		EventType: "logout",
		Source:    "auth",
		CreatedAt: time.Now().UTC(),
	})
	httpx.RespondJSON(w, http.StatusOK, successResponse{Success: true})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	err := h.svc.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		httpx.RespondJSON(w, http.StatusOK, successResponse{Success: true})
	case errors.Is(err, auth.ErrInvalidCredentials):
		httpx.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrWeakPassword):
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.internalError(w, r, "change_password", err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error().Err(err).Str("op", op).Str("path", r.URL.Path).Msg("auth handler failure")
	httpx.RespondError(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) emitLogin(r *http.Request, res *auth.Result, eventType string) {
	event := &telemetrydomain.Event{
		EventType: eventType,
		Source:    "auth",
		CreatedAt: time.Now().UTC(),
		Metadata:  map[string]string{"ip": clientIP(r)},
	}
	if res != nil {
		event.UserID = res.UserID
		event.SessionID = res.SessionID
		if res.Risk != nil {
			event.RiskScore = res.Risk.Score
			event.RiskLevel = res.Risk.Level.String()
			event.Metadata["action"] = res.Risk.Action.String()
			event.Metadata["score"] = strconv.Itoa(res.Risk.Score)
		}
	}
	telemetry.EmitAsync(h.emitter, r.Context(), event)
}

func toTokenResponse(res *auth.Result) tokenResponse {
	return tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		UserID:       res.UserID,
		SessionID:    res.SessionID,
		Risk:         res.Risk,
	}
}

func riskOf(res *auth.Result) *risk.Assessment {
	if res == nil {
		return nil
	}
	return res.Risk
}

// clientIP prefers the first X-Forwarded-For hop and falls back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package server assembles the HTTP surface: routing, middleware, and
// lifecycle for the account security plane.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	authhandler "account-security-plane/internal/auth/handler"
	mfahandler "account-security-plane/internal/mfa/handler"
	passwordhandler "account-security-plane/internal/password/handler"
	posturehandler "account-security-plane/internal/posture/handler"
	"account-security-plane/internal/revocation"
	"account-security-plane/internal/security"
	"account-security-plane/internal/server/middleware"
	sessionhandler "account-security-plane/internal/session/handler"
)

// Handlers collects the feature handlers mounted on the router.
type Handlers struct {
	Auth     *authhandler.Handler
	Password *passwordhandler.Handler
	MFA      *mfahandler.Handler
	Session  *sessionhandler.Handler
	Posture  *posturehandler.Handler
}

// Server wraps the HTTP listener.
type Server struct {
	httpServer *http.Server
}

// New builds the router and returns a Server listening on addr.
func New(addr string, tokens *security.TokenProvider, revoked revocation.Store, h Handlers) *Server {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)

	r.HandleFunc("/health", healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	public := r.NewRoute().Subrouter()
	h.Auth.Register(public)
	h.Password.Register(public)

	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Auth(tokens, revoked))
	h.Auth.RegisterProtected(protected)
	h.MFA.Register(protected)
	h.Session.Register(protected)
	h.Posture.Register(protected)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           otelhttp.NewHandler(c.Handler(r), "http.server"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

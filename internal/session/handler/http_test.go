package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-security-plane/internal/revocation"
	"account-security-plane/internal/server/middleware"
	"account-security-plane/internal/session"
	"account-security-plane/internal/session/domain"
	"account-security-plane/internal/session/repository"
)

const (
	testUserID    = "user-1"
	testSessionID = "sess-current"
)

type testServer struct {
	router  *mux.Router
	repo    *repository.MemoryRepository
	revoked *revocation.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := repository.NewMemoryRepository()
	revoked := revocation.NewMemoryStore()
	h := NewHandler(session.NewRegistry(repo, revoked), nil, zerolog.Nop())

	r := mux.NewRouter()
	// stand-in for the auth middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), testUserID, testSessionID)))
		})
	})
	h.Register(r)
	return &testServer{router: r, repo: repo, revoked: revoked}
}

func (s *testServer) seed(t *testing.T, id, userID string) {
	t.Helper()
	err := s.repo.Create(context.Background(), &domain.Session{
		ID:         id,
		UserID:     userID,
		DeviceName: "laptop",
		Browser:    "Firefox",
		IPAddress:  "203.0.113.9",
		Country:    "DE",
		ExpiresAt:  time.Now().Add(time.Hour),
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
}

func (s *testServer) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestList_MarksCurrentSession(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, testSessionID, testUserID)
	s.seed(t, "sess-other", testUserID)
	s.seed(t, "sess-foreign", "user-2")

	rec := s.do(t, http.MethodGet, "/v1/security/sessions")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Sessions []struct {
			ID        string `json:"id"`
			IsCurrent bool   `json:"isCurrent"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 2)

	current := map[string]bool{}
	for _, v := range resp.Sessions {
		current[v.ID] = v.IsCurrent
	}
	assert.True(t, current[testSessionID])
	assert.False(t, current["sess-other"])
}

func TestRevoke_OtherSession(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, testSessionID, testUserID)
	s.seed(t, "sess-other", testUserID)

	rec := s.do(t, http.MethodPost, "/v1/security/sessions/sess-other/revoke")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"success":true`)

	revoked, err := s.revoked.Contains(context.Background(), "sess-other")
	require.NoError(t, err)
	assert.True(t, revoked)

	// a second revoke finds nothing
	rec = s.do(t, http.MethodPost, "/v1/security/sessions/sess-other/revoke")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRevoke_CurrentSessionConflicts(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, testSessionID, testUserID)

	rec := s.do(t, http.MethodPost, "/v1/security/sessions/"+testSessionID+"/revoke")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRevoke_ForeignSessionNotFound(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "sess-foreign", "user-2")

	rec := s.do(t, http.MethodPost, "/v1/security/sessions/sess-foreign/revoke")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRevokeOthers_LeavesCurrentOnly(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, testSessionID, testUserID)
	s.seed(t, "sess-a", testUserID)
	s.seed(t, "sess-b", testUserID)

	rec := s.do(t, http.MethodPost, "/v1/security/sessions/revoke-others")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"revoked":2`)

	active, err := s.repo.ListActiveByUser(context.Background(), testUserID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, testSessionID, active[0].ID)
}

func TestRevokeOthers_NothingToRevoke(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, testSessionID, testUserID)

	rec := s.do(t, http.MethodPost, "/v1/security/sessions/revoke-others")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"revoked":0`)
}

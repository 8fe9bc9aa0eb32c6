package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/khlang-erp/khlang-erp/internal/auth"
	"github.com/khlang-erp/khlang-erp/internal/shared"
	_ "github.com/khlang-erp/khlang-erp/internal/testing/guard"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func newAuthFixture(t *testing.T, repo auth.Repository) (*chi.Mux, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "khlang_session", "secret", time.Hour, false)
	handler := auth.NewHandler(discardLogger(), auth.NewService(repo), sessions)
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return router, sessions
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func activeUser(t *testing.T) *auth.User {
	return &auth.User{
		ID:           7,
		Username:     "somchai",
		PasswordHash: hashPassword(t, "ordersarefun"),
		Role:         "staff",
		BranchID:     2,
		DepartmentID: 5,
		IsActive:     true,
	}
}

func serveWithSession(t *testing.T, router *chi.Mux, sessions *shared.SessionManager, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res, sess
}

func TestLoginStampsSessionIdentity(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	router, sessions := newAuthFixture(t, repo)

	body := `{"username":"somchai","password":"ordersarefun"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res, sess := serveWithSession(t, router, sessions, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"role":"staff"`)
	require.Equal(t, "7", sess.User())
	require.Equal(t, "staff", sess.Get(shared.SessionKeyRole))
	require.Equal(t, "2", sess.Get(shared.SessionKeyBranch))
	require.Equal(t, "5", sess.Get(shared.SessionKeyDepartment))
	require.Contains(t, repo.sessions, sess.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	router, sessions := newAuthFixture(t, repo)

	body := `{"username":"somchai","password":"wrongpassword"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res, sess := serveWithSession(t, router, sessions, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Empty(t, sess.User())
	require.Empty(t, repo.sessions)
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t)
	user.IsActive = false
	router, sessions := newAuthFixture(t, &stubRepo{user: user})

	body := `{"username":"somchai","password":"ordersarefun"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res, _ := serveWithSession(t, router, sessions, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginRejectsShortPassword(t *testing.T) {
	router, sessions := newAuthFixture(t, &stubRepo{user: activeUser(t)})

	body := `{"username":"somchai","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res, _ := serveWithSession(t, router, sessions, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutRemovesSessionRecord(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	router, sessions := newAuthFixture(t, repo)

	loginReq := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"somchai","password":"ordersarefun"}`))
	loginRes, sess := serveWithSession(t, router, sessions, loginReq)
	require.Equal(t, http.StatusOK, loginRes.Code)
	require.Contains(t, repo.sessions, sess.ID)

	logoutReq := httptest.NewRequest(http.MethodPost, "/logout", nil)
	logoutReq.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: sess.ID})
	logoutRes, _ := serveWithSession(t, router, sessions, logoutReq)
	require.Equal(t, http.StatusOK, logoutRes.Code)
	require.Empty(t, repo.sessions)
}

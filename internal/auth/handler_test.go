package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/obscura-studio/obscura/internal/auth"
	"github.com/obscura-studio/obscura/internal/shared"
	"github.com/obscura-studio/obscura/internal/view"
	_ "github.com/obscura-studio/obscura/testing"
)

type stubRepo struct {
	user    *auth.User
	created []string
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	for _, existing := range s.created {
		if existing == username {
			return 0, auth.ErrUsernameTaken
		}
	}
	s.created = append(s.created, username)
	return int64(len(s.created)), nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), templates, sessionManager, csrfManager)
	return handler, sessionManager
}

func withSession(t *testing.T, sessionManager *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	return req.WithContext(ctx), sess
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req, sess := withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)
	if err := sessionManager.Commit(req.Context(), res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	handler, sessionManager := newAuthHandler(t, &stubRepo{
		user: &auth.User{ID: 1, Username: "studio", PasswordHash: string(hashed)},
	})

	postData := url.Values{}
	postData.Set("username", "studio")
	postData.Set("password", "wrongpass1")

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req, sess := withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)
	if err := sessionManager.Commit(req.Context(), res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid username or password") {
		t.Fatalf("expected error message in response")
	}
}

func TestLoginSuccessRedirects(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	handler, sessionManager := newAuthHandler(t, &stubRepo{
		user: &auth.User{ID: 7, Username: "studio", PasswordHash: string(hashed)},
	})

	postData := url.Values{}
	postData.Set("username", "studio")
	postData.Set("password", "correctpass")

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req, sess := withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/sessions" {
		t.Fatalf("expected redirect to /sessions, got %q", loc)
	}
	if sess.User() != "7" {
		t.Fatalf("expected user id stored in session, got %q", sess.User())
	}
}

func TestLoginNextParamMustBeLocal(t *testing.T) {
	hashed, _ := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	handler, sessionManager := newAuthHandler(t, &stubRepo{
		user: &auth.User{ID: 1, Username: "studio", PasswordHash: string(hashed)},
	})

	postData := url.Values{}
	postData.Set("username", "studio")
	postData.Set("password", "correctpass")

	req := httptest.NewRequest(http.MethodPost, "/auth/login?next=https://evil.example", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req, _ = withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	if loc := res.Header().Get("Location"); loc != "/sessions" {
		t.Fatalf("external next must fall back, got %q", loc)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := &stubRepo{created: []string{"studio"}}
	handler, sessionManager := newAuthHandler(t, repo)

	postData := url.Values{}
	postData.Set("username", "studio")
	postData.Set("password", "longenough1")
	postData.Set("password_confirm", "longenough1")

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req, _ = withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.HandleRegisterForTest(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "already taken") {
		t.Fatalf("expected duplicate username message")
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/database"
	"github.com/dukerupert/reunite/internal/seal"
	"github.com/dukerupert/reunite/internal/store"
)

var (
	sealerOnce sync.Once
	testSealer *seal.Sealer
)

func setupSessionMiddleware(t *testing.T, upstream http.HandlerFunc) (*store.SessionStore, *seal.Sealer, *api.Client) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sealerOnce.Do(func() {
		testSealer, err = seal.New("middleware-test-secret")
	})
	if testSealer == nil {
		t.Fatalf("create sealer: %v", err)
	}

	if upstream == nil {
		upstream = func(w http.ResponseWriter, r *http.Request) {}
	}
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	return store.NewSessionStore(db), testSealer, api.New(srv.URL)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "5", "exp": exp.Unix()}).
		SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func createSession(t *testing.T, ss *store.SessionStore, sealer *seal.Sealer, access, refresh, role string) string {
	t.Helper()
	sa, _ := sealer.Seal(access)
	sr, _ := sealer.Seal(refresh)
	sess, err := ss.Create(5, role, sa, sr)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess.Token
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireSessionNoCookie(t *testing.T) {
	ss, sealer, client := setupSessionMiddleware(t, nil)

	handler := RequireSession(ss, sealer, client, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

func TestRequireSessionUnknownToken(t *testing.T) {
	ss, sealer, client := setupSessionMiddleware(t, nil)

	handler := RequireSession(ss, sealer, client, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestRequireSessionBindsClient(t *testing.T) {
	access := signedToken(t, time.Now().Add(time.Hour))
	var gotAuth string
	ss, sealer, client := setupSessionMiddleware(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, `{"user":{"id":5,"role":"student"}}`)
	})
	token := createSession(t, ss, sealer, access, "r.r.r", "student")

	var gotAC auth.AuthContext
	handler := RequireSession(ss, sealer, client, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		if _, err := ac.Client.Me(r.Context()); err != nil {
			t.Errorf("me: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != 5 {
		t.Errorf("UserID = %d, want 5", gotAC.UserID)
	}
	if gotAC.Role != "student" {
		t.Errorf("Role = %q, want %q", gotAC.Role, "student")
	}
	if gotAuth != "Bearer "+access {
		t.Errorf("Authorization = %q, want bearer access token", gotAuth)
	}
}

func TestRequireSessionMalformedTokenEndsSession(t *testing.T) {
	ss, sealer, client := setupSessionMiddleware(t, nil)
	token := createSession(t, ss, sealer, "not-a-jwt", "r.r.r", "student")

	handler := RequireSession(ss, sealer, client, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if sess, _ := ss.GetByToken(token); sess != nil {
		t.Error("expected session to be deleted")
	}
}

func TestRequireSessionRefreshesExpiredToken(t *testing.T) {
	stale := signedToken(t, time.Now().Add(-time.Minute))
	fresh := signedToken(t, time.Now().Add(time.Hour))
	var refreshes atomic.Int32
	ss, sealer, client := setupSessionMiddleware(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/refresh" {
			t.Errorf("unexpected upstream call %s", r.URL.Path)
			return
		}
		refreshes.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer r.r.r" {
			t.Errorf("refresh Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": fresh})
	})
	token := createSession(t, ss, sealer, stale, "r.r.r", "student")

	var bound string
	handler := RequireSession(ss, sealer, client, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bound = auth.Client(r.Context()).Session().AccessToken()
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if refreshes.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshes.Load())
	}
	if bound != fresh {
		t.Error("expected handler to see the refreshed token")
	}
	sess, _ := ss.GetByToken(token)
	stored, _ := sealer.Open(sess.SealedAccess)
	if stored != fresh {
		t.Error("expected refreshed token to be persisted")
	}
}

func TestRequireSessionRejectedRefresh(t *testing.T) {
	stale := signedToken(t, time.Now().Add(-time.Minute))
	ss, sealer, client := setupSessionMiddleware(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"msg":"Token has expired"}`)
	})
	token := createSession(t, ss, sealer, stale, "r.r.r", "student")

	handler := RequireSession(ss, sealer, client, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if sess, _ := ss.GetByToken(token); sess != nil {
		t.Error("expected session to be deleted")
	}
}

func TestRequireSessionHTMXRedirect(t *testing.T) {
	ss, sealer, client := setupSessionMiddleware(t, nil)

	handler := RequireSession(ss, sealer, client, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if hxRedirect := rec.Header().Get("HX-Redirect"); hxRedirect != "/login" {
		t.Errorf("HX-Redirect = %q, want %q", hxRedirect, "/login")
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: "admin"})
	req := httptest.NewRequest("GET", "/admin", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAdminRedirectsStudents(t *testing.T) {
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: "student"})
	req := httptest.NewRequest("GET", "/admin", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Location = %q, want %q", loc, "/dashboard")
	}
}

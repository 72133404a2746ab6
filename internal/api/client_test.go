package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/reunite/internal/model"
)

func makeToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "5",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func setupTestAPI(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestCreateClaimSendsExactPayload(t *testing.T) {
	var got map[string]any
	var authHeader string
	c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/claims/create" {
			t.Errorf("request = %s %s, want POST /claims/create", r.Method, r.URL.Path)
		}
		authHeader = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"Claim submitted successfully","claim":{"id":11,"lost_item_id":7,"found_item_id":42,"status":"pending"}}`))
	})
	c = c.WithSession(NewSession("a.b.c", "d.e.f"))

	claim, err := c.CreateClaim(context.Background(), 7, 42, "it has a blue case")
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	if claim.ID != 11 {
		t.Errorf("claim id = %d, want 11", claim.ID)
	}
	if authHeader != "Bearer a.b.c" {
		t.Errorf("Authorization = %q, want %q", authHeader, "Bearer a.b.c")
	}
	want := map[string]any{
		"lost_item_id":        float64(7),
		"found_item_id":       float64(42),
		"verification_answer": "it has a blue case",
	}
	if len(got) != len(want) {
		t.Fatalf("payload has %d fields, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("payload[%q] = %v, want %v", k, got[k], v)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"error field", 400, `{"error":"Title is required"}`, KindValidation, "Title is required"},
		{"message field", 401, `{"msg":"x","message":"Token has expired"}`, KindAuth, "Token has expired"},
		{"unprocessable token", 422, `{"msg":"Not enough segments"}`, KindAuth, "Request failed with status 422"},
		{"forbidden", 403, `{"error":"Only the finder can approve this claim"}`, KindForbidden, "Only the finder can approve this claim"},
		{"not found", 404, `{"error":"Invalid QR code"}`, KindNotFound, "Invalid QR code"},
		{"conflict", 409, `{"error":"Email already registered"}`, KindConflict, "Email already registered"},
		{"server", 500, `{"error":"boom"}`, KindServer, "boom"},
		{"invalid body", 502, `<html>bad gateway</html>`, KindServer, "Server returned invalid response (status 502)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.QRInfo(context.Background(), "ABC")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if apiErr.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", apiErr.Kind, tt.kind)
			}
			if apiErr.Status != tt.status {
				t.Errorf("status = %d, want %d", apiErr.Status, tt.status)
			}
			if Message(err) != tt.message {
				t.Errorf("message = %q, want %q", Message(err), tt.message)
			}
			if IsAuth(err) != (tt.kind == KindAuth) {
				t.Errorf("IsAuth = %v", IsAuth(err))
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).QRInfo(context.Background(), "ABC")
	if KindOf(err) != KindNetwork {
		t.Fatalf("kind = %v, want network", KindOf(err))
	}
	if Message(err) != "Network error occurred. Please check your connection." {
		t.Errorf("message = %q", Message(err))
	}
}

func TestUndecodableSuccessBody(t *testing.T) {
	c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	})
	_, err := c.QRInfo(context.Background(), "ABC")
	if KindOf(err) != KindDecode {
		t.Fatalf("kind = %v, want decode", KindOf(err))
	}
}

func TestUnboundClientRejectsProtectedCalls(t *testing.T) {
	called := false
	c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	_, err := c.MyClaims(context.Background())
	if !IsAuth(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if Message(err) != "No authentication token found. Please login again." {
		t.Errorf("message = %q", Message(err))
	}
	if called {
		t.Error("expected no request without a session")
	}
}

func TestMeRejectsMalformedToken(t *testing.T) {
	called := false
	c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	_, err := c.WithSession(NewSession("not-a-jwt", "x.y.z")).Me(context.Background())
	if !IsAuth(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if Message(err) != "Invalid token format. Please login again." {
		t.Errorf("message = %q", Message(err))
	}
	if called {
		t.Error("expected no request for malformed token")
	}
}

func TestRefreshUsesRefreshTokenAndUpdatesSession(t *testing.T) {
	fresh := makeToken(t, time.Now().Add(time.Hour))
	c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer r.r.r" {
			t.Errorf("Authorization = %q, want refresh token", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": fresh})
	})
	sess := NewSession("old.old.old", "r.r.r")
	tok, err := c.WithSession(sess).Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tok != fresh || sess.AccessToken() != fresh {
		t.Errorf("session access token not updated")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	var got string
	c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		io.WriteString(w, `{"code":"ABC"}`)
	})
	ctx := ContextWithRequestID(context.Background(), "req-123")
	if _, err := c.QRInfo(ctx, "ABC"); err != nil {
		t.Fatalf("qr info: %v", err)
	}
	if got != "req-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "req-123")
	}

	if _, err := c.QRInfo(context.Background(), "ABC"); err != nil {
		t.Fatalf("qr info: %v", err)
	}
	if got == "" || got == "req-123" {
		t.Errorf("expected a generated request id, got %q", got)
	}
}

func TestVerifyClaimMultipart(t *testing.T) {
	c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("claim_id"); got != "3" {
			t.Errorf("claim_id = %q, want 3", got)
		}
		f, hdr, err := r.FormFile("proof_photo")
		if err != nil {
			t.Errorf("proof_photo: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "jpegbytes" || hdr.Filename != "proof.jpg" {
			t.Errorf("file = %q (%s)", data, hdr.Filename)
		}
		io.WriteString(w, `{"claim":{"id":3,"verification_status":"verified","proof_photo_url":"/uploads/p.jpg"}}`)
	})
	claim, err := c.WithSession(NewSession("a.b.c", "")).VerifyClaim(context.Background(), 3, "proof.jpg", []byte("jpegbytes"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claim.VerificationStatus != model.VerificationVerified || !claim.HasProof() {
		t.Errorf("claim = %+v", claim)
	}
}

func TestReportLostForm(t *testing.T) {
	c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		r.ParseMultipartForm(1 << 20)
		if r.FormValue("title") != "Blue bottle" || r.FormValue("location") != "Gym" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		if r.FormValue("lost_date") != "2026-03-02" {
			t.Errorf("lost_date = %q", r.FormValue("lost_date"))
		}
		if _, ok := r.MultipartForm.Value["brand"]; ok {
			t.Error("expected empty brand to be omitted")
		}
		if _, _, err := r.FormFile("photo"); err == nil {
			t.Error("expected no photo part")
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"Lost item reported successfully","item":{"id":8,"title":"Blue bottle","status":"active"}}`)
	})
	item, err := c.WithSession(NewSession("a.b.c", "")).ReportLost(context.Background(), model.ItemReport{Title: "Blue bottle", Location: "Gym", LostDate: "2026-03-02"})
	if err != nil {
		t.Fatalf("report lost: %v", err)
	}
	if item.ID != 8 {
		t.Errorf("item id = %d, want 8", item.ID)
	}
}

func TestMySchoolNone(t *testing.T) {
	c := setupTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"school":null,"message":"Not a member of any school"}`)
	})
	school, err := c.WithSession(NewSession("a.b.c", "")).MySchool(context.Background())
	if err != nil {
		t.Fatalf("my school: %v", err)
	}
	if school != nil {
		t.Errorf("school = %+v, want nil", school)
	}
}

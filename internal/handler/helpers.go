package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/store"
)

// flashMessages maps the ?flash= codes used after a redirect to the text
// shown on the next page.
var flashMessages = map[string]string{
	"claim_created":    "Claim submitted successfully!",
	"quick_claim":      "Claim created! Please verify ownership with a photo.",
	"proof_uploaded":   "Proof photo uploaded successfully!",
	"message_sent":     "Message sent.",
	"item_reported":    "Item reported successfully!",
	"qr_created":       "QR code created successfully! Print it and attach it to your items.",
	"school_joined":    "You joined the school.",
	"school_left":      "You left the school.",
	"school_created":   "School created.",
	"code_regenerated": "Join code regenerated.",
}

// base carries what every page handler needs.
type base struct {
	templates *Templates
	sessions  *store.SessionStore
	logger    *slog.Logger
}

func newBase(t *Templates, ss *store.SessionStore, logger *slog.Logger) base {
	return base{templates: t, sessions: ss, logger: logger}
}

// currentUser loads the signed-in user. An auth failure, a disabled account
// (403) or a deleted account (404) ends the session. It reports false when
// a response has already been written.
func (b *base) currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := auth.Client(r.Context()).Me(r.Context())
	if err != nil {
		switch api.KindOf(err) {
		case api.KindAuth, api.KindForbidden, api.KindNotFound:
			b.endSession(w, r, err.Error())
		default:
			b.logger.Error("load current user", "error", err)
			b.renderError(w, http.StatusBadGateway, nil, api.Message(err))
		}
		return nil, false
	}
	return user, true
}

// member is currentUser for pages that need school membership. Users
// without a school are sent to the dashboard, which offers the join form.
func (b *base) member(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := b.currentUser(w, r)
	if !ok {
		return nil, false
	}
	if user.SchoolID == nil {
		redirect(w, r, "/dashboard")
		return nil, false
	}
	return user, true
}

// sessionExpired ends the session when err is an auth failure.
func (b *base) sessionExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !api.IsAuth(err) {
		return false
	}
	b.endSession(w, r, err.Error())
	return true
}

func (b *base) endSession(w http.ResponseWriter, r *http.Request, reason string) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		b.logger.Info("session ended", "session_id", ac.SessionID, "reason", reason)
		if err := b.sessions.Delete(ac.SessionID); err != nil {
			b.logger.Error("delete session", "session_id", ac.SessionID, "error", err)
		}
	}
	auth.ClearSessionCookie(w)
	redirect(w, r, "/login")
}

func (b *base) renderError(w http.ResponseWriter, status int, user *model.User, msg string) {
	b.templates.Render(w, status, "error.html", PageData{
		Title: http.StatusText(status),
		User:  user,
		Error: msg,
	})
}

// ConfirmPage asks the user to repeat a destructive POST with confirm=yes.
type ConfirmPage struct {
	PageData
	Message string
	Action  string
	Cancel  string
}

func (b *base) askConfirm(w http.ResponseWriter, r *http.Request, user *model.User, message, cancel string) {
	b.templates.Render(w, http.StatusOK, "confirm.html", ConfirmPage{
		PageData: PageData{Title: "Please confirm", User: user},
		Message:  message,
		Action:   r.URL.Path,
		Cancel:   cancel,
	})
}

func confirmed(r *http.Request) bool {
	return r.FormValue("confirm") == "yes"
}

// redirect is HTMX-aware: it answers HX-Redirect instead of a 303 for
// HTMX requests.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, path, code string) {
	redirect(w, r, path+"?flash="+url.QueryEscape(code))
}

// flash returns the success message for the request's ?flash= code.
func flash(r *http.Request) string {
	return flashMessages[r.URL.Query().Get("flash")]
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// statusFor maps an upstream failure to the status of the page that
// reports it.
func statusFor(err error) int {
	switch api.KindOf(err) {
	case api.KindValidation:
		return http.StatusBadRequest
	case api.KindAuth:
		return http.StatusUnauthorized
	case api.KindForbidden:
		return http.StatusForbidden
	case api.KindNotFound:
		return http.StatusNotFound
	case api.KindConflict:
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

// errorText is the API's message for err, or fallback when err carries
// none.
func errorText(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

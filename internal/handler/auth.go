package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/seal"
	"github.com/dukerupert/reunite/internal/store"
)

var errNoTokens = errors.New("Login failed: No tokens received from server")

type AuthHandler struct {
	base
	client        *api.Client
	sealer        *seal.Sealer
	secureCookies bool
}

func NewAuthHandler(t *Templates, ss *store.SessionStore, client *api.Client, sealer *seal.Sealer, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		base:          newBase(t, ss, logger),
		client:        client,
		sealer:        sealer,
		secureCookies: secureCookies,
	}
}

type LoginPage struct {
	PageData
	Email string
}

type SignupForm struct {
	FirstName string
	LastName  string
	Email     string
	JoinCode  string
}

type SignupPage struct {
	PageData
	Form SignupForm
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.templates.Render(w, http.StatusOK, "login.html", LoginPage{PageData: PageData{Title: "Log in"}})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	page := LoginPage{PageData: PageData{Title: "Log in"}, Email: email}
	if email == "" || password == "" {
		page.Error = "Email and password are required"
		h.templates.Render(w, http.StatusBadRequest, "login.html", page)
		return
	}

	res, err := h.client.Login(r.Context(), email, password)
	if err != nil {
		h.logger.Warn("login failed", "error", err)
		page.Error = errorText(err, "Login failed. Please check your credentials.")
		h.templates.Render(w, statusFor(err), "login.html", page)
		return
	}

	if err := h.startSession(w, res); err != nil {
		page.Error = errNoTokens.Error()
		if !errors.Is(err, errNoTokens) {
			h.logger.Error("start session", "error", err)
			page.Error = "Login failed. Please try again."
		}
		h.templates.Render(w, http.StatusBadGateway, "login.html", page)
		return
	}

	h.logger.Info("user logged in", "user_id", res.User.ID)
	http.Redirect(w, r, homeFor(&res.User), http.StatusSeeOther)
}

func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.templates.Render(w, http.StatusOK, "signup.html", SignupPage{PageData: PageData{Title: "Sign up"}})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	form := SignupForm{
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		JoinCode:  strings.ToUpper(strings.TrimSpace(r.FormValue("join_code"))),
	}
	password := r.FormValue("password")
	page := SignupPage{PageData: PageData{Title: "Sign up"}, Form: form}

	switch {
	case form.FirstName == "" || form.LastName == "" || form.Email == "" || password == "":
		page.Error = "All fields except the join code are required"
	case password != r.FormValue("confirm_password"):
		page.Error = "Passwords do not match"
	}
	if page.Error != "" {
		h.templates.Render(w, http.StatusBadRequest, "signup.html", page)
		return
	}

	res, err := h.client.Signup(r.Context(), api.SignupRequest{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  password,
		JoinCode:  form.JoinCode,
	})
	if err != nil {
		h.logger.Warn("signup failed", "error", err)
		page.Error = errorText(err, "Signup failed. Please try again.")
		h.templates.Render(w, statusFor(err), "signup.html", page)
		return
	}

	if err := h.startSession(w, res); err != nil {
		// The account exists; the user can still log in normally.
		h.logger.Warn("signup without session", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	h.logger.Info("user signed up", "user_id", res.User.ID)
	http.Redirect(w, r, homeFor(&res.User), http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if client := auth.Client(r.Context()); client != nil {
		if err := client.Logout(r.Context()); err != nil {
			h.logger.Warn("upstream logout", "error", err)
		}
	}
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessions.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "session_id", ac.SessionID, "error", err)
		}
	}
	auth.ClearSessionCookie(w)
	redirect(w, r, "/")
}

// startSession stores the upstream tokens sealed and sets the cookie.
func (h *AuthHandler) startSession(w http.ResponseWriter, res *model.AuthResult) error {
	if res.AccessToken == "" || res.RefreshToken == "" {
		return errNoTokens
	}
	access, err := h.sealer.Seal(res.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := h.sealer.Seal(res.RefreshToken)
	if err != nil {
		return err
	}
	sess, err := h.sessions.Create(res.User.ID, res.User.Role, access, refresh)
	if err != nil {
		return err
	}
	auth.SetSessionCookie(w, sess.Token, sess.ExpiresAt, h.secureCookies)
	return nil
}

func homeFor(u *model.User) string {
	if u.IsAdmin() {
		return "/admin"
	}
	return "/dashboard"
}

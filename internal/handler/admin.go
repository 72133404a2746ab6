package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/store"
)

// AdminHandler manages schools. Routes are behind RequireAdmin.
type AdminHandler struct {
	base
}

func NewAdminHandler(t *Templates, ss *store.SessionStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{base: newBase(t, ss, logger)}
}

type AdminPage struct {
	PageData
	Schools []model.School
	Name    string
}

func (h *AdminHandler) Schools(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, AdminPage{PageData: PageData{User: user, Success: flash(r)}})
}

func (h *AdminHandler) CreateSchool(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	page := AdminPage{PageData: PageData{User: user}, Name: name}
	if name == "" {
		page.Error = "School name is required"
		h.render(w, r, http.StatusBadRequest, page)
		return
	}

	school, err := auth.Client(r.Context()).CreateSchool(r.Context(), name)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("create school", "error", err)
		page.Error = errorText(err, "Failed to create school")
		h.render(w, r, statusFor(err), page)
		return
	}

	h.logger.Info("school created", "school_id", school.ID, "admin_id", user.ID)
	redirectWithFlash(w, r, "/admin", "school_created")
}

func (h *AdminHandler) RegenerateJoinCode(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, http.StatusBadRequest, user, "Invalid school id")
		return
	}

	code, err := auth.Client(r.Context()).RegenerateJoinCode(r.Context(), id)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("regenerate join code", "school_id", id, "error", err)
		h.render(w, r, statusFor(err), AdminPage{PageData: PageData{User: user, Error: errorText(err, "Failed to regenerate join code")}})
		return
	}

	h.logger.Info("join code regenerated", "school_id", id, "join_code", code)
	redirectWithFlash(w, r, "/admin", "code_regenerated")
}

func (h *AdminHandler) render(w http.ResponseWriter, r *http.Request, status int, page AdminPage) {
	page.Title = "Schools"
	page.Nav = "admin"
	schools, err := auth.Client(r.Context()).Schools(r.Context())
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Error("list schools", "error", err)
		if page.Error == "" {
			page.Error = errorText(err, "Failed to load data")
		}
	}
	page.Schools = schools
	h.templates.Render(w, status, "admin.html", page)
}

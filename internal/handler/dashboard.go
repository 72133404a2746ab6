package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/listing"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/store"
)

type DashboardHandler struct {
	base
}

func NewDashboardHandler(t *Templates, ss *store.SessionStore, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{base: newBase(t, ss, logger)}
}

// Stats are the dashboard counters. Each one falls back to zero on its own.
type Stats struct {
	LostItems  int
	FoundItems int
	Claims     int
	Matches    int
	QRCodes    int
}

type DashboardPage struct {
	PageData
	School   *model.School
	Stats    Stats
	JoinCode string
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if user.IsAdmin() {
		redirect(w, r, "/admin")
		return
	}
	page := DashboardPage{PageData: PageData{Success: flash(r)}}
	h.render(w, r, http.StatusOK, user, page)
}

func (h *DashboardHandler) JoinSchool(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(r.FormValue("join_code")))
	page := DashboardPage{JoinCode: code}
	if code == "" {
		page.Error = "Join code is required"
		h.render(w, r, http.StatusBadRequest, user, page)
		return
	}

	school, err := auth.Client(r.Context()).JoinSchool(r.Context(), code)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		page.Error = errorText(err, "Failed to join school")
		h.render(w, r, statusFor(err), user, page)
		return
	}

	h.logger.Info("joined school", "user_id", user.ID, "school_id", school.ID)
	redirectWithFlash(w, r, "/dashboard", "school_joined")
}

func (h *DashboardHandler) LeaveSchool(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !confirmed(r) {
		h.askConfirm(w, r, user, "Are you sure you want to leave this school?", "/dashboard")
		return
	}

	if err := auth.Client(r.Context()).LeaveSchool(r.Context()); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.render(w, r, statusFor(err), user, DashboardPage{PageData: PageData{Error: errorText(err, "Failed to leave school")}})
		return
	}

	h.logger.Info("left school", "user_id", user.ID)
	redirectWithFlash(w, r, "/dashboard", "school_left")
}

// render fills in the school and, for members, the statistics.
func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request, status int, user *model.User, page DashboardPage) {
	page.Title = "Dashboard"
	page.Nav = "dashboard"
	page.User = user

	client := auth.Client(r.Context())
	school, err := client.MySchool(r.Context())
	switch {
	case err != nil:
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Error("load school", "user_id", user.ID, "error", err)
		if page.Error == "" {
			page.Error = errorText(err, "Failed to load data")
		}
	case school != nil:
		page.School = school
		page.Stats = h.loadStats(r.Context(), client, user.ID)
	}

	h.templates.Render(w, status, "dashboard.html", page)
}

func (h *DashboardHandler) loadStats(ctx context.Context, client *api.Client, userID int64) Stats {
	var (
		s Stats
		g errgroup.Group
	)
	g.Go(func() error {
		lost, err := client.ListLost(ctx)
		if err != nil {
			h.logger.Warn("stats: lost items", "error", err)
			return nil
		}
		s.LostItems = len(listing.Owned(lost, userID))
		return nil
	})
	g.Go(func() error {
		found, err := client.ListFound(ctx)
		if err != nil {
			h.logger.Warn("stats: found items", "error", err)
			return nil
		}
		s.FoundItems = len(listing.AvailableFound(found))
		return nil
	})
	g.Go(func() error {
		claims, err := client.MyClaims(ctx)
		if err != nil {
			h.logger.Warn("stats: claims", "error", err)
			return nil
		}
		s.Claims = len(claims)
		return nil
	})
	g.Go(func() error {
		matches, err := client.Matches(ctx)
		if err != nil {
			h.logger.Warn("stats: matches", "error", err)
			return nil
		}
		s.Matches = len(matches)
		return nil
	})
	g.Go(func() error {
		codes, err := client.MyQRCodes(ctx)
		if err != nil {
			h.logger.Warn("stats: qr codes", "error", err)
			return nil
		}
		s.QRCodes = len(codes)
		return nil
	})
	g.Wait()
	return s
}

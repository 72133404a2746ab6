package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/store"
)

type MatchHandler struct {
	base
}

func NewMatchHandler(t *Templates, ss *store.SessionStore, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{base: newBase(t, ss, logger)}
}

type MatchesPage struct {
	PageData
	Matches []model.Match
}

func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	page := MatchesPage{PageData: PageData{Title: "Matches", User: user, Nav: "matches"}}
	matches, err := auth.Client(r.Context()).Matches(r.Context())
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Error("list matches", "error", err)
		page.Error = errorText(err, "Failed to load matches")
	}
	page.Matches = matches
	h.templates.Render(w, http.StatusOK, "matches.html", page)
}

// QuickClaim files a claim for a suggested match without a verification
// answer; the claimant proves ownership with a photo afterwards.
func (h *MatchHandler) QuickClaim(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, http.StatusBadRequest, user, "Invalid match id")
		return
	}
	if !confirmed(r) {
		h.askConfirm(w, r, user, "Are you sure this is your item? You'll need to verify ownership.", "/dashboard/matches")
		return
	}

	client := auth.Client(r.Context())
	matches, err := client.Matches(r.Context())
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.renderError(w, statusFor(err), user, errorText(err, "Failed to load matches"))
		return
	}

	page := MatchesPage{
		PageData: PageData{Title: "Matches", User: user, Nav: "matches"},
		Matches:  matches,
	}

	var match *model.Match
	for i := range matches {
		if matches[i].ID == id {
			match = &matches[i]
			break
		}
	}
	if match == nil {
		page.Error = "Match not found"
		h.templates.Render(w, http.StatusNotFound, "matches.html", page)
		return
	}

	c, err := client.CreateClaim(r.Context(), match.LostItemID, match.FoundItemID, "")
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("quick claim", "match_id", id, "error", err)
		page.Error = errorText(err, "Failed to create claim")
		h.templates.Render(w, statusFor(err), "matches.html", page)
		return
	}

	h.logger.Info("claim created from match", "claim_id", c.ID, "match_id", id, "user_id", user.ID)
	redirectWithFlash(w, r, "/dashboard/claims/"+strconv.FormatInt(c.ID, 10), "quick_claim")
}

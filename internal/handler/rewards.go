package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/store"
)

type RewardHandler struct {
	base
}

func NewRewardHandler(t *Templates, ss *store.SessionStore, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{base: newBase(t, ss, logger)}
}

type RewardsPage struct {
	PageData
	Total       int
	History     []model.Reward
	Leaderboard []model.LeaderboardEntry
	UserID      int64
}

// Rewards is read-only. History and leaderboard keep the server's order
// and ranks.
func (h *RewardHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}
	page := RewardsPage{
		PageData: PageData{Title: "Rewards", User: user, Nav: "rewards"},
		UserID:   user.ID,
	}
	client := auth.Client(r.Context())

	var g errgroup.Group
	var pointsErr, boardErr error
	g.Go(func() error {
		points, err := client.MyPoints(r.Context())
		if err != nil {
			pointsErr = err
			return nil
		}
		page.Total = points.TotalPoints
		page.History = points.Rewards
		return nil
	})
	g.Go(func() error {
		board, err := client.Leaderboard(r.Context())
		if err != nil {
			boardErr = err
			return nil
		}
		page.Leaderboard = board
		return nil
	})
	g.Wait()

	for _, err := range []error{pointsErr, boardErr} {
		if err == nil {
			continue
		}
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("load rewards", "error", err)
		page.Error = errorText(err, "Failed to load rewards")
	}
	h.templates.Render(w, http.StatusOK, "rewards.html", page)
}

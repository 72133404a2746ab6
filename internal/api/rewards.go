package api

import (
	"context"
	"net/http"

	"github.com/dukerupert/reunite/internal/model"
)

func (c *Client) MyPoints(ctx context.Context) (*model.PointsSummary, error) {
	var out model.PointsSummary
	if err := c.do(ctx, call{method: http.MethodGet, path: "/rewards/my-points", route: "/rewards/my-points", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Leaderboard is returned in server order with server-assigned ranks.
func (c *Client) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	var out struct {
		Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/rewards/leaderboard", route: "/rewards/leaderboard", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.Leaderboard, nil
}

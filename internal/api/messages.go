package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dukerupert/reunite/internal/model"
)

func (c *Client) SendMessage(ctx context.Context, claimID int64, content string) (*model.Message, error) {
	body := struct {
		ClaimID int64  `json:"claim_id"`
		Content string `json:"content"`
	}{claimID, content}
	var out struct {
		MessageData model.Message `json:"message_data"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/messages/send", route: "/messages/send", auth: authAccess, json: body}, &out); err != nil {
		return nil, err
	}
	return &out.MessageData, nil
}

// ClaimMessages returns the claim's thread. The backend marks fetched
// messages addressed to the caller as read.
func (c *Client) ClaimMessages(ctx context.Context, claimID int64) ([]model.Message, error) {
	var out struct {
		Messages []model.Message `json:"messages"`
	}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/messages/claim/" + strconv.FormatInt(claimID, 10),
		route:  "/messages/claim/{id}",
		auth:   authAccess,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

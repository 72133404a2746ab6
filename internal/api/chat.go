package api

import (
	"context"
	"net/http"

	"github.com/dukerupert/reunite/internal/model"
)

// Chat sends one user message with the prior conversation and returns the
// assistant's reply.
func (c *Client) Chat(ctx context.Context, message string, history []model.ChatTurn) (string, error) {
	if history == nil {
		history = []model.ChatTurn{}
	}
	body := struct {
		Message string           `json:"message"`
		History []model.ChatTurn `json:"history"`
	}{message, history}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/chat/message", route: "/chat/message", auth: authAccess, json: body}, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

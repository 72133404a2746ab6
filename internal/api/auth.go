package api

import (
	"context"
	"net/http"

	"github.com/dukerupert/reunite/internal/model"
)

type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	JoinCode  string `json:"joinCode,omitempty"`
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*model.AuthResult, error) {
	var out model.AuthResult
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/signup", route: "/auth/signup", json: req}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var out model.AuthResult
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/login", route: "/auth/login", json: body}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/logout", route: "/auth/logout", auth: authAccess}, nil)
}

// Me returns the signed-in user. A token that is not a compact JWT fails
// with KindAuth before any request is made.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	if c.session != nil && c.session.AccessToken() != "" && !LooksLikeJWT(c.session.AccessToken()) {
		return nil, &Error{Kind: KindAuth, Message: badTokenMessage}
	}
	var out struct {
		User model.User `json:"user"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/me", route: "/auth/me", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Refresh exchanges the refresh token for a new access token and stores it
// on the bound session.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/refresh", route: "/auth/refresh", auth: authRefresh}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &Error{Status: http.StatusOK, Kind: KindAuth, Message: noTokenMessage}
	}
	c.session.SetAccessToken(out.AccessToken)
	return out.AccessToken, nil
}

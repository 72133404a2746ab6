package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dukerupert/reunite/internal/model"
)

type schoolResponse struct {
	School *model.School `json:"school"`
}

// CreateSchool requires an admin session.
func (c *Client) CreateSchool(ctx context.Context, name string) (*model.School, error) {
	var out schoolResponse
	body := map[string]string{"name": name}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/admin/create-school", route: "/admin/create-school", auth: authAccess, json: body}, &out); err != nil {
		return nil, err
	}
	return out.School, nil
}

func (c *Client) Schools(ctx context.Context) ([]model.School, error) {
	var out struct {
		Schools []model.School `json:"schools"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/admin/schools", route: "/admin/schools", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.Schools, nil
}

// RegenerateJoinCode returns the school's new join code.
func (c *Client) RegenerateJoinCode(ctx context.Context, schoolID int64) (string, error) {
	var out struct {
		JoinCode string `json:"join_code"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/admin/regenerate-join-code/" + strconv.FormatInt(schoolID, 10),
		route:  "/admin/regenerate-join-code/{id}",
		auth:   authAccess,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.JoinCode, nil
}

func (c *Client) JoinSchool(ctx context.Context, joinCode string) (*model.School, error) {
	var out schoolResponse
	body := map[string]string{"joinCode": joinCode}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/student/join-school", route: "/student/join-school", auth: authAccess, json: body}, &out); err != nil {
		return nil, err
	}
	return out.School, nil
}

// MySchool returns nil, nil when the user belongs to no school.
func (c *Client) MySchool(ctx context.Context) (*model.School, error) {
	var out schoolResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/student/my-school", route: "/student/my-school", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.School, nil
}

func (c *Client) LeaveSchool(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/student/leave-school", route: "/student/leave-school", auth: authAccess}, nil)
}

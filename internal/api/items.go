package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dukerupert/reunite/internal/model"
)

// reportForm only carries non-empty fields; the backend fills blanks from
// its photo analysis.
func reportForm(kind model.ItemKind, r model.ItemReport) *multipartForm {
	f := &multipartForm{}
	fields := [][2]string{
		{"title", r.Title},
		{"description", r.Description},
		{"category", r.Category},
		{"color", r.Color},
		{"brand", r.Brand},
		{"location", r.Location},
	}
	if kind == model.KindLost {
		fields = append(fields,
			[2]string{"lost_date", r.LostDate},
			[2]string{"verification_question", r.VerificationQuestion},
			[2]string{"verification_answer", r.VerificationAnswer},
		)
	}
	for _, kv := range fields {
		if kv[1] != "" {
			f.add(kv[0], kv[1])
		}
	}
	if len(r.Photo) > 0 {
		name := r.PhotoName
		if name == "" {
			name = "photo.jpg"
		}
		f.addFile("photo", name, r.Photo)
	}
	return f
}

type itemResponse struct {
	Message string     `json:"message"`
	Item    model.Item `json:"item"`
}

func (c *Client) ReportLost(ctx context.Context, r model.ItemReport) (*model.Item, error) {
	var out itemResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "/items/lost", route: "/items/lost", auth: authAccess, form: reportForm(model.KindLost, r)}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Item, nil
}

func (c *Client) ReportFound(ctx context.Context, r model.ItemReport) (*model.Item, error) {
	var out itemResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "/items/found", route: "/items/found", auth: authAccess, form: reportForm(model.KindFound, r)}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Item, nil
}

type itemsResponse struct {
	Items []model.Item `json:"items"`
}

// ListLost returns every lost item of the user's school, unfiltered.
func (c *Client) ListLost(ctx context.Context) ([]model.Item, error) {
	var out itemsResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/items/lost", route: "/items/lost", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ListFound returns every found item of the user's school, unfiltered.
func (c *Client) ListFound(ctx context.Context) ([]model.Item, error) {
	var out itemsResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/items/found", route: "/items/found", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Matches(ctx context.Context) ([]model.Match, error) {
	var out struct {
		Matches []model.Match `json:"matches"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/items/matches", route: "/items/matches", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

func (c *Client) DeleteLost(ctx context.Context, id int64) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/items/lost/" + strconv.FormatInt(id, 10),
		route:  "/items/lost/{id}",
		auth:   authAccess,
	}, nil)
}

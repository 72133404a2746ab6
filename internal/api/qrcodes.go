package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukerupert/reunite/internal/model"
)

// CreateQRCode makes a contact code, optionally linked to a lost item.
func (c *Client) CreateQRCode(ctx context.Context, lostItemID *int64, contactInfo string) (*model.QRCode, error) {
	body := struct {
		LostItemID  *int64 `json:"lost_item_id,omitempty"`
		ContactInfo string `json:"contact_info"`
	}{lostItemID, contactInfo}
	var out struct {
		QRCode model.QRCode `json:"qr_code"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/qr-codes/create", route: "/qr-codes/create", auth: authAccess, json: body}, &out); err != nil {
		return nil, err
	}
	return &out.QRCode, nil
}

func (c *Client) MyQRCodes(ctx context.Context) ([]model.QRCode, error) {
	var out struct {
		QRCodes []model.QRCode `json:"qr_codes"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/qr-codes/my-codes", route: "/qr-codes/my-codes", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.QRCodes, nil
}

// QRInfo looks up a scanned code. No session is needed.
func (c *Client) QRInfo(ctx context.Context, code string) (*model.QRInfo, error) {
	var out model.QRInfo
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/qr-codes/" + url.PathEscape(code),
		route:  "/qr-codes/{code}",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ContactQROwner sends a finder's message to the code owner and returns the
// backend's confirmation text, which may be empty.
func (c *Client) ContactQROwner(ctx context.Context, code string, req model.ContactRequest) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/qr-codes/" + url.PathEscape(code) + "/contact",
		route:  "/qr-codes/{code}/contact",
		json:   req,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) DeleteQRCode(ctx context.Context, id int64) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/qr-codes/" + strconv.FormatInt(id, 10),
		route:  "/qr-codes/{id}",
		auth:   authAccess,
	}, nil)
}

func (c *Client) ContactMessages(ctx context.Context) ([]model.ContactMessage, error) {
	var out struct {
		Messages []model.ContactMessage `json:"messages"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/qr-codes/contact-messages", route: "/qr-codes/contact-messages", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

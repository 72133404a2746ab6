package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dukerupert/reunite/internal/model"
)

type claimRequest struct {
	LostItemID         int64  `json:"lost_item_id"`
	FoundItemID        int64  `json:"found_item_id"`
	VerificationAnswer string `json:"verification_answer"`
}

type claimResponse struct {
	Message string      `json:"message"`
	Claim   model.Claim `json:"claim"`
}

type claimsResponse struct {
	Claims []model.Claim `json:"claims"`
}

func (c *Client) CreateClaim(ctx context.Context, lostItemID, foundItemID int64, answer string) (*model.Claim, error) {
	body := claimRequest{LostItemID: lostItemID, FoundItemID: foundItemID, VerificationAnswer: answer}
	var out claimResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/claims/create", route: "/claims/create", auth: authAccess, json: body}, &out); err != nil {
		return nil, err
	}
	return &out.Claim, nil
}

// VerifyClaim uploads a proof photo; the backend decides the resulting
// verification status.
func (c *Client) VerifyClaim(ctx context.Context, claimID int64, filename string, photo []byte) (*model.Claim, error) {
	f := &multipartForm{}
	f.add("claim_id", strconv.FormatInt(claimID, 10))
	f.addFile("proof_photo", filename, photo)
	var out claimResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/claims/verify", route: "/claims/verify", auth: authAccess, form: f}, &out); err != nil {
		return nil, err
	}
	return &out.Claim, nil
}

func (c *Client) ApproveClaim(ctx context.Context, claimID int64) (*model.Claim, error) {
	var out claimResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/claims/approve/" + strconv.FormatInt(claimID, 10),
		route:  "/claims/approve/{id}",
		auth:   authAccess,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Claim, nil
}

// MyClaims lists claims the user filed.
func (c *Client) MyClaims(ctx context.Context) ([]model.Claim, error) {
	var out claimsResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/claims/my-claims", route: "/claims/my-claims", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.Claims, nil
}

// FoundItemClaims lists claims filed against items the user found.
func (c *Client) FoundItemClaims(ctx context.Context) ([]model.Claim, error) {
	var out claimsResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/claims/found-item-claims", route: "/claims/found-item-claims", auth: authAccess}, &out); err != nil {
		return nil, err
	}
	return out.Claims, nil
}

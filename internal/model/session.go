package model

import "time"

// Session is a browser login held by this server. The upstream tokens are
// stored sealed; AccessToken and RefreshToken are only set after opening.
type Session struct {
	ID            int64     `json:"id"`
	Token         string    `json:"-"`
	UserID        int64     `json:"user_id"`
	Role          string    `json:"role"`
	SealedAccess  string    `json:"-"`
	SealedRefresh string    `json:"-"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

// Package claim holds the client-side rules for filing, viewing and
// approving claims on found items.
package claim

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/reunite/internal/model"
)

// DefaultCloseDelay is how long an approved claim stays on screen before
// the detail view closes itself.
const DefaultCloseDelay = 1500 * time.Millisecond

// Validation failures. The messages are shown to the user as-is.
var (
	ErrNoLostItem   = errors.New("Please select which lost item this matches.")
	ErrNoAnswer     = errors.New("Please provide a verification answer.")
	ErrEmptyMessage = errors.New("Please enter a message.")
)

// Draft is an unsent claim on a found item.
type Draft struct {
	LostItemID         int64
	FoundItemID        int64
	VerificationAnswer string
}

func (d Draft) Validate() error {
	if d.LostItemID == 0 {
		return ErrNoLostItem
	}
	if strings.TrimSpace(d.VerificationAnswer) == "" {
		return ErrNoAnswer
	}
	return nil
}

// Creator files claims upstream; *api.Client implements it.
type Creator interface {
	CreateClaim(ctx context.Context, lostItemID, foundItemID int64, answer string) (*model.Claim, error)
}

// Submit validates d and, only if it is valid, files it exactly once.
func Submit(ctx context.Context, c Creator, d Draft) (*model.Claim, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return c.CreateClaim(ctx, d.LostItemID, d.FoundItemID, d.VerificationAnswer)
}

// ValidateMessage rejects blank chat messages.
func ValidateMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	return nil
}

type Role int

const (
	RoleObserver Role = iota
	RoleClaimant
	RoleFinder
)

func (r Role) String() string {
	switch r {
	case RoleClaimant:
		return "claimant"
	case RoleFinder:
		return "finder"
	}
	return "observer"
}

// RoleOf reports how userID relates to c.
func RoleOf(c model.Claim, userID int64) Role {
	switch {
	case userID == 0:
		return RoleObserver
	case c.ClaimantID == userID:
		return RoleClaimant
	case c.FinderID() == userID:
		return RoleFinder
	}
	return RoleObserver
}

// CanUploadProof: the claimant may attach one proof photo.
func CanUploadProof(c model.Claim, userID int64) bool {
	return RoleOf(c, userID) == RoleClaimant && !c.HasProof()
}

// CanApprove: only the finder approves, and only while pending.
func CanApprove(c model.Claim, userID int64) bool {
	return RoleOf(c, userID) == RoleFinder && c.Status == model.ClaimStatusPending
}

// Merge combines the claims a user filed with the claims on items they
// found. Duplicates keep their first occurrence; the result is newest first.
func Merge(mine, onMyItems []model.Claim) []model.Claim {
	seen := make(map[int64]bool, len(mine)+len(onMyItems))
	out := make([]model.Claim, 0, len(mine)+len(onMyItems))
	for _, list := range [][]model.Claim{mine, onMyItems} {
		for _, c := range list {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Claim) int {
		return b.CreatedAt.Compare(a.CreatedAt.Time)
	})
	return out
}

// Find returns the claim with the given id.
func Find(claims []model.Claim, id int64) (model.Claim, bool) {
	for _, c := range claims {
		if c.ID == id {
			return c, true
		}
	}
	return model.Claim{}, false
}

// SortMessages returns a copy of msgs ordered oldest first.
func SortMessages(msgs []model.Message) []model.Message {
	out := slices.Clone(msgs)
	slices.SortStableFunc(out, func(a, b model.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt.Time)
	})
	return out
}

// SameThread reports whether two fetches of a thread would render the same.
func SameThread(a, b []model.Message) bool {
	return slices.EqualFunc(a, b, func(x, y model.Message) bool {
		return x.ID == y.ID && x.Content == y.Content && x.IsRead == y.IsRead
	})
}

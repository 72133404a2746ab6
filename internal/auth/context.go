package auth

import (
	"context"

	"github.com/dukerupert/reunite/internal/api"
)

type contextKey struct{}

// AuthContext describes the signed-in browser session. Client is bound to
// the session's upstream tokens.
type AuthContext struct {
	SessionID int64
	UserID    int64
	Role      string
	Client    *api.Client
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == "admin"
}

// Client returns the session-bound API client, or nil outside RequireSession.
func Client(ctx context.Context) *api.Client {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return ac.Client
}

func SessionID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.SessionID
}

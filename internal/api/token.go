package api

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the upstream token pair of one signed-in user. A Client
// bound to a Session reads the access token on every request, so a refresh
// is visible to all holders.
type Session struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func NewSession(access, refresh string) *Session {
	return &Session{access: access, refresh: refresh}
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *Session) SetAccessToken(token string) {
	s.mu.Lock()
	s.access = token
	s.mu.Unlock()
}

// AccessExpired reports whether the access token's exp claim falls before
// now+leeway. Tokens without a readable exp are treated as live.
func (s *Session) AccessExpired(now time.Time, leeway time.Duration) bool {
	exp, ok := TokenExpiry(s.AccessToken())
	if !ok {
		return false
	}
	return !now.Add(leeway).Before(exp)
}

// LooksLikeJWT checks the three dot-separated segments of a compact JWT.
func LooksLikeJWT(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// TokenExpiry reads the exp claim without verifying the signature; the
// upstream API remains the authority on validity.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

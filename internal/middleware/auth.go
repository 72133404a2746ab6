package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/seal"
	"github.com/dukerupert/reunite/internal/store"
)

// refreshLeeway refreshes tokens that are about to expire mid-request.
const refreshLeeway = 30 * time.Second

// RequireSession loads the browser session from its cookie, opens the
// upstream tokens and places a session-bound API client in AuthContext.
// An access token past its exp is refreshed once and persisted.
// HTMX-aware: returns HX-Redirect header instead of 303 redirect for HTMX requests.
func RequireSession(sessions *store.SessionStore, sealer *seal.Sealer, client *api.Client, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.CookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil {
				logger.Error("load session", "error", err)
			}
			if err != nil || sess == nil {
				auth.ClearSessionCookie(w)
				redirectToLogin(w, r)
				return
			}

			// endSession drops a session whose tokens can no longer be used.
			endSession := func(reason string) {
				logger.Info("session ended", "session_id", sess.ID, "reason", reason)
				if err := sessions.Delete(sess.ID); err != nil {
					logger.Error("delete session", "session_id", sess.ID, "error", err)
				}
				auth.ClearSessionCookie(w)
				redirectToLogin(w, r)
			}

			access, err := sealer.Open(sess.SealedAccess)
			if err != nil {
				endSession("unreadable access token")
				return
			}
			refresh, err := sealer.Open(sess.SealedRefresh)
			if err != nil {
				endSession("unreadable refresh token")
				return
			}
			if !api.LooksLikeJWT(access) {
				endSession("invalid token format")
				return
			}

			tokens := api.NewSession(access, refresh)
			bound := client.WithSession(tokens)

			if refresh != "" && tokens.AccessExpired(time.Now(), refreshLeeway) {
				fresh, err := bound.Refresh(r.Context())
				switch {
				case api.IsAuth(err):
					endSession("refresh rejected")
					return
				case err != nil:
					// Let the request through; the upstream has the final say.
					logger.Warn("refresh access token", "session_id", sess.ID, "error", err)
				default:
					sealed, err := sealer.Seal(fresh)
					if err == nil {
						err = sessions.UpdateAccess(sess.ID, sealed)
					}
					if err != nil {
						logger.Error("persist refreshed token", "session_id", sess.ID, "error", err)
					}
				}
			}

			ac := auth.AuthContext{
				SessionID: sess.ID,
				UserID:    sess.UserID,
				Role:      sess.Role,
				Client:    bound,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin sends non-admin users to their dashboard.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/reunite/internal/api"
	"github.com/dukerupert/reunite/internal/config"
	"github.com/dukerupert/reunite/internal/feed"
	"github.com/dukerupert/reunite/internal/handler"
	"github.com/dukerupert/reunite/internal/metrics"
	"github.com/dukerupert/reunite/internal/middleware"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/seal"
	"github.com/dukerupert/reunite/internal/store"
	"github.com/dukerupert/reunite/web"
)

// publicFormBurst is how many posts per minute one address may send to each
// unauthenticated form.
const publicFormBurst = 10

type Server struct {
	db           *sql.DB
	client       *api.Client
	sealer       *seal.Sealer
	metrics      *metrics.Metrics
	sessionStore *store.SessionStore
	rateLimiter  *middleware.Limiter
	clientIP     *middleware.ClientIP
	pageH        *handler.PageHandler
	authH        *handler.AuthHandler
	dashboardH   *handler.DashboardHandler
	itemH        *handler.ItemHandler
	matchH       *handler.MatchHandler
	claimH       *handler.ClaimHandler
	qrH          *handler.QRHandler
	rewardH      *handler.RewardHandler
	chatH        *handler.ChatHandler
	adminH       *handler.AdminHandler
	logger       *slog.Logger
}

// New wires the handlers. client is the unbound API client; the session
// middleware derives a bound copy per request.
func New(db *sql.DB, cfg config.Config, client *api.Client, sealer *seal.Sealer, fm *feed.Manager, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	tmpl, err := handler.LoadTemplates(cfg.AssetURL, logger.With("component", "templates"))
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	sessionStore := store.NewSessionStore(db)

	return &Server{
		db:           db,
		client:       client,
		sealer:       sealer,
		metrics:      m,
		sessionStore: sessionStore,
		rateLimiter:  middleware.NewLimiter(publicFormBurst, time.Minute),
		clientIP:     middleware.NewClientIP(cfg.TrustedProxies),
		pageH:        handler.NewPageHandler(tmpl, logger.With("component", "pages")),
		authH:        handler.NewAuthHandler(tmpl, sessionStore, client, sealer, cfg.SecureCookies, logger.With("component", "auth")),
		dashboardH:   handler.NewDashboardHandler(tmpl, sessionStore, logger.With("component", "dashboard")),
		itemH:        handler.NewItemHandler(tmpl, sessionStore, logger.With("component", "items")),
		matchH:       handler.NewMatchHandler(tmpl, sessionStore, logger.With("component", "matches")),
		claimH:       handler.NewClaimHandler(tmpl, sessionStore, fm, sealer, cfg.CloseDelay, logger.With("component", "claims")),
		qrH:          handler.NewQRHandler(tmpl, sessionStore, client, logger.With("component", "qr")),
		rewardH:      handler.NewRewardHandler(tmpl, sessionStore, logger.With("component", "rewards")),
		chatH:        handler.NewChatHandler(tmpl, sessionStore, logger.With("component", "chat")),
		adminH:       handler.NewAdminHandler(tmpl, sessionStore, logger.With("component", "admin")),
		logger:       logger,
	}, nil
}

func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

func (s *Server) RateLimiter() *middleware.Limiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /{$}", s.pageH.Home)
	outerMux.HandleFunc("GET /about", s.pageH.About)
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.Handle("POST /login", s.limited("login", s.authH.Login))
	outerMux.HandleFunc("GET /signup", s.authH.SignupPage)
	outerMux.Handle("POST /signup", s.limited("signup", s.authH.Signup))
	outerMux.HandleFunc("GET /qr/{code}", s.qrH.Public)
	outerMux.Handle("POST /qr/{code}", s.limited("qr_contact", s.qrH.Contact))
	outerMux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS())))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())

	// Protected routes — wrapped with RequireSession middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	sessionMiddleware := middleware.RequireSession(s.sessionStore, s.sealer, s.client, s.logger.With("component", "session"))
	outerMux.Handle("/", sessionMiddleware(protectedMux))

	// Request ids are assigned before logging so every log line carries one.
	return middleware.RequestID(middleware.RequestLogger(s.logger.With("component", "http"))(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// limited gives h its own per-address budget under scope.
func (s *Server) limited(scope string, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, scope, s.clientIP.Resolve, s.metrics)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// Admin
	mux.Handle("GET /admin", middleware.RequireAdmin(http.HandlerFunc(s.adminH.Schools)))
	mux.Handle("POST /admin/schools", middleware.RequireAdmin(http.HandlerFunc(s.adminH.CreateSchool)))
	mux.Handle("POST /admin/schools/{id}/join-code", middleware.RequireAdmin(http.HandlerFunc(s.adminH.RegenerateJoinCode)))

	// Dashboard and school membership
	mux.HandleFunc("GET /dashboard", s.dashboardH.Dashboard)
	mux.HandleFunc("POST /dashboard/school/join", s.dashboardH.JoinSchool)
	mux.HandleFunc("POST /dashboard/school/leave", s.dashboardH.LeaveSchool)

	// Items
	mux.HandleFunc("GET /dashboard/found", s.itemH.Found)
	mux.HandleFunc("GET /dashboard/found/report", s.itemH.ReportForm(model.KindFound))
	mux.HandleFunc("POST /dashboard/found/report", s.itemH.Report(model.KindFound))
	mux.HandleFunc("GET /dashboard/found/{id}/claim", s.itemH.ClaimForm)
	mux.HandleFunc("POST /dashboard/found/{id}/claim", s.itemH.SubmitClaim)
	mux.HandleFunc("GET /dashboard/lost", s.itemH.Lost)
	mux.HandleFunc("GET /dashboard/lost/report", s.itemH.ReportForm(model.KindLost))
	mux.HandleFunc("POST /dashboard/lost/report", s.itemH.Report(model.KindLost))
	mux.HandleFunc("POST /dashboard/lost/{id}/delete", s.itemH.DeleteLost)

	// Matches
	mux.HandleFunc("GET /dashboard/matches", s.matchH.List)
	mux.HandleFunc("POST /dashboard/matches/{id}/claim", s.matchH.QuickClaim)

	// Claims and messaging
	mux.HandleFunc("GET /dashboard/claims", s.claimH.List)
	mux.HandleFunc("GET /dashboard/claims/{id}", s.claimH.Detail)
	mux.HandleFunc("POST /dashboard/claims/{id}/proof", s.claimH.UploadProof)
	mux.HandleFunc("POST /dashboard/claims/{id}/approve", s.claimH.Approve)
	mux.HandleFunc("POST /dashboard/claims/{id}/messages", s.claimH.SendMessage)
	mux.HandleFunc("GET /dashboard/claims/{id}/messages", s.claimH.Messages)
	mux.HandleFunc("GET /dashboard/claims/{id}/ws", s.claimH.Feed)

	// QR codes
	mux.HandleFunc("GET /dashboard/qr-codes", s.qrH.List)
	mux.HandleFunc("POST /dashboard/qr-codes", s.qrH.Create)
	mux.HandleFunc("POST /dashboard/qr-codes/{id}/delete", s.qrH.Delete)

	// Rewards
	mux.HandleFunc("GET /dashboard/rewards", s.rewardH.Rewards)

	// Assistant
	mux.HandleFunc("GET /dashboard/chat", s.chatH.Page)
	mux.HandleFunc("POST /dashboard/chat", s.chatH.Send)
	mux.HandleFunc("POST /dashboard/chat/clear", s.chatH.Clear)

	mux.HandleFunc("/", s.pageH.NotFound)
}

package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/chore"
	"github.com/dukerupert/choreledger/internal/database"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/handler"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/metrics"
	"github.com/dukerupert/choreledger/internal/middleware"
	"github.com/dukerupert/choreledger/internal/store"
	"github.com/dukerupert/choreledger/internal/topup"
	ws "github.com/dukerupert/choreledger/internal/websocket"
)

type Options struct {
	JWTSecret  string
	SessionTTL time.Duration
	LockMonths int
	// Clock dates postings and defines "today". Required.
	Clock ledger.Clock
	// Publisher receives every event alongside the websocket hub. Optional.
	Publisher events.Notifier
	Metrics   *metrics.Metrics
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	jwt         *auth.JWTManager
	members     *store.MemberStore
	metrics     *metrics.Metrics
	topups      *topup.Generator
	authH       *handler.AuthHandler
	memberH     *handler.MemberHandler
	choreH      *handler.ChoreHandler
	settingsH   *handler.SettingsHandler
	ledgerH     *handler.LedgerHandler
	rpcH        *handler.RPCHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	var notifier events.Notifier = events.NewHubNotifier(hub)
	if opts.Publisher != nil {
		notifier = events.Multi{notifier, opts.Publisher}
	}

	ledgerSvc := ledger.NewService(db, ledger.Options{
		Lock:     allocation.LockPolicy{Months: opts.LockMonths},
		Clock:    opts.Clock,
		Notifier: notifier,
		Metrics:  opts.Metrics,
		Logger:   logger,
	})
	choreSvc := chore.NewService(db, ledgerSvc, notifier, opts.Metrics, logger)
	topupGen := topup.NewGenerator(db, ledgerSvc, notifier, opts.Metrics, logger)

	memberStore := store.NewMemberStore(db)
	jwtManager := auth.NewJWTManager(opts.JWTSecret, opts.SessionTTL)

	return &Server{
		db:          db,
		hub:         hub,
		jwt:         jwtManager,
		members:     memberStore,
		metrics:     opts.Metrics,
		topups:      topupGen,
		authH:       handler.NewAuthHandler(db, jwtManager, logger.With("component", "auth")),
		memberH:     handler.NewMemberHandler(db, notifier, logger.With("component", "member")),
		choreH:      handler.NewChoreHandler(choreSvc, logger.With("component", "chore_handler")),
		settingsH:   handler.NewSettingsHandler(store.NewSettingsStore(db), memberStore, notifier, logger.With("component", "settings")),
		ledgerH:     handler.NewLedgerHandler(ledgerSvc, logger.With("component", "ledger_handler")),
		rpcH:        handler.NewRPCHandler(choreSvc, ledgerSvc, topupGen, logger.With("component", "rpc")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Topups returns the generator the daily scheduler drives.
func (s *Server) Topups() *topup.Generator {
	return s.topups
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/families", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	if s.metrics != nil {
		outerMux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.jwt, s.members)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	version, err := database.SchemaVersion(r.Context(), s.db)
	if err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "schema_version": version})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Procedures
	for name, h := range s.rpcH.Routes() {
		mux.HandleFunc("POST /rpc/"+name, h)
	}

	// Members
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("POST /api/members", s.memberH.Create)
	mux.HandleFunc("PUT /api/members/{id}", s.memberH.Update)
	mux.HandleFunc("PUT /api/members/{id}/pin", s.memberH.SetPIN)

	// Chores and assignments
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("GET /api/assignments", s.choreH.Assignments)
	mux.HandleFunc("PUT /api/assignments", s.choreH.Assign)
	mux.HandleFunc("GET /api/board", s.choreH.Board)
	mux.HandleFunc("GET /api/approvals", s.choreH.Approvals)

	// Settings
	mux.HandleFunc("GET /api/settings", s.settingsH.Get)
	mux.HandleFunc("PUT /api/settings", s.settingsH.Update)

	// Ledger, reports and goals
	mux.HandleFunc("GET /api/ledger", s.ledgerH.Recent)
	mux.HandleFunc("GET /api/totals", s.ledgerH.Totals)
	mux.HandleFunc("GET /api/reports", s.ledgerH.Report)
	mux.HandleFunc("GET /api/goals", s.ledgerH.Goals)
	mux.HandleFunc("POST /api/goals", s.ledgerH.CreateGoal)
	mux.HandleFunc("PUT /api/goals/{id}/active", s.ledgerH.SetGoalActive)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}

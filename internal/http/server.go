package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"spendwise/internal/aggregate"
	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/projection"
)

const defaultRequestTimeout = 7 * time.Second

type (
	// ExpenseService is the expense use-case layer the handlers drive.
	ExpenseService interface {
		List(ctx context.Context, userID string, filter aggregate.ExpenseFilter) ([]core.Expense, error)
		Get(ctx context.Context, userID, id string) (core.Expense, error)
		Create(ctx context.Context, userID string, fields core.ExpenseFields) (core.Expense, error)
		Update(ctx context.Context, userID, id string, patch core.ExpensePatch) (core.Expense, error)
		Delete(ctx context.Context, userID, id string) error
	}

	DashboardService interface {
		Dashboard(ctx context.Context, userID string, months, recent int) (aggregate.Dashboard, error)
	}

	SavingsService interface {
		Project(ctx context.Context, userID string, p projection.Params) (projection.Projection, error)
	}

	Authenticator interface {
		Login(ctx context.Context, username, password string) (auth.Token, core.User, error)
		Parse(raw string) (*auth.Claims, error)
		Revoke(ctx context.Context, claims *auth.Claims)
	}

	// Pinger reports whether the backing store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Dependencies are the services the API is built on. All are required.
type Dependencies struct {
	Expenses  ExpenseService
	Dashboard DashboardService
	Savings   SavingsService
	Auth      Authenticator
	Store     Pinger
}

type Options struct {
	RateLimitPerMinute int
	// RequestTimeout bounds each API call, 7s when zero.
	RequestTimeout time.Duration
	Logger         *log.Logger
}

// Server is the JSON API server.
type Server struct {
	http.Server

	expenses  ExpenseService
	dashboard DashboardService
	savings   SavingsService
	auth      Authenticator
	store     Pinger

	logger           *log.Logger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	requestTimeout   time.Duration

	started         time.Time
	expensesCreated atomic.Int64
}

func NewServer(addr string, deps Dependencies, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s := &Server{
		expenses:         deps.Expenses,
		dashboard:        deps.Dashboard,
		savings:          deps.Savings,
		auth:             deps.Auth,
		store:            deps.Store,
		logger:           logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
		requestTimeout:   timeout,
		started:          time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	// Outermost first: logger, trace, request-scoped logger, headers,
	// detection, rate limit.
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("POST /api/login", s.withTimeout(s.handleLogin))
	mux.HandleFunc("POST /api/logout", s.authenticated(s.handleLogout))

	mux.HandleFunc("GET /api/expenses", s.authenticated(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.authenticated(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/{id}", s.authenticated(s.handleGetExpense))
	mux.HandleFunc("PATCH /api/expenses/{id}", s.authenticated(s.handlePatchExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.authenticated(s.handleReplaceExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.authenticated(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/dashboard", s.authenticated(s.handleDashboard))
	mux.HandleFunc("GET /api/savings", s.authenticated(s.handleSavings))
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, please try again later").Write(w)
}

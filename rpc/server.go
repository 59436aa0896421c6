package rpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"rewardvault/native/rewards"
)

// Server exposes the vault operation surface over HTTP. It is an
// operator-trusted surface: callers identify themselves by address and the
// engine enforces roles and signatures.
type Server struct {
	engine  *rewards.Engine
	log     *slog.Logger
	limiter *rate.Limiter
	ops     *prometheus.CounterVec
}

// NewServer constructs a server for the supplied engine.
func NewServer(engine *rewards.Engine, logger *slog.Logger, rps float64, burst int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = 100
	}
	return &Server{
		engine:  engine,
		log:     logger,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		ops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rewardvault_operations_total",
			Help: "Vault operations by name and result.",
		}, []string{"op", "result"}),
	}
}

func (s *Server) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.ops.WithLabelValues(op, result).Inc()
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.throttle)
		r.Post("/v1/deposit", s.handleDeposit)
		r.Post("/v1/cashback", s.handleCashback)
		r.Post("/v1/swap", s.handleSwap)
		r.Post("/v1/claim", s.handleClaim)
		r.Post("/v1/distribute", s.handleDistribute)
		r.Post("/v1/pause", s.handlePause)
		r.Post("/v1/unpause", s.handleUnpause)
		r.Post("/v1/roles/grant", s.handleGrantRole)
		r.Post("/v1/roles/revoke", s.handleRevokeRole)
		r.Post("/v1/config/minimal-deposit", s.handleSetMinimalDeposit)
		r.Post("/v1/config/distribute-floor", s.handleSetDistributeFloor)
		r.Post("/v1/config/treasury", s.handleSetTreasury)
		r.Post("/v1/config/authorizer", s.handleSetAuthorizer)
		r.Get("/v1/accounts/{address}", s.handleAccount)
		r.Get("/v1/config", s.handleConfig)
	})
	return r
}

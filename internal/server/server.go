// Package server exposes the analytics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/analytics"
	"github.com/sells-group/inspection-risk/internal/service"
)

// Defaults for Options.
const (
	DefaultDays   = 90
	MaxWatchlistN = 100
)

// DefaultWindows are the windows the API accepts when none are configured.
var DefaultWindows = []int{7, 30, 90}

// Provider hands out analyzers per window. *service.Cache satisfies it.
type Provider interface {
	Get(ctx context.Context, days int) (*analytics.Analyzer, error)
	Peek(days int) (*analytics.Analyzer, bool)
	PeekBase() (*service.Base, bool)
}

// Options configures the HTTP surface.
type Options struct {
	DefaultDays    int
	AllowedWindows []int
	WatchlistSize  int
	CORSOrigins    []string
}

func (o Options) withDefaults() Options {
	if o.DefaultDays <= 0 {
		o.DefaultDays = DefaultDays
	}
	if len(o.AllowedWindows) == 0 {
		o.AllowedWindows = DefaultWindows
	}
	if o.WatchlistSize <= 0 {
		o.WatchlistSize = analytics.DefaultWatchlistSize
	}
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}
	return o
}

// Server routes API requests to the analyzer provider.
type Server struct {
	provider Provider
	opts     Options
	router   chi.Router
}

// New builds the router.
func New(p Provider, opts Options) *Server {
	s := &Server{provider: p, opts: opts.withDefaults()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/rodent-orders", s.metric(func(a *analytics.Analyzer, _ *http.Request) (any, error) {
				return a.RodentOrders(), nil
			}))
			r.Get("/revenue-by-grade", s.metric(func(a *analytics.Analyzer, _ *http.Request) (any, error) {
				return a.RevenueByGrade(), nil
			}))
			r.Get("/revenue-at-risk", s.metric(func(a *analytics.Analyzer, _ *http.Request) (any, error) {
				return a.RevenueAtRisk(), nil
			}))
			r.Get("/borough-breakdown", s.metric(func(a *analytics.Analyzer, _ *http.Request) (any, error) {
				return a.BoroughBreakdown(), nil
			}))
			r.Get("/watchlist", s.metric(func(a *analytics.Analyzer, r *http.Request) (any, error) {
				n, err := s.topN(r)
				if err != nil {
					return nil, err
				}
				return a.Watchlist(n), nil
			}))
			r.Get("/summary", s.metric(func(a *analytics.Analyzer, _ *http.Request) (any, error) {
				return a.Summary(), nil
			}))
		})
		r.Get("/report/xlsx", s.handleReport)
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// badRequest marks a client error.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

// days reads the days query parameter, defaulting when absent.
func (s *Server) days(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return s.opts.DefaultDays, nil
	}
	d, err := strconv.Atoi(raw)
	if err != nil || !slices.Contains(s.opts.AllowedWindows, d) {
		return 0, &badRequest{msg: "days must be one of " + joinInts(s.opts.AllowedWindows)}
	}
	return d, nil
}

func (s *Server) topN(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("top_n")
	if raw == "" {
		return s.opts.WatchlistSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxWatchlistN {
		return 0, &badRequest{msg: "top_n must be between 1 and " + strconv.Itoa(MaxWatchlistN)}
	}
	return n, nil
}

// analyzer resolves the request window and fetches its analyzer, writing
// the error response itself on failure.
func (s *Server) analyzer(w http.ResponseWriter, r *http.Request) (*analytics.Analyzer, int, bool) {
	days, err := s.days(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, 0, false
	}
	a, err := s.provider.Get(r.Context(), days)
	if err != nil {
		zap.L().Error("build analyzer", zap.Int("days", days), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analytics unavailable")
		return nil, 0, false
	}
	return a, days, true
}

func (s *Server) metric(fn func(*analytics.Analyzer, *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Validate query parameters before paying for an analyzer build.
		if _, err := s.days(r); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if r.URL.Query().Has("top_n") {
			if _, err := s.topN(r); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		a, _, ok := s.analyzer(w, r)
		if !ok {
			return
		}
		body, err := fn(a, r)
		if err != nil {
			var br *badRequest
			if errors.As(err, &br) {
				writeError(w, http.StatusBadRequest, br.msg)
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	days, err := s.days(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := analytics.HealthReport{Status: "healthy"}
	if base, ok := s.provider.PeekBase(); ok {
		report.OrdersLoaded = len(base.Orders)
		if base.Matcher != nil {
			report.RestaurantsMapped = base.Matcher.Len()
		}
	}
	if a, ok := s.provider.Peek(days); ok {
		report.InspectionsLoaded = a.Inspections()
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func joinInts(vs []int) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ", "
		}
		out += strconv.Itoa(v)
	}
	return out
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

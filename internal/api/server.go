// Package api provides the HTTP server for chronik: the engagement read
// side, the tracker write side that triggers it, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/health"
	"github.com/unfloned/chronik/internal/infra/metrics"
)

// UserHeader carries the authenticated user ID, set by the fronting auth
// proxy.
const UserHeader = "X-User-ID"

// Server is the chronik HTTP API server.
type Server struct {
	metricsEnabled bool
	corsOrigin     string
	health         *health.Checker
	engagement     *EngagementAPI
	tracker        *TrackerAPI
}

// NewServer creates a new API server.
func NewServer() *Server {
	return &Server{corsOrigin: "*"}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetCORSOrigin sets the Access-Control-Allow-Origin value.
func (s *Server) SetCORSOrigin(origin string) {
	if origin != "" {
		s.corsOrigin = origin
	}
}

// SetHealth makes /health report the checker's results.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetEngagement sets the engagement API services.
func (s *Server) SetEngagement(e *EngagementAPI) { s.engagement = e }

// SetTracker sets the tracker API services.
func (s *Server) SetTracker(t *TrackerAPI) { s.tracker = t }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.corsMiddleware)
	r.Use(countRequests)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(requireUser)

		if s.engagement != nil {
			r.Route("/engagement", func(r chi.Router) {
				r.Get("/level", s.engagement.HandleLevel)
				r.Get("/xp", s.engagement.HandleXPHistory)
				r.Get("/achievements", s.engagement.HandleAchievements)
				r.Get("/notifications", s.engagement.HandleNotifications)
				r.Post("/notifications/{id}/read", s.engagement.HandleNotificationRead)
				r.Post("/notifications/{id}/unread", s.engagement.HandleNotificationUnread)
				r.Get("/notification-settings", s.engagement.HandleGetSettings)
				r.Put("/notification-settings", s.engagement.HandleUpdateSettings)
				r.Post("/push-subscriptions", s.engagement.HandlePushSubscribe)
				r.Get("/dashboard", s.engagement.HandleDashboard)
			})
		}

		if s.tracker != nil {
			r.Get("/habits", s.tracker.HandleListHabits)
			r.Post("/habits", s.tracker.HandleCreateHabit)
			r.Post("/habits/{id}/logs", s.tracker.HandleLogHabit)
			r.Post("/deadlines", s.tracker.HandleCreateDeadline)
			r.Post("/deadlines/{id}/complete", s.tracker.HandleCompleteDeadline)
			r.Post("/deadlines/{id}/cancel", s.tracker.HandleCancelDeadline)
			r.Get("/deadlines/stats", s.tracker.HandleDeadlineStats)
			r.Post("/subscriptions", s.tracker.HandleCreateSubscription)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type userKey struct{}

// requireUser rejects requests without a user header and stores the ID in
// the request context.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(UserHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNegativeXP):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrHabitNotFound),
		errors.Is(err, domain.ErrDeadlineNotFound), errors.Is(err, domain.ErrSubscriptionNotFound),
		errors.Is(err, domain.ErrNotificationNotFound), errors.Is(err, domain.ErrUnknownAchievement):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// countRequests records each request under its route pattern so IDs in
// paths do not explode label cardinality.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

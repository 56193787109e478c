// Package metrics provides Prometheus metrics for chronik: rewards,
// notifications, push delivery, scheduler jobs, storage and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chronik"

// ─── Rewards ────────────────────────────────────────────────────────────────

// XPAwarded tracks XP granted by source.
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "xp_awarded_total",
	Help:      "Total XP awarded.",
}, []string{"source"})

// LevelUps tracks level boundary crossings.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "level_ups_total",
	Help:      "Total level-ups across all users.",
})

// AchievementsUnlocked tracks winning unlocks by category.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "achievements_unlocked_total",
	Help:      "Total achievements unlocked.",
}, []string{"category"})

// HabitCompletions tracks new habit completions.
var HabitCompletions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "habit_completions_total",
	Help:      "Total habit days transitioned to completed.",
})

// ChaosScore tracks the distribution of computed dashboard chaos scores.
var ChaosScore = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "chaos_score",
	Help:      "Dashboard chaos score (0 calm, 100 chaos).",
	Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
})

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationsCreated tracks in-app notifications by category.
var NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "notifications_created_total",
	Help:      "Total in-app notifications created.",
}, []string{"category"})

// PushDeliveries tracks push deliveries by result (sent, failed, pruned).
var PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "push_deliveries_total",
	Help:      "Push deliveries by result.",
}, []string{"result"})

// RemindersSent tracks scheduled reminders that won their dedup slot.
var RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "reminders_sent_total",
	Help:      "Scheduled reminders dispatched by job.",
}, []string{"job"})

// ─── Scheduler ──────────────────────────────────────────────────────────────

// JobRuns tracks scheduler ticks by job.
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "scheduler_job_runs_total",
	Help:      "Total scheduler job runs.",
}, []string{"job"})

// JobErrors tracks scheduler ticks that reported an error.
var JobErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "scheduler_job_errors_total",
	Help:      "Total scheduler job runs that reported errors.",
}, []string{"job"})

// JobDuration tracks scheduler tick duration in seconds.
var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "scheduler_job_duration_seconds",
	Help:      "Scheduler job run duration in seconds.",
	Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
}, []string{"job"})

// JobsRunning is 1 while the scheduler is started.
var JobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "scheduler_running",
	Help:      "1 while the scheduler is running.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests tracks API requests by route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "http_requests_total",
	Help:      "Total API requests.",
}, []string{"route", "status"})

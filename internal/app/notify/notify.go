// Package notify is the notification dispatch gateway: persisted in-app
// notifications and push delivery to every endpoint a user registered.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/infra/metrics"
	"github.com/unfloned/chronik/internal/infra/push"
)

// Store is the persistence the gateway needs.
type Store interface {
	domain.NotificationStore
	domain.PushStore
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdateNotificationPrefs(ctx context.Context, userID string, prefs domain.NotificationPrefs) error
}

var validate = validator.New()

// Gateway implements domain.Dispatcher.
type Gateway struct {
	store     Store
	transport push.Transport
	logger    *slog.Logger
	now       func() time.Time
}

var _ domain.Dispatcher = (*Gateway)(nil)

// New creates a gateway. A nil transport disables push: SendPush then
// returns zero sent without error.
func New(store Store, transport push.Transport, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:     store,
		transport: transport,
		logger:    logger.With("component", "notify"),
		now:       time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (g *Gateway) SetClock(now func() time.Time) { g.now = now }

// CreateInApp persists a notification for the user.
func (g *Gateway) CreateInApp(ctx context.Context, userID string, category domain.NotificationCategory, title, message, link string) (domain.Notification, error) {
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Category:  category,
		Title:     title,
		Message:   message,
		Link:      link,
		CreatedAt: g.now(),
	}
	if err := g.store.InsertNotification(ctx, n); err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(category)).Inc()
	return n, nil
}

// SendPush delivers msg to each of the user's endpoints and returns how
// many deliveries succeeded. Gone endpoints are pruned and not reported as
// errors; other failures are joined into the returned error.
func (g *Gateway) SendPush(ctx context.Context, userID string, msg domain.PushMessage) (int, error) {
	if g.transport == nil {
		return 0, nil
	}
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get user: %w", err)
	}
	if !u.Prefs.PushEnabled {
		return 0, nil
	}
	subs, err := g.store.ListPushSubscriptions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list push subscriptions: %w", err)
	}

	sent := 0
	var errs []error
	for _, sub := range subs {
		err := g.transport.Send(ctx, sub, msg)
		switch {
		case err == nil:
			sent++
			metrics.PushDeliveries.WithLabelValues("sent").Inc()
		case errors.Is(err, push.ErrSubscriptionGone):
			metrics.PushDeliveries.WithLabelValues("pruned").Inc()
			if derr := g.store.DeletePushSubscription(ctx, sub.ID); derr != nil {
				g.logger.Warn("prune push subscription failed", "user_id", userID, "subscription_id", sub.ID, "error", derr)
			} else {
				g.logger.Info("pruned gone push subscription", "user_id", userID, "subscription_id", sub.ID)
			}
		default:
			metrics.PushDeliveries.WithLabelValues("failed").Inc()
			errs = append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
		}
	}
	return sent, errors.Join(errs...)
}

// ─── Inbox ──────────────────────────────────────────────────────────────────

// List returns the user's notifications, newest first.
func (g *Gateway) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return g.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead flags a notification as read.
func (g *Gateway) MarkRead(ctx context.Context, userID, id string) error {
	return g.store.MarkNotificationRead(ctx, userID, id)
}

// MarkUnread clears the read flag of a notification.
func (g *Gateway) MarkUnread(ctx context.Context, userID, id string) error {
	return g.store.MarkNotificationUnread(ctx, userID, id)
}

// UnreadCount counts unread notifications.
func (g *Gateway) UnreadCount(ctx context.Context, userID string) (int, error) {
	return g.store.UnreadCount(ctx, userID)
}

// RegisterPush stores a push endpoint for the user. Only https endpoints
// are accepted.
func (g *Gateway) RegisterPush(ctx context.Context, userID, endpoint, p256dh, auth string) (domain.PushSubscription, error) {
	endpoint = strings.TrimSpace(endpoint)
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" || u.User != nil {
		return domain.PushSubscription{}, fmt.Errorf("%w: endpoint must be an https URL", domain.ErrInvalidInput)
	}
	sub := domain.PushSubscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: g.now(),
	}
	if err := g.store.AddPushSubscription(ctx, sub); err != nil {
		return domain.PushSubscription{}, fmt.Errorf("add push subscription: %w", err)
	}
	return sub, nil
}

// ─── Settings ───────────────────────────────────────────────────────────────

// Settings returns the user's notification preferences.
func (g *Gateway) Settings(ctx context.Context, userID string) (domain.NotificationPrefs, error) {
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return domain.NotificationPrefs{}, err
	}
	return u.Prefs, nil
}

// UpdateSettings validates and stores the user's notification preferences.
// ReminderTime must be HH:MM and warning offsets lie in 0..60 days.
func (g *Gateway) UpdateSettings(ctx context.Context, userID string, prefs domain.NotificationPrefs) (domain.NotificationPrefs, error) {
	if prefs.DeadlineWarningDays == nil {
		prefs.DeadlineWarningDays = []int{}
	}
	if err := validate.Struct(prefs); err != nil {
		return domain.NotificationPrefs{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := g.store.UpdateNotificationPrefs(ctx, userID, prefs); err != nil {
		return domain.NotificationPrefs{}, fmt.Errorf("update notification prefs: %w", err)
	}
	g.logger.Info("notification settings updated", "user_id", userID)
	return prefs, nil
}

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/app/notify"
	"github.com/unfloned/chronik/internal/app/tracker"
)

// ─── Engagement API (/api/engagement/*) ─────────────────────────────────────

// EngagementAPI serves levels, achievements, notifications and the
// dashboard.
type EngagementAPI struct {
	engine    *engagement.Engine
	inbox     *notify.Gateway
	dashboard *tracker.DashboardService
}

// NewEngagementAPI creates the engagement handlers.
func NewEngagementAPI(engine *engagement.Engine, inbox *notify.Gateway, dashboard *tracker.DashboardService) *EngagementAPI {
	return &EngagementAPI{engine: engine, inbox: inbox, dashboard: dashboard}
}

// HandleLevel returns the user's level, XP and progress.
func (e *EngagementAPI) HandleLevel(w http.ResponseWriter, r *http.Request) {
	lvl, err := e.engine.Levels.CurrentLevel(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lvl)
}

// HandleXPHistory returns recent XP ledger entries.
func (e *EngagementAPI) HandleXPHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := e.engine.Levels.History(r.Context(), userID(r), queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// HandleAchievements returns the catalog with the user's unlock state.
func (e *EngagementAPI) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	progress, err := e.engine.Achievements.Progress(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	unlocked := 0
	for _, p := range progress {
		if p.Unlocked {
			unlocked++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"achievements": progress,
		"unlocked":     unlocked,
		"total":        len(e.engine.Catalog.Definitions()),
	})
}

// HandleNotifications lists the inbox. ?unread=true filters to unread.
func (e *EngagementAPI) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, uid := r.Context(), userID(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := e.inbox.List(ctx, uid, unreadOnly, queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	unread, err := e.inbox.UnreadCount(ctx, uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": list,
		"unread":        unread,
	})
}

// HandleNotificationRead marks one notification as read.
func (e *EngagementAPI) HandleNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := e.inbox.MarkRead(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleNotificationUnread marks one notification as unread again.
func (e *EngagementAPI) HandleNotificationUnread(w http.ResponseWriter, r *http.Request) {
	if err := e.inbox.MarkUnread(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleGetSettings returns the user's notification preferences.
func (e *EngagementAPI) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := e.inbox.Settings(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// HandleUpdateSettings applies a partial update: fields missing from the
// body keep their stored values.
func (e *EngagementAPI) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, uid := r.Context(), userID(r)
	prefs, err := e.inbox.Settings(ctx, uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !decodeJSON(w, r, &prefs) {
		return
	}
	prefs, err = e.inbox.UpdateSettings(ctx, uid, prefs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// HandlePushSubscribe registers a browser push endpoint.
func (e *EngagementAPI) HandlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushSubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := e.inbox.RegisterPush(r.Context(), userID(r), req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// HandleDashboard returns the dashboard summary with the chaos score.
func (e *EngagementAPI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := e.dashboard.Summary(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

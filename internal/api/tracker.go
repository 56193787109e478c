package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unfloned/chronik/internal/app/tracker"
)

// ─── Tracker API (/api/*) ───────────────────────────────────────────────────
// Writes here are the domain events that drive XP, streaks and
// achievements.

// TrackerAPI serves habit, deadline and subscription writes.
type TrackerAPI struct {
	t *tracker.Tracker
}

// NewTrackerAPI creates the tracker handlers.
func NewTrackerAPI(t *tracker.Tracker) *TrackerAPI {
	return &TrackerAPI{t: t}
}

// HandleListHabits lists the user's active habits.
func (a *TrackerAPI) HandleListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := a.t.Habits.List(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"habits": habits})
}

// HandleCreateHabit creates a habit.
func (a *TrackerAPI) HandleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var req tracker.CreateHabitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h, err := a.t.Habits.Create(r.Context(), userID(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

type logHabitRequest struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// HandleLogHabit records a habit value for a day. An empty date means
// today.
func (a *TrackerAPI) HandleLogHabit(w http.ResponseWriter, r *http.Request) {
	var req logHabitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.t.Habits.Log(r.Context(), userID(r), chi.URLParam(r, "id"), req.Date, req.Value)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCreateDeadline creates a deadline.
func (a *TrackerAPI) HandleCreateDeadline(w http.ResponseWriter, r *http.Request) {
	var req tracker.CreateDeadlineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := a.t.Deadlines.Create(r.Context(), userID(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HandleCompleteDeadline marks a deadline completed.
func (a *TrackerAPI) HandleCompleteDeadline(w http.ResponseWriter, r *http.Request) {
	d, err := a.t.Deadlines.Complete(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleCancelDeadline cancels a deadline.
func (a *TrackerAPI) HandleCancelDeadline(w http.ResponseWriter, r *http.Request) {
	if err := a.t.Deadlines.Cancel(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// HandleDeadlineStats returns deadline counters.
func (a *TrackerAPI) HandleDeadlineStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.t.Deadlines.Stats(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleCreateSubscription tracks a new subscription.
func (a *TrackerAPI) HandleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req tracker.CreateSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := a.t.Subscriptions.Create(r.Context(), userID(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Lookup errors
	ErrUserNotFound         = errors.New("user not found")
	ErrHabitNotFound        = errors.New("habit not found")
	ErrDeadlineNotFound     = errors.New("deadline not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// Achievement errors
	ErrUnknownAchievement = errors.New("unknown achievement key")
	ErrInvalidCatalog     = errors.New("invalid achievement catalog")

	// Input errors
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("record already exists")
	ErrNegativeXP   = errors.New("xp award must be positive")
)

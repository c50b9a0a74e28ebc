// Package progress persists per-user video watch progress and challenge attempts.
package progress

import (
	"context"
	"errors"
	"math"
	"time"
)

// CompletionRatio is the watched share at which a video counts as completed.
const CompletionRatio = 0.8

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// WatchProgress tracks how much of a video a user has watched.
type WatchProgress struct {
	UserID          string    `json:"user_id"`
	ContentID       string    `json:"content_id"`
	WatchedDuration float64   `json:"watched_duration"`
	TotalDuration   float64   `json:"total_duration"`
	IsCompleted     bool      `json:"is_completed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProgressPercent returns the watched share as a percentage rounded to two decimals.
func (w WatchProgress) ProgressPercent() float64 {
	if w.TotalDuration <= 0 {
		return 0
	}
	return math.Round(w.WatchedDuration/w.TotalDuration*100*100) / 100
}

// IsCompleted reports whether watched seconds reach the completion ratio of total.
func IsCompleted(watched, total float64) bool {
	return total > 0 && watched/total >= CompletionRatio
}

// Attempt is one graded challenge submission. AttemptNumber starts at 1 for
// each (user, content) pair and IsSuccessful never changes after creation.
type Attempt struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ContentID     string    `json:"content_id"`
	AttemptNumber int       `json:"attempt_number"`
	IsSuccessful  bool      `json:"is_successful"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// AttemptSummary condenses a user's attempts on one challenge.
type AttemptSummary struct {
	Count     int
	Succeeded bool
}

// Activity is every record touching a set of contents, across users.
type Activity struct {
	Watches  []WatchProgress
	Attempts []Attempt
}

// Tx holds the record operations available to a submission.
type Tx interface {
	GetWatchProgress(ctx context.Context, userID, contentID string) (WatchProgress, error)
	// SaveWatchProgress inserts or replaces the row for (UserID, ContentID) and stamps UpdatedAt.
	SaveWatchProgress(ctx context.Context, p WatchProgress) (WatchProgress, error)
	// ResetWatchProgress zeroes watched duration and completion; false when no row exists.
	ResetWatchProgress(ctx context.Context, userID, contentID string) (bool, error)
	CountAttempts(ctx context.Context, userID, contentID string) (int, error)
	HasSuccessfulAttempt(ctx context.Context, userID, contentID string) (bool, error)
	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	// DeleteAttempts removes every attempt of the pair and returns how many were removed.
	DeleteAttempts(ctx context.Context, userID, contentID string) (int, error)
}

// Store persists progress records.
type Store interface {
	Tx

	// WithinTx runs fn atomically. Calls for the same (userID, contentID) are serialised.
	WithinTx(ctx context.Context, userID, contentID string, fn func(Tx) error) error

	// WatchProgressFor returns the user's progress rows keyed by content ID.
	WatchProgressFor(ctx context.Context, userID string, contentIDs []string) (map[string]WatchProgress, error)
	// AttemptSummariesFor returns attempt summaries keyed by content ID; absent keys have no attempts.
	AttemptSummariesFor(ctx context.Context, userID string, contentIDs []string) (map[string]AttemptSummary, error)
	// ActivityFor returns all users' rows for the given contents.
	ActivityFor(ctx context.Context, contentIDs []string) (Activity, error)
}

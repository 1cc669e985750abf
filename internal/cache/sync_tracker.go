package cache

import (
	"time"

	"mailtriage/internal/models"
)

// LastResultTTL is how long the outcome of a sync stays available
const LastResultTTL = 24 * time.Hour

// SyncTracker guards against overlapping syncs of one user and remembers the
// last result. The guard expires after lockTTL so a crashed run cannot block
// the user forever.
type SyncTracker struct {
	running *Cache[time.Time]
	last    *Cache[models.SyncResult]
	lockTTL time.Duration
}

// NewSyncTracker creates a tracker whose in-progress guard lasts at most lockTTL
func NewSyncTracker(lockTTL time.Duration) *SyncTracker {
	return &SyncTracker{
		running: New[time.Time](),
		last:    New[models.SyncResult](),
		lockTTL: lockTTL,
	}
}

// Begin marks a sync of userID as running. It returns false when one already is.
func (t *SyncTracker) Begin(userID string) bool {
	return t.running.SetIfAbsent(userID, t.running.now(), t.lockTTL)
}

// Running reports whether a sync of userID is in progress and since when
func (t *SyncTracker) Running(userID string) (time.Time, bool) {
	return t.running.Get(userID)
}

// Finish records result and releases the guard
func (t *SyncTracker) Finish(userID string, result models.SyncResult) {
	t.last.Set(userID, result, LastResultTTL)
	t.running.Delete(userID)
}

// Abort releases the guard without recording a result
func (t *SyncTracker) Abort(userID string) {
	t.running.Delete(userID)
}

// Last returns the most recent result recorded for userID
func (t *SyncTracker) Last(userID string) (models.SyncResult, bool) {
	return t.last.Get(userID)
}

package throttle

import (
	"fmt"
	"sync"
	"time"
)

// Actions with per-user cooldown windows.
const (
	ActionConfirm = "confirm"
	ActionStatus  = "status"
	ActionCancel  = "cancel"
	ActionCopy    = "copy"
)

// Registry implements per-user per-action in-memory cooldowns, per-order
// confirmation counting and the process-local set of already-seen
// transaction ids. Safe for concurrent use from handlers and the watcher.
type Registry struct {
	mu            sync.Mutex
	lastAction    map[int64]map[string]time.Time
	limits        map[string]time.Duration
	confirmations map[string][]time.Time // key: "<userID>:<orderID>"
	seenTx        map[string]struct{}
	now           func() time.Time // swapped in tests
}

// ConfirmationRetention is how long a recorded confirmation counts as a
// duplicate and towards the per-order cap.
const ConfirmationRetention = time.Hour

// MaxConfirmationsPerHour caps admin notifications per (user, order).
const MaxConfirmationsPerHour = 5

func NewRegistry() *Registry {
	return &Registry{
		lastAction: make(map[int64]map[string]time.Time),
		limits: map[string]time.Duration{
			ActionConfirm: 15 * time.Second,
			ActionStatus:  5 * time.Second,
			ActionCancel:  10 * time.Second,
			ActionCopy:    3 * time.Second,
		},
		confirmations: make(map[string][]time.Time),
		seenTx:        make(map[string]struct{}),
		now:           time.Now,
	}
}

// CanPerform reports whether the action is outside its cooldown window and,
// when it is not, how long until it becomes available. A positive answer
// starts the next window.
func (r *Registry) CanPerform(userID int64, action string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	limit, ok := r.limits[action]
	if !ok {
		limit = 2 * time.Second
	}
	if r.lastAction[userID] == nil {
		r.lastAction[userID] = make(map[string]time.Time)
	}
	last := r.lastAction[userID][action]
	if elapsed := now.Sub(last); elapsed < limit {
		return false, limit - elapsed
	}
	r.lastAction[userID][action] = now
	return true, 0
}

func confirmKey(userID int64, orderID uint) string {
	return fmt.Sprintf("%d:%d", userID, orderID)
}

// RecordConfirmation must be called only after the admin notification for
// the claim was dispatched, so a transient send failure does not consume
// the customer's allowance.
func (r *Registry) RecordConfirmation(userID int64, orderID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := confirmKey(userID, orderID)
	r.confirmations[key] = append(r.pruneLocked(key), r.now())
}

// IsDuplicateConfirmation reports whether any confirmation for the pair was
// recorded within the retention window.
func (r *Registry) IsDuplicateConfirmation(userID int64, orderID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := confirmKey(userID, orderID)
	r.confirmations[key] = r.pruneLocked(key)
	return len(r.confirmations[key]) > 0
}

// ConfirmationCount returns how many confirmations for the pair fall inside
// the window.
func (r *Registry) ConfirmationCount(userID int64, orderID uint, window time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-window)
	var n int
	for _, ts := range r.confirmations[confirmKey(userID, orderID)] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops entries older than the retention window. Caller holds
// the mutex.
func (r *Registry) pruneLocked(key string) []time.Time {
	cutoff := r.now().Add(-ConfirmationRetention)
	kept := r.confirmations[key][:0]
	for _, ts := range r.confirmations[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(r.confirmations, key)
		return nil
	}
	return kept
}

// SeenTx is the watcher's first line of dedup before the database check.
func (r *Registry) SeenTx(txid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seenTx[txid]
	return ok
}

func (r *Registry) MarkSeen(txid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seenTx[txid] = struct{}{}
}

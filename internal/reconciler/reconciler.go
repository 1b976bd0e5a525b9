package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Shop-Telegram-bot/internal/chat"
	"Shop-Telegram-bot/internal/db"
	"Shop-Telegram-bot/internal/logger"
)

// ErrAlreadyRunning is returned when a run is requested while another is in
// flight. Requests are not queued.
var ErrAlreadyRunning = errors.New("reconciliation already running")

// Reconciler keeps the user table consistent with the chat platform:
// confirmed-gone accounts are archived to the ledger and evicted, changed
// usernames are refreshed, transient failures keep the user for the next
// run.
type Reconciler struct {
	Chat                 chat.Client
	BatchSize            int
	BatchPause           time.Duration
	ProgressEditInterval int

	running int32
}

func New(client chat.Client, batchSize int, batchPause time.Duration, progressEditInterval int) *Reconciler {
	if batchSize <= 0 {
		batchSize = 25
	}
	if progressEditInterval <= 0 {
		progressEditInterval = 2
	}
	return &Reconciler{
		Chat:                 client,
		BatchSize:            batchSize,
		BatchPause:           batchPause,
		ProgressEditInterval: progressEditInterval,
	}
}

type outcome struct {
	user    db.User
	profile *chat.Profile
	err     error
}

// Run scans the whole user table in concurrent batches. progressChatID, if
// non-zero, receives a live progress message that the final summary
// replaces. Only one run per process; re-entry returns ErrAlreadyRunning.
func (r *Reconciler) Run(ctx context.Context, progressChatID int64) (*Report, error) {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		return nil, ErrAlreadyRunning
	}
	defer atomic.StoreInt32(&r.running, 0)

	started := time.Now()
	report := &Report{RunID: uuid.NewString()}
	logger.Info("reconciliation started", zap.String("run_id", report.RunID))

	users, err := db.AllUsersOrdered()
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	report.Total = len(users)

	progressMsgID := 0
	if progressChatID != 0 {
		progressMsgID, err = r.Chat.SendText(progressChatID, "Reconciling user directory…\n"+renderProgressBar(0, report.Total))
		if err != nil {
			logger.Warn("progress message send failed", zap.Error(err))
			progressMsgID = 0
		}
	}

	done := 0
	for batchNo := 0; len(users) > 0; batchNo++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n := r.BatchSize
		if n > len(users) {
			n = len(users)
		}
		batch := users[:n]
		users = users[n:]

		outcomes := make([]outcome, len(batch))
		var wg sync.WaitGroup
		for i, u := range batch {
			wg.Add(1)
			go func(i int, u db.User) {
				defer wg.Done()
				profile, err := r.Chat.GetChat(u.TelegramID)
				outcomes[i] = outcome{user: u, profile: profile, err: err}
			}(i, u)
		}
		wg.Wait()

		for _, o := range outcomes {
			r.apply(report, o)
		}
		done += len(batch)

		if progressMsgID != 0 && (batchNo+1)%r.ProgressEditInterval == 0 {
			text := "Reconciling user directory…\n" + renderProgressBar(done, report.Total)
			if err := r.Chat.EditText(progressChatID, progressMsgID, text); err != nil {
				logger.Warn("progress edit failed", zap.Error(err))
			}
		}

		if len(users) > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.BatchPause):
			}
		}
	}

	report.Elapsed = time.Since(started)
	logger.Info("reconciliation finished",
		zap.String("run_id", report.RunID),
		zap.Int("total", report.Total),
		zap.Int("deleted", report.Deleted),
		zap.Int("unreachable", report.Unreachable),
		zap.Int("blocked", report.Blocked),
		zap.Int("errors", report.Errors),
		zap.Duration("elapsed", report.Elapsed))

	if progressChatID != 0 {
		summary := report.Render()
		if progressMsgID == 0 || r.Chat.EditText(progressChatID, progressMsgID, summary) != nil {
			if _, err := r.Chat.SendText(progressChatID, summary); err != nil {
				logger.Warn("summary send failed", zap.Error(err))
			}
		}
	}
	return report, nil
}

// apply maps one getChat outcome to its action. Transient errors never
// cause archival.
func (r *Reconciler) apply(report *Report, o outcome) {
	u := o.user
	label := userLabel(&u)

	if o.err == nil {
		if o.profile.IsDeleted() {
			r.evict(report, &u, db.RemovalDeleted, "profile is the Deleted Account placeholder", "")
			return
		}
		r.refreshUsername(report, &u, o.profile)
		return
	}

	switch chat.Classify(o.err) {
	case chat.CategoryDeleted:
		r.evict(report, &u, db.RemovalDeleted, "account deactivated", o.err.Error())
	case chat.CategoryUnreachable:
		r.evict(report, &u, db.RemovalUnreachable, "chat not found", o.err.Error())
	case chat.CategoryBlocked:
		r.evict(report, &u, db.RemovalBlocked, "bot blocked by user", o.err.Error())
	default:
		report.Errors++
		report.Kept++
		report.addSample("error", label)
	}
}

// evict archives the snapshot first, then deletes the row. A crash between
// the two leaves the archive entry; the next run's upsert is a no-op.
func (r *Reconciler) evict(report *Report, u *db.User, category, reason, apiErr string) {
	if err := db.ArchiveRemovedUser(u, category, reason, apiErr); err != nil {
		logger.Error("ledger archive failed", zap.Int64("telegram_id", u.TelegramID), zap.Error(err))
		report.Errors++
		report.Kept++
		return
	}
	if err := db.DeleteUserByTelegramID(u.TelegramID); err != nil {
		logger.Error("user delete failed", zap.Int64("telegram_id", u.TelegramID), zap.Error(err))
		report.Errors++
		report.Kept++
		return
	}
	switch category {
	case db.RemovalDeleted:
		report.Deleted++
	case db.RemovalUnreachable:
		report.Unreachable++
	case db.RemovalBlocked:
		report.Blocked++
	}
	report.addSample(category, userLabel(u))
}

func (r *Reconciler) refreshUsername(report *Report, u *db.User, profile *chat.Profile) {
	report.Kept++
	current := ""
	if u.Username != nil {
		current = *u.Username
	}
	if profile.Username == current {
		return
	}
	var updated *string
	if profile.Username != "" {
		v := profile.Username
		updated = &v
	}
	if err := db.UpdateUsername(u.TelegramID, updated); err != nil {
		logger.Error("username update failed", zap.Int64("telegram_id", u.TelegramID), zap.Error(err))
		report.Errors++
		return
	}
	if updated == nil {
		report.NoUsername++
		report.addSample("renamed", fmt.Sprintf("%d (username removed)", u.TelegramID))
		return
	}
	report.Renamed++
	report.addSample("renamed", fmt.Sprintf("%d now @%s", u.TelegramID, *updated))
}

func userLabel(u *db.User) string {
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	return fmt.Sprintf("%d", u.TelegramID)
}

package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Shop-Telegram-bot/internal/chat"
	"Shop-Telegram-bot/internal/db"
	"Shop-Telegram-bot/internal/engine"
	"Shop-Telegram-bot/internal/logger"
	"Shop-Telegram-bot/internal/reconciler"
)

// Handler serves the operator commands: /merger, /ledger and /poke.
type Handler struct {
	Chat       chat.Client
	Engine     *engine.Engine
	Reconciler *reconciler.Reconciler
	AdminGroup int64
}

// HandleCommand dispatches an admin command. Returns false when the command
// is not an operator command.
func (h *Handler) HandleCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	if !IsAdmin(msg.From.ID) {
		return false
	}
	switch msg.Command() {
	case "merger":
		h.handleMerger(ctx, msg.Chat.ID)
	case "ledger":
		h.handleLedger(msg.Chat.ID)
	case "poke":
		h.handlePoke(msg.From.ID, msg.Chat.ID, msg.CommandArguments())
	default:
		return false
	}
	logger.LogAdminAction(msg.From.ID, msg.Command(), msg.Text)
	return true
}

// handleMerger runs reconciliation now with a live progress message in the
// invoking chat and cross-posts the report to the admin group.
func (h *Handler) handleMerger(ctx context.Context, chatID int64) {
	go func() {
		defer logger.NotifyOnPanic("merger")
		report, err := h.Reconciler.Run(ctx, chatID)
		if errors.Is(err, reconciler.ErrAlreadyRunning) {
			h.Chat.SendText(chatID, "A reconciliation is already running.")
			return
		}
		if err != nil {
			logger.Error("reconciliation failed", zap.Error(err))
			h.Chat.SendText(chatID, "Reconciliation failed: "+err.Error())
			return
		}
		if h.AdminGroup != 0 && h.AdminGroup != chatID {
			if _, err := h.Chat.SendText(h.AdminGroup, report.Render()); err != nil {
				logger.Warn("report cross-post failed", zap.Error(err))
			}
		}
	}()
}

func (h *Handler) handleLedger(chatID int64) {
	totals, err := db.LedgerTotals()
	if err != nil {
		h.Chat.SendText(chatID, "Could not read the ledger: "+err.Error())
		return
	}
	var sb strings.Builder
	sb.WriteString("Removed-users ledger\n\n")
	var total int64
	for _, category := range []string{db.RemovalDeleted, db.RemovalUnreachable, db.RemovalBlocked} {
		fmt.Fprintf(&sb, "%s: %d\n", category, totals[category])
		total += totals[category]
	}
	fmt.Fprintf(&sb, "total: %d\n", total)

	recents, err := db.RecentRemovals(10)
	if err == nil && len(recents) > 0 {
		sb.WriteString("\nMost recent evictions:\n")
		for _, r := range recents {
			name := fmt.Sprintf("%d", r.TelegramID)
			if r.Username != nil && *r.Username != "" {
				name = "@" + *r.Username
			}
			fmt.Fprintf(&sb, "%s (%s) at %s\n", name, r.RemovalCategory,
				time.Unix(r.RemovedAt, 0).UTC().Format("2006-01-02 15:04"))
		}
	}
	h.Chat.SendText(chatID, sb.String())
}

// handlePoke starts the poke wizard. With recipients supplied it jumps to
// the message step; without, it prompts for them first.
func (h *Handler) handlePoke(adminID, chatID int64, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		h.Engine.Sessions.Set(adminID, &engine.Session{Kind: engine.SessionPoke, Step: engine.PokeStepRecipients})
		h.Chat.SendText(chatID, "Who should receive the poke? Send @usernames separated by commas. /cancel to abort.")
		return
	}
	recipients := parseRecipients(args)
	if len(recipients) == 0 {
		h.Chat.SendText(chatID, "No valid recipients. Usage: /poke @user[,@user...]")
		return
	}
	h.Engine.Sessions.Set(adminID, &engine.Session{
		Kind:       engine.SessionPoke,
		Step:       engine.PokeStepMessage,
		Recipients: recipients,
	})
	h.Chat.SendText(chatID, fmt.Sprintf("Got %d recipient(s). Now send the message to deliver. /cancel to abort.", len(recipients)))
}

// HandleSessionMessage advances an in-flight poke wizard with the admin's
// next message. Returns false when no poke session is active.
func (h *Handler) HandleSessionMessage(adminID, chatID int64, text string) bool {
	sess := h.Engine.Sessions.Get(adminID)
	if sess == nil || sess.Kind != engine.SessionPoke {
		return false
	}
	switch sess.Step {
	case engine.PokeStepRecipients:
		recipients := parseRecipients(text)
		if len(recipients) == 0 {
			h.Chat.SendText(chatID, "No valid recipients in that message. Send @usernames separated by commas, or /cancel.")
			h.Engine.Sessions.Touch(adminID)
			return true
		}
		sess.Step = engine.PokeStepMessage
		sess.Recipients = recipients
		h.Engine.Sessions.Set(adminID, sess)
		h.Chat.SendText(chatID, fmt.Sprintf("Got %d recipient(s). Now send the message to deliver. /cancel to abort.", len(recipients)))
		return true

	case engine.PokeStepMessage:
		recipients := sess.Recipients
		h.Engine.Sessions.Clear(adminID)
		var sb strings.Builder
		sb.WriteString("Poke results:\n")
		for _, username := range recipients {
			user, err := db.GetUserByUsername(username)
			if err != nil {
				fmt.Fprintf(&sb, "@%s: not found\n", username)
				continue
			}
			if _, err := h.Chat.SendText(user.TelegramID, text); err != nil {
				fmt.Fprintf(&sb, "@%s: failed (%v)\n", username, err)
				continue
			}
			fmt.Fprintf(&sb, "@%s: delivered\n", username)
		}
		h.Chat.SendText(chatID, sb.String())
		return true
	}
	return false
}

// parseRecipients splits a comma-separated recipient list, stripping the @
// prefix. Matching downstream is case-insensitive.
func parseRecipients(s string) []string {
	var recipients []string
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimPrefix(strings.TrimSpace(part), "@")
		if name != "" {
			recipients = append(recipients, name)
		}
	}
	return recipients
}

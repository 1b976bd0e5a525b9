package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Shop-Telegram-bot/internal/admin"
	"Shop-Telegram-bot/internal/chat"
	"Shop-Telegram-bot/internal/db"
	"Shop-Telegram-bot/internal/engine"
	"Shop-Telegram-bot/internal/logger"
	"Shop-Telegram-bot/internal/throttle"
)

// Router fans inbound chat events out to the lifecycle engine and the
// operator commands.
type Router struct {
	Chat     chat.Client
	Engine   *engine.Engine
	Registry *throttle.Registry
	Admin    *admin.Handler
}

func (r *Router) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer logger.NotifyOnPanic("HandleUpdate")

	if update.CallbackQuery != nil {
		r.handleCallback(update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message
	from := msg.From

	var username *string
	if from.UserName != "" {
		v := from.UserName
		username = &v
	}
	if _, err := db.TouchUser(from.ID, username, from.FirstName, from.LastName, from.LanguageCode); err != nil {
		logger.Error("user upsert failed", zap.Int64("telegram_id", from.ID), zap.Error(err))
	}

	// Replies in admin chats may target a tracked upload prompt or
	// delivery confirmation.
	if msg.ReplyToMessage != nil && admin.IsAdmin(from.ID) {
		if r.Engine.HandleAdminReply(msg.Chat.ID, msg.ReplyToMessage.MessageID, msg) {
			return
		}
	}

	if msg.IsCommand() {
		r.handleCommand(ctx, msg)
		return
	}

	if r.Engine.HandleBuyerMessage(from.ID, msg) {
		return
	}
	if admin.IsAdmin(from.ID) && r.Admin.HandleSessionMessage(from.ID, msg.Chat.ID, msg.Text) {
		return
	}
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		welcome := "Welcome! Use /products to browse the catalog."
		if _, err := r.Chat.SendTextKeyboard(chatID, welcome, GetReplyKeyboard(userID)); err != nil {
			logger.Error("welcome send failed", zap.Error(err))
		}
	case "products":
		r.sendCatalog(chatID)
	case "orders":
		r.sendOrders(userID, chatID)
	case "cancel":
		if !r.Engine.CancelSession(userID) {
			r.Chat.SendText(chatID, "Nothing to cancel.")
		}
	case "help":
		r.Chat.SendText(chatID, "Commands:\n/products - browse the catalog\n/orders - your recent orders\n/cancel - abort the current action\n/help - this message")
	default:
		if r.Admin.HandleCommand(ctx, msg) {
			return
		}
		if msg.Chat.IsPrivate() {
			r.Chat.SendText(chatID, "Unknown command. Use /help for the list of commands.")
		}
	}
}

func (r *Router) sendCatalog(chatID int64) {
	products, err := db.ListProducts()
	if err != nil || len(products) == 0 {
		r.Chat.SendText(chatID, "The catalog is empty right now. Check back later.")
		return
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range products {
		label := fmt.Sprintf("%s - $%.2f", p.Name, p.Price)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("buy_%d", p.ID)),
		))
	}
	if _, err := r.Chat.SendTextMarkup(chatID, "Catalog:", tgbotapi.NewInlineKeyboardMarkup(rows...)); err != nil {
		logger.Error("catalog send failed", zap.Error(err))
	}
}

func (r *Router) sendOrders(userID, chatID int64) {
	orders, err := db.GetUserOrders(userID, 10)
	if err != nil || len(orders) == 0 {
		r.Chat.SendText(chatID, "You have no orders yet. Use /products to browse the catalog.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Your recent orders:\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, o := range orders {
		fmt.Fprintf(&sb, "#%d: $%.2f in %s, %s\n", o.ID, o.Price, strings.ToUpper(o.Currency), o.Status)
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Status #%d", o.ID), fmt.Sprintf("status_%d", o.ID)),
		}
		if o.Status == db.OrderPending {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Cancel #%d", o.ID), fmt.Sprintf("cancel_order_%d", o.ID)))
		}
		rows = append(rows, row)
	}
	if _, err := r.Chat.SendTextMarkup(chatID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)); err != nil {
		logger.Error("orders send failed", zap.Error(err))
	}
}

// handleCallback parses the short opaque callback data. Callbacks from
// older message versions that no longer parse are answered with a
// diagnostic instead of being executed on partial data.
func (r *Router) handleCallback(cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	userID := cb.From.ID
	ack := func(text string, alert bool) {
		if err := r.Chat.AnswerCallback(cb.ID, text, alert); err != nil {
			logger.Warn("callback answer failed", zap.Error(err))
		}
	}

	switch {
	case strings.HasPrefix(data, "buy_"):
		productID, err := parseUint(strings.TrimPrefix(data, "buy_"))
		if err != nil {
			ack("This button is no longer valid.", false)
			return
		}
		ack("", false)
		r.Engine.BuyRequested(userID, productID)

	case strings.HasPrefix(data, "pay_"):
		parts := strings.Split(data, "_")
		if len(parts) != 3 {
			ack("This button is no longer valid.", false)
			return
		}
		productID, err := parseUint(parts[2])
		if err != nil {
			ack("This button is no longer valid.", false)
			return
		}
		ack("Creating your order", false)
		r.Engine.PaymentMethodChosen(userID, productID, parts[1])

	case strings.HasPrefix(data, "admin_"):
		parts := strings.Split(data, "_")
		if len(parts) < 4 {
			ack("Malformed admin callback.", true)
			if cb.Message != nil {
				r.Chat.SendText(cb.Message.Chat.ID, "Malformed admin callback, refusing to act on partial data: "+data)
			}
			return
		}
		if !admin.IsAdmin(userID) {
			ack("Not authorized.", true)
			return
		}
		orderID, err1 := parseUint(parts[2])
		buyerID, err2 := strconv.ParseInt(parts[3], 10, 64)
		if err1 != nil || err2 != nil || cb.Message == nil {
			ack("Malformed admin callback.", true)
			return
		}
		ack("", false)
		r.Engine.AdminDecision(userID, cb.Message.Chat.ID, cb.Message.MessageID, orderID, buyerID, parts[1])

	case strings.HasPrefix(data, "cancel_order_"):
		orderID, err := parseUint(strings.TrimPrefix(data, "cancel_order_"))
		if err != nil {
			ack("This button is no longer valid.", false)
			return
		}
		ack("", false)
		r.Engine.CustomerCancelRequested(userID, orderID)

	case strings.HasPrefix(data, "confirm_"):
		orderID, err := parseUint(strings.TrimPrefix(data, "confirm_"))
		if err != nil {
			ack("This button is no longer valid.", false)
			return
		}
		ack("", false)
		r.Engine.PaymentClaimed(userID, orderID)

	case strings.HasPrefix(data, "status_"):
		orderID, err := parseUint(strings.TrimPrefix(data, "status_"))
		if err != nil {
			ack("This button is no longer valid.", false)
			return
		}
		ack("", false)
		r.Engine.StatusRequested(userID, orderID)

	case strings.HasPrefix(data, "copy_"):
		address := strings.TrimPrefix(data, "copy_")
		if ok, retry := r.Registry.CanPerform(userID, throttle.ActionCopy); !ok {
			ack(fmt.Sprintf("Please wait %d seconds.", int(retry.Seconds())+1), false)
			return
		}
		ack(address, true)

	case strings.HasPrefix(data, "reply_"):
		orderID, err := parseUint(strings.TrimPrefix(data, "reply_"))
		if err != nil {
			ack("This button is no longer valid.", false)
			return
		}
		// Users without a username cannot open interactive sessions.
		user, err := db.GetUserByTelegramID(userID)
		if err != nil || user.Username == nil || *user.Username == "" {
			ack("Set a Telegram username to use this feature.", true)
			return
		}
		ack("", false)
		r.Engine.ActivateReplyMode(userID, orderID)

	default:
		ack("Unknown action.", false)
	}
}

func parseUint(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

package engine

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Shop-Telegram-bot/internal/chat"
	"Shop-Telegram-bot/internal/db"
	"Shop-Telegram-bot/internal/logger"
	"Shop-Telegram-bot/internal/throttle"
)

// Admin decisions on a payment claim.
const (
	DecisionConfirm = "confirm"
	DecisionCancel  = "cancel"
)

// Engine drives an order from creation through delivery or cancellation and
// routes every human event that can advance it. It owns no goroutines; each
// method is one handler invocation.
type Engine struct {
	Chat     chat.Client
	Registry *throttle.Registry
	Tracker  *DeliveryTracker
	Sessions *SessionStore

	AdminGroup   int64 // 0 disables admin notifications
	VouchChannel int64 // 0 disables vouch posts
	SupportURL   string
	FallbackBTC  string
	FallbackLTC  string
}

func New(client chat.Client, registry *throttle.Registry) *Engine {
	return &Engine{
		Chat:     client,
		Registry: registry,
		Tracker:  NewDeliveryTracker(),
		Sessions: NewSessionStore(),
	}
}

// BuyRequested answers a buy button with the order summary and the two
// payment choices.
func (e *Engine) BuyRequested(userID int64, productID uint) {
	product, err := db.GetProduct(productID)
	if err != nil {
		e.Chat.SendText(userID, "Product not found. It may have been removed from the catalog.")
		return
	}
	text := fmt.Sprintf("%s\n%s\n\nPrice: $%.2f\n\nChoose a payment method:",
		product.Name, product.Description, product.Price)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Pay with BTC", fmt.Sprintf("pay_btc_%d", product.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Pay with LTC", fmt.Sprintf("pay_ltc_%d", product.ID)),
		),
	)
	if _, err := e.Chat.SendTextMarkup(userID, text, markup); err != nil {
		logger.Error("order summary send failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// PaymentMethodChosen creates a pending order with frozen price and
// currency, then sends payment instructions to the customer and a new-order
// notification to the admin group.
func (e *Engine) PaymentMethodChosen(userID int64, productID uint, currency string) {
	if currency != db.CurrencyBTC && currency != db.CurrencyLTC {
		e.Chat.SendText(userID, "Unsupported payment method.")
		return
	}
	product, err := db.GetProduct(productID)
	if err != nil {
		e.Chat.SendText(userID, "Product not found. It may have been removed from the catalog.")
		return
	}
	address, err := e.resolveAddress(currency)
	if err != nil {
		logger.Error("no deposit address", zap.String("currency", currency), zap.Error(err))
		e.Chat.SendText(userID, "Payments in this currency are temporarily unavailable. Please try another method.")
		return
	}
	order, err := db.CreateOrder(userID, product.ID, product.Price, currency)
	if err != nil {
		logger.Error("order create failed", zap.Int64("user_id", userID), zap.Error(err))
		e.Chat.SendText(userID, "Could not create your order right now. Please try again in a moment.")
		return
	}

	text := fmt.Sprintf(
		"Order #%d created.\n\nProduct: %s\nAmount: $%.2f in %s\n\nSend the payment to this address:\n%s\n\nTap \"I have paid\" once the payment is sent.",
		order.ID, product.Name, order.Price, currencyLabel(currency), address)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("I have paid", fmt.Sprintf("confirm_%d", order.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Copy address", "copy_"+address),
			tgbotapi.NewInlineKeyboardButtonData("Cancel order", fmt.Sprintf("cancel_order_%d", order.ID)),
		),
	)
	if _, err := e.Chat.SendTextMarkup(userID, text, markup); err != nil {
		logger.Error("payment instructions send failed", zap.Uint("order_id", order.ID), zap.Error(err))
	}

	e.notifyAdminGroup(fmt.Sprintf("New order #%d\nBuyer: %d\nProduct: %s\nAmount: $%.2f in %s",
		order.ID, userID, product.Name, order.Price, currencyLabel(currency)))
}

// PaymentClaimed handles the customer's assertion of payment. The check
// ladder: cooldown, duplicate, hourly cap, per-order spacing, ownership,
// status. The confirmation is recorded only after the admin notification
// was dispatched.
func (e *Engine) PaymentClaimed(userID int64, orderID uint) {
	if ok, retry := e.Registry.CanPerform(userID, throttle.ActionConfirm); !ok {
		e.Chat.SendText(userID, fmt.Sprintf("Please wait %d seconds before confirming again.", retrySeconds(retry)))
		return
	}
	if e.Registry.IsDuplicateConfirmation(userID, orderID) {
		e.Chat.SendText(userID, fmt.Sprintf("Order #%d is still being verified. An admin will get to it shortly, no need to confirm again.", orderID))
		return
	}
	if e.Registry.ConfirmationCount(userID, orderID, time.Hour) >= throttle.MaxConfirmationsPerHour {
		e.Chat.SendText(userID, fmt.Sprintf("Too many confirmations for order #%d in the last hour. Please wait for an admin to review it.", orderID))
		return
	}
	order, err := db.GetOrder(orderID)
	if err != nil || order.UserID != userID {
		e.Chat.SendText(userID, "Order not found.")
		return
	}
	if order.Status != db.OrderPending {
		e.Chat.SendText(userID, statusReason(order))
		return
	}

	if e.AdminGroup != 0 {
		product, _ := db.GetProduct(order.ProductID)
		name := "unknown product"
		if product != nil {
			name = product.Name
		}
		text := fmt.Sprintf("Payment claimed for order #%d\nBuyer: %d\nProduct: %s\nAmount: $%.2f in %s",
			orderID, userID, name, order.Price, currencyLabel(order.Currency))
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Confirm", fmt.Sprintf("admin_confirm_%d_%d", orderID, userID)),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", fmt.Sprintf("admin_cancel_%d_%d", orderID, userID)),
			),
		)
		if _, err := e.Chat.SendTextMarkup(e.AdminGroup, text, markup); err != nil {
			logger.Error("payment claim notification failed", zap.Uint("order_id", orderID), zap.Error(err))
			e.Chat.SendText(userID, "Could not register your confirmation right now. Please try again in a moment.")
			return
		}
	}

	e.Chat.SendText(userID, fmt.Sprintf("Thanks! Your payment for order #%d is being verified. You will receive the product once it is confirmed.", orderID))
	e.Registry.RecordConfirmation(userID, orderID)
}

// AdminDecision applies an admin verdict on a payment claim. The buyer
// notification is dispatched before the state mutation; the edit of the
// original admin message comes last and its failure does not block.
func (e *Engine) AdminDecision(adminID, adminChatID int64, messageID int, orderID uint, buyerID int64, decision string) {
	order, err := db.GetOrder(orderID)
	if err != nil {
		e.Chat.SendText(adminChatID, fmt.Sprintf("Order #%d not found.", orderID))
		return
	}
	if order.Status != db.OrderPending {
		e.Chat.SendText(adminChatID, fmt.Sprintf("Order #%d is already %s.", orderID, order.Status))
		return
	}

	switch decision {
	case DecisionConfirm:
		if _, err := e.Chat.SendText(buyerID, fmt.Sprintf("Your payment for order #%d was confirmed. The product is being prepared for delivery.", orderID)); err != nil {
			logger.Error("buyer confirm notification failed", zap.Uint("order_id", orderID), zap.Error(err))
		}
		ok, err := db.TransitionOrder(orderID, db.OrderPending, db.OrderAwaitingProduct)
		if err != nil {
			logger.Error("order transition failed", zap.Uint("order_id", orderID), zap.Error(err))
			e.Chat.SendText(adminChatID, fmt.Sprintf("Database error while confirming order #%d.", orderID))
			return
		}
		if !ok {
			e.Chat.SendText(adminChatID, fmt.Sprintf("Order #%d was already handled.", orderID))
			return
		}
		if err := e.Chat.EditText(adminChatID, messageID, fmt.Sprintf("Order #%d: payment CONFIRMED by admin %d.", orderID, adminID)); err != nil {
			logger.Warn("admin message edit failed", zap.Uint("order_id", orderID), zap.Error(err))
		}
		promptID, err := e.Chat.SendText(adminChatID, fmt.Sprintf("Reply to this message with the product for order #%d (file, photo, video or text).", orderID))
		if err != nil {
			logger.Error("upload prompt send failed", zap.Uint("order_id", orderID), zap.Error(err))
			return
		}
		e.Tracker.TrackUploadRequest(adminChatID, promptID, UploadRequest{OrderID: orderID, BuyerID: buyerID})

	case DecisionCancel:
		if _, err := e.Chat.SendText(buyerID, fmt.Sprintf("Your order #%d was cancelled: the payment could not be verified. Contact support if you believe this is a mistake.", orderID)); err != nil {
			logger.Error("buyer cancel notification failed", zap.Uint("order_id", orderID), zap.Error(err))
		}
		ok, err := db.TransitionOrder(orderID, db.OrderPending, db.OrderCancelled)
		if err != nil {
			logger.Error("order transition failed", zap.Uint("order_id", orderID), zap.Error(err))
			e.Chat.SendText(adminChatID, fmt.Sprintf("Database error while cancelling order #%d.", orderID))
			return
		}
		if !ok {
			e.Chat.SendText(adminChatID, fmt.Sprintf("Order #%d was already handled.", orderID))
			return
		}
		if err := e.Chat.EditText(adminChatID, messageID, fmt.Sprintf("Order #%d: payment REJECTED by admin %d.", orderID, adminID)); err != nil {
			logger.Warn("admin message edit failed", zap.Uint("order_id", orderID), zap.Error(err))
		}

	default:
		e.Chat.SendText(adminChatID, "Unknown decision: "+decision)
	}
}

// ProductUploaded delivers the payload to the buyer and marks the order
// delivered. Returns true when the order reached the delivered state.
func (e *Engine) ProductUploaded(adminChatID int64, orderID uint, buyerID int64, payload chat.Payload) bool {
	order, err := db.GetOrder(orderID)
	if err != nil {
		e.Chat.SendText(adminChatID, fmt.Sprintf("Order #%d not found.", orderID))
		return false
	}
	if order.Status != db.OrderAwaitingProduct {
		e.Chat.SendText(adminChatID, fmt.Sprintf("Order #%d is not awaiting product (current status: %s).", orderID, order.Status))
		return false
	}
	if payload.Caption == "" {
		payload.Caption = fmt.Sprintf("Your order #%d is ready. Thank you for your purchase!", orderID)
	}
	if _, err := e.Chat.SendMedia(order.UserID, payload); err != nil {
		logger.Error("delivery failed", zap.Uint("order_id", orderID), zap.Error(err))
		e.Chat.SendText(adminChatID, fmt.Sprintf("Delivery for order #%d failed: %v", orderID, err))
		return false
	}
	ok, err := db.TransitionOrder(orderID, db.OrderAwaitingProduct, db.OrderDelivered)
	if err != nil || !ok {
		logger.Error("delivered transition failed", zap.Uint("order_id", orderID), zap.Error(err))
		e.Chat.SendText(adminChatID, fmt.Sprintf("Order #%d was delivered but could not be marked delivered. Check it manually.", orderID))
		return false
	}

	// Social proof post; its failure must never fail the delivery.
	go e.postVouch(order)

	confirmationID, err := e.Chat.SendText(adminChatID, fmt.Sprintf("Order #%d delivered to buyer %d. Reply to this message to DM the buyer.", orderID, order.UserID))
	if err != nil {
		logger.Warn("delivery confirmation send failed", zap.Uint("order_id", orderID), zap.Error(err))
		return true
	}
	e.Tracker.TrackDelivery(adminChatID, confirmationID, Delivery{
		OrderID:     orderID,
		BuyerID:     order.UserID,
		AdminChatID: adminChatID,
	})
	return true
}

// CustomerCancelRequested cancels a pending order on the buyer's request.
func (e *Engine) CustomerCancelRequested(userID int64, orderID uint) {
	if ok, retry := e.Registry.CanPerform(userID, throttle.ActionCancel); !ok {
		e.Chat.SendText(userID, fmt.Sprintf("Please wait %d seconds before trying again.", retrySeconds(retry)))
		return
	}
	order, err := db.GetOrder(orderID)
	if err != nil || order.UserID != userID {
		e.Chat.SendText(userID, "Order not found.")
		return
	}
	if order.Status != db.OrderPending {
		e.Chat.SendText(userID, statusReason(order))
		return
	}
	ok, err := db.TransitionOrder(orderID, db.OrderPending, db.OrderCancelled)
	if err != nil {
		logger.Error("cancel transition failed", zap.Uint("order_id", orderID), zap.Error(err))
		e.Chat.SendText(userID, "Could not cancel the order right now. Please try again in a moment.")
		return
	}
	if !ok {
		e.Chat.SendText(userID, fmt.Sprintf("Order #%d can no longer be cancelled.", orderID))
		return
	}
	e.notifyAdminGroup(fmt.Sprintf("Order #%d cancelled by the buyer (%d).", orderID, userID))
	e.Chat.SendText(userID, fmt.Sprintf("Order #%d has been cancelled.", orderID))
}

// StatusRequested answers a status button with the order's current state.
func (e *Engine) StatusRequested(userID int64, orderID uint) {
	if ok, retry := e.Registry.CanPerform(userID, throttle.ActionStatus); !ok {
		e.Chat.SendText(userID, fmt.Sprintf("Please wait %d seconds before checking again.", retrySeconds(retry)))
		return
	}
	order, err := db.GetOrder(orderID)
	if err != nil || order.UserID != userID {
		e.Chat.SendText(userID, "Order not found.")
		return
	}
	e.Chat.SendText(userID, statusReason(order))
}

// HandleAdminReply routes a reply in an admin chat to a tracked message:
// either a product upload for an order awaiting it, or a DM forward to a
// buyer after delivery. Returns false when the replied message is not
// tracked.
func (e *Engine) HandleAdminReply(adminChatID int64, repliedID int, msg *tgbotapi.Message) bool {
	if req, found := e.Tracker.UploadRequest(adminChatID, repliedID); found {
		payload, ok := NormalizePayload(msg)
		if !ok {
			e.Chat.SendText(adminChatID, "Unsupported payload. Send a file, photo, video or text.")
			return true
		}
		if e.ProductUploaded(adminChatID, req.OrderID, req.BuyerID, payload) {
			e.Tracker.ClearUploadRequest(adminChatID, repliedID)
		}
		return true
	}

	if d, found := e.Tracker.Delivery(adminChatID, repliedID); found {
		payload, ok := NormalizePayload(msg)
		if !ok {
			e.Chat.SendText(adminChatID, "Unsupported payload. Send a file, photo, video or text.")
			return true
		}
		if payload.Caption == "" && payload.Kind != chat.PayloadText {
			payload.Caption = fmt.Sprintf("Message from the shop about order #%d", d.OrderID)
		}
		if payload.Kind == chat.PayloadText {
			payload.Caption = fmt.Sprintf("Message from the shop about order #%d:", d.OrderID)
		}
		if _, err := e.Chat.SendMedia(d.BuyerID, payload); err != nil {
			e.Chat.SendText(adminChatID, fmt.Sprintf("Could not forward the message to buyer %d: %v", d.BuyerID, err))
			return true
		}
		e.sendBuyerControls(d.BuyerID, d.OrderID)
		e.Chat.SendText(adminChatID, fmt.Sprintf("Forwarded to buyer %d (order #%d).", d.BuyerID, d.OrderID))
		return true
	}

	return false
}

// sendBuyerControls attaches the "reply to admin" and support controls to a
// forwarded admin message.
func (e *Engine) sendBuyerControls(buyerID int64, orderID uint) {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Reply to admin", fmt.Sprintf("reply_%d", orderID)),
		),
	}
	if e.SupportURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Support", e.SupportURL),
		))
	}
	if _, err := e.Chat.SendTextMarkup(buyerID, "Use the buttons below to respond.", tgbotapi.NewInlineKeyboardMarkup(rows...)); err != nil {
		logger.Warn("buyer controls send failed", zap.Int64("buyer_id", buyerID), zap.Error(err))
	}
}

// ActivateReplyMode arms a 5-minute reply window for the buyer on the given
// order.
func (e *Engine) ActivateReplyMode(userID int64, orderID uint) {
	e.Sessions.Set(userID, &Session{Kind: SessionReplyMode, OrderID: orderID})
	e.Chat.SendText(userID, fmt.Sprintf("Reply mode is on for order #%d. Your next message will be forwarded to the shop. Send /cancel to abort. Expires in 5 minutes.", orderID))
}

// HandleBuyerMessage consumes the buyer's next message while reply-mode is
// armed, wrapping it for the admin group. Returns false when no reply-mode
// session is active.
func (e *Engine) HandleBuyerMessage(userID int64, msg *tgbotapi.Message) bool {
	sess := e.Sessions.Get(userID)
	if sess == nil || sess.Kind != SessionReplyMode {
		return false
	}
	payload, ok := NormalizePayload(msg)
	if !ok {
		e.Chat.SendText(userID, "Unsupported message type. Send text, a file, a photo or a video.")
		return true
	}
	e.Sessions.Clear(userID)

	header := fmt.Sprintf("Buyer reply for order #%d (from %d)", sess.OrderID, userID)
	if e.AdminGroup == 0 {
		logger.Warn("buyer reply dropped, no admin group configured", zap.Uint("order_id", sess.OrderID))
		e.Chat.SendText(userID, "Your message could not be delivered. Please contact support directly.")
		return true
	}
	var err error
	if payload.Kind == chat.PayloadText {
		_, err = e.Chat.SendText(e.AdminGroup, header+":\n"+payload.Text)
	} else {
		if payload.Caption != "" {
			payload.Caption = header + ": " + payload.Caption
		} else {
			payload.Caption = header
		}
		_, err = e.Chat.SendMedia(e.AdminGroup, payload)
	}
	if err != nil {
		logger.Error("buyer reply forward failed", zap.Uint("order_id", sess.OrderID), zap.Error(err))
		e.Chat.SendText(userID, "Your message could not be delivered right now. Please try again.")
		return true
	}
	e.Chat.SendText(userID, "Your message was forwarded to the shop.")
	return true
}

// CancelSession clears any interactive session on /cancel.
func (e *Engine) CancelSession(userID int64) bool {
	if e.Sessions.Get(userID) == nil {
		return false
	}
	e.Sessions.Clear(userID)
	e.Chat.SendText(userID, "Cancelled.")
	return true
}

func (e *Engine) postVouch(order *db.Order) {
	defer logger.NotifyOnPanic("postVouch")
	if e.VouchChannel == 0 {
		return
	}
	name := "a product"
	if product, err := db.GetProduct(order.ProductID); err == nil {
		name = product.Name
	}
	text := fmt.Sprintf("Order #%d complete: %s for $%.2f, paid in %s. Another happy customer!",
		order.ID, name, order.Price, currencyLabel(order.Currency))
	if _, err := e.Chat.SendText(e.VouchChannel, text); err != nil {
		logger.Warn("vouch post failed", zap.Uint("order_id", order.ID), zap.Error(err))
	}
}

// notifyAdminGroup sends a plain notification; degrades silently when no
// admin group is configured.
func (e *Engine) notifyAdminGroup(text string) {
	if e.AdminGroup == 0 {
		return
	}
	if _, err := e.Chat.SendText(e.AdminGroup, text); err != nil {
		logger.Error("admin group notification failed", zap.Error(err))
	}
}

func (e *Engine) resolveAddress(currency string) (string, error) {
	if addr, err := db.ActiveWalletAddress(currency); err == nil {
		return addr.Address, nil
	}
	switch currency {
	case db.CurrencyBTC:
		if e.FallbackBTC != "" {
			return e.FallbackBTC, nil
		}
	case db.CurrencyLTC:
		if e.FallbackLTC != "" {
			return e.FallbackLTC, nil
		}
	}
	return "", fmt.Errorf("no deposit address configured for %s", currency)
}

func statusReason(order *db.Order) string {
	switch order.Status {
	case db.OrderPending:
		return fmt.Sprintf("Order #%d is pending payment verification.", order.ID)
	case db.OrderAwaitingProduct:
		return fmt.Sprintf("Order #%d is confirmed and awaiting delivery.", order.ID)
	case db.OrderDelivered:
		return fmt.Sprintf("Order #%d was already completed.", order.ID)
	case db.OrderCancelled:
		return fmt.Sprintf("Order #%d was cancelled.", order.ID)
	}
	return fmt.Sprintf("Order #%d has an unknown status.", order.ID)
}

func currencyLabel(currency string) string {
	switch currency {
	case db.CurrencyBTC:
		return "BTC"
	case db.CurrencyLTC:
		return "LTC"
	}
	return currency
}

func retrySeconds(d time.Duration) int {
	s := int(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}

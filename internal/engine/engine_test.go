package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/driver/sqlite"

	"Shop-Telegram-bot/internal/chat"
	"Shop-Telegram-bot/internal/db"
	"Shop-Telegram-bot/internal/throttle"
)

const (
	buyerID    = int64(42)
	adminID    = int64(7)
	adminGroup = int64(-500)
)

var testDBSeq int64

func setupEngine(t *testing.T) (*Engine, *fakeChat) {
	t.Helper()
	dsn := fmt.Sprintf("file:enginetest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	if err := db.Init(sqlite.Open(dsn)); err != nil {
		t.Fatalf("init test db: %v", err)
	}
	fake := newFakeChat()
	e := New(fake, throttle.NewRegistry())
	e.AdminGroup = adminGroup
	return e, fake
}

func seedProduct(t *testing.T) *db.Product {
	t.Helper()
	p := db.Product{Name: "Test Key", Price: 9.99, Description: "A license key"}
	if err := db.DB.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return &p
}

func seedAddress(t *testing.T, currency, address string) {
	t.Helper()
	a := db.WalletAddress{Currency: currency, Address: address, Active: true, AddedAt: 100}
	if err := db.DB.Create(&a).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
}

func latestOrder(t *testing.T, userID int64) *db.Order {
	t.Helper()
	orders, err := db.GetUserOrders(userID, 1)
	if err != nil || len(orders) == 0 {
		t.Fatalf("no order for user %d: %v", userID, err)
	}
	return &orders[0]
}

func TestOrderLifecycleHappyPath(t *testing.T) {
	e, fake := setupEngine(t)
	product := seedProduct(t)
	seedAddress(t, db.CurrencyBTC, "bc1qtestaddress")

	e.PaymentMethodChosen(buyerID, product.ID, db.CurrencyBTC)

	order := latestOrder(t, buyerID)
	if order.Status != db.OrderPending {
		t.Fatalf("status = %q, want pending", order.Status)
	}
	if order.Price != product.Price || order.Currency != db.CurrencyBTC {
		t.Fatalf("order snapshot wrong: %+v", order)
	}
	instructions := fake.markupsTo(buyerID)
	if len(instructions) != 1 {
		t.Fatalf("buyer markups = %d, want 1", len(instructions))
	}
	if !containsText([]string{instructions[0].text}, "bc1qtestaddress") {
		t.Fatal("payment instructions missing the deposit address")
	}
	if !containsText(fake.textsTo(adminGroup), "New order") {
		t.Fatal("admin group not notified about the new order")
	}

	e.PaymentClaimed(buyerID, order.ID)

	claims := fake.markupsTo(adminGroup)
	if len(claims) != 1 || !containsText([]string{claims[0].text}, "Payment claimed") {
		t.Fatalf("admin claim notification missing: %+v", claims)
	}
	if !containsText(fake.textsTo(buyerID), "being verified") {
		t.Fatal("buyer not acknowledged")
	}
	if !e.Registry.IsDuplicateConfirmation(buyerID, order.ID) {
		t.Fatal("confirmation not recorded after successful dispatch")
	}

	e.AdminDecision(adminID, adminGroup, claims[0].messageID, order.ID, buyerID, DecisionConfirm)

	order, _ = db.GetOrder(order.ID)
	if order.Status != db.OrderAwaitingProduct {
		t.Fatalf("status = %q, want awaiting_product", order.Status)
	}
	if !containsText(fake.textsTo(buyerID), "was confirmed") {
		t.Fatal("buyer not told about the confirmation")
	}

	var promptID int
	for key, req := range e.Tracker.uploads {
		if req.OrderID == order.ID {
			promptID = key.messageID
		}
	}
	if promptID == 0 {
		t.Fatal("upload prompt not tracked")
	}

	handled := e.HandleAdminReply(adminGroup, promptID, &tgbotapi.Message{Text: "CODE-123"})
	if !handled {
		t.Fatal("reply to the upload prompt not handled")
	}
	delivered := fake.mediaTo(buyerID)
	if len(delivered) != 1 || delivered[0].payload.Text != "CODE-123" {
		t.Fatalf("delivery payload wrong: %+v", delivered)
	}
	order, _ = db.GetOrder(order.ID)
	if order.Status != db.OrderDelivered {
		t.Fatalf("status = %q, want delivered", order.Status)
	}
	if _, found := e.Tracker.UploadRequest(adminGroup, promptID); found {
		t.Fatal("upload prompt not cleared after fulfillment")
	}
}

func TestPaymentClaimedDuplicate(t *testing.T) {
	e, fake := setupEngine(t)
	product := seedProduct(t)
	seedAddress(t, db.CurrencyBTC, "bc1qtestaddress")
	e.PaymentMethodChosen(buyerID, product.ID, db.CurrencyBTC)
	order := latestOrder(t, buyerID)

	e.Registry.RecordConfirmation(buyerID, order.ID)
	e.PaymentClaimed(buyerID, order.ID)

	if len(fake.markupsTo(adminGroup)) != 0 {
		t.Fatal("duplicate claim must not notify the admin group")
	}
	if !containsText(fake.textsTo(buyerID), "still being verified") {
		t.Fatal("buyer not told the claim is a duplicate")
	}
}

func TestPaymentClaimedNotRecordedOnNotifyFailure(t *testing.T) {
	e, fake := setupEngine(t)
	product := seedProduct(t)
	seedAddress(t, db.CurrencyBTC, "bc1qtestaddress")
	e.PaymentMethodChosen(buyerID, product.ID, db.CurrencyBTC)
	order := latestOrder(t, buyerID)

	fake.failMarkup[adminGroup] = errors.New("telegram is down")
	e.PaymentClaimed(buyerID, order.ID)

	if e.Registry.IsDuplicateConfirmation(buyerID, order.ID) {
		t.Fatal("confirmation recorded although the admin notification failed")
	}
	if !containsText(fake.textsTo(buyerID), "Could not register") {
		t.Fatal("buyer not told to retry")
	}
}

func TestPaymentClaimedOwnership(t *testing.T) {
	e, fake := setupEngine(t)
	product := seedProduct(t)
	seedAddress(t, db.CurrencyBTC, "bc1qtestaddress")
	e.PaymentMethodChosen(buyerID, product.ID, db.CurrencyBTC)
	order := latestOrder(t, buyerID)

	const stranger = int64(99)
	e.PaymentClaimed(stranger, order.ID)

	if len(fake.markupsTo(adminGroup)) != 0 {
		t.Fatal("claim on someone else's order must not reach admins")
	}
	if fake.lastTextTo(stranger) != "Order not found." {
		t.Fatalf("stranger got %q", fake.lastTextTo(stranger))
	}
}

func TestAdminDecisionAlreadyHandled(t *testing.T) {
	e, fake := setupEngine(t)
	product := seedProduct(t)
	order, err := db.CreateOrder(buyerID, product.ID, product.Price, db.CurrencyBTC)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := db.TransitionOrder(order.ID, db.OrderPending, db.OrderCancelled); err != nil {
		t.Fatalf("transition: %v", err)
	}

	e.AdminDecision(adminID, adminGroup, 1, order.ID, buyerID, DecisionConfirm)

	if !containsText(fake.textsTo(adminGroup), "already cancelled") {
		t.Fatalf("admin not told: %v", fake.textsTo(adminGroup))
	}
	got, _ := db.GetOrder(order.ID)
	if got.Status != db.OrderCancelled {
		t.Fatalf("status = %q, decision on a settled order must not change it", got.Status)
	}
	if len(fake.textsTo(buyerID)) != 0 {
		t.Fatal("buyer must not be messaged for a rejected decision")
	}
}

func TestProductUploadedDeliveryFailure(t *testing.T) {
	e, fake := setupEngine(t)
	product := seedProduct(t)
	order, _ := db.CreateOrder(buyerID, product.ID, product.Price, db.CurrencyBTC)
	db.TransitionOrder(order.ID, db.OrderPending, db.OrderAwaitingProduct)

	fake.failMedia[buyerID] = errors.New("Forbidden: bot was blocked by the user")
	ok := e.ProductUploaded(adminGroup, order.ID, buyerID, mustPayload(t, &tgbotapi.Message{Text: "CODE-123"}))

	if ok {
		t.Fatal("failed delivery reported as success")
	}
	got, _ := db.GetOrder(order.ID)
	if got.Status != db.OrderAwaitingProduct {
		t.Fatalf("status = %q, failed delivery must not advance the order", got.Status)
	}
	if !containsText(fake.textsTo(adminGroup), "failed") {
		t.Fatal("admin not told the delivery failed")
	}
}

func TestCustomerCancel(t *testing.T) {
	e, fake := setupEngine(t)
	product := seedProduct(t)
	order, _ := db.CreateOrder(buyerID, product.ID, product.Price, db.CurrencyBTC)

	e.CustomerCancelRequested(buyerID, order.ID)

	got, _ := db.GetOrder(order.ID)
	if got.Status != db.OrderCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}
	if !containsText(fake.textsTo(buyerID), "has been cancelled") {
		t.Fatal("buyer not told about the cancellation")
	}
	if !containsText(fake.textsTo(adminGroup), "cancelled by the buyer") {
		t.Fatal("admin group not told about the cancellation")
	}

	// Confirmed orders are past the point of no return.
	other := int64(43)
	order2, _ := db.CreateOrder(other, product.ID, product.Price, db.CurrencyBTC)
	db.TransitionOrder(order2.ID, db.OrderPending, db.OrderAwaitingProduct)
	e.CustomerCancelRequested(other, order2.ID)

	got2, _ := db.GetOrder(order2.ID)
	if got2.Status != db.OrderAwaitingProduct {
		t.Fatalf("status = %q, confirmed order must not be cancellable", got2.Status)
	}
	if !containsText(fake.textsTo(other), "awaiting delivery") {
		t.Fatalf("buyer got %v", fake.textsTo(other))
	}
}

func TestStatusRequestedOwnership(t *testing.T) {
	e, fake := setupEngine(t)
	product := seedProduct(t)
	order, _ := db.CreateOrder(buyerID, product.ID, product.Price, db.CurrencyBTC)

	const stranger = int64(99)
	e.StatusRequested(stranger, order.ID)
	if fake.lastTextTo(stranger) != "Order not found." {
		t.Fatalf("stranger got %q", fake.lastTextTo(stranger))
	}

	e.StatusRequested(buyerID, order.ID)
	if !containsText(fake.textsTo(buyerID), "pending payment verification") {
		t.Fatalf("owner got %v", fake.textsTo(buyerID))
	}
}

func TestResolveAddressFallback(t *testing.T) {
	e, fake := setupEngine(t)
	product := seedProduct(t)
	e.FallbackBTC = "bc1qfallback"

	e.PaymentMethodChosen(buyerID, product.ID, db.CurrencyBTC)

	instructions := fake.markupsTo(buyerID)
	if len(instructions) != 1 || !containsText([]string{instructions[0].text}, "bc1qfallback") {
		t.Fatalf("fallback address not used: %+v", instructions)
	}

	// No LTC address anywhere: no order may be created.
	e.PaymentMethodChosen(buyerID, product.ID, db.CurrencyLTC)
	orders, _ := db.GetUserOrders(buyerID, 10)
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want only the BTC one", len(orders))
	}

	e.PaymentMethodChosen(buyerID, product.ID, "doge")
	if !containsText(fake.textsTo(buyerID), "Unsupported payment method.") {
		t.Fatal("unknown currency not rejected")
	}
}

func TestHandleBuyerMessageReplyMode(t *testing.T) {
	e, fake := setupEngine(t)

	e.ActivateReplyMode(buyerID, 5)
	handled := e.HandleBuyerMessage(buyerID, &tgbotapi.Message{Text: "where is my order?"})
	if !handled {
		t.Fatal("armed reply mode must consume the message")
	}
	if !containsText(fake.textsTo(adminGroup), "Buyer reply for order #5") {
		t.Fatalf("admin group got %v", fake.textsTo(adminGroup))
	}
	if !containsText(fake.textsTo(buyerID), "was forwarded") {
		t.Fatal("buyer not acknowledged")
	}

	// One message per armed window.
	if e.HandleBuyerMessage(buyerID, &tgbotapi.Message{Text: "again"}) {
		t.Fatal("session must be cleared after one forwarded message")
	}
}

func mustPayload(t *testing.T, msg *tgbotapi.Message) chat.Payload {
	t.Helper()
	p, ok := NormalizePayload(msg)
	if !ok {
		t.Fatalf("message did not normalize: %+v", msg)
	}
	return p
}

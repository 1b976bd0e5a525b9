package engine

import (
	"sync"
)

// UploadRequest maps an "upload requested" prompt in the admin chat to the
// order it fulfills. A reply to that prompt is the product upload.
type UploadRequest struct {
	OrderID uint
	BuyerID int64
}

// Delivery maps a delivery-confirmation message in the admin chat to the
// delivered order, so later admin replies to it are forwarded to the buyer.
type Delivery struct {
	OrderID     uint
	BuyerID     int64
	AdminChatID int64
}

// DeliveryTracker is the process-local index of tracked admin-chat
// messages. Keys are (chatID, messageID) pairs; old message versions simply
// miss and are answered with a diagnostic.
type DeliveryTracker struct {
	mu         sync.Mutex
	uploads    map[trackerKey]UploadRequest
	deliveries map[trackerKey]Delivery
}

type trackerKey struct {
	chatID    int64
	messageID int
}

func NewDeliveryTracker() *DeliveryTracker {
	return &DeliveryTracker{
		uploads:    make(map[trackerKey]UploadRequest),
		deliveries: make(map[trackerKey]Delivery),
	}
}

func (t *DeliveryTracker) TrackUploadRequest(chatID int64, messageID int, req UploadRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uploads[trackerKey{chatID, messageID}] = req
}

func (t *DeliveryTracker) UploadRequest(chatID int64, messageID int) (UploadRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.uploads[trackerKey{chatID, messageID}]
	return req, ok
}

// ClearUploadRequest removes the prompt after the order was fulfilled.
func (t *DeliveryTracker) ClearUploadRequest(chatID int64, messageID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.uploads, trackerKey{chatID, messageID})
}

func (t *DeliveryTracker) TrackDelivery(chatID int64, messageID int, d Delivery) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deliveries[trackerKey{chatID, messageID}] = d
}

func (t *DeliveryTracker) Delivery(chatID int64, messageID int) (Delivery, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.deliveries[trackerKey{chatID, messageID}]
	return d, ok
}

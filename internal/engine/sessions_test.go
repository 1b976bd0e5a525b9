package engine

import (
	"testing"
	"time"
)

func TestSessionStoreExpiry(t *testing.T) {
	s := NewSessionStore()
	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	s.Set(1, &Session{Kind: SessionReplyMode, OrderID: 3})
	if got := s.Get(1); got == nil || got.OrderID != 3 {
		t.Fatalf("Get = %+v, want the stored session", got)
	}

	current = current.Add(SessionTTL - time.Second)
	if s.Get(1) == nil {
		t.Fatal("session expired before its TTL")
	}

	s.Touch(1)
	current = current.Add(SessionTTL - time.Second)
	if s.Get(1) == nil {
		t.Fatal("touch did not extend the session")
	}

	current = current.Add(SessionTTL + time.Second)
	if s.Get(1) != nil {
		t.Fatal("session survived past its TTL")
	}
}

func TestSessionStoreClear(t *testing.T) {
	s := NewSessionStore()
	s.Set(1, &Session{Kind: SessionPoke, Step: PokeStepRecipients})
	s.Clear(1)
	if s.Get(1) != nil {
		t.Fatal("cleared session still present")
	}
}

func TestDeliveryTracker(t *testing.T) {
	tr := NewDeliveryTracker()

	tr.TrackUploadRequest(10, 100, UploadRequest{OrderID: 1, BuyerID: 42})
	if _, found := tr.UploadRequest(10, 101); found {
		t.Fatal("wrong message id must miss")
	}
	if _, found := tr.UploadRequest(11, 100); found {
		t.Fatal("wrong chat id must miss")
	}
	req, found := tr.UploadRequest(10, 100)
	if !found || req.OrderID != 1 || req.BuyerID != 42 {
		t.Fatalf("UploadRequest = %+v, %v", req, found)
	}

	tr.ClearUploadRequest(10, 100)
	if _, found := tr.UploadRequest(10, 100); found {
		t.Fatal("cleared prompt still tracked")
	}

	tr.TrackDelivery(10, 200, Delivery{OrderID: 1, BuyerID: 42, AdminChatID: 10})
	d, found := tr.Delivery(10, 200)
	if !found || d.BuyerID != 42 {
		t.Fatalf("Delivery = %+v, %v", d, found)
	}
}

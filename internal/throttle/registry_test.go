package throttle

import (
	"testing"
	"time"
)

func newTestRegistry(start time.Time) (*Registry, *time.Time) {
	r := NewRegistry()
	current := start
	r.now = func() time.Time { return current }
	return r, &current
}

func TestCanPerformCooldown(t *testing.T) {
	r, clock := newTestRegistry(time.Unix(1000, 0))

	ok, _ := r.CanPerform(1, ActionConfirm)
	if !ok {
		t.Fatal("first confirm should pass")
	}
	ok, retry := r.CanPerform(1, ActionConfirm)
	if ok {
		t.Fatal("second confirm inside the window should be blocked")
	}
	if retry <= 0 || retry > 15*time.Second {
		t.Fatalf("retry = %v, want within (0, 15s]", retry)
	}

	*clock = clock.Add(15 * time.Second)
	if ok, _ := r.CanPerform(1, ActionConfirm); !ok {
		t.Fatal("confirm after the window should pass")
	}
}

func TestCanPerformIsPerUserPerAction(t *testing.T) {
	r, _ := newTestRegistry(time.Unix(1000, 0))

	if ok, _ := r.CanPerform(1, ActionConfirm); !ok {
		t.Fatal("user 1 confirm should pass")
	}
	if ok, _ := r.CanPerform(2, ActionConfirm); !ok {
		t.Fatal("user 2 is an independent bucket")
	}
	if ok, _ := r.CanPerform(1, ActionStatus); !ok {
		t.Fatal("status is an independent action for user 1")
	}
}

func TestDuplicateConfirmationWindow(t *testing.T) {
	r, clock := newTestRegistry(time.Unix(1000, 0))

	if r.IsDuplicateConfirmation(1, 7) {
		t.Fatal("nothing recorded yet")
	}
	r.RecordConfirmation(1, 7)
	if !r.IsDuplicateConfirmation(1, 7) {
		t.Fatal("recorded confirmation must count as duplicate")
	}
	if r.IsDuplicateConfirmation(1, 8) {
		t.Fatal("another order must not be a duplicate")
	}
	if r.IsDuplicateConfirmation(2, 7) {
		t.Fatal("another user must not be a duplicate")
	}

	*clock = clock.Add(ConfirmationRetention + time.Second)
	if r.IsDuplicateConfirmation(1, 7) {
		t.Fatal("duplicate flag must expire with the retention window")
	}
}

func TestConfirmationCount(t *testing.T) {
	r, clock := newTestRegistry(time.Unix(1000, 0))

	for i := 0; i < MaxConfirmationsPerHour; i++ {
		r.RecordConfirmation(3, 9)
		*clock = clock.Add(time.Minute)
	}
	if n := r.ConfirmationCount(3, 9, time.Hour); n != MaxConfirmationsPerHour {
		t.Fatalf("count = %d, want %d", n, MaxConfirmationsPerHour)
	}

	*clock = clock.Add(time.Hour)
	if n := r.ConfirmationCount(3, 9, time.Hour); n != 0 {
		t.Fatalf("count after the window = %d, want 0", n)
	}
}

func TestSeenTx(t *testing.T) {
	r, _ := newTestRegistry(time.Unix(1000, 0))

	if r.SeenTx("abc") {
		t.Fatal("unseen txid reported as seen")
	}
	r.MarkSeen("abc")
	if !r.SeenTx("abc") {
		t.Fatal("marked txid not reported as seen")
	}
	if r.SeenTx("def") {
		t.Fatal("other txid must stay unseen")
	}
}

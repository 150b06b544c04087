package timerheap

import (
	"testing"
	"time"
)

func TestAddOrdersByExpiry(t *testing.T) {
	w := New(4)
	now := time.Now()

	var fired []int
	n1, err := w.Add(1, 30*time.Millisecond, now)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	n2, err := w.Add(2, 10*time.Millisecond, now)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	n3, err := w.Add(3, 20*time.Millisecond, now)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	_ = n1
	_ = n2
	_ = n3

	w.ProcessExpired(now.Add(25*time.Millisecond), func(owner any) {
		fired = append(fired, owner.(int))
	})

	if len(fired) != 2 || fired[0] != 2 || fired[1] != 3 {
		t.Fatalf("expected [2 3] fired in expiry order, got %v", fired)
	}
	if w.Len() != 1 {
		t.Fatalf("expected 1 remaining timer, got %d", w.Len())
	}
}

func TestCancelRemovesEntry(t *testing.T) {
	w := New(4)
	now := time.Now()

	n, err := w.Add("x", 10*time.Millisecond, now)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	w.Cancel(n)

	if w.Len() != 0 {
		t.Fatalf("expected 0 timers after cancel, got %d", w.Len())
	}

	fired := false
	w.ProcessExpired(now.Add(time.Second), func(any) { fired = true })
	if fired {
		t.Fatal("cancelled timer fired")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	w := New(2)
	now := time.Now()
	n, _ := w.Add("x", time.Millisecond, now)
	w.Cancel(n)
	w.Cancel(n) // must not panic or corrupt the free list
	w.Cancel(nil)
}

func TestAddReturnsErrExhaustedAtCapacity(t *testing.T) {
	w := New(2)
	now := time.Now()

	if _, err := w.Add(1, time.Second, now); err != nil {
		t.Fatalf("Add 1: %v", err)
	}
	if _, err := w.Add(2, time.Second, now); err != nil {
		t.Fatalf("Add 2: %v", err)
	}
	if _, err := w.Add(3, time.Second, now); err != ErrExhausted {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestNodeReuseAfterCancel(t *testing.T) {
	w := New(1)
	now := time.Now()

	n, err := w.Add(1, time.Second, now)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	w.Cancel(n)

	if _, err := w.Add(2, time.Second, now); err != nil {
		t.Fatalf("Add after cancel should reuse the freed node: %v", err)
	}
}

func TestNextTimeoutMs(t *testing.T) {
	w := New(2)
	now := time.Now()

	if ms := w.NextTimeoutMs(now); ms != -1 {
		t.Fatalf("expected -1 for empty wheel, got %d", ms)
	}

	w.Add(1, 50*time.Millisecond, now)
	if ms := w.NextTimeoutMs(now); ms <= 0 || ms > 50 {
		t.Fatalf("expected a positive timeout <= 50ms, got %d", ms)
	}

	if ms := w.NextTimeoutMs(now.Add(time.Second)); ms != 0 {
		t.Fatalf("expected 0 for an overdue deadline, got %d", ms)
	}
}

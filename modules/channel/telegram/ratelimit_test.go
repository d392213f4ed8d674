package telegram

import (
	"testing"
	"time"
)

func TestChatLimiter_Disabled(t *testing.T) {
	l := newChatLimiter(0)
	for range 100 {
		if !l.Allow(1) {
			t.Fatal("disabled limiter denied a message")
		}
	}
}

func TestChatLimiter_PerChatBurst(t *testing.T) {
	l := newChatLimiter(2)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow(1) || !l.Allow(1) {
		t.Fatal("burst of 2 denied")
	}
	if l.Allow(1) {
		t.Error("third message in the same instant allowed")
	}
	if !l.Allow(2) {
		t.Error("other chat limited by chat 1")
	}

	now = now.Add(30 * time.Second)
	if !l.Allow(1) {
		t.Error("token not refilled after 30s")
	}
}

func TestChatLimiter_EvictsIdleChats(t *testing.T) {
	l := newChatLimiter(5)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	for id := int64(1); id <= 50; id++ {
		l.Allow(id)
	}
	if l.Len() != 50 {
		t.Fatalf("Len = %d, want 50", l.Len())
	}

	now = now.Add(refillWindow + time.Second)
	l.Allow(99)
	if l.Len() != 1 {
		t.Errorf("Len after idle sweep = %d, want 1", l.Len())
	}
}

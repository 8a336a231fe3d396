package rig

import (
	"testing"
	"time"
)

func TestLink_IsIdle(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLink(func() time.Time { return now })

	if idle, _ := l.IsIdle(time.Second); idle {
		t.Fatal("fresh link reported idle")
	}
	if idle, reason := l.IsIdle(0); idle || reason != IdleDisabled {
		t.Fatalf("got %v/%s, want disabled", idle, reason)
	}

	now = now.Add(2 * time.Second)
	l.TouchWrite()
	idle, reason := l.IsIdle(time.Second)
	if !idle || !reason.Has(IdleRead) || reason.Has(IdleWrite) {
		t.Fatalf("got %v/%s, want read|ack", idle, reason)
	}
	if reason.String() != "read|ack" {
		t.Errorf("got %q, want read|ack", reason.String())
	}
}

func TestNewBackoffDoublesToCap(t *testing.T) {
	cfg := DefaultConfig()
	bo := newBackoff(cfg)
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := bo.NextBackOff(); got != w {
			t.Fatalf("attempt %d: got %s, want %s", i+1, got, w)
		}
	}
	bo.Reset()
	if got := bo.NextBackOff(); got != cfg.BackoffInitial {
		t.Fatalf("after reset got %s, want %s", got, cfg.BackoffInitial)
	}
}

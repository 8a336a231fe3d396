package rig

import (
	"fmt"
	"time"
)

// ConnPhase はリグとの接続状態です。
type ConnPhase uint8

const (
	Disconnected ConnPhase = iota
	Connecting
	Connected
	Backoff
)

func (p ConnPhase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	default:
		return fmt.Sprintf("ConnPhase(%d)", int(p))
	}
}

// ConnState は接続状態のスナップショットです。Backoff中は試行回数と再試行時刻を持ちます。
type ConnState struct {
	Phase   ConnPhase `json:"phase"`
	Attempt int       `json:"attempt,omitempty"`
	Until   time.Time `json:"until,omitzero"`
}

func (s ConnState) String() string {
	if s.Phase == Backoff {
		return fmt.Sprintf("backoff(attempt=%d, until=%s)", s.Attempt, s.Until.Format(time.RFC3339Nano))
	}
	return s.Phase.String()
}

func (p ConnPhase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

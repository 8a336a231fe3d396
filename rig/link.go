package rig

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Link は1回の接続における入出力の最終時刻を記録します。
type Link struct {
	now func() time.Time

	lastRead  atomic.Int64
	lastWrite atomic.Int64
	lastAck   atomic.Int64
}

func NewLink(now func() time.Time) *Link {
	l := &Link{now: now}
	t := now().UnixNano()
	l.lastRead.Store(t)
	l.lastWrite.Store(t)
	l.lastAck.Store(t)
	return l
}

func (l *Link) TouchRead()  { l.lastRead.Store(l.now().UnixNano()) }
func (l *Link) TouchWrite() { l.lastWrite.Store(l.now().UnixNano()) }
func (l *Link) TouchAck()   { l.lastAck.Store(l.now().UnixNano()) }

// IsIdle はtimeoutを超えて動きのない方向をビットで返します。
func (l *Link) IsIdle(timeout time.Duration) (bool, IdleReason) {
	if timeout <= 0 {
		return false, IdleDisabled
	}
	now := l.now()
	var reason IdleReason
	if idleSince(now, l.lastRead.Load(), timeout) {
		reason |= IdleRead
	}
	if idleSince(now, l.lastWrite.Load(), timeout) {
		reason |= IdleWrite
	}
	if idleSince(now, l.lastAck.Load(), timeout) {
		reason |= IdleAck
	}
	return reason != IdleNone, reason
}

func idleSince(now time.Time, last int64, timeout time.Duration) bool {
	return now.Sub(time.Unix(0, last)) > timeout
}

type IdleReason uint8

const (
	IdleNone     IdleReason = 0
	IdleRead     IdleReason = 1 << 0
	IdleWrite    IdleReason = 1 << 1
	IdleAck      IdleReason = 1 << 2
	IdleDisabled IdleReason = 1 << 7 // timeout<=0 のとき
)

func (r IdleReason) Has(x IdleReason) bool { return r&x != 0 }

func (r IdleReason) String() string {
	switch r {
	case IdleNone:
		return "none"
	case IdleDisabled:
		return "disabled"
	}
	out := ""
	for _, f := range []struct {
		bit  IdleReason
		name string
	}{{IdleRead, "read"}, {IdleWrite, "write"}, {IdleAck, "ack"}} {
		if !r.Has(f.bit) {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += f.name
	}
	if out == "" {
		return fmt.Sprintf("unknown(%d)", r)
	}
	return out
}

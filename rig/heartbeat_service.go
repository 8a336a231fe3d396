package rig

import (
	"context"
	"log/slog"
	"time"
)

// KeepaliveEffect はハートビートで送る演出名です。
const KeepaliveEffect = "keepalive"

// HeartbeatService は一定間隔でkeepaliveコマンドを送信ループへ渡します。
type HeartbeatService struct {
	interval time.Duration
	beatCh   chan<- Command
	now      func() time.Time
}

func NewHeartbeatService(interval time.Duration, beatCh chan<- Command, now func() time.Time) *HeartbeatService {
	if now == nil {
		now = time.Now
	}
	return &HeartbeatService{interval: interval, beatCh: beatCh, now: now}
}

// Run はctxがキャンセルされるまでinterval毎にkeepaliveを送ります。
func (h *HeartbeatService) Run(ctx context.Context) {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat := Effect(KeepaliveEffect).stamp(h.now())
			select {
			case h.beatCh <- beat:
				slog.DebugContext(ctx, "heartbeat: keepalive queued", "id", beat.ID)
			default:
				slog.WarnContext(ctx, "heartbeat: previous keepalive still pending, dropped", "id", beat.ID)
			}
		}
	}
}

package rig

import "time"

// SlidingWindow は直近windowの送信数をlimit以下に保つためのカウンタです。
// 送信ループだけが触るのでロックを持ちません。
type SlidingWindow struct {
	limit  int
	window time.Duration
	sent   []time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{limit: limit, window: window}
}

// Available はnow時点で追加送信できる件数を返します。
func (w *SlidingWindow) Available(now time.Time) int {
	w.expire(now)
	return max(w.limit-len(w.sent), 0)
}

// Record はnowにn件送信したことを記録します。
func (w *SlidingWindow) Record(now time.Time, n int) {
	for range n {
		w.sent = append(w.sent, now)
	}
}

// Count はnow時点のウィンドウ内の送信数です。
func (w *SlidingWindow) Count(now time.Time) int {
	w.expire(now)
	return len(w.sent)
}

func (w *SlidingWindow) expire(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.sent) && !w.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.sent = append(w.sent[:0], w.sent[i:]...)
	}
}

// Package storage はゲームスナップショットの保存先を抽象化します。
package storage

import (
	"context"
	"time"

	"umbra/game"
	apperrors "umbra/internal/errors"
)

var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "snapshot not found")

// Summary は保存済みセッションの一覧表示用の要約です。
type Summary struct {
	SessionID    string     `json:"session_id"`
	CanonVersion string     `json:"canon_version"`
	Phase        game.Phase `json:"phase"`
	Round        int        `json:"round"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SnapshotStore はセッションIDごとにスナップショットを保存・復元します。
// Loadは保存時と同じ内容を返し、呼び出し側のコピーとは共有しません。
type SnapshotStore interface {
	Save(ctx context.Context, sessionID string, snap game.Snapshot) error
	Load(ctx context.Context, sessionID string) (game.Snapshot, error)
	List(ctx context.Context) ([]Summary, error)
}

// SummaryOf はスナップショットから要約を作ります。
func SummaryOf(sessionID string, snap game.Snapshot, at time.Time) Summary {
	return Summary{
		SessionID:    sessionID,
		CanonVersion: snap.CanonVersion,
		Phase:        snap.State.Phase,
		Round:        snap.State.Round,
		UpdatedAt:    at,
	}
}

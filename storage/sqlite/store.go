// Package sqlite はSQLiteにゲームスナップショットを保存します。
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"umbra/game"
	"umbra/storage"
	"umbra/storage/sqlite/migrations"
)

// Store はセッションごとのスナップショットをSQLiteに保持します。
type Store struct {
	sqlDB *sql.DB
	clk   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open はpathのDBを開き、埋め込みマイグレーションを適用します。
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// 書き込みは1本に絞る
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, clk: time.Now}, nil
}

// WithClock はテスト用に時間ソースを差し替えます。
func (s *Store) WithClock(clock func() time.Time) *Store {
	if clock != nil {
		s.clk = clock
	}
	return s
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save はスナップショットをJSONで丸ごと保存します。既存のセッションは上書きします。
func (s *Store) Save(ctx context.Context, sessionID string, snap game.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	now := toMillis(s.clk())

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (
		   session_id,
		   canon_version,
		   phase,
		   round,
		   snapshot,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   canon_version = excluded.canon_version,
		   phase = excluded.phase,
		   round = excluded.round,
		   snapshot = excluded.snapshot,
		   updated_at = excluded.updated_at`,
		sessionID,
		snap.CanonVersion,
		snap.State.Phase.String(),
		snap.State.Round,
		string(body),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (game.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return game.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return game.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	var body string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT snapshot FROM sessions WHERE session_id = ?`,
		strings.TrimSpace(sessionID),
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return game.Snapshot{}, storage.ErrNotFound
		}
		return game.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}

// List は保存済みセッションを更新の新しい順に返します。
func (s *Store) List(ctx context.Context) ([]storage.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT session_id, canon_version, phase, round, updated_at
		   FROM sessions
		  ORDER BY updated_at DESC, session_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []storage.Summary
	for rows.Next() {
		var (
			sum       storage.Summary
			phase     string
			updatedAt int64
		)
		if err := rows.Scan(&sum.SessionID, &sum.CanonVersion, &phase, &sum.Round, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := sum.Phase.UnmarshalText([]byte(phase)); err != nil {
			return nil, fmt.Errorf("session %s: %w", sum.SessionID, err)
		}
		sum.UpdatedAt = fromMillis(updatedAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

var _ storage.SnapshotStore = (*Store)(nil)

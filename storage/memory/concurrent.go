package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"umbra/game"
	"umbra/storage"
)

// ConcurrentStore は Store をラップし、排他制御付きで SnapshotStore を実装する。
type ConcurrentStore struct {
	base *Store
	clk  func() time.Time
	mu   sync.RWMutex
}

// NewConcurrentStore は新しい ConcurrentStore を生成する。
func NewConcurrentStore(base *Store) *ConcurrentStore {
	return &ConcurrentStore{
		base: base,
		clk:  time.Now,
	}
}

// WithClock はテスト用に時間ソースを差し替える。
func (c *ConcurrentStore) WithClock(clock func() time.Time) *ConcurrentStore {
	if clock != nil {
		c.clk = clock
	}
	return c
}

func (c *ConcurrentStore) Save(ctx context.Context, sessionID string, snap game.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" {
		return errors.New("memory: session id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base.save(sessionID, snap, c.now())
	return nil
}

func (c *ConcurrentStore) Load(ctx context.Context, sessionID string) (game.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return game.Snapshot{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base.load(sessionID)
}

func (c *ConcurrentStore) List(ctx context.Context) ([]storage.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base.list(), nil
}

func (c *ConcurrentStore) now() time.Time {
	if c.clk == nil {
		return time.Now()
	}
	return c.clk()
}

var _ storage.SnapshotStore = (*ConcurrentStore)(nil)

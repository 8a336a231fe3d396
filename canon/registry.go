package canon

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Registry は現在有効なcanonを保持します。
// 差し替えは検証に通ったcanonに対してのみ行われます。
type Registry struct {
	current atomic.Pointer[Canon]
}

func NewRegistry(c *Canon) *Registry {
	r := &Registry{}
	r.current.Store(c)
	return r
}

// Current は現在のcanonを返します。呼び出し側は読み取り専用として扱います。
func (r *Registry) Current() *Canon {
	return r.current.Load()
}

// Reload はpathからcanonを再読み込みし、検証に通れば差し替えます。
// 失敗した場合は以前のcanonを維持します。
func (r *Registry) Reload(ctx context.Context, path string) (*Canon, error) {
	c, err := LoadVerified(path)
	if err != nil {
		slog.ErrorContext(ctx, "canon: reload rejected", "path", path, "err", err)
		return r.Current(), err
	}
	r.current.Store(c)
	slog.InfoContext(ctx, "canon: reloaded", "path", path, "version", c.Version)
	return c, nil
}

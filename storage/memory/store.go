package memory

import (
	"cmp"
	"slices"
	"time"

	"umbra/game"
	"umbra/storage"
)

type entry struct {
	snap      game.Snapshot
	updatedAt time.Time
}

// Store はスナップショットを保持する素のマップです。
// ロック戦略は ConcurrentStore が受け持ちます。
type Store struct {
	sessions map[string]entry
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]entry)}
}

// tsを受け取るのはstoreが保存だけに集中するため
func (s *Store) save(id string, snap game.Snapshot, ts time.Time) {
	s.sessions[id] = entry{snap: snap.Clone(), updatedAt: ts}
}

func (s *Store) load(id string) (game.Snapshot, error) {
	e, ok := s.sessions[id]
	if !ok {
		return game.Snapshot{}, storage.ErrNotFound
	}
	return e.snap.Clone(), nil
}

func (s *Store) list() []storage.Summary {
	out := make([]storage.Summary, 0, len(s.sessions))
	for id, e := range s.sessions {
		out = append(out, storage.SummaryOf(id, e.snap, e.updatedAt))
	}
	slices.SortFunc(out, func(a, b storage.Summary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.SessionID, b.SessionID)
	})
	return out
}

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"umbra/canon"
	"umbra/game"
	"umbra/storage"
)

func sampleSnapshot(t *testing.T) game.Snapshot {
	t.Helper()
	e, err := game.NewEngine(canon.Default(), game.Setup{
		Width: 5, Height: 5,
		Players: []game.PlayerID{"a"},
		Aidron:  game.Pos{X: 3, Y: 1},
		Exit:    game.Pos{X: 4, Y: 4},
	}, game.WithSeed(1))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.PlacePlayer(context.Background(), "a", game.Pos{X: 1, Y: 1}); err != nil {
		t.Fatalf("PlacePlayer: %v", err)
	}
	return e.Snapshot()
}

func TestConcurrentStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewConcurrentStore(NewStore()).WithClock(func() time.Time { return time.Unix(100, 0) })
	snap := sampleSnapshot(t)

	if err := store.Save(ctx, "s1", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State.Phase != game.PhaseSearch || got.State.Round != 1 {
		t.Errorf("got phase %v round %d, want SEARCH round 1", got.State.Phase, got.State.Round)
	}
	if got.CanonVersion != snap.CanonVersion {
		t.Errorf("got canon %q, want %q", got.CanonVersion, snap.CanonVersion)
	}
}

func TestConcurrentStore_LoadIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewConcurrentStore(NewStore())
	snap := sampleSnapshot(t)
	if err := store.Save(ctx, "s1", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap.State.Board.MakePermanent(game.Pos{X: 0, Y: 0}, game.SourceCorridor)
	first, _ := store.Load(ctx, "s1")
	if first.State.Board.Cell(game.Pos{X: 0, Y: 0}).Lit() {
		t.Fatal("store shares the saved board with the caller")
	}
	first.State.Players[0].Tokens = 99
	second, _ := store.Load(ctx, "s1")
	if second.State.Players[0].Tokens == 99 {
		t.Fatal("store shares loaded players between callers")
	}
}

func TestConcurrentStore_NotFound(t *testing.T) {
	store := NewConcurrentStore(NewStore())
	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if err := store.Save(context.Background(), "", game.Snapshot{}); err == nil {
		t.Fatal("empty session id accepted")
	}
}

func TestConcurrentStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	store := NewConcurrentStore(NewStore()).WithClock(func() time.Time { return now })
	snap := sampleSnapshot(t)

	for _, id := range []string{"old", "new"} {
		if err := store.Save(ctx, id, snap); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
		now = now.Add(time.Second)
	}
	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "new" || got[1].SessionID != "old" {
		t.Fatalf("got %+v, want new then old", got)
	}
	if got[0].Phase != game.PhaseSearch {
		t.Errorf("got phase %v, want SEARCH", got[0].Phase)
	}
}

func TestConcurrentStore_ParallelSaves(t *testing.T) {
	ctx := context.Background()
	store := NewConcurrentStore(NewStore())
	snap := sampleSnapshot(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := string(rune('a' + i))
			_ = store.Save(ctx, id, snap)
			_, _ = store.Load(ctx, id)
		}()
	}
	wg.Wait()
	list, _ := store.List(ctx)
	if len(list) != 16 {
		t.Fatalf("got %d sessions, want 16", len(list))
	}
}

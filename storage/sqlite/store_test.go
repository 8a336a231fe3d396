package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"umbra/canon"
	"umbra/game"
	"umbra/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "umbra.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func sampleSnapshot(t *testing.T) game.Snapshot {
	t.Helper()
	e, err := game.NewEngine(canon.Default(), game.Setup{
		Width: 5, Height: 5,
		Players: []game.PlayerID{"a"},
		Aidron:  game.Pos{X: 3, Y: 1},
		Exit:    game.Pos{X: 4, Y: 4},
	}, game.WithSeed(1))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := e.PlacePlayer(context.Background(), "a", game.Pos{X: 1, Y: 1}); err != nil {
		t.Fatalf("place player: %v", err)
	}
	return e.Snapshot()
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "umbra.db")
	for range 2 {
		store, err := Open(path)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	snap := sampleSnapshot(t)
	snap.State.Board.MakePermanent(game.Pos{X: 2, Y: 2}, game.SourceCorridor)
	snap.Collapse.Allotment = 4

	if err := store.Save(context.Background(), "s1", snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.State.Phase != snap.State.Phase {
		t.Fatalf("phase = %v, want %v", got.State.Phase, snap.State.Phase)
	}
	if c := got.State.Board.Cell(game.Pos{X: 2, Y: 2}); c.Light != game.Permanent || c.Source != game.SourceCorridor {
		t.Fatalf("cell = %+v, want permanent corridor", c)
	}
	if got.Collapse.Allotment != 4 {
		t.Fatalf("allotment = %d, want 4", got.Collapse.Allotment)
	}
	if _, err := game.Restore(canon.Default(), got); err != nil {
		t.Fatalf("restore loaded snapshot: %v", err)
	}
}

func TestSaveOverwritesAndLists(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := openTempStore(t).WithClock(func() time.Time { return now })
	snap := sampleSnapshot(t)
	ctx := context.Background()

	if err := store.Save(ctx, "old", snap); err != nil {
		t.Fatalf("save old: %v", err)
	}
	now = now.Add(time.Minute)
	if err := store.Save(ctx, "new", snap); err != nil {
		t.Fatalf("save new: %v", err)
	}
	snap.State.Round = 7
	now = now.Add(time.Minute)
	if err := store.Save(ctx, "old", snap); err != nil {
		t.Fatalf("overwrite old: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].SessionID != "old" || list[0].Round != 7 {
		t.Fatalf("list[0] = %+v, want old at round 7", list[0])
	}
	if !list[0].UpdatedAt.Equal(now) {
		t.Fatalf("updated_at = %v, want %v", list[0].UpdatedAt, now)
	}
	if list[1].Phase != game.PhaseSearch {
		t.Fatalf("phase = %v, want SEARCH", list[1].Phase)
	}
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveRequiresSessionID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.Save(context.Background(), "  ", game.Snapshot{}); err == nil {
		t.Fatal("expected session id error")
	}
}

func TestUpSection(t *testing.T) {
	got := upSection("-- +migrate Up\nCREATE TABLE t (x INT);\n-- +migrate Down\nDROP TABLE t;\n")
	if got != "\nCREATE TABLE t (x INT);\n" {
		t.Fatalf("upSection = %q", got)
	}
	if got := upSection("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("upSection without markers = %q", got)
	}
}

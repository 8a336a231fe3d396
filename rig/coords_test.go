package rig

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestGrid_Physical(t *testing.T) {
	g := GridFor(8, 8, false)
	if g.Width != 15 || g.Height != 15 {
		t.Fatalf("got %dx%d, want 15x15", g.Width, g.Height)
	}
	if got := g.Physical(3, 7); got != (Point{X: 6, Y: 14}) {
		t.Errorf("got %v, want (6,14)", got)
	}
	if got := g.Physical(9, -1); got != (Point{X: 14, Y: 0}) {
		t.Errorf("clamped got %v, want (14,0)", got)
	}
}

func TestGrid_WireSerpentine(t *testing.T) {
	g := GridFor(4, 4, true)
	if got := g.Wire(Point{X: 2, Y: 0}); got != (Point{X: 2, Y: 0}) {
		t.Errorf("even row got %v, want unchanged", got)
	}
	if got := g.Wire(Point{X: 0, Y: 1}); got != (Point{X: 6, Y: 1}) {
		t.Errorf("odd row got %v, want (6,1)", got)
	}
	flat := GridFor(4, 4, false)
	if got := flat.Wire(Point{X: 0, Y: 1}); got != (Point{X: 0, Y: 1}) {
		t.Errorf("flat grid got %v, want unchanged", got)
	}
}

func TestGrid_Halo(t *testing.T) {
	g := GridFor(4, 4, false)
	if n := len(g.Halo(Point{X: 2, Y: 2})); n != 8 {
		t.Errorf("inner halo = %d cells, want 8", n)
	}
	for _, p := range g.Halo(Point{X: 0, Y: 0}) {
		if p.Primary() || !g.InBounds(p) {
			t.Errorf("corner halo contains %v", p)
		}
	}
}

// 主格子への書き込みはPrimaryだけ、副格子への書き込みはSecondaryだけが通る
func TestGrid_CheckParityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(2, 12).Draw(t, "w")
		h := rapid.IntRange(2, 12).Draw(t, "h")
		g := GridFor(w, h, rapid.Bool().Draw(t, "serpentine"))
		p := Point{
			X: rapid.IntRange(0, g.Width-1).Draw(t, "x"),
			Y: rapid.IntRange(0, g.Height-1).Draw(t, "y"),
		}

		primaryErr := g.CheckParity(UpdateCell(p, RGB{1, 2, 3}, Turns(1)))
		secondaryErr := g.CheckParity(GameEffect("glow", nil, p))
		if p.Primary() {
			if primaryErr != nil {
				t.Fatalf("primary write to %v rejected: %v", p, primaryErr)
			}
			if !errors.Is(secondaryErr, ErrParityViolation) {
				t.Fatalf("secondary write to primary %v accepted", p)
			}
		} else {
			if secondaryErr != nil {
				t.Fatalf("secondary write to %v rejected: %v", p, secondaryErr)
			}
			if !errors.Is(primaryErr, ErrParityViolation) {
				t.Fatalf("primary write to secondary %v accepted", p)
			}
		}
		if g.Wire(p).Primary() != p.Primary() {
			t.Fatalf("wiring changed the class of %v", p)
		}
	})
}

func TestGrid_CheckParityRejectsOutOfBoundsAndStrayCoords(t *testing.T) {
	g := GridFor(2, 2, false)
	if err := g.CheckParity(UpdateCell(Point{X: 4, Y: 0}, RGB{}, Turns(1))); !errors.Is(err, ErrParityViolation) {
		t.Errorf("out of bounds got %v, want ErrParityViolation", err)
	}
	sys := Clear()
	sys.Targets = []Point{{X: 0, Y: 0}}
	if err := g.CheckParity(sys); !errors.Is(err, ErrParityViolation) {
		t.Errorf("system with coords got %v, want ErrParityViolation", err)
	}
	if err := g.CheckParity(Command{Type: TypeUpdateCell, Class: ClassPrimary}); !errors.Is(err, ErrParityViolation) {
		t.Errorf("primary without target got %v, want ErrParityViolation", err)
	}
}

package rig

import (
	"fmt"

	apperrors "umbra/internal/errors"
)

var (
	ErrParityViolation = apperrors.New(apperrors.CodeParityViolation, "rig: parity violation")
	ErrProtocol        = apperrors.New(apperrors.CodeProtocolError, "rig: protocol error")
	ErrConnection      = apperrors.New(apperrors.CodeConnectionFailure, "rig: connection failure")
)

// Point は物理LED格子上の座標です。
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Primary は両軸とも偶数の座標、つまり論理セルに対応する主格子かを返します。
func (p Point) Primary() bool {
	return p.X%2 == 0 && p.Y%2 == 0
}

// Grid は物理格子の寸法と配線方式です。
type Grid struct {
	Width      int
	Height     int
	Serpentine bool
}

// GridFor は論理盤面w×hに対応する物理格子(2w-1)×(2h-1)を返します。
func GridFor(w, h int, serpentine bool) Grid {
	return Grid{Width: 2*w - 1, Height: 2*h - 1, Serpentine: serpentine}
}

func (g Grid) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.Width && p.Y < g.Height
}

// Physical は論理座標を2倍して物理座標にします。範囲外は端に寄せます。
func (g Grid) Physical(x, y int) Point {
	return Point{X: clamp(2*x, 0, g.Width-1), Y: clamp(2*y, 0, g.Height-1)}
}

// Halo は主格子pを囲む副格子セルを返します。
func (g Grid) Halo(p Point) []Point {
	var out []Point
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			q := Point{X: p.X + dx, Y: p.Y + dy}
			if (dx == 0 && dy == 0) || !g.InBounds(q) || q.Primary() {
				continue
			}
			out = append(out, q)
		}
	}
	return out
}

// Wire は物理座標を配線順の座標に変換します。蛇行配線では奇数行のxが反転します。
func (g Grid) Wire(p Point) Point {
	if g.Serpentine && p.Y%2 == 1 {
		return Point{X: g.Width - 1 - p.X, Y: p.Y}
	}
	return p
}

// CheckParity はコマンドの書き込み先が自分のクラスの格子に収まっているか確認します。
// 判定は蛇行変換前の物理座標で行います。
func (g Grid) CheckParity(c Command) error {
	switch c.Class {
	case ClassSystem:
		if len(c.Targets) > 0 {
			return fmt.Errorf("%w: system command %s carries coordinates", ErrParityViolation, c.Type)
		}
		return nil
	case ClassPrimary:
		if len(c.Targets) == 0 {
			return fmt.Errorf("%w: primary command %s without target", ErrParityViolation, c.Type)
		}
	}
	for _, p := range c.Targets {
		if !g.InBounds(p) {
			return fmt.Errorf("%w: %s target %v outside %dx%d", ErrParityViolation, c.Type, p, g.Width, g.Height)
		}
		if p.Primary() != (c.Class == ClassPrimary) {
			return fmt.Errorf("%w: %s command %s writes %v", ErrParityViolation, c.Class, c.Type, p)
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}

package game

import (
	"cmp"
	"slices"

	"github.com/zyedidia/generic/mapset"
)

// Pos は盤面上の論理座標です。
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) Add(dx, dy int) Pos {
	return Pos{X: p.X + dx, Y: p.Y + dy}
}

// Chebyshev は8近傍での距離を返します。
func (p Pos) Chebyshev(q Pos) int {
	return max(abs(p.X-q.X), abs(p.Y-q.Y))
}

// Manhattan は4近傍での距離を返します。
func (p Pos) Manhattan(q Pos) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

// Adjacent は8近傍で隣接しているかを返します。同じマスは隣接に含みません。
func (p Pos) Adjacent(q Pos) bool {
	return p.Chebyshev(q) == 1
}

func comparePos(a, b Pos) int {
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}

// LightKind はマスの照明状態です。
type LightKind uint8

const (
	Dark LightKind = iota
	Temporary
	Permanent
)

func (k LightKind) String() string {
	switch k {
	case Dark:
		return "dark"
	case Temporary:
		return "temporary"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// LightSource は照明を生んだ原因です。
type LightSource uint8

const (
	SourceNone LightSource = iota
	SourceIlluminate
	SourceSpark
	SourceBridge
	SourceEvent
	SourceAidron
	SourceExit
	SourceMemorySpark
	SourceCorridor
)

// Critical はShattered Pathで消してはならない恒久照明かを返します。
func (s LightSource) Critical() bool {
	return s == SourceAidron || s == SourceExit || s == SourceCorridor
}

// Cell は1マスの照明状態です。
type Cell struct {
	Light       LightKind   `json:"light"`
	Remaining   int         `json:"remaining,omitempty"`
	Source      LightSource `json:"source,omitempty"`
	MemorySpark bool        `json:"memory_spark,omitempty"`
}

// Lit はマスが照らされているかを返します。
func (c Cell) Lit() bool {
	return c.Light != Dark
}

// Board は width×height のマス目です。照明の変化したマスを記録します。
type Board struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Cells  []Cell `json:"cells"`

	dirty *mapset.Set[Pos]
}

func NewBoard(width, height int) *Board {
	return &Board{
		Width:  width,
		Height: height,
		Cells:  make([]Cell, width*height),
	}
}

func (b *Board) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.Width && p.Y < b.Height
}

// Cell は指定座標のマスを返します。範囲外はDarkの空マスです。
func (b *Board) Cell(p Pos) Cell {
	if !b.InBounds(p) {
		return Cell{}
	}
	return b.Cells[p.Y*b.Width+p.X]
}

func (b *Board) at(p Pos) *Cell {
	return &b.Cells[p.Y*b.Width+p.X]
}

func (b *Board) markDirty(p Pos) {
	if b.dirty == nil {
		s := mapset.New[Pos]()
		b.dirty = &s
	}
	b.dirty.Put(p)
}

// TakeDirty は前回呼び出し以降に照明が変化したマスを行優先順で返します。
func (b *Board) TakeDirty() []Pos {
	if b.dirty == nil || b.dirty.Size() == 0 {
		return nil
	}
	out := make([]Pos, 0, b.dirty.Size())
	b.dirty.Each(func(p Pos) {
		out = append(out, p)
	})
	b.dirty = nil
	slices.SortFunc(out, comparePos)
	return out
}

// LightTemporary はマスをrounds間照らします。恒久照明と、より長い一時照明は上書きしません。
func (b *Board) LightTemporary(p Pos, rounds int, src LightSource) bool {
	if !b.InBounds(p) || rounds <= 0 {
		return false
	}
	c := b.at(p)
	if c.Light == Permanent || (c.Light == Temporary && c.Remaining >= rounds) {
		return false
	}
	c.Light = Temporary
	c.Remaining = rounds
	c.Source = src
	b.markDirty(p)
	return true
}

// MakePermanent はマスを恒久照明にします。既存の恒久照明の原因は変えません。
func (b *Board) MakePermanent(p Pos, src LightSource) bool {
	if !b.InBounds(p) {
		return false
	}
	c := b.at(p)
	if c.Light == Permanent {
		return false
	}
	c.Light = Permanent
	c.Remaining = 0
	c.Source = src
	b.markDirty(p)
	return true
}

// Extinguish は重要でない恒久照明を消します。
func (b *Board) Extinguish(p Pos) bool {
	if !b.InBounds(p) {
		return false
	}
	c := b.at(p)
	if c.Light != Permanent || c.Source.Critical() {
		return false
	}
	*c = Cell{MemorySpark: c.MemorySpark}
	b.markDirty(p)
	return true
}

// Decay は一時照明を1ラウンド進め、消えたマスを返します。恒久照明は変化しません。
func (b *Board) Decay() []Pos {
	var darkened []Pos
	for i := range b.Cells {
		c := &b.Cells[i]
		if c.Light != Temporary {
			continue
		}
		c.Remaining--
		if c.Remaining > 0 {
			continue
		}
		c.Light = Dark
		c.Remaining = 0
		c.Source = SourceNone
		p := Pos{X: i % b.Width, Y: i / b.Width}
		b.markDirty(p)
		darkened = append(darkened, p)
	}
	return darkened
}

// Neighbors は範囲内の8近傍を返します。
func (b *Board) Neighbors(p Pos) []Pos {
	out := make([]Pos, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if q := p.Add(dx, dy); b.InBounds(q) {
				out = append(out, q)
			}
		}
	}
	return out
}

func (b *Board) IsEdge(p Pos) bool {
	return b.InBounds(p) && (p.X == 0 || p.Y == 0 || p.X == b.Width-1 || p.Y == b.Height-1)
}

// Perimeter は外周マスを(0,0)から時計回りに並べた巡回路を返します。
func (b *Board) Perimeter() []Pos {
	if b.Width == 0 || b.Height == 0 {
		return nil
	}
	var out []Pos
	for x := 0; x < b.Width; x++ {
		out = append(out, Pos{X: x, Y: 0})
	}
	for y := 1; y < b.Height; y++ {
		out = append(out, Pos{X: b.Width - 1, Y: y})
	}
	if b.Height > 1 {
		for x := b.Width - 2; x >= 0; x-- {
			out = append(out, Pos{X: x, Y: b.Height - 1})
		}
	}
	if b.Width > 1 {
		for y := b.Height - 2; y >= 1; y-- {
			out = append(out, Pos{X: 0, Y: y})
		}
	}
	return out
}

// Clone は照明状態を複製します。変化記録は引き継ぎません。
func (b *Board) Clone() *Board {
	return &Board{
		Width:  b.Width,
		Height: b.Height,
		Cells:  slices.Clone(b.Cells),
	}
}

// ManhattanPath はfromからtoへの単調なマンハッタン経路を両端込みで返します。
// 残り距離の大きい軸を優先し、同じならxを先に進めます。
func ManhattanPath(from, to Pos) []Pos {
	path := []Pos{from}
	cur := from
	for cur != to {
		dx, dy := to.X-cur.X, to.Y-cur.Y
		if dx != 0 && abs(dx) >= abs(dy) {
			cur.X += sign(dx)
		} else {
			cur.Y += sign(dy)
		}
		path = append(path, cur)
	}
	return path
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

package game

import (
	"fmt"
	"slices"
)

const (
	// MaxFilers はCrisis時に増援で到達できるFilerの上限です。
	MaxFilers = 3
	// DefaultDeviation は追跡時にランダムな寄り道をする確率です。
	DefaultDeviation = 0.20
)

// Mode はノイズ量から毎ラウンド導出されるFilerの行動モードです。保存はしません。
type Mode uint8

const (
	ModeDormant Mode = iota
	ModeAlert
	ModeHunting
	ModeCrisis
)

func (m Mode) String() string {
	switch m {
	case ModeDormant:
		return "dormant"
	case ModeAlert:
		return "alert"
	case ModeHunting:
		return "hunting"
	case ModeCrisis:
		return "crisis"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	for c := ModeDormant; c <= ModeCrisis; c++ {
		if c.String() == string(b) {
			*m = c
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", b)
}

// ModeFor はノイズ量からモードを決めます。
func ModeFor(noise int) Mode {
	switch {
	case noise >= 13:
		return ModeCrisis
	case noise >= 8:
		return ModeHunting
	case noise >= 5:
		return ModeAlert
	default:
		return ModeDormant
	}
}

// DecisionKind はFilerの1ラウンドの行動です。
type DecisionKind uint8

const (
	DecisionStay DecisionKind = iota
	DecisionMove
	DecisionFile
)

type Decision struct {
	Kind   DecisionKind
	To     Pos
	Player PlayerID
}

// FilerAI はFilerの移動と標的を決めるルールベースのAIです。
type FilerAI struct {
	rng       Roller
	deviation float64
}

func NewFilerAI(rng Roller) *FilerAI {
	return &FilerAI{rng: rng, deviation: DefaultDeviation}
}

// WithDeviation は寄り道確率を差し替えます。0で完全に決定的な追跡になります。
func (ai *FilerAI) WithDeviation(p float64) *FilerAI {
	ai.deviation = p
	return ai
}

// Fileable はプレイヤーのいるマスがファイル可能かを返します。隣接判定は含みません。
// 崩壊前は暗いマスのみ、崩壊中は照らされたマスのみが対象です。
// 崩壊中でもAidron・Exit・緊急回廊の恒久照明は聖域として除外します。
func Fileable(s *State, p *Player) bool {
	if !p.Active() {
		return false
	}
	cell := s.Board.Cell(p.Pos)
	if !s.Collapsing {
		return cell.Light == Dark
	}
	return cell.Lit() && !s.Sanctuary(p.Pos)
}

// Decide はFilerの今ラウンドの行動を決めます。状態は変更しません。
func (ai *FilerAI) Decide(s *State, f Filer) Decision {
	for i := range s.Players {
		p := &s.Players[i]
		if f.Pos.Adjacent(p.Pos) && Fileable(s, p) {
			return Decision{Kind: DecisionFile, To: f.Pos, Player: p.ID}
		}
	}

	switch ModeFor(s.Noise) {
	case ModeAlert:
		if c, ok := centroid(quarryPositions(s)); ok {
			return ai.stepToward(s, f.Pos, c)
		}
		return ai.patrol(s, f.Pos)
	case ModeHunting, ModeCrisis:
		target, ok := nearestQuarry(s, f.Pos)
		if !ok {
			return ai.patrol(s, f.Pos)
		}
		if ai.deviation > 0 && ai.rng.Float64() < ai.deviation {
			return ai.wander(s, f.Pos)
		}
		return ai.stepToward(s, f.Pos, target)
	default:
		return ai.patrol(s, f.Pos)
	}
}

// SpawnPoint は空いている外周マスをランダムに選びます。
func (ai *FilerAI) SpawnPoint(s *State) (Pos, bool) {
	var free []Pos
	for _, p := range s.Board.Perimeter() {
		if p == s.Aidron || p == s.Exit || !canStep(s, p) || playerAt(s, p) {
			continue
		}
		free = append(free, p)
	}
	if len(free) == 0 {
		return Pos{}, false
	}
	return free[ai.rng.IntN(len(free))], true
}

// nearestQuarry は追跡対象のうち最も近いプレイヤーの座標を返します。
func nearestQuarry(s *State, from Pos) (Pos, bool) {
	best, found := Pos{}, false
	bestDist := 0
	for i := range s.Players {
		p := &s.Players[i]
		if !p.Active() {
			continue
		}
		if s.Collapsing && !Fileable(s, p) {
			continue
		}
		d := from.Chebyshev(p.Pos)
		if !found || d < bestDist {
			best, bestDist, found = p.Pos, d, true
		}
	}
	return best, found
}

// quarryPositions は追跡対象になりうるプレイヤーの座標です。崩壊中は照らされたマスの者だけです。
func quarryPositions(s *State) []Pos {
	var out []Pos
	for i := range s.Players {
		p := &s.Players[i]
		if !p.Active() || (s.Collapsing && !Fileable(s, p)) {
			continue
		}
		out = append(out, p.Pos)
	}
	return out
}

func centroid(points []Pos) (Pos, bool) {
	if len(points) == 0 {
		return Pos{}, false
	}
	var sx, sy int
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := len(points)
	return Pos{X: (sx + n/2) / n, Y: (sy + n/2) / n}, true
}

func (ai *FilerAI) stepToward(s *State, from, target Pos) Decision {
	if from.Chebyshev(target) <= 1 && (from == target || playerAt(s, target)) {
		return Decision{Kind: DecisionStay, To: from}
	}
	dx, dy := sign(target.X-from.X), sign(target.Y-from.Y)
	var preferred Pos
	switch {
	case dx != 0 && dy != 0:
		preferred = from.Add(dx, dy)
	case dx != 0:
		preferred = from.Add(dx, 0)
	default:
		preferred = from.Add(0, dy)
	}
	if canStep(s, preferred) {
		return Decision{Kind: DecisionMove, To: preferred}
	}

	options := slices.DeleteFunc(s.Board.Neighbors(from), func(q Pos) bool { return !canStep(s, q) })
	if len(options) == 0 {
		return Decision{Kind: DecisionStay, To: from}
	}
	slices.SortStableFunc(options, func(a, b Pos) int {
		if c := a.Chebyshev(target) - b.Chebyshev(target); c != 0 {
			return c
		}
		return a.Manhattan(target) - b.Manhattan(target)
	})
	return Decision{Kind: DecisionMove, To: options[0]}
}

func (ai *FilerAI) wander(s *State, from Pos) Decision {
	options := slices.DeleteFunc(s.Board.Neighbors(from), func(q Pos) bool { return !canStep(s, q) })
	if len(options) == 0 {
		return Decision{Kind: DecisionStay, To: from}
	}
	return Decision{Kind: DecisionMove, To: options[ai.rng.IntN(len(options))]}
}

// patrol は外周を時計回りに巡回します。外周にいなければ最寄りの外周マスへ向かいます。
func (ai *FilerAI) patrol(s *State, from Pos) Decision {
	cycle := s.Board.Perimeter()
	if len(cycle) == 0 {
		return Decision{Kind: DecisionStay, To: from}
	}
	if idx := slices.Index(cycle, from); idx >= 0 {
		next := cycle[(idx+1)%len(cycle)]
		if canStep(s, next) {
			return Decision{Kind: DecisionMove, To: next}
		}
		return Decision{Kind: DecisionStay, To: from}
	}

	nearest := cycle[0]
	for _, p := range cycle[1:] {
		if from.Chebyshev(p) < from.Chebyshev(nearest) {
			nearest = p
		}
	}
	return ai.stepToward(s, from, nearest)
}

// canStep はFilerが進入できるマスかを返します。Filerと行動中のプレイヤーがいるマスには入れません。
func canStep(s *State, q Pos) bool {
	if !s.Board.InBounds(q) {
		return false
	}
	if _, ok := s.FilerAt(q); ok {
		return false
	}
	return !s.ActivePlayerAt(q)
}

func playerAt(s *State, q Pos) bool {
	for i := range s.Players {
		if s.Players[i].Placed && s.Players[i].Pos == q {
			return true
		}
	}
	return false
}

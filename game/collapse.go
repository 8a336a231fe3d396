package game

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"umbra/canon"
)

// CollapseEvent は崩壊中に毎ラウンド振られるイベントです。
type CollapseEvent uint8

const (
	EventLightCascade CollapseEvent = iota + 1
	EventDebrisPath
	EventMemoryEcho
	EventTimeSlip
	EventShatteredPath
)

func (e CollapseEvent) String() string {
	switch e {
	case EventLightCascade:
		return "light_cascade"
	case EventDebrisPath:
		return "debris_path"
	case EventMemoryEcho:
		return "memory_echo"
	case EventTimeSlip:
		return "time_slip"
	case EventShatteredPath:
		return "shattered_path"
	default:
		return fmt.Sprintf("CollapseEvent(%d)", e)
	}
}

// EventForRoll はd6の出目をイベントに対応付けます。5と6はどちらもShattered Pathです。
func EventForRoll(roll int) CollapseEvent {
	switch roll {
	case 1:
		return EventLightCascade
	case 2:
		return EventDebrisPath
	case 3:
		return EventMemoryEcho
	case 4:
		return EventTimeSlip
	default:
		return EventShatteredPath
	}
}

// EventRoll は1回分のイベント抽選の記録です。
type EventRoll struct {
	Round int           `json:"round"`
	Roll  int           `json:"roll"`
	Event CollapseEvent `json:"event"`
	Cells []Pos         `json:"cells,omitempty"`
}

// CollapseState は崩壊サブシステムの状態です。
// Allotmentはこれまでに割り当てられた総ラウンド数で、Base以上です。
// 残りラウンド数はAllotment-Elapsedで、常にCap以下に収まり、延長以外では増えません。
type CollapseState struct {
	Active         bool        `json:"active"`
	Base           int         `json:"base"`
	Cap            int         `json:"cap"`
	Allotment      int         `json:"allotment"`
	Elapsed        int         `json:"elapsed"`
	CorridorActive bool        `json:"corridor_active"`
	History        []EventRoll `json:"history,omitempty"`
	SparkRolls     int         `json:"spark_rolls"`
	SparkHits      int         `json:"spark_hits"`
}

// Remaining は残りラウンド数です。
func (c CollapseState) Remaining() int {
	return max(c.Allotment-c.Elapsed, 0)
}

func (c CollapseState) clone() CollapseState {
	out := c
	out.History = slices.Clone(c.History)
	return out
}

// Roller は乱数源です。*rand.Rand (math/rand/v2) が満たします。
type Roller interface {
	IntN(n int) int
	Float64() float64
}

// Collapse は崩壊フェーズのタイマー・イベント表・移動スパーク・緊急回廊を扱います。
type Collapse struct {
	st       *CollapseState
	board    *Board
	canon    *canon.Canon
	rng      Roller
	verifier *canon.Verifier
	emit     func(ctx context.Context, ev Event)
}

// State は現在の崩壊状態のコピーを返します。
func (c *Collapse) State() CollapseState {
	return c.st.clone()
}

func (c *Collapse) Active() bool {
	return c.st.Active
}

// Start は崩壊を開始し、タイマーをtimer_baseに設定します。
// Aidronが発見済みなら緊急回廊を即座に開きます。
func (c *Collapse) Start(ctx context.Context, s *State) {
	if c.st.Active {
		return
	}
	c.st.Active = true
	c.st.Base = c.canon.Collapse.TimerBase
	c.st.Cap = c.canon.Collapse.TimerCap
	c.st.Allotment = c.st.Base
	c.st.Elapsed = 0
	s.Collapsing = true

	slog.InfoContext(ctx, "collapse started", "timer", c.st.Allotment, "cap", c.st.Cap)
	c.emit(ctx, CollapseStarted{Allotment: c.st.Allotment})

	if s.AidronActivated && c.canon.Collapse.AidronAutoProtocol {
		c.ActivateEmergencyCorridor(ctx, s.Aidron, s.Exit)
	}
}

// Extend は残りラウンド数をn延長します。残りがtimer_capを超えることはありません。実際に延びた量を返します。
func (c *Collapse) Extend(ctx context.Context, n int) int {
	if !c.st.Active || n <= 0 {
		return 0
	}
	before := c.st.Allotment
	c.st.Allotment = c.st.Elapsed + min(c.st.Remaining()+n, c.st.Cap)
	c.verify(ctx)
	added := c.st.Allotment - before
	if added > 0 {
		c.emit(ctx, CollapseTimerChanged{Remaining: c.st.Remaining(), Allotment: c.st.Allotment})
	}
	return added
}

// Tick は1ラウンド経過させ、タイマーが尽きたかを返します。
func (c *Collapse) Tick(ctx context.Context) bool {
	if !c.st.Active {
		return false
	}
	if c.st.Remaining() > 0 {
		c.st.Elapsed++
	}
	c.verify(ctx)
	c.emit(ctx, CollapseTimerChanged{Remaining: c.st.Remaining(), Allotment: c.st.Allotment})
	return c.st.Remaining() == 0
}

// RollEvent はd6を振り、出目に対応するイベントを盤面に適用します。
func (c *Collapse) RollEvent(ctx context.Context, s *State) EventRoll {
	roll := c.rng.IntN(6) + 1
	rec := EventRoll{Round: s.Round, Roll: roll, Event: EventForRoll(roll)}

	switch rec.Event {
	case EventLightCascade:
		x := c.rng.IntN(max(c.board.Width-1, 1))
		y := c.rng.IntN(max(c.board.Height-1, 1))
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				p := Pos{X: x + dx, Y: y + dy}
				if c.board.LightTemporary(p, 1, SourceEvent) {
					rec.Cells = append(rec.Cells, p)
				}
			}
		}
	case EventDebrisPath:
		positions := s.ActivePositions()
		if len(positions) < 2 {
			break
		}
		i := c.rng.IntN(len(positions))
		j := c.rng.IntN(len(positions) - 1)
		if j >= i {
			j++
		}
		for _, p := range ManhattanPath(positions[i], positions[j]) {
			if c.board.LightTemporary(p, 1, SourceEvent) {
				rec.Cells = append(rec.Cells, p)
			}
		}
	case EventMemoryEcho:
		rec.Cells = s.ActivePositions()
		c.emit(ctx, MemoryEcho{Positions: slices.Clone(rec.Cells)})
	case EventTimeSlip:
		c.Extend(ctx, 1)
	case EventShatteredPath:
		var candidates []Pos
		for i, cell := range c.board.Cells {
			if cell.Light == Permanent && !cell.Source.Critical() {
				candidates = append(candidates, Pos{X: i % c.board.Width, Y: i / c.board.Width})
			}
		}
		if len(candidates) == 0 {
			break
		}
		p := candidates[c.rng.IntN(len(candidates))]
		if c.board.Extinguish(p) {
			rec.Cells = []Pos{p}
		}
	}

	c.st.History = append(c.st.History, rec)
	slog.DebugContext(ctx, "collapse event", "round", rec.Round, "roll", roll, "event", rec.Event)
	c.emit(ctx, CollapseRolled{Roll: rec})
	return rec
}

// RollMovementSpark は崩壊中の移動1回ごとに呼ばれ、spark_chanceで移動先を1ラウンド照らします。
func (c *Collapse) RollMovementSpark(ctx context.Context, dest Pos) bool {
	hit := c.rng.Float64() < c.canon.Collapse.SparkChance
	c.st.SparkRolls++
	if hit {
		c.st.SparkHits++
		c.board.LightTemporary(dest, 1, SourceSpark)
	}
	c.verifier.ObserveSpark(ctx, hit)
	c.emit(ctx, SparkRolled{At: dest, Hit: hit})
	return hit
}

// ActivateEmergencyCorridor はAidronからExitまでの単調な経路とその8近傍を恒久照明にします。
// 恒久化したマスを行優先順で返します。
func (c *Collapse) ActivateEmergencyCorridor(ctx context.Context, aidron, exit Pos) []Pos {
	cells := mapset.New[Pos]()
	for _, p := range ManhattanPath(aidron, exit) {
		cells.Put(p)
		for _, q := range c.board.Neighbors(p) {
			cells.Put(q)
		}
	}

	out := make([]Pos, 0, cells.Size())
	cells.Each(func(p Pos) {
		out = append(out, p)
	})
	slices.SortFunc(out, comparePos)

	for _, p := range out {
		src := SourceCorridor
		switch p {
		case aidron:
			src = SourceAidron
		case exit:
			src = SourceExit
		}
		c.board.MakePermanent(p, src)
	}
	c.st.CorridorActive = true

	slog.InfoContext(ctx, "emergency corridor activated", "cells", len(out), "aidron", aidron, "exit", exit)
	c.emit(ctx, CorridorActivated{Cells: slices.Clone(out)})
	return out
}

func (c *Collapse) verify(ctx context.Context) {
	c.st.Allotment = c.verifier.ClampRange(ctx, "collapse.allotment", c.st.Allotment, c.st.Base, c.st.Elapsed+c.st.Cap)
	c.verifier.CheckInvariant(ctx, "collapse.remaining_within_cap", c.st.Remaining() <= c.st.Cap, true)
}

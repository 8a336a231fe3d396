// Package effect はゲームのイベントをLEDリグのコマンドに変換します。
package effect

import (
	"context"
	"log/slog"
	"time"

	"umbra/game"
	"umbra/internal/schedule"
	"umbra/rig"
)

//go:generate go tool mockgen -destination=./mocks/sink_mock.go -package=mocks . Sink

// Sink はコマンドの送り先です。rig.Bridgeが満たします。
type Sink interface {
	Enqueue(ctx context.Context, c rig.Command) error
}

// 演出名
const (
	FxBreathingGlow    = "breathing_glow"
	FxFearRipple       = "fear_ripple"
	FxHeartbeat        = "heartbeat"
	FxCollapseAmbience = "collapse_ambience"
	FxCollapseTimer    = "collapse_timer"
	FxMemoryEcho       = "memory_echo"
	FxSignalPulse      = "signal_pulse"
	FxSparkFlash       = "spark_flash"
	FxFiled            = "filed"
	FxUnfiled          = "unfiled"
	FxAidronAwake      = "aidron_awake"
	FxExitRevealed     = "exit_revealed"
	FxCorridorSurge    = "corridor_surge"
	FxVictory          = "victory"
	FxDefeat           = "defeat"
)

const (
	BrightnessNormal   uint8 = 200
	BrightnessCollapse uint8 = 120
)

// Options は演出のタイミングです。
type Options struct {
	Palette Palette
	// HeartbeatEvery はHunting以上で鼓動演出を繰り返す間隔です。Crisisでは半分になります。
	HeartbeatEvery time.Duration
	// ResetAfter は決着後にclearを送るまでの時間です。
	ResetAfter time.Duration
}

func DefaultOptions() Options {
	return Options{
		Palette:        DefaultPalette(),
		HeartbeatEvery: 1200 * time.Millisecond,
		ResetAfter:     10 * time.Second,
	}
}

// Dispatcher はgame.Observerとしてイベントを受け、Sinkにコマンドを積みます。
// 機構の変化(セルの点灯)は主格子へのupdate_cell、雰囲気は副格子へのgame_effectに限ります。
// OnEventとResyncとスケジュール済みコールバックは同じgoroutine(ターンループ)から呼ばれる前提です。
type Dispatcher struct {
	sink  Sink
	grid  rig.Grid
	sched *schedule.Scheduler
	opts  Options

	mode      game.Mode
	modeSet   bool
	heartbeat schedule.Handle
	reset     schedule.Handle
}

var _ game.Observer = (*Dispatcher)(nil)

func New(sink Sink, grid rig.Grid, sched *schedule.Scheduler, opts Options) *Dispatcher {
	return &Dispatcher{sink: sink, grid: grid, sched: sched, opts: opts}
}

func (d *Dispatcher) OnEvent(ctx context.Context, ev game.Event) {
	switch e := ev.(type) {
	case game.CellChanged:
		d.cell(ctx, e.Pos, e.Cell)
	case game.NoiseChanged:
		d.setMode(ctx, e.Mode, e.Level)
	case game.SignalSent:
		d.around(ctx, FxSignalPulse, nil, e.At)
	case game.SparkRolled:
		if e.Hit {
			d.around(ctx, FxSparkFlash, nil, e.At)
		}
	case game.PlayerFiled:
		d.around(ctx, FxFiled, map[string]any{"player": string(e.Player)}, e.At)
	case game.PlayerUnfiled:
		d.ambient(ctx, FxUnfiled, map[string]any{"player": string(e.Player)})
	case game.FilerMoved:
		if e.Mode >= game.ModeCrisis {
			d.around(ctx, FxFearRipple, map[string]any{"intensity": 3}, e.To)
		}
	case game.AidronDiscovered:
		d.send(ctx, rig.LightPrimaries(d.opts.Palette.Safety))
		d.around(ctx, FxAidronAwake, nil, e.At)
	case game.ExitRevealed:
		d.around(ctx, FxExitRevealed, nil, e.At)
	case game.CorridorActivated:
		d.around(ctx, FxCorridorSurge, nil, e.Cells...)
	case game.CollapseStarted:
		d.send(ctx, rig.Brightness(BrightnessCollapse))
		d.ambient(ctx, FxCollapseAmbience, map[string]any{"allotment": e.Allotment})
	case game.CollapseTimerChanged:
		d.ambient(ctx, FxCollapseTimer, map[string]any{"remaining": e.Remaining, "allotment": e.Allotment})
	case game.MemoryEcho:
		d.around(ctx, FxMemoryEcho, nil, e.Positions...)
	case game.GameEnded:
		d.end(ctx, e.Outcome)
	}
}

// Resync は盤面全体を送り直します。再接続直後やスナップショット復元後に使います。
// clearの後に安全色の主格子を敷き直し、その上に点灯中のマスを重ねます。
func (d *Dispatcher) Resync(ctx context.Context, s game.State) {
	d.send(ctx, rig.Clear())
	level := BrightnessNormal
	if s.Collapsing {
		level = BrightnessCollapse
	}
	d.send(ctx, rig.Brightness(level))
	d.send(ctx, rig.LightPrimaries(d.opts.Palette.Safety))
	if s.Board != nil {
		for y := range s.Board.Height {
			for x := range s.Board.Width {
				p := game.Pos{X: x, Y: y}
				if c := s.Board.Cell(p); c.Lit() {
					d.cell(ctx, p, c)
				}
			}
		}
	}
	d.modeSet = false
	d.setMode(ctx, game.ModeFor(s.Noise), s.Noise)
	slog.InfoContext(ctx, "effect: board resynced", "round", s.Round, "phase", s.Phase)
}

func (d *Dispatcher) cell(ctx context.Context, p game.Pos, c game.Cell) {
	target := d.grid.Physical(p.X, p.Y)
	switch c.Light {
	case game.Permanent:
		d.send(ctx, rig.UpdateCell(target, d.opts.Palette.For(c.Source), rig.Perm))
	case game.Temporary:
		d.send(ctx, rig.UpdateCell(target, d.opts.Palette.For(c.Source), rig.Turns(min(max(c.Remaining, 1), 3))))
	default:
		d.send(ctx, rig.UpdateCell(target, rig.RGB{}, rig.Perm))
	}
}

// setMode は追跡者のモードが変わったときだけ雰囲気演出を切り替えます。
func (d *Dispatcher) setMode(ctx context.Context, m game.Mode, noise int) {
	if d.modeSet && m == d.mode {
		return
	}
	d.mode, d.modeSet = m, true
	if d.heartbeat != 0 {
		d.sched.Cancel(d.heartbeat)
		d.heartbeat = 0
	}

	switch m {
	case game.ModeDormant:
		d.ambient(ctx, FxBreathingGlow, map[string]any{"noise": noise})
	default:
		d.ambient(ctx, FxFearRipple, map[string]any{"mode": m.String(), "noise": noise})
	}
	if m >= game.ModeHunting && d.opts.HeartbeatEvery > 0 {
		every := d.opts.HeartbeatEvery
		if m == game.ModeCrisis {
			every /= 2
		}
		mode := m.String()
		d.heartbeat = d.sched.Every(every, func(ctx context.Context) {
			d.ambient(ctx, FxHeartbeat, map[string]any{"mode": mode})
		})
	}
}

func (d *Dispatcher) end(ctx context.Context, o game.Outcome) {
	if d.heartbeat != 0 {
		d.sched.Cancel(d.heartbeat)
		d.heartbeat = 0
	}
	name := FxDefeat
	if o == game.OutcomeWin {
		name = FxVictory
	}
	d.ambient(ctx, name, nil)
	if d.reset != 0 {
		d.sched.Cancel(d.reset)
	}
	d.reset = d.sched.After(d.opts.ResetAfter, func(ctx context.Context) {
		d.reset = 0
		d.send(ctx, rig.Clear())
	})
}

// around は論理セルを囲む副格子に演出を出します。
func (d *Dispatcher) around(ctx context.Context, name string, params map[string]any, at ...game.Pos) {
	var cells []rig.Point
	for _, p := range at {
		cells = append(cells, d.grid.Halo(d.grid.Physical(p.X, p.Y))...)
	}
	if len(cells) == 0 {
		return
	}
	d.send(ctx, rig.GameEffect(name, params, cells...))
}

func (d *Dispatcher) ambient(ctx context.Context, name string, params map[string]any) {
	d.send(ctx, rig.GameEffect(name, params))
}

func (d *Dispatcher) send(ctx context.Context, c rig.Command) {
	if err := d.sink.Enqueue(ctx, c); err != nil {
		slog.WarnContext(ctx, "effect: command not queued", "type", c.Type, "name", c.Name, "err", err)
	}
}

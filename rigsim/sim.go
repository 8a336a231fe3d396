// Package rigsim はLEDリグのファームウェアを模したシミュレータです。
// ブリッジからのフレームを検証し、コマンド毎にACKまたはERRORを返します。
package rigsim

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"umbra/rig"
)

// ファームウェアが返すエラーコード
const (
	CodeRange   = "E_RANGE"
	CodeParity  = "E_PARITY"
	CodeUnknown = "E_UNKNOWN"
	CodeDecode  = "E_DECODE"
	CodeBusy    = "E_BUSY"
)

const recentEffects = 32

type Pixel struct {
	Lit      bool              `json:"lit"`
	RGB      rig.RGB           `json:"rgb"`
	Duration rig.DurationTurns `json:"duration"`
}

// FrameView はある時点のLED表示内容です。
type FrameView struct {
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Brightness uint8    `json:"brightness"`
	Safety     bool     `json:"safety"`
	Pixels     []Pixel  `json:"pixels"`
	Effects    []string `json:"effects"`
}

func (f FrameView) At(p rig.Point) Pixel {
	return f.Pixels[p.Y*f.Width+p.X]
}

type Stats struct {
	Connections int64 `json:"connections"`
	Applied     int64 `json:"applied"`
	Rejected    int64 `json:"rejected"`
	Keepalives  int64 `json:"keepalives"`
}

// Sim はLED格子の状態を保持します。Applyは複数の接続から呼ばれても安全です。
type Sim struct {
	grid rig.Grid

	mu         sync.Mutex
	pixels     []Pixel
	brightness uint8
	safety     bool
	effects    []string
	failNext   int

	connections atomic.Int64
	applied     atomic.Int64
	rejected    atomic.Int64
	keepalives  atomic.Int64
}

func New(grid rig.Grid) *Sim {
	return &Sim{
		grid:       grid,
		pixels:     make([]Pixel, grid.Width*grid.Height),
		brightness: 255,
	}
}

// FailNext は次のn件のコマンドをE_BUSYで失敗させます。
func (s *Sim) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *Sim) Stats() Stats {
	return Stats{
		Connections: s.connections.Load(),
		Applied:     s.applied.Load(),
		Rejected:    s.rejected.Load(),
		Keepalives:  s.keepalives.Load(),
	}
}

func (s *Sim) Frame() FrameView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FrameView{
		Width:      s.grid.Width,
		Height:     s.grid.Height,
		Brightness: s.brightness,
		Safety:     s.safety,
		Pixels:     append([]Pixel(nil), s.pixels...),
		Effects:    append([]string(nil), s.effects...),
	}
}

// Apply は1フレームを処理し、含まれるコマンドそれぞれへの応答を返します。
func (s *Sim) Apply(frame []byte) ([]rig.Response, error) {
	var env rig.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type != rig.TypeBatch {
		return []rig.Response{s.applyOne(env)}, nil
	}
	var batch rig.BatchData
	if err := json.Unmarshal(env.Data, &batch); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", env.ID, err)
	}
	out := make([]rig.Response, 0, len(batch.Commands))
	for _, c := range batch.Commands {
		out = append(out, s.applyOne(c))
	}
	return out, nil
}

func (s *Sim) applyOne(env rig.Envelope) rig.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext > 0 {
		s.failNext--
		return s.fail(env, CodeBusy, "strip busy")
	}

	switch env.Type {
	case rig.TypeUpdateCell:
		var d rig.UpdateCellData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return s.fail(env, CodeDecode, err.Error())
		}
		p := s.unwire(rig.Point{X: d.X, Y: d.Y})
		if !s.grid.InBounds(p) {
			return s.fail(env, CodeRange, fmt.Sprintf("%v outside %dx%d", p, s.grid.Width, s.grid.Height))
		}
		if !p.Primary() {
			return s.fail(env, CodeParity, fmt.Sprintf("update_cell on secondary %v", p))
		}
		lit := d.RGB != (rig.RGB{})
		s.pixels[p.Y*s.grid.Width+p.X] = Pixel{Lit: lit, RGB: d.RGB, Duration: d.Duration}

	case rig.TypeGameEffect:
		var d struct {
			Name   string `json:"name"`
			Params struct {
				Cells []rig.Point `json:"cells"`
			} `json:"params"`
		}
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return s.fail(env, CodeDecode, err.Error())
		}
		for _, c := range d.Params.Cells {
			p := s.unwire(c)
			if !s.grid.InBounds(p) {
				return s.fail(env, CodeRange, fmt.Sprintf("%v outside grid", p))
			}
			if p.Primary() {
				return s.fail(env, CodeParity, fmt.Sprintf("game_effect %s on primary %v", d.Name, p))
			}
		}
		s.remember(d.Name)

	case rig.TypeEffect:
		var d rig.EffectData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return s.fail(env, CodeDecode, err.Error())
		}
		if d.Name == rig.KeepaliveEffect {
			s.keepalives.Add(1)
		} else {
			s.remember(d.Name)
		}

	case rig.TypeBrightness:
		var d rig.BrightnessData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return s.fail(env, CodeDecode, err.Error())
		}
		s.brightness = d.Level

	case rig.TypeClear:
		clear(s.pixels)
		s.effects = s.effects[:0]
		s.safety = false

	case rig.TypeLightPrimaries:
		var d rig.LightPrimariesData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return s.fail(env, CodeDecode, err.Error())
		}
		// 暗い主格子だけを安全色で灯す
		for y := 0; y < s.grid.Height; y += 2 {
			for x := 0; x < s.grid.Width; x += 2 {
				px := &s.pixels[y*s.grid.Width+x]
				if !px.Lit {
					*px = Pixel{Lit: true, RGB: d.RGB, Duration: rig.Perm}
				}
			}
		}
		s.safety = true

	default:
		return s.fail(env, CodeUnknown, fmt.Sprintf("unknown type %q", env.Type))
	}

	s.applied.Add(1)
	return rig.Response{Type: rig.TypeAck, CommandID: env.ID, OK: true}
}

func (s *Sim) fail(env rig.Envelope, code, msg string) rig.Response {
	s.rejected.Add(1)
	return rig.Response{Type: rig.TypeError, CommandID: env.ID, Code: code, Msg: msg}
}

// unwire は配線順の座標を物理座標に戻します。蛇行変換は自分自身の逆写像です。
func (s *Sim) unwire(p rig.Point) rig.Point {
	return s.grid.Wire(p)
}

func (s *Sim) remember(name string) {
	s.effects = append(s.effects, name)
	if len(s.effects) > recentEffects {
		s.effects = s.effects[len(s.effects)-recentEffects:]
	}
}

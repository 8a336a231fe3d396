package rig

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Class はコマンドの重要度です。Primaryはゲームの機構を表し、落としてはいけません。
type Class uint8

const (
	ClassSystem Class = iota
	ClassPrimary
	ClassSecondary
)

func (c Class) String() string {
	switch c {
	case ClassSystem:
		return "system"
	case ClassPrimary:
		return "primary"
	case ClassSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Command はリグへ送る1件の命令です。Targetsは物理座標(蛇行変換前)です。
type Command struct {
	ID      string
	Type    CommandType
	Class   Class
	Created time.Time
	Targets []Point

	RGB      RGB
	Duration DurationTurns
	Name     string
	Params   map[string]any
	Level    uint8

	attempts int
}

// UpdateCell は主格子セルの点灯命令を作ります。
func UpdateCell(p Point, rgb RGB, d DurationTurns) Command {
	return Command{Type: TypeUpdateCell, Class: ClassPrimary, Targets: []Point{p}, RGB: rgb, Duration: d}
}

// GameEffect は副格子への演出命令を作ります。cellsは演出対象の物理座標です。
func GameEffect(name string, params map[string]any, cells ...Point) Command {
	return Command{Type: TypeGameEffect, Class: ClassSecondary, Targets: cells, Name: name, Params: params}
}

// Effect は座標を持たない全体演出です。
func Effect(name string) Command {
	return Command{Type: TypeEffect, Class: ClassSystem, Name: name}
}

func Brightness(level uint8) Command {
	return Command{Type: TypeBrightness, Class: ClassSystem, Level: level}
}

func Clear() Command {
	return Command{Type: TypeClear, Class: ClassSystem}
}

// LightPrimaries は演出なしで主格子だけを点灯させる安全モード命令です。
func LightPrimaries(rgb RGB) Command {
	return Command{Type: TypeLightPrimaries, Class: ClassSystem, RGB: rgb}
}

// Droppable は過負荷時に捨ててよいコマンドかを返します。
func (c Command) Droppable() bool {
	return c.Class == ClassSecondary
}

func (c Command) stamp(now time.Time) Command {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Created.IsZero() {
		c.Created = now
	}
	return c
}

// encode はコマンドを送信用のEnvelopeに変換します。座標はgridの配線順に写像されます。
func (c Command) encode(g Grid) (Envelope, error) {
	var data any
	switch c.Type {
	case TypeUpdateCell:
		if len(c.Targets) != 1 {
			return Envelope{}, fmt.Errorf("%w: update_cell needs exactly one target", ErrProtocol)
		}
		w := g.Wire(c.Targets[0])
		data = UpdateCellData{X: w.X, Y: w.Y, RGB: c.RGB, Duration: c.Duration}
	case TypeGameEffect:
		params := make(map[string]any, len(c.Params)+1)
		for k, v := range c.Params {
			params[k] = v
		}
		if len(c.Targets) > 0 {
			cells := make([]Point, len(c.Targets))
			for i, p := range c.Targets {
				cells[i] = g.Wire(p)
			}
			params["cells"] = cells
		}
		data = GameEffectData{Name: c.Name, Params: params}
	case TypeEffect:
		data = EffectData{Name: c.Name}
	case TypeBrightness:
		data = BrightnessData{Level: c.Level}
	case TypeLightPrimaries:
		data = LightPrimariesData{RGB: c.RGB}
	case TypeClear:
	default:
		return Envelope{}, fmt.Errorf("%w: unknown command type %q", ErrProtocol, c.Type)
	}

	env := Envelope{Type: c.Type, ID: c.ID, TS: c.Created.UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		env.Data = raw
	}
	return env, nil
}

// encodeBatch は複数コマンドを1つのbatchフレームにまとめます。
// 符号化できなかったコマンドはrejectedとして返します。
func encodeBatch(id string, now time.Time, g Grid, cmds []Command) (frame []byte, sent []Command, rejected []Command, err error) {
	envs := make([]Envelope, 0, len(cmds))
	for _, c := range cmds {
		env, encErr := c.encode(g)
		if encErr != nil {
			rejected = append(rejected, c)
			continue
		}
		envs = append(envs, env)
		sent = append(sent, c)
	}
	if len(envs) == 0 {
		return nil, nil, rejected, nil
	}
	raw, err := json.Marshal(BatchData{Commands: envs})
	if err != nil {
		return nil, nil, rejected, err
	}
	frame, err = json.Marshal(Envelope{Type: TypeBatch, ID: id, TS: now.UnixMilli(), Data: raw})
	if err != nil {
		return nil, nil, rejected, err
	}
	return frame, sent, rejected, nil
}

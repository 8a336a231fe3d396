package rig

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CommandType はLEDリグのプロトコルで使うメッセージ種別です。
type CommandType string

const (
	TypeUpdateCell     CommandType = "update_cell"
	TypeGameEffect     CommandType = "game_effect"
	TypeEffect         CommandType = "effect"
	TypeBrightness     CommandType = "brightness"
	TypeClear          CommandType = "clear"
	TypeLightPrimaries CommandType = "light_primaries"
	TypeBatch          CommandType = "batch"

	TypeAck   CommandType = "ACK"
	TypeError CommandType = "ERROR"
)

// Envelope はリグとやり取りする全メッセージの共通形式です。
type Envelope struct {
	Type CommandType     `json:"type"`
	ID   string          `json:"id"`
	TS   int64           `json:"ts"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response はリグからのACKまたはERRORです。CommandIDで送信済みコマンドと対応付けます。
type Response struct {
	Type      CommandType `json:"type"`
	CommandID string      `json:"command_id"`
	OK        bool        `json:"ok,omitempty"`
	Code      string      `json:"code,omitempty"`
	Msg       string      `json:"msg,omitempty"`
}

// Failed はリグがコマンドを受理しなかったかを返します。
func (r Response) Failed() bool {
	return r.Type == TypeError || (r.Type == TypeAck && !r.OK)
}

type RGB [3]uint8

// DurationTurns は点灯の持続ターン数です。1〜3または恒久("perm")を取ります。
type DurationTurns struct {
	Turns int
	Perm  bool
}

func Turns(n int) DurationTurns { return DurationTurns{Turns: n} }

var Perm = DurationTurns{Perm: true}

func (d DurationTurns) Valid() bool {
	return d.Perm || (d.Turns >= 1 && d.Turns <= 3)
}

func (d DurationTurns) MarshalJSON() ([]byte, error) {
	if d.Perm {
		return []byte(`"perm"`), nil
	}
	if !d.Valid() {
		return nil, fmt.Errorf("duration_turns %d out of range", d.Turns)
	}
	return json.Marshal(d.Turns)
}

func (d *DurationTurns) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte(`"perm"`)) {
		*d = Perm
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration_turns: %w", err)
	}
	*d = Turns(n)
	if !d.Valid() {
		return fmt.Errorf("duration_turns %d out of range", n)
	}
	return nil
}

type UpdateCellData struct {
	X        int           `json:"x"`
	Y        int           `json:"y"`
	RGB      RGB           `json:"rgb"`
	Duration DurationTurns `json:"duration_turns"`
}

type GameEffectData struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

type EffectData struct {
	Name string `json:"name"`
}

type BrightnessData struct {
	Level uint8 `json:"level"`
}

type LightPrimariesData struct {
	RGB RGB `json:"rgb"`
}

type BatchData struct {
	Commands []Envelope `json:"commands"`
}

// ParseResponse はリグからのフレームをResponseとして解釈します。
func ParseResponse(data []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if r.Type != TypeAck && r.Type != TypeError {
		return Response{}, fmt.Errorf("%w: unexpected frame type %q", ErrProtocol, r.Type)
	}
	if r.CommandID == "" {
		return Response{}, fmt.Errorf("%w: response without command_id", ErrProtocol)
	}
	return r, nil
}

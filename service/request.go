package service

import (
	"umbra/canon"
	"umbra/game"
)

// Meta はリクエストの付帯情報です。
type Meta struct {
	RequestID string `json:"request_id,omitempty"`
}

// Intent はUIから届く1件の行動要求です。どの項目が必要かは行動種別によります。
type Intent struct {
	Meta    Meta           `json:"meta"`
	Player  game.PlayerID  `json:"player"`
	Target  *game.Pos      `json:"target,omitempty"`
	Token   canon.TokenUse `json:"token,omitempty"`
	Subject game.PlayerID  `json:"subject,omitempty"`
}

// View は行動適用後にUIへ返す状態です。
type View struct {
	Session  string             `json:"session"`
	State    game.State         `json:"state"`
	Collapse game.CollapseState `json:"collapse"`
	Mode     game.Mode          `json:"mode"`
	Current  game.PlayerID      `json:"current,omitempty"`
}

func (in Intent) action(kind game.ActionKind) game.Action {
	var target game.Pos
	if in.Target != nil {
		target = *in.Target
	}
	a := game.Action{Kind: kind, Target: target}
	if kind == game.ActionUseToken {
		a.Token = in.Token
		a.Subject = in.Subject
	}
	return a
}

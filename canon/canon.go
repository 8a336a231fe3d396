package canon

import (
	_ "embed"
	"slices"
)

// TokenUse はトークンの使い道を表す識別子です。
type TokenUse string

const (
	TokenSparkBridge TokenUse = "spark_bridge_pre_collapse"
	TokenUnfile      TokenUse = "unfile_during_collapse"
)

// Canon はゲームルールの数値パラメータをまとめた不変のテーブルです。
// 起動時に一度だけロードされ、以後は読み取り専用として扱います。
type Canon struct {
	Version       string        `json:"version"`
	ActionEconomy ActionEconomy `json:"action_economy"`
	Collapse      Collapse      `json:"collapse"`
	Tokens        Tokens        `json:"tokens"`
	Lighting      Lighting      `json:"lighting"`
	Noise         Noise         `json:"noise"`
}

// ActionEconomy は1ターンあたりの行動予算です。
type ActionEconomy struct {
	IlluminatePerTurn   int `json:"illuminate_per_turn"`
	OtherActionsPerTurn int `json:"other_actions_per_turn"`
	MovesPreCollapse    int `json:"moves_pre_collapse"`
	MovesDuringCollapse int `json:"moves_during_collapse"`
}

// Collapse は崩壊フェーズのタイマーと確率パラメータです。
type Collapse struct {
	TimerBase          int     `json:"timer_base"`
	TimerCap           int     `json:"timer_cap"`
	SparkChance        float64 `json:"spark_chance"`
	AidronAutoProtocol bool    `json:"aidron_auto_protocol"`
}

// Tokens はトークン経済の設定です。
type Tokens struct {
	Uses              []TokenUse `json:"uses"`
	StartingPerPlayer int        `json:"starting_per_player"`
}

// Lighting は一時的な明かりの持続ラウンド数です。
type Lighting struct {
	IlluminateRounds  int `json:"illuminate_rounds"`
	SparkBridgeRounds int `json:"spark_bridge_rounds"`
}

// Noise は行動ごとの騒音量とラウンドごとの減衰量です。
type Noise struct {
	Illuminate    int `json:"illuminate"`
	Signal        int `json:"signal"`
	Token         int `json:"token"`
	Filing        int `json:"filing"`
	DecayPerRound int `json:"decay_per_round"`
}

//go:embed default.json
var defaultJSON []byte

// Default は組み込みのcanonを返します。
func Default() *Canon {
	c, err := Parse(defaultJSON)
	if err != nil {
		panic("canon: embedded default is invalid: " + err.Error())
	}
	return c
}

// Allows はトークンの使い道がcanonで許可されているかを返します。
func (c *Canon) Allows(use TokenUse) bool {
	return slices.Contains(c.Tokens.Uses, use)
}

// MovesPerTurn はフェーズに応じた移動回数を返します。
func (c *Canon) MovesPerTurn(collapsing bool) int {
	if collapsing {
		return c.ActionEconomy.MovesDuringCollapse
	}
	return c.ActionEconomy.MovesPreCollapse
}

// Clone はスライスを含めて複製します。
func (c *Canon) Clone() *Canon {
	out := *c
	out.Tokens.Uses = slices.Clone(c.Tokens.Uses)
	return &out
}

package canon

import (
	"errors"
	"fmt"

	apperrors "umbra/internal/errors"
)

const (
	TimerCapMin    = 3
	TimerCapMax    = 5
	SparkChanceMin = 0.70
	SparkChanceMax = 0.80
)

// ErrSchemaViolation はスキーマ違反の判定に使う番兵です。errors.Isでコード比較されます。
var ErrSchemaViolation = apperrors.New(apperrors.CodeSchemaViolation, "canon schema violation")

// ValidateSchema はcanonが固定スキーマ（完全一致・範囲・必須要素）を満たすか検証します。
// 失敗はすべて致命的で、ゲーム開始を止めなければなりません。
func ValidateSchema(c *Canon) error {
	if c == nil {
		return apperrors.New(apperrors.CodeSchemaViolation, "canon: nil canon")
	}
	var errs []error
	exact := func(key string, got, want int) {
		if got != want {
			errs = append(errs, fmt.Errorf("%s = %d, want %d", key, got, want))
		}
	}

	exact("action_economy.illuminate_per_turn", c.ActionEconomy.IlluminatePerTurn, 1)
	exact("action_economy.other_actions_per_turn", c.ActionEconomy.OtherActionsPerTurn, 1)
	exact("action_economy.moves_pre_collapse", c.ActionEconomy.MovesPreCollapse, 1)
	exact("action_economy.moves_during_collapse", c.ActionEconomy.MovesDuringCollapse, 2)
	exact("collapse.timer_base", c.Collapse.TimerBase, 3)

	if c.Collapse.TimerCap < TimerCapMin || c.Collapse.TimerCap > TimerCapMax {
		errs = append(errs, fmt.Errorf("collapse.timer_cap = %d, want within [%d,%d]", c.Collapse.TimerCap, TimerCapMin, TimerCapMax))
	}
	if c.Collapse.TimerCap < c.Collapse.TimerBase {
		errs = append(errs, fmt.Errorf("collapse.timer_cap = %d, want >= timer_base %d", c.Collapse.TimerCap, c.Collapse.TimerBase))
	}
	if c.Collapse.SparkChance < SparkChanceMin || c.Collapse.SparkChance > SparkChanceMax {
		errs = append(errs, fmt.Errorf("collapse.spark_chance = %.2f, want within [%.2f,%.2f]", c.Collapse.SparkChance, SparkChanceMin, SparkChanceMax))
	}
	if !c.Collapse.AidronAutoProtocol {
		errs = append(errs, errors.New("collapse.aidron_auto_protocol = false, want true"))
	}
	for _, use := range []TokenUse{TokenSparkBridge, TokenUnfile} {
		if !c.Allows(use) {
			errs = append(errs, fmt.Errorf("tokens.uses is missing %q", use))
		}
	}

	if c.Tokens.StartingPerPlayer < 0 {
		errs = append(errs, fmt.Errorf("tokens.starting_per_player = %d, want >= 0", c.Tokens.StartingPerPlayer))
	}
	if c.Lighting.IlluminateRounds < 1 || c.Lighting.IlluminateRounds > 3 {
		errs = append(errs, fmt.Errorf("lighting.illuminate_rounds = %d, want within [1,3]", c.Lighting.IlluminateRounds))
	}
	if c.Lighting.SparkBridgeRounds < 1 || c.Lighting.SparkBridgeRounds > 3 {
		errs = append(errs, fmt.Errorf("lighting.spark_bridge_rounds = %d, want within [1,3]", c.Lighting.SparkBridgeRounds))
	}
	if c.Noise.DecayPerRound < 0 {
		errs = append(errs, fmt.Errorf("noise.decay_per_round = %d, want >= 0", c.Noise.DecayPerRound))
	}

	if len(errs) == 0 {
		return nil
	}
	joined := errors.Join(errs...)
	return apperrors.Wrap(apperrors.CodeSchemaViolation, "canon: schema validation failed: "+joined.Error(), joined)
}

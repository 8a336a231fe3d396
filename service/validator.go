package service

import (
	"errors"
	"fmt"

	"umbra/canon"
	"umbra/game"
)

// SimpleValidator は最低限の入力検証を提供するデフォルト実装。
// 盤面やルールに依存する判定はEngineに任せる。
type SimpleValidator struct{}

func (SimpleValidator) Intent(kind game.ActionKind, in Intent) error {
	if in.Player == "" {
		return errors.New("player id is required")
	}
	switch kind {
	case game.ActionPlace, game.ActionMove, game.ActionIlluminate:
		if in.Target == nil {
			return fmt.Errorf("%s requires a target", kind)
		}
		if in.Target.X < 0 || in.Target.Y < 0 {
			return fmt.Errorf("invalid target: %+v", *in.Target)
		}
	case game.ActionSignal, game.ActionEndTurn:
		if in.Target != nil {
			return fmt.Errorf("%s takes no target", kind)
		}
	case game.ActionUseToken:
		switch in.Token {
		case canon.TokenSparkBridge:
			if in.Target == nil {
				return errors.New("spark bridge requires a target")
			}
		case canon.TokenUnfile:
			if in.Subject == "" {
				return errors.New("unfile requires a subject")
			}
		case "":
			return errors.New("token use is required")
		default:
			return fmt.Errorf("unknown token use %q", in.Token)
		}
	default:
		return fmt.Errorf("unknown action %s", kind)
	}
	return nil
}

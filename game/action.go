package game

import (
	"fmt"

	"umbra/canon"
	apperrors "umbra/internal/errors"
)

// ActionKind はプレイヤー行動の種別です。
type ActionKind uint8

const (
	ActionPlace ActionKind = iota + 1
	ActionMove
	ActionIlluminate
	ActionSignal
	ActionUseToken
	ActionEndTurn
)

func (k ActionKind) String() string {
	switch k {
	case ActionPlace:
		return "place"
	case ActionMove:
		return "move"
	case ActionIlluminate:
		return "illuminate"
	case ActionSignal:
		return "signal"
	case ActionUseToken:
		return "use_token"
	case ActionEndTurn:
		return "end_turn"
	default:
		return fmt.Sprintf("ActionKind(%d)", k)
	}
}

// Action はプレイヤー1人の1行動です。
// Targetは移動先・照明先・配置先・ブリッジ先、Subjectはトークンでアンファイルする相手です。
type Action struct {
	Kind    ActionKind
	Target  Pos
	Token   canon.TokenUse
	Subject PlayerID
}

func Place(at Pos) Action        { return Action{Kind: ActionPlace, Target: at} }
func Move(to Pos) Action         { return Action{Kind: ActionMove, Target: to} }
func Illuminate(at Pos) Action   { return Action{Kind: ActionIlluminate, Target: at} }
func Signal() Action             { return Action{Kind: ActionSignal} }
func EndTurn() Action            { return Action{Kind: ActionEndTurn} }
func SparkBridge(to Pos) Action  { return Action{Kind: ActionUseToken, Token: canon.TokenSparkBridge, Target: to} }
func Unfile(who PlayerID) Action { return Action{Kind: ActionUseToken, Token: canon.TokenUnfile, Subject: who} }

// Reason は行動が拒否された理由コードです。
type Reason string

const (
	ReasonNotPlayable     Reason = "not_playable"
	ReasonUnknownPlayer   Reason = "unknown_player"
	ReasonNotYourTurn     Reason = "not_your_turn"
	ReasonPlayerFiled     Reason = "player_filed"
	ReasonAlreadyPlaced   Reason = "already_placed"
	ReasonBudgetExhausted Reason = "budget_exhausted"
	ReasonOutOfBounds     Reason = "out_of_bounds"
	ReasonNotAdjacent     Reason = "not_adjacent"
	ReasonOccupied        Reason = "occupied"
	ReasonNoToken         Reason = "no_token"
	ReasonTokenNotAllowed Reason = "token_not_allowed"
	ReasonInvalidTarget   Reason = "invalid_target"
	ReasonUnknownAction   Reason = "unknown_action"
)

// ErrActionRejected は行動拒否の番兵です。errors.Isでコード比較されます。
var ErrActionRejected = apperrors.New(apperrors.CodeActionRejected, "action rejected")

// RejectError は拒否された行動と理由を保持します。状態は変更されていません。
type RejectError struct {
	Player PlayerID
	Kind   ActionKind
	Reason Reason
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s rejected for %s: %s", e.Kind, e.Player, e.Reason)
}

func (e *RejectError) Unwrap() error {
	return ErrActionRejected
}

func reject(id PlayerID, kind ActionKind, reason Reason) error {
	return &RejectError{Player: id, Kind: kind, Reason: reason}
}

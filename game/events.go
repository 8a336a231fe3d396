package game

import "context"

// Event はEngineが発行するドメインイベントです。型の集合はこのパッケージで閉じています。
type Event interface {
	event()
}

// Observer はEngineのイベント購読者です。構成時に明示的に登録します。
// OnEventはターン処理中に同期的に呼ばれるため、ブロックしてはいけません。
type Observer interface {
	OnEvent(ctx context.Context, ev Event)
}

// ObserverFunc は関数をObserverとして扱うアダプタです。
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }

type PhaseChanged struct {
	From, To Phase
}

type CellChanged struct {
	Pos  Pos
	Cell Cell
}

type PlayerPlaced struct {
	Player PlayerID
	At     Pos
}

type PlayerMoved struct {
	Player   PlayerID
	From, To Pos
}

type PlayerFiled struct {
	Player PlayerID
	By     FilerID
	At     Pos
}

type PlayerUnfiled struct {
	Player PlayerID
	By     PlayerID
}

type TokenGained struct {
	Player PlayerID
	At     Pos
	Tokens int
}

type SignalSent struct {
	Player PlayerID
	At     Pos
}

type NoiseChanged struct {
	Level int
	Mode  Mode
}

type FilerMoved struct {
	Filer    FilerID
	From, To Pos
	Mode     Mode
}

type FilerSpawned struct {
	Filer FilerID
	At    Pos
}

type AidronDiscovered struct {
	At Pos
}

type ExitRevealed struct {
	At Pos
}

type CollapseStarted struct {
	Allotment int
}

type CollapseTimerChanged struct {
	Remaining int
	Allotment int
}

type CollapseRolled struct {
	Roll EventRoll
}

type MemoryEcho struct {
	Positions []Pos
}

type SparkRolled struct {
	At  Pos
	Hit bool
}

type CorridorActivated struct {
	Cells []Pos
}

type RoundAdvanced struct {
	Round int
}

type TurnStarted struct {
	Player PlayerID
	Budget Budget
}

type GameEnded struct {
	Outcome Outcome
}

func (PhaseChanged) event()         {}
func (CellChanged) event()          {}
func (PlayerPlaced) event()         {}
func (PlayerMoved) event()          {}
func (PlayerFiled) event()          {}
func (PlayerUnfiled) event()        {}
func (TokenGained) event()          {}
func (SignalSent) event()           {}
func (NoiseChanged) event()         {}
func (FilerMoved) event()           {}
func (FilerSpawned) event()         {}
func (AidronDiscovered) event()     {}
func (ExitRevealed) event()         {}
func (CollapseStarted) event()      {}
func (CollapseTimerChanged) event() {}
func (CollapseRolled) event()       {}
func (MemoryEcho) event()           {}
func (SparkRolled) event()          {}
func (CorridorActivated) event()    {}
func (RoundAdvanced) event()        {}
func (TurnStarted) event()          {}
func (GameEnded) event()            {}

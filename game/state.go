package game

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Phase はゲームの進行段階です。遷移は一方向のみで、飛ばすことも戻ることもできません。
type Phase uint8

const (
	PhaseOpening Phase = iota
	PhaseSearch
	PhaseNetwork
	PhaseEscape
	PhaseCollapse
	PhaseEnded
)

var phaseNames = [...]string{"OPENING", "SEARCH", "NETWORK", "ESCAPE", "COLLAPSE", "ENDED"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", p)
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Playable はプレイヤーがターン行動できる段階かを返します。
func (p Phase) Playable() bool {
	return p >= PhaseSearch && p <= PhaseCollapse
}

// Outcome は終了時の結果です。
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeWin
	OutcomeLoss
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLoss:
		return "loss"
	default:
		return "none"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "win":
		*o = OutcomeWin
	case "loss":
		*o = OutcomeLoss
	case "none", "":
		*o = OutcomeNone
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

type PlayerID string

// FilerID はFilerの識別子です。
type FilerID string

func NewFilerID() FilerID {
	return FilerID(uuid.NewString())
}

// Budget は1ターン分の行動予算の残量です。
type Budget struct {
	MovesLeft      int  `json:"moves_left"`
	IlluminateUsed bool `json:"illuminate_used"`
	OtherUsed      bool `json:"other_used"`
}

type Player struct {
	ID     PlayerID `json:"id"`
	Pos    Pos      `json:"pos"`
	Placed bool     `json:"placed"`
	Tokens int      `json:"tokens"`
	Filed  bool     `json:"filed"`
	Budget Budget   `json:"budget"`
}

// Active は盤上で行動可能なプレイヤーかを返します。
func (p Player) Active() bool {
	return p.Placed && !p.Filed
}

type Filer struct {
	ID  FilerID `json:"id"`
	Pos Pos     `json:"pos"`
}

// State はゲーム全体の状態です。Engine以外から変更してはいけません。
type State struct {
	Phase   Phase    `json:"phase"`
	Outcome Outcome  `json:"outcome"`
	Round   int      `json:"round"`
	Players []Player `json:"players"`
	Filers  []Filer  `json:"filers"`
	Board   *Board   `json:"board"`
	Noise   int      `json:"noise"`

	Aidron          Pos  `json:"aidron"`
	Exit            Pos  `json:"exit"`
	AidronActivated bool `json:"aidron_activated"`
	ExitSeen        bool `json:"exit_seen"`
	Collapsing      bool `json:"collapsing"`

	Order []PlayerID `json:"order"`
	Turn  int        `json:"turn"`
}

func (s *State) player(id PlayerID) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// Player は指定IDのプレイヤーのコピーを返します。
func (s State) Player(id PlayerID) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// FilerAt は指定座標にいるFilerを返します。
func (s *State) FilerAt(pos Pos) (Filer, bool) {
	for _, f := range s.Filers {
		if f.Pos == pos {
			return f, true
		}
	}
	return Filer{}, false
}

// ActivePlayerAt は指定座標に行動可能なプレイヤーがいるかを返します。
func (s *State) ActivePlayerAt(pos Pos) bool {
	for i := range s.Players {
		if s.Players[i].Active() && s.Players[i].Pos == pos {
			return true
		}
	}
	return false
}

// ActivePositions は行動可能なプレイヤーの座標を並び順で返します。
func (s *State) ActivePositions() []Pos {
	var out []Pos
	for i := range s.Players {
		if s.Players[i].Active() {
			out = append(out, s.Players[i].Pos)
		}
	}
	return out
}

// CurrentPlayer は手番のプレイヤーIDを返します。
func (s *State) CurrentPlayer() (PlayerID, bool) {
	if !s.Phase.Playable() || s.Turn < 0 || s.Turn >= len(s.Order) {
		return "", false
	}
	return s.Order[s.Turn], true
}

// Sanctuary は崩壊中にFilerが手を出せない恒久照明マスかを返します。
func (s *State) Sanctuary(pos Pos) bool {
	c := s.Board.Cell(pos)
	return c.Light == Permanent && c.Source.Critical()
}

// Clone は深いコピーを返します。
func (s *State) Clone() State {
	out := *s
	out.Players = slices.Clone(s.Players)
	out.Filers = slices.Clone(s.Filers)
	out.Order = slices.Clone(s.Order)
	if s.Board != nil {
		out.Board = s.Board.Clone()
	}
	return out
}

package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"umbra/canon"
	apperrors "umbra/internal/errors"
)

// sparkBridgeReach はスパークブリッジで届くマンハッタン距離の上限です。
const sparkBridgeReach = 3

var tracer = otel.Tracer("umbra/game")

var (
	ErrInvalidSetup      = errors.New("invalid game setup")
	ErrIllegalTransition = apperrors.New(apperrors.CodeIllegalTransition, "illegal phase transition")
	ErrGameNotPlayable   = apperrors.New(apperrors.CodeGameNotPlayable, "game is not playable")
)

// Setup は新しいゲームの盤面構成です。
type Setup struct {
	Width        int
	Height       int
	Players      []PlayerID
	Aidron       Pos
	Exit         Pos
	MemorySparks []Pos
	Filers       []Pos
}

type Option func(*Engine)

// WithRoller は乱数源を差し替えます。
func WithRoller(r Roller) Option {
	return func(e *Engine) { e.rng = r }
}

// WithSeed はシード固定の乱数源を使います。
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithVerifier(v *canon.Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithDeviation はFilerの寄り道確率を差し替えます。
func WithDeviation(p float64) Option {
	return func(e *Engine) { e.deviation = p }
}

// Engine はゲーム状態を唯一変更できる逐次ステートマシンです。
// 並行呼び出しには対応しないため、呼び出し側で1つのゴルーチンに直列化してください。
type Engine struct {
	canon     *canon.Canon
	state     State
	cstate    CollapseState
	collapse  *Collapse
	ai        *FilerAI
	rng       Roller
	verifier  *canon.Verifier
	observers []Observer
	deviation float64
}

// NewEngine はOPENINGフェーズのゲームを作成します。
func NewEngine(c *canon.Canon, setup Setup, opts ...Option) (*Engine, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil canon", ErrInvalidSetup)
	}
	if err := validateSetup(setup); err != nil {
		return nil, err
	}

	board := NewBoard(setup.Width, setup.Height)
	for _, p := range setup.MemorySparks {
		board.at(p).MemorySpark = true
	}
	state := State{
		Phase:  PhaseOpening,
		Board:  board,
		Aidron: setup.Aidron,
		Exit:   setup.Exit,
	}
	for _, id := range setup.Players {
		state.Players = append(state.Players, Player{ID: id, Tokens: c.Tokens.StartingPerPlayer})
	}
	for _, p := range setup.Filers {
		state.Filers = append(state.Filers, Filer{ID: NewFilerID(), Pos: p})
	}

	e := newEngine(c, opts)
	e.state = state
	e.wire()
	return e, nil
}

// Restore はスナップショットからEngineを復元します。
func Restore(c *canon.Canon, snap Snapshot, opts ...Option) (*Engine, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil canon", ErrInvalidSetup)
	}
	b := snap.State.Board
	if b == nil || b.Width <= 0 || b.Height <= 0 || len(b.Cells) != b.Width*b.Height {
		return nil, fmt.Errorf("%w: snapshot board is malformed", ErrInvalidSetup)
	}
	e := newEngine(c, opts)
	e.state = snap.State.Clone()
	e.cstate = snap.Collapse.clone()
	e.wire()
	return e, nil
}

func newEngine(c *canon.Canon, opts []Option) *Engine {
	e := &Engine{canon: c, deviation: DefaultDeviation}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.verifier == nil {
		e.verifier = canon.NewVerifier()
	}
	e.ai = NewFilerAI(e.rng).WithDeviation(e.deviation)
	return e
}

func (e *Engine) wire() {
	e.collapse = &Collapse{
		st:       &e.cstate,
		board:    e.state.Board,
		canon:    e.canon,
		rng:      e.rng,
		verifier: e.verifier,
		emit:     e.emit,
	}
}

func validateSetup(s Setup) error {
	if s.Width < 3 || s.Height < 3 {
		return fmt.Errorf("%w: board %dx%d is smaller than 3x3", ErrInvalidSetup, s.Width, s.Height)
	}
	in := func(p Pos) bool { return p.X >= 0 && p.Y >= 0 && p.X < s.Width && p.Y < s.Height }
	if len(s.Players) == 0 {
		return fmt.Errorf("%w: no players", ErrInvalidSetup)
	}
	seen := make(map[PlayerID]struct{}, len(s.Players))
	for _, id := range s.Players {
		if id == "" {
			return fmt.Errorf("%w: empty player id", ErrInvalidSetup)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate player %s", ErrInvalidSetup, id)
		}
		seen[id] = struct{}{}
	}
	if !in(s.Aidron) || !in(s.Exit) || s.Aidron == s.Exit {
		return fmt.Errorf("%w: aidron %v and exit %v must be distinct in-bounds cells", ErrInvalidSetup, s.Aidron, s.Exit)
	}
	for _, p := range s.MemorySparks {
		if !in(p) {
			return fmt.Errorf("%w: memory spark %v out of bounds", ErrInvalidSetup, p)
		}
	}
	filers := make(map[Pos]struct{}, len(s.Filers))
	for _, p := range s.Filers {
		if !in(p) || p == s.Aidron || p == s.Exit {
			return fmt.Errorf("%w: filer at %v", ErrInvalidSetup, p)
		}
		if _, dup := filers[p]; dup {
			return fmt.Errorf("%w: two filers at %v", ErrInvalidSetup, p)
		}
		filers[p] = struct{}{}
	}
	return nil
}

// Subscribe はObserverを追加します。構成時にのみ呼んでください。
func (e *Engine) Subscribe(o Observer) {
	e.observers = append(e.observers, o)
}

func (e *Engine) Canon() *canon.Canon          { return e.canon }
func (e *Engine) Verifier() *canon.Verifier    { return e.verifier }
func (e *Engine) Phase() Phase                 { return e.state.Phase }
func (e *Engine) Mode() Mode                   { return ModeFor(e.state.Noise) }
func (e *Engine) CollapseState() CollapseState { return e.collapse.State() }

// View は現在の状態の深いコピーを返します。
func (e *Engine) View() State {
	return e.state.Clone()
}

func (e *Engine) CurrentPlayer() (PlayerID, bool) {
	return e.state.CurrentPlayer()
}

// Snapshot は永続化用に状態を丸ごと複製します。
type Snapshot struct {
	CanonVersion string        `json:"canon_version"`
	State        State         `json:"state"`
	Collapse     CollapseState `json:"collapse"`
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		CanonVersion: e.canon.Version,
		State:        e.state.Clone(),
		Collapse:     e.cstate.clone(),
	}
}

// Clone は深いコピーを返します。
func (s Snapshot) Clone() Snapshot {
	out := s
	out.State = s.State.Clone()
	out.Collapse = s.Collapse.clone()
	return out
}

// PlacePlayer はOPENING中にプレイヤーを盤面に置きます。全員が置かれるとSEARCHに進みます。
func (e *Engine) PlacePlayer(ctx context.Context, id PlayerID, at Pos) error {
	s := &e.state
	if s.Phase != PhaseOpening {
		return reject(id, ActionPlace, ReasonNotPlayable)
	}
	p := s.player(id)
	switch {
	case p == nil:
		return reject(id, ActionPlace, ReasonUnknownPlayer)
	case p.Placed:
		return reject(id, ActionPlace, ReasonAlreadyPlaced)
	case !s.Board.InBounds(at):
		return reject(id, ActionPlace, ReasonOutOfBounds)
	case at == s.Aidron || at == s.Exit:
		return reject(id, ActionPlace, ReasonInvalidTarget)
	}
	if _, ok := s.FilerAt(at); ok {
		return reject(id, ActionPlace, ReasonOccupied)
	}

	p.Pos = at
	p.Placed = true
	slog.DebugContext(ctx, "player placed", "playerID", id, "pos", at)
	e.emit(ctx, PlayerPlaced{Player: id, At: at})

	for i := range s.Players {
		if !s.Players[i].Placed {
			return nil
		}
	}
	if err := e.transition(ctx, PhaseSearch); err != nil {
		return err
	}
	s.Round = 1
	e.emit(ctx, RoundAdvanced{Round: s.Round})
	e.startRound(ctx)
	return nil
}

// BeginTurn は手番プレイヤーの行動予算をcanonの値に戻します。
func (e *Engine) BeginTurn(ctx context.Context, id PlayerID) error {
	if !e.state.Phase.Playable() {
		return ErrGameNotPlayable
	}
	if cur, ok := e.state.CurrentPlayer(); !ok || cur != id {
		return reject(id, ActionEndTurn, ReasonNotYourTurn)
	}
	e.beginTurn(ctx, e.state.player(id))
	return nil
}

func (e *Engine) beginTurn(ctx context.Context, p *Player) {
	p.Budget = Budget{MovesLeft: e.canon.MovesPerTurn(e.state.Collapsing)}
	e.emit(ctx, TurnStarted{Player: p.ID, Budget: p.Budget})
}

// ValidateAndApply は行動を検証し、妥当なら状態に適用して予算を消費します。
// 拒否された場合は*RejectErrorを返し、状態は変化しません。
func (e *Engine) ValidateAndApply(ctx context.Context, id PlayerID, a Action) error {
	switch a.Kind {
	case ActionPlace:
		return e.PlacePlayer(ctx, id, a.Target)
	case ActionEndTurn:
		return e.EndTurn(ctx, id)
	}

	s := &e.state
	if !s.Phase.Playable() {
		return reject(id, a.Kind, ReasonNotPlayable)
	}
	p := s.player(id)
	if p == nil {
		return reject(id, a.Kind, ReasonUnknownPlayer)
	}
	if cur, _ := s.CurrentPlayer(); cur != id {
		return reject(id, a.Kind, ReasonNotYourTurn)
	}
	if p.Filed && !(a.Kind == ActionUseToken && a.Token == canon.TokenUnfile && a.Subject == id) {
		return reject(id, a.Kind, ReasonPlayerFiled)
	}

	var err error
	switch a.Kind {
	case ActionMove:
		err = e.applyMove(ctx, p, a.Target)
	case ActionIlluminate:
		err = e.applyIlluminate(ctx, p, a.Target)
	case ActionSignal:
		err = e.applySignal(ctx, p)
	case ActionUseToken:
		err = e.applyToken(ctx, p, a)
	default:
		err = reject(id, a.Kind, ReasonUnknownAction)
	}
	if err != nil {
		slog.DebugContext(ctx, "action rejected", "playerID", id, "kind", a.Kind, "err", err)
		return err
	}

	e.flushCells(ctx)
	if err := e.progress(ctx); err != nil {
		return err
	}
	e.checkOutcome(ctx)
	e.flushCells(ctx)
	return nil
}

func (e *Engine) applyMove(ctx context.Context, p *Player, to Pos) error {
	s := &e.state
	switch {
	case p.Budget.MovesLeft <= 0:
		return reject(p.ID, ActionMove, ReasonBudgetExhausted)
	case !s.Board.InBounds(to):
		return reject(p.ID, ActionMove, ReasonOutOfBounds)
	case !p.Pos.Adjacent(to):
		return reject(p.ID, ActionMove, ReasonNotAdjacent)
	}
	if _, ok := s.FilerAt(to); ok {
		return reject(p.ID, ActionMove, ReasonOccupied)
	}

	from := p.Pos
	p.Pos = to
	p.Budget.MovesLeft--
	e.emit(ctx, PlayerMoved{Player: p.ID, From: from, To: to})
	e.discover(ctx, to)

	if cell := s.Board.at(to); cell.MemorySpark {
		cell.MemorySpark = false
		s.Board.MakePermanent(to, SourceMemorySpark)
		p.Tokens++
		e.emit(ctx, TokenGained{Player: p.ID, At: to, Tokens: p.Tokens})
	}
	if e.collapse.Active() {
		e.collapse.RollMovementSpark(ctx, to)
	}
	return nil
}

func (e *Engine) applyIlluminate(ctx context.Context, p *Player, at Pos) error {
	s := &e.state
	switch {
	case p.Budget.IlluminateUsed:
		return reject(p.ID, ActionIlluminate, ReasonBudgetExhausted)
	case !s.Board.InBounds(at):
		return reject(p.ID, ActionIlluminate, ReasonOutOfBounds)
	case p.Pos.Chebyshev(at) > 1:
		return reject(p.ID, ActionIlluminate, ReasonNotAdjacent)
	}

	p.Budget.IlluminateUsed = true
	s.Board.LightTemporary(at, e.canon.Lighting.IlluminateRounds, SourceIlluminate)
	e.addNoise(ctx, e.canon.Noise.Illuminate)
	e.discover(ctx, at)
	return nil
}

func (e *Engine) applySignal(ctx context.Context, p *Player) error {
	if p.Budget.OtherUsed {
		return reject(p.ID, ActionSignal, ReasonBudgetExhausted)
	}
	p.Budget.OtherUsed = true
	e.addNoise(ctx, e.canon.Noise.Signal)
	e.emit(ctx, SignalSent{Player: p.ID, At: p.Pos})
	return nil
}

func (e *Engine) applyToken(ctx context.Context, p *Player, a Action) error {
	s := &e.state
	switch {
	case p.Budget.OtherUsed:
		return reject(p.ID, ActionUseToken, ReasonBudgetExhausted)
	case !e.canon.Allows(a.Token):
		return reject(p.ID, ActionUseToken, ReasonTokenNotAllowed)
	case p.Tokens <= 0:
		return reject(p.ID, ActionUseToken, ReasonNoToken)
	}

	switch a.Token {
	case canon.TokenSparkBridge:
		if s.Collapsing {
			return reject(p.ID, ActionUseToken, ReasonTokenNotAllowed)
		}
		if !s.Board.InBounds(a.Target) {
			return reject(p.ID, ActionUseToken, ReasonOutOfBounds)
		}
		if d := p.Pos.Manhattan(a.Target); d == 0 || d > sparkBridgeReach {
			return reject(p.ID, ActionUseToken, ReasonInvalidTarget)
		}
		for _, q := range ManhattanPath(p.Pos, a.Target) {
			s.Board.LightTemporary(q, e.canon.Lighting.SparkBridgeRounds, SourceBridge)
		}
	case canon.TokenUnfile:
		if !s.Collapsing {
			return reject(p.ID, ActionUseToken, ReasonTokenNotAllowed)
		}
		subject := s.player(a.Subject)
		if subject == nil || !subject.Filed {
			return reject(p.ID, ActionUseToken, ReasonInvalidTarget)
		}
		if subject.ID != p.ID && p.Pos.Chebyshev(subject.Pos) > 1 {
			return reject(p.ID, ActionUseToken, ReasonNotAdjacent)
		}
		subject.Filed = false
		slog.InfoContext(ctx, "player unfiled", "playerID", subject.ID, "by", p.ID)
		e.emit(ctx, PlayerUnfiled{Player: subject.ID, By: p.ID})
	default:
		return reject(p.ID, ActionUseToken, ReasonTokenNotAllowed)
	}

	p.Tokens--
	p.Budget.OtherUsed = true
	e.addNoise(ctx, e.canon.Noise.Token)
	return nil
}

// EndTurn は手番を次のプレイヤーへ渡します。最後のプレイヤーならラウンドを進めます。
func (e *Engine) EndTurn(ctx context.Context, id PlayerID) error {
	s := &e.state
	if !s.Phase.Playable() {
		return reject(id, ActionEndTurn, ReasonNotPlayable)
	}
	if cur, _ := s.CurrentPlayer(); cur != id {
		return reject(id, ActionEndTurn, ReasonNotYourTurn)
	}
	s.Turn++
	return e.nextTurn(ctx)
}

func (e *Engine) nextTurn(ctx context.Context) error {
	s := &e.state
	for s.Turn < len(s.Order) {
		if p := s.player(s.Order[s.Turn]); p != nil && e.hasTurn(p) {
			e.beginTurn(ctx, p)
			return nil
		}
		s.Turn++
	}
	return e.AdvanceRound(ctx)
}

// hasTurn は今ラウンドに手番を持つかを返します。
// 崩壊中にトークンを持つファイル済みプレイヤーは自分をアンファイルするためだけの手番を持ちます。
func (e *Engine) hasTurn(p *Player) bool {
	if p.Active() {
		return true
	}
	return e.canSelfUnfile(p)
}

func (e *Engine) canSelfUnfile(p *Player) bool {
	return p.Placed && p.Filed && p.Tokens > 0 && e.state.Collapsing && e.canon.Allows(canon.TokenUnfile)
}

func (e *Engine) startRound(ctx context.Context) {
	s := &e.state
	s.Order = s.Order[:0]
	for i := range s.Players {
		if e.hasTurn(&s.Players[i]) {
			s.Order = append(s.Order, s.Players[i].ID)
		}
	}
	s.Turn = 0
	if len(s.Order) > 0 {
		e.beginTurn(ctx, s.player(s.Order[0]))
	}
}

// AdvanceRound はFiler解決・照明減衰・崩壊処理を行い、ラウンドを進めて手番順を作り直します。
func (e *Engine) AdvanceRound(ctx context.Context) error {
	s := &e.state
	if !s.Phase.Playable() {
		return ErrGameNotPlayable
	}
	ctx, span := tracer.Start(ctx, "game.AdvanceRound", trace.WithAttributes(
		attribute.Int("round", s.Round),
		attribute.String("phase", s.Phase.String()),
		attribute.Int("noise", s.Noise),
	))
	defer span.End()

	filings := e.resolveFilers(ctx)

	s.Board.Decay()
	e.flushCells(ctx)

	expired := false
	if e.collapse.Active() {
		e.collapse.RollEvent(ctx, s)
		e.flushCells(ctx)
		expired = e.collapse.Tick(ctx)
		span.SetAttributes(attribute.Int("collapse.remaining", e.cstate.Remaining()))
	}

	e.addNoise(ctx, -e.canon.Noise.DecayPerRound)
	e.addNoise(ctx, filings*e.canon.Noise.Filing)

	e.checkOutcome(ctx)
	if expired && s.Phase != PhaseEnded {
		slog.InfoContext(ctx, "collapse timer expired", "round", s.Round)
		e.endGame(ctx, OutcomeLoss)
	}
	if s.Phase == PhaseEnded {
		span.SetAttributes(attribute.String("outcome", s.Outcome.String()))
		return nil
	}

	s.Round++
	e.emit(ctx, RoundAdvanced{Round: s.Round})
	e.startRound(ctx)
	e.checkOutcome(ctx)
	return nil
}

// resolveFilers はFilerを順に動かし、ファイルした人数を返します。
func (e *Engine) resolveFilers(ctx context.Context) int {
	s := &e.state
	mode := ModeFor(s.Noise)
	filings := 0

	for i := range s.Filers {
		f := &s.Filers[i]
		d := e.ai.Decide(s, *f)
		switch d.Kind {
		case DecisionFile:
			p := s.player(d.Player)
			p.Filed = true
			filings++
			slog.InfoContext(ctx, "player filed", "playerID", p.ID, "filerID", f.ID, "pos", p.Pos, "collapsing", s.Collapsing)
			e.emit(ctx, PlayerFiled{Player: p.ID, By: f.ID, At: p.Pos})
		case DecisionMove:
			from := f.Pos
			f.Pos = d.To
			e.emit(ctx, FilerMoved{Filer: f.ID, From: from, To: d.To, Mode: mode})
		}
	}

	if mode == ModeCrisis && len(s.Filers) < MaxFilers {
		if at, ok := e.ai.SpawnPoint(s); ok {
			f := Filer{ID: NewFilerID(), Pos: at}
			s.Filers = append(s.Filers, f)
			slog.InfoContext(ctx, "filer spawned", "filerID", f.ID, "pos", at)
			e.emit(ctx, FilerSpawned{Filer: f.ID, At: at})
		}
	}
	return filings
}

func (e *Engine) discover(ctx context.Context, at Pos) {
	s := &e.state
	if at == s.Aidron && !s.AidronActivated {
		s.AidronActivated = true
		s.Board.MakePermanent(at, SourceAidron)
		slog.InfoContext(ctx, "aidron discovered", "pos", at)
		e.emit(ctx, AidronDiscovered{At: at})
	}
	if at == s.Exit {
		s.ExitSeen = true
	}
}

// progress は条件を満たした段階遷移を順に進めます。1回の行動で複数段進むこともありますが、飛ばすことはありません。
func (e *Engine) progress(ctx context.Context) error {
	s := &e.state
	for {
		switch {
		case s.Phase == PhaseSearch && s.AidronActivated:
			if err := e.transition(ctx, PhaseNetwork); err != nil {
				return err
			}
		case s.Phase == PhaseNetwork && s.ExitSeen:
			if err := e.transition(ctx, PhaseEscape); err != nil {
				return err
			}
			s.Board.MakePermanent(s.Exit, SourceExit)
			e.emit(ctx, ExitRevealed{At: s.Exit})
		case s.Phase == PhaseEscape && s.ActivePlayerAt(s.Exit):
			if err := e.transition(ctx, PhaseCollapse); err != nil {
				return err
			}
			e.collapse.Start(ctx, s)
		default:
			return nil
		}
	}
}

func (e *Engine) transition(ctx context.Context, to Phase) error {
	s := &e.state
	from := s.Phase
	legal := (to == from+1 && to <= PhaseCollapse) || (to == PhaseEnded && from.Playable())
	if !legal {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	s.Phase = to
	slog.InfoContext(ctx, "phase changed", "from", from, "to", to, "round", s.Round)
	e.emit(ctx, PhaseChanged{From: from, To: to})
	return nil
}

func (e *Engine) checkOutcome(ctx context.Context) {
	s := &e.state
	if !s.Phase.Playable() {
		return
	}
	if e.won() {
		e.endGame(ctx, OutcomeWin)
		return
	}
	if e.allFiled() {
		e.endGame(ctx, OutcomeLoss)
	}
}

// won は行動中の全プレイヤーがExitに揃い、Aidronが起動済みかを返します。
func (e *Engine) won() bool {
	s := &e.state
	if s.Phase != PhaseCollapse || !s.AidronActivated {
		return false
	}
	active := 0
	for i := range s.Players {
		p := &s.Players[i]
		if !p.Active() {
			continue
		}
		if p.Pos != s.Exit {
			return false
		}
		active++
	}
	return active > 0
}

// allFiled は全員がファイルされ、トークンによるアンファイルもできない状態かを返します。
func (e *Engine) allFiled() bool {
	for i := range e.state.Players {
		p := &e.state.Players[i]
		if !p.Filed || e.canSelfUnfile(p) {
			return false
		}
	}
	return true
}

func (e *Engine) endGame(ctx context.Context, outcome Outcome) {
	if err := e.transition(ctx, PhaseEnded); err != nil {
		slog.ErrorContext(ctx, "end game", "err", err)
		return
	}
	e.state.Outcome = outcome
	slog.InfoContext(ctx, "game ended", "outcome", outcome, "round", e.state.Round)
	e.emit(ctx, GameEnded{Outcome: outcome})
}

func (e *Engine) addNoise(ctx context.Context, delta int) {
	if delta == 0 {
		return
	}
	s := &e.state
	next := max(s.Noise+delta, 0)
	if next == s.Noise {
		return
	}
	s.Noise = next
	e.emit(ctx, NoiseChanged{Level: next, Mode: ModeFor(next)})
}

// Audit はライブ状態をcanonと突き合わせ、ずれをVerifierに記録します。帯域外プローブから呼ばれます。
func (e *Engine) Audit(ctx context.Context) {
	s := &e.state
	if cur, ok := s.CurrentPlayer(); ok {
		p := s.player(cur)
		e.verifier.CheckInvariant(ctx, "budget.moves_within_canon",
			p.Budget.MovesLeft <= e.canon.MovesPerTurn(s.Collapsing), true)
	}
	if e.cstate.Active {
		e.verifier.CheckInvariant(ctx, "collapse.cap", e.cstate.Cap, e.canon.Collapse.TimerCap)
		e.verifier.CheckInvariant(ctx, "collapse.base", e.cstate.Base, e.canon.Collapse.TimerBase)
		e.collapse.verify(ctx)
	}
	if e.cstate.CorridorActive {
		for _, p := range ManhattanPath(s.Aidron, s.Exit) {
			if s.Board.Cell(p).Light != Permanent {
				e.verifier.CheckInvariant(ctx, "corridor.permanent", s.Board.Cell(p).Light, Permanent)
				break
			}
		}
	}
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	for _, o := range e.observers {
		o.OnEvent(ctx, ev)
	}
}

func (e *Engine) flushCells(ctx context.Context) {
	for _, p := range e.state.Board.TakeDirty() {
		e.emit(ctx, CellChanged{Pos: p, Cell: e.state.Board.Cell(p)})
	}
}

// Package pyramid holds the rules of the pyramid drinking game.
//
// A host opens a room, up to six more players join by nickname, and an
// optional external display shows the table. On start everybody is dealt four
// cards and the rest of the deck is laid out face down as a pyramid. The host
// reveals one cell at a time, top to bottom and left to right:
//   - whoever already received a card of the revealed rank drinks one sip
//   - a player holding a card of that rank gives one sip to someone else, handing
//     the card over to them
//   - if nobody holds the rank the turn moves on by itself
//
// The game ends once the last cell of the bottom row has been played.
//
// A Session is not safe for concurrent use; the hub that owns it serializes
// every call.
package pyramid

import (
	"fmt"
	"slices"
	"strings"
)

const (
	MaxPlayers = 7
	MinPlayers = 2
	HandSize   = 4

	// SipsPerAssignment is the flat amount a card holder hands out per cell.
	SipsPerAssignment = 1
	// SipsPerMatch is drunk automatically by players who already received a
	// card of the revealed rank.
	SipsPerMatch = 1
)

type State string

const (
	StateLobby    State = "lobby"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

type Phase string

const (
	PhaseReveal Phase = "reveal"
	PhaseAssign Phase = "assign"
)

type Turn struct {
	Row   int   `json:"row"`
	Col   int   `json:"col"`
	Phase Phase `json:"phase"`
}

// Cell is one pyramid position.
type Cell struct {
	Card
	Revealed bool `json:"revealed"`
}

type Player struct {
	Nickname      string `json:"nickname"`
	Sips          int    `json:"sips"`
	Hand          []Card `json:"hand"`
	ReceivedCards []Card `json:"receivedCards"`
}

func (p *Player) holdsRank(r Rank) bool {
	return slices.ContainsFunc(p.Hand, func(c Card) bool { return c.Value == r })
}

func (p *Player) receivedRank(r Rank) bool {
	return slices.ContainsFunc(p.ReceivedCards, func(c Card) bool { return c.Value == r })
}

type Session struct {
	roomCode      string
	host          string
	state         State
	settings      Settings
	players       map[string]*Player
	order         []string // join order
	displayJoined bool
	pyramid       [][]Cell
	turn          Turn
	actionLog     string
	version       uint64
}

// NewSession opens a lobby with host as its only player.
func NewSession(roomCode, host string) (*Session, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, ErrInvalidNickname
	}

	return &Session{
		roomCode: roomCode,
		host:     host,
		state:    StateLobby,
		settings: DefaultSettings(),
		players: map[string]*Player{
			host: newPlayer(host),
		},
		order: []string{host},
	}, nil
}

func newPlayer(nickname string) *Player {
	return &Player{
		Nickname:      nickname,
		Hand:          []Card{},
		ReceivedCards: []Card{},
	}
}

func (s *Session) RoomCode() string { return s.roomCode }
func (s *Session) Host() string     { return s.host }
func (s *Session) State() State     { return s.state }
func (s *Session) Turn() Turn       { return s.turn }
func (s *Session) Settings() Settings {
	return s.settings
}

// Version changes on every successful mutation.
func (s *Session) Version() uint64 { return s.version }

func (s *Session) DisplayJoined() bool { return s.displayJoined }

func (s *Session) ActionLog() string { return s.actionLog }

func (s *Session) PlayerCount() int { return len(s.players) }

func (s *Session) HasPlayer(nickname string) bool {
	_, ok := s.players[nickname]
	return ok
}

// Player returns a copy of the named player.
func (s *Session) Player(nickname string) (Player, bool) {
	p, ok := s.players[nickname]
	if !ok {
		return Player{}, false
	}
	return clonePlayer(p), true
}

func (s *Session) touch() {
	s.version++
}

func (s *Session) AddPlayer(nickname string) error {
	nickname = strings.TrimSpace(nickname)
	switch {
	case nickname == "":
		return ErrInvalidNickname
	case s.state != StateLobby:
		return ErrGameAlreadyStarted
	case len(s.players) >= MaxPlayers:
		return ErrRoomFull
	case s.HasPlayer(nickname):
		return ErrNicknameTaken
	}

	s.players[nickname] = newPlayer(nickname)
	s.order = append(s.order, nickname)
	s.touch()

	return nil
}

// RemovePlayer drops a joined player. The host cannot be removed; the room
// goes away with them instead.
func (s *Session) RemovePlayer(nickname string) bool {
	if nickname == s.host || !s.HasPlayer(nickname) {
		return false
	}

	delete(s.players, nickname)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == nickname })
	s.touch()

	return true
}

func (s *Session) JoinDisplay() {
	s.displayJoined = true
	s.touch()
}

func (s *Session) LeaveDisplay() {
	s.displayJoined = false
	s.touch()
}

// UpdateSetting changes one lobby setting. Callers that expose settings only
// to the host may treat ErrNotHost and ErrGameAlreadyStarted as no-ops.
func (s *Session) UpdateSetting(actor, key, value string) error {
	if actor != s.host {
		return ErrNotHost
	}
	if s.state != StateLobby {
		return ErrGameAlreadyStarted
	}

	next, err := s.settings.with(key, value)
	if err != nil {
		return err
	}

	s.settings = next
	s.touch()

	return nil
}

// Start deals the hands and lays out the pyramid.
func (s *Session) Start(actor string, shuffle Shuffler) error {
	if s.state != StateLobby {
		return ErrGameAlreadyStarted
	}
	if actor != s.host {
		return ErrNotHost
	}
	if len(s.players) < MinPlayers {
		return ErrNotEnoughPlayers
	}
	if s.settings.UseExternalDisplay && !s.displayJoined {
		return ErrDisplayMissing
	}

	need := CardsNeeded(len(s.players), s.settings.Rows)
	if have := s.settings.Deck.Count(); need > have {
		return fmt.Errorf("%w: %d cards needed, %s deck has %d", ErrDeckTooSmall, need, s.settings.Deck, have)
	}

	deck := NewDeck(s.settings.Deck)
	Shuffle(deck, shuffle)

	draw := func(n int) []Card {
		out := slices.Clone(deck[:n])
		deck = deck[n:]
		return out
	}

	for _, name := range s.order {
		p := s.players[name]
		p.Hand = draw(HandSize)
		p.ReceivedCards = []Card{}
		p.Sips = 0
	}

	s.pyramid = make([][]Cell, s.settings.Rows)
	for r := range s.pyramid {
		row := make([]Cell, r+1)
		for c, card := range draw(r + 1) {
			row[c] = Cell{Card: card}
		}
		s.pyramid[r] = row
	}

	s.turn = Turn{Row: 0, Col: 0, Phase: PhaseReveal}
	s.state = StatePlaying
	s.actionLog = fmt.Sprintf("Game started! %s reveals the first card.", s.host)
	s.touch()

	return nil
}

func (s *Session) current() *Cell {
	return &s.pyramid[s.turn.Row][s.turn.Col]
}

// Current returns the cell the turn points at.
func (s *Session) Current() (Cell, bool) {
	if s.state != StatePlaying {
		return Cell{}, false
	}
	return *s.current(), true
}

type RevealResult struct {
	Card Card
	// Drinkers already held a received card of this rank and drank for it.
	Drinkers []string
	// AutoAdvance is set when no hand holds the rank, so nobody can assign.
	AutoAdvance bool
}

// Reveal turns the current cell face up and opens the assign phase. Cards
// match by rank, not by id: ids are unique within a deck, so no hand or
// received pile ever holds the revealed card itself.
func (s *Session) Reveal(actor string) (RevealResult, error) {
	if s.state != StatePlaying {
		return RevealResult{}, ErrNotPlaying
	}
	if actor != s.host {
		return RevealResult{}, ErrNotHost
	}
	if s.turn.Phase != PhaseReveal {
		return RevealResult{}, ErrWrongPhase
	}

	cell := s.current()
	cell.Revealed = true
	s.turn.Phase = PhaseAssign

	res := RevealResult{Card: cell.Card}

	msg := fmt.Sprintf("Card %s revealed. Players holding a %s may give out sips.", cell.ID, cell.Value)

	for _, name := range s.order {
		p := s.players[name]
		if p.receivedRank(cell.Value) {
			p.Sips += SipsPerMatch
			res.Drinkers = append(res.Drinkers, name)
		}
	}
	if len(res.Drinkers) > 0 {
		msg += fmt.Sprintf(" %s drink%s %d sip (received this card earlier).",
			strings.Join(res.Drinkers, ", "), verbSuffix(len(res.Drinkers)), SipsPerMatch)
	}

	res.AutoAdvance = s.NeedsAutoAdvance()
	s.actionLog = msg
	s.touch()

	return res, nil
}

// NeedsAutoAdvance reports whether the turn waits for an assignment that no
// remaining hand can make.
func (s *Session) NeedsAutoAdvance() bool {
	if s.state != StatePlaying || s.turn.Phase != PhaseAssign {
		return false
	}

	rank := s.current().Value
	for _, p := range s.players {
		if p.holdsRank(rank) {
			return false
		}
	}

	return true
}

// AssignSip lets actor give cardID, which must match the revealed rank, to
// target. The card moves from the actor's hand to the target's received
// cards and the turn advances.
func (s *Session) AssignSip(actor, cardID, target string) error {
	if s.state != StatePlaying {
		return ErrNotPlaying
	}
	if s.turn.Phase != PhaseAssign {
		return ErrWrongPhase
	}

	giver, ok := s.players[actor]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlayer, actor)
	}
	receiver, ok := s.players[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlayer, target)
	}
	if giver == receiver {
		return ErrSelfAssign
	}

	revealed := s.current().Card
	idx := slices.IndexFunc(giver.Hand, func(c Card) bool { return c.ID == cardID })
	if idx < 0 || giver.Hand[idx].Value != revealed.Value {
		return ErrCardNotHeld
	}

	card := giver.Hand[idx]
	giver.Hand = slices.Delete(giver.Hand, idx, idx+1)
	receiver.Sips += SipsPerAssignment
	receiver.ReceivedCards = append(receiver.ReceivedCards, card)

	s.advance(fmt.Sprintf("%s gave %s %d sip.", actor, target, SipsPerAssignment))

	return nil
}

// Advance moves the turn to the next cell, finishing the game after the last
// one. Cells passed over count as revealed.
func (s *Session) Advance() {
	if s.state != StatePlaying {
		return
	}
	s.advance("")
}

// AdvanceIfCurrent advances only if nothing has changed since version was
// read. It returns false for a stale call.
func (s *Session) AdvanceIfCurrent(version uint64) bool {
	if s.version != version || s.state != StatePlaying || s.turn.Phase != PhaseAssign {
		return false
	}
	s.advance("")
	return true
}

func (s *Session) advance(prefix string) {
	s.current().Revealed = true

	s.turn.Col++
	if s.turn.Col >= len(s.pyramid[s.turn.Row]) {
		s.turn.Col = 0
		s.turn.Row++
	}

	var msg string
	if s.turn.Row >= len(s.pyramid) {
		s.state = StateFinished
		s.turn = Turn{Row: len(s.pyramid) - 1, Col: len(s.pyramid[len(s.pyramid)-1]) - 1, Phase: PhaseReveal}
		msg = "Pyramid fully revealed! Game over. Cheers!"
	} else {
		s.turn.Phase = PhaseReveal
		msg = fmt.Sprintf("%s reveals the next card.", s.host)
	}

	if prefix != "" {
		msg = prefix + " " + msg
	}
	s.actionLog = msg
	s.touch()
}

// verbSuffix conjugates "drink" for n subjects.
func verbSuffix(n int) string {
	if n == 1 {
		return "s"
	}
	return ""
}

package pyramid

import (
	"slices"
)

// View is a detached copy of a session, as broadcast to clients.
type View struct {
	RoomCode      string   `json:"roomCode"`
	Host          string   `json:"host"`
	State         State    `json:"state"`
	Settings      Settings `json:"settings"`
	Players       []Player `json:"players"`
	DisplayJoined bool     `json:"displayJoined"`
	Pyramid       [][]Cell `json:"pyramid,omitempty"`
	Turn          *Turn    `json:"turn,omitempty"`
	ActionLog     string   `json:"actionLog,omitempty"`
	CardsNeeded   int      `json:"cardsNeeded"`
	DeckCount     int      `json:"deckCount"`
	Version       uint64   `json:"version"`
}

func clonePlayer(p *Player) Player {
	return Player{
		Nickname:      p.Nickname,
		Sips:          p.Sips,
		Hand:          slices.Clone(p.Hand),
		ReceivedCards: slices.Clone(p.ReceivedCards),
	}
}

// View returns the full state, including face-down cards.
func (s *Session) View() View {
	v := View{
		RoomCode:      s.roomCode,
		Host:          s.host,
		State:         s.state,
		Settings:      s.settings,
		Players:       make([]Player, 0, len(s.order)),
		DisplayJoined: s.displayJoined,
		ActionLog:     s.actionLog,
		CardsNeeded:   CardsNeeded(len(s.players), s.settings.Rows),
		DeckCount:     s.settings.Deck.Count(),
		Version:       s.version,
	}

	for _, name := range s.order {
		v.Players = append(v.Players, clonePlayer(s.players[name]))
	}

	if s.state != StateLobby {
		v.Pyramid = make([][]Cell, len(s.pyramid))
		for r, row := range s.pyramid {
			v.Pyramid[r] = slices.Clone(row)
		}
		t := s.turn
		v.Turn = &t
	}

	return v
}

// PublicView is View with the face of unrevealed cells blanked out. Hands
// are left as they are: every client, the display included, sees them all.
func (s *Session) PublicView() View {
	v := s.View()
	for _, row := range v.Pyramid {
		for c := range row {
			if !row[c].Revealed {
				row[c].Card = Card{}
			}
		}
	}
	return v
}

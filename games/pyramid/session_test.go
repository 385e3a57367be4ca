package pyramid

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
)

// noShuffle keeps the deck in suit order so hands are predictable.
func noShuffle(int, func(i, j int)) {}

func newTestSession(t *testing.T, host string, others ...string) *Session {
	t.Helper()

	s, err := NewSession("4821", host)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	for _, name := range others {
		if err := s.AddPlayer(name); err != nil {
			t.Fatalf("AddPlayer(%q): %v", name, err)
		}
	}
	return s
}

func mustSet(t *testing.T, s *Session, key, value string) {
	t.Helper()
	if err := s.UpdateSetting(s.Host(), key, value); err != nil {
		t.Fatalf("UpdateSetting(%s=%s): %v", key, value, err)
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s := newTestSession(t, "Ana")

	if s.State() != StateLobby {
		t.Fatalf("state = %q, want lobby", s.State())
	}
	if got, want := s.Settings(), DefaultSettings(); got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
	p, ok := s.Player("Ana")
	if !ok {
		t.Fatal("host is not a player")
	}
	if p.Sips != 0 || len(p.Hand) != 0 || len(p.ReceivedCards) != 0 {
		t.Fatalf("host player not empty: %+v", p)
	}

	if _, err := NewSession("1234", "  "); !errors.Is(err, ErrInvalidNickname) {
		t.Fatalf("blank host: got %v, want ErrInvalidNickname", err)
	}
}

func TestAddPlayer(t *testing.T) {
	t.Run("full room", func(t *testing.T) {
		s := newTestSession(t, "p0", "p1", "p2", "p3", "p4", "p5", "p6")
		if err := s.AddPlayer("p7"); !errors.Is(err, ErrRoomFull) {
			t.Fatalf("got %v, want ErrRoomFull", err)
		}
		if err := s.AddPlayer("p0"); !errors.Is(err, ErrRoomFull) {
			t.Fatalf("duplicate in full room: got %v, want ErrRoomFull", err)
		}
	})

	t.Run("nickname taken", func(t *testing.T) {
		s := newTestSession(t, "Ana", "Ben")
		for _, name := range []string{"Ana", "Ben", " Ben "} {
			if err := s.AddPlayer(name); !errors.Is(err, ErrNicknameTaken) {
				t.Fatalf("AddPlayer(%q) = %v, want ErrNicknameTaken", name, err)
			}
		}
		if s.PlayerCount() != 2 {
			t.Fatalf("player count = %d, want 2", s.PlayerCount())
		}
	})

	t.Run("already started", func(t *testing.T) {
		s := newTestSession(t, "Ana", "Ben")
		if err := s.Start("Ana", noShuffle); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := s.AddPlayer("Cleo"); !errors.Is(err, ErrGameAlreadyStarted) {
			t.Fatalf("got %v, want ErrGameAlreadyStarted", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		s := newTestSession(t, "Ana")
		if err := s.AddPlayer(""); !errors.Is(err, ErrInvalidNickname) {
			t.Fatalf("got %v, want ErrInvalidNickname", err)
		}
	})
}

func TestRemovePlayer(t *testing.T) {
	s := newTestSession(t, "Ana", "Ben")

	if s.RemovePlayer("Ana") {
		t.Fatal("host was removed")
	}
	if !s.RemovePlayer("Ben") {
		t.Fatal("Ben was not removed")
	}
	if s.HasPlayer("Ben") || s.PlayerCount() != 1 {
		t.Fatalf("roster after removal: %+v", s.View().Players)
	}
	if s.RemovePlayer("Ben") {
		t.Fatal("second removal reported success")
	}
}

func TestDisplayFlag(t *testing.T) {
	s := newTestSession(t, "Ana")

	s.JoinDisplay()
	if !s.DisplayJoined() {
		t.Fatal("display not joined")
	}
	if s.PlayerCount() != 1 {
		t.Fatal("display counted as a player")
	}
	s.LeaveDisplay()
	if s.DisplayJoined() {
		t.Fatal("display still joined")
	}
}

func TestUpdateSetting(t *testing.T) {
	tests := []struct {
		key, value string
		want       Settings
		err        error
	}{
		{SettingDeck, "large", Settings{Deck: DeckLarge, Rows: 5}, nil},
		{SettingDeck, "huge", DefaultSettings(), ErrInvalidSetting},
		{SettingRows, "6", Settings{Deck: DeckSmall, Rows: 6}, nil},
		{SettingRows, "12", Settings{Deck: DeckSmall, Rows: 7}, nil},
		{SettingRows, "1", Settings{Deck: DeckSmall, Rows: 3}, nil},
		{SettingRows, "-4", Settings{Deck: DeckSmall, Rows: 3}, nil},
		{SettingRows, "lots", Settings{Deck: DeckSmall, Rows: 5}, nil},
		{SettingUseExternalDisplay, "true", Settings{Deck: DeckSmall, Rows: 5, UseExternalDisplay: true}, nil},
		{SettingUseExternalDisplay, "maybe", DefaultSettings(), ErrInvalidSetting},
		{"colour", "red", DefaultSettings(), ErrInvalidSetting},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s := newTestSession(t, "Ana")
			err := s.UpdateSetting("Ana", tt.key, tt.value)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got := s.Settings(); got != tt.want {
				t.Fatalf("settings = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUpdateSettingIgnoresNonHost(t *testing.T) {
	s := newTestSession(t, "Ana", "Ben")
	before := s.Settings()
	version := s.Version()

	for _, actor := range []string{"Ben", "", "Nobody"} {
		for _, kv := range [][2]string{{SettingDeck, "large"}, {SettingRows, "3"}, {SettingUseExternalDisplay, "true"}} {
			if err := s.UpdateSetting(actor, kv[0], kv[1]); !errors.Is(err, ErrNotHost) {
				t.Fatalf("UpdateSetting by %q = %v, want ErrNotHost", actor, err)
			}
		}
	}

	if s.Settings() != before || s.Version() != version {
		t.Fatalf("settings changed by non-host: %+v", s.Settings())
	}
}

func TestUpdateSettingAfterStart(t *testing.T) {
	s := newTestSession(t, "Ana", "Ben")
	if err := s.Start("Ana", noShuffle); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.UpdateSetting("Ana", SettingRows, "3"); !errors.Is(err, ErrGameAlreadyStarted) {
		t.Fatalf("got %v, want ErrGameAlreadyStarted", err)
	}
	if s.Settings().Rows != DefaultRows {
		t.Fatalf("rows changed to %d", s.Settings().Rows)
	}
}

func TestStartDeckSize(t *testing.T) {
	for _, deck := range []DeckSize{DeckSmall, DeckLarge} {
		for rows := MinRows; rows <= MaxRows; rows++ {
			for players := MinPlayers; players <= MaxPlayers; players++ {
				name := fmt.Sprintf("%s/rows=%d/players=%d", deck, rows, players)
				t.Run(name, func(t *testing.T) {
					s := newTestSession(t, "p0")
					for i := 1; i < players; i++ {
						if err := s.AddPlayer("p" + strconv.Itoa(i)); err != nil {
							t.Fatalf("AddPlayer: %v", err)
						}
					}
					mustSet(t, s, SettingDeck, string(deck))
					mustSet(t, s, SettingRows, strconv.Itoa(rows))

					fits := HandSize*players+rows*(rows+1)/2 <= deck.Count()
					err := s.Start("p0", nil)

					if fits {
						if err != nil {
							t.Fatalf("Start: %v", err)
						}
						if s.State() != StatePlaying {
							t.Fatalf("state = %q, want playing", s.State())
						}
						return
					}

					if !errors.Is(err, ErrDeckTooSmall) {
						t.Fatalf("Start = %v, want ErrDeckTooSmall", err)
					}
					if s.State() != StateLobby {
						t.Fatalf("state = %q, want lobby", s.State())
					}
				})
			}
		}
	}
}

func TestStartScenario(t *testing.T) {
	s := newTestSession(t, "Ana", "Ben")
	if err := s.Start("Ana", nil); err != nil {
		t.Fatalf("two players, small deck, 5 rows: %v", err)
	}

	s = newTestSession(t, "Ana", "Ben", "Cleo", "Dan", "Emil", "Finn")
	if err := s.Start("Ana", nil); !errors.Is(err, ErrDeckTooSmall) {
		t.Fatalf("six players, small deck, 5 rows: got %v, want ErrDeckTooSmall", err)
	}
}

func TestStartPreconditions(t *testing.T) {
	s := newTestSession(t, "Ana")
	if err := s.Start("Ana", nil); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("one player: got %v", err)
	}

	if err := s.AddPlayer("Ben"); err != nil {
		t.Fatal(err)
	}
	if err := s.Start("Ben", nil); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host start: got %v", err)
	}

	mustSet(t, s, SettingUseExternalDisplay, "true")
	if err := s.Start("Ana", nil); !errors.Is(err, ErrDisplayMissing) {
		t.Fatalf("missing display: got %v", err)
	}

	s.JoinDisplay()
	if err := s.Start("Ana", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start("Ana", nil); !errors.Is(err, ErrGameAlreadyStarted) {
		t.Fatalf("second start: got %v", err)
	}
}

func TestStartDealsUniqueCards(t *testing.T) {
	s := newTestSession(t, "p0", "p1", "p2", "p3", "p4", "p5", "p6")
	mustSet(t, s, SettingDeck, "large")
	mustSet(t, s, SettingRows, "3")

	if err := s.Start("p0", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	v := s.View()
	seen := make(map[string]string)
	add := func(id, where string) {
		if prev, ok := seen[id]; ok {
			t.Fatalf("card %s dealt twice: %s and %s", id, prev, where)
		}
		seen[id] = where
	}

	for _, p := range v.Players {
		if len(p.Hand) != HandSize {
			t.Fatalf("%s holds %d cards", p.Nickname, len(p.Hand))
		}
		if p.Sips != 0 || len(p.ReceivedCards) != 0 {
			t.Fatalf("%s not reset: %+v", p.Nickname, p)
		}
		for _, c := range p.Hand {
			add(c.ID, "hand of "+p.Nickname)
		}
	}

	for r, row := range v.Pyramid {
		if len(row) != r+1 {
			t.Fatalf("row %d has %d cells", r, len(row))
		}
		for c, cell := range row {
			if cell.Revealed {
				t.Fatalf("cell %d/%d revealed at start", r, c)
			}
			add(cell.ID, fmt.Sprintf("cell %d/%d", r, c))
		}
	}

	if len(seen) != CardsNeeded(7, 3) {
		t.Fatalf("dealt %d cards, want %d", len(seen), CardsNeeded(7, 3))
	}
	if got := *v.Turn; got != (Turn{Row: 0, Col: 0, Phase: PhaseReveal}) {
		t.Fatalf("turn = %+v", got)
	}
}

func TestAdvanceFinishesAfterEveryCell(t *testing.T) {
	for rows := MinRows; rows <= MaxRows; rows++ {
		t.Run(strconv.Itoa(rows), func(t *testing.T) {
			s := newTestSession(t, "Ana", "Ben")
			mustSet(t, s, SettingDeck, "large")
			mustSet(t, s, SettingRows, strconv.Itoa(rows))
			if err := s.Start("Ana", nil); err != nil {
				t.Fatalf("Start: %v", err)
			}

			cells := s.Settings().Cells()
			for i := 0; i < cells-1; i++ {
				s.Advance()
				if s.State() != StatePlaying {
					t.Fatalf("finished after %d of %d advances", i+1, cells)
				}
			}
			s.Advance()
			if s.State() != StateFinished {
				t.Fatalf("state = %q after %d advances, want finished", s.State(), cells)
			}
			if got, want := s.Turn(), (Turn{Row: rows - 1, Col: rows - 1, Phase: PhaseReveal}); got != want {
				t.Fatalf("finished turn = %+v, want %+v", got, want)
			}
			if _, err := s.Reveal("Ana"); !errors.Is(err, ErrNotPlaying) {
				t.Fatalf("Reveal after finish = %v, want ErrNotPlaying", err)
			}

			for r, row := range s.View().Pyramid {
				for c, cell := range row {
					if !cell.Revealed {
						t.Fatalf("cell %d/%d not revealed after finish", r, c)
					}
				}
			}

			before := s.Version()
			s.Advance()
			if s.Version() != before {
				t.Fatal("Advance changed a finished session")
			}
		})
	}
}

func TestRevealWithoutHolderAutoAdvances(t *testing.T) {
	// Large deck in suit order: Ana 2-5♥, Ben 6-9♥, first cell 10♥.
	s := newTestSession(t, "Ana", "Ben")
	mustSet(t, s, SettingDeck, "large")
	if err := s.Start("Ana", noShuffle); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := s.Reveal("Ben"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("reveal by non-host: got %v", err)
	}

	res, err := s.Reveal("Ana")
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if res.Card.ID != "10♥" {
		t.Fatalf("revealed %s, want 10♥", res.Card.ID)
	}
	if !res.AutoAdvance {
		t.Fatal("nobody holds a 10 but AutoAdvance is false")
	}
	if _, err := s.Reveal("Ana"); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("double reveal: got %v", err)
	}

	if !s.AdvanceIfCurrent(s.Version()) {
		t.Fatal("AdvanceIfCurrent refused a current version")
	}
	if got := s.Turn(); got != (Turn{Row: 1, Col: 0, Phase: PhaseReveal}) {
		t.Fatalf("turn = %+v", got)
	}
}

func TestStaleAutoAdvanceIsIgnored(t *testing.T) {
	s := newTestSession(t, "Ana", "Ben")
	mustSet(t, s, SettingDeck, "large")
	if err := s.Start("Ana", noShuffle); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := s.Reveal("Ana"); err != nil {
		t.Fatal(err)
	}
	armed := s.Version()
	s.Advance()

	if s.AdvanceIfCurrent(armed) {
		t.Fatal("stale timer advanced the turn")
	}
	if got := s.Turn(); got != (Turn{Row: 1, Col: 0, Phase: PhaseReveal}) {
		t.Fatalf("turn = %+v", got)
	}
}

func TestAssignSipScenario(t *testing.T) {
	// Small deck in suit order: Ana 7-10♥, Ben J-A♥, Cleo 7-10♦.
	// Row 2 is A♦ 7♣ 8♣, so cell 2/1 is a seven.
	s := newTestSession(t, "Ana", "Ben", "Cleo")
	if err := s.Start("Ana", noShuffle); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 4; i++ {
		s.Advance()
	}
	if got := s.Turn(); got != (Turn{Row: 2, Col: 1, Phase: PhaseReveal}) {
		t.Fatalf("turn = %+v", got)
	}

	res, err := s.Reveal("Ana")
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if res.Card.ID != "7♣" || res.AutoAdvance {
		t.Fatalf("reveal = %+v", res)
	}

	if err := s.AssignSip("Cleo", "8♦", "Ben"); !errors.Is(err, ErrCardNotHeld) {
		t.Fatalf("wrong rank: got %v", err)
	}
	if err := s.AssignSip("Cleo", "7♥", "Ben"); !errors.Is(err, ErrCardNotHeld) {
		t.Fatalf("card of another player: got %v", err)
	}
	if err := s.AssignSip("Cleo", "7♦", "Cleo"); !errors.Is(err, ErrSelfAssign) {
		t.Fatalf("self assign: got %v", err)
	}
	if err := s.AssignSip("Cleo", "7♦", "Zed"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("unknown target: got %v", err)
	}

	if err := s.AssignSip("Cleo", "7♦", "Ben"); err != nil {
		t.Fatalf("AssignSip: %v", err)
	}

	ben, _ := s.Player("Ben")
	if ben.Sips != SipsPerAssignment {
		t.Fatalf("Ben sips = %d, want %d", ben.Sips, SipsPerAssignment)
	}
	if len(ben.ReceivedCards) != 1 || ben.ReceivedCards[0].ID != "7♦" {
		t.Fatalf("Ben received %v", ben.ReceivedCards)
	}
	cleo, _ := s.Player("Cleo")
	if len(cleo.Hand) != HandSize-1 {
		t.Fatalf("Cleo hand = %v", cleo.Hand)
	}
	if got := s.Turn(); got != (Turn{Row: 2, Col: 2, Phase: PhaseReveal}) {
		t.Fatalf("turn = %+v, want 2/2 reveal", got)
	}

	if err := s.AssignSip("Ana", "7♥", "Ben"); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("assign during reveal: got %v", err)
	}
}

func TestRevealPenalizesReceivedRank(t *testing.T) {
	s := newTestSession(t, "Ana", "Ben", "Cleo")
	if err := s.Start("Ana", noShuffle); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 4; i++ {
		s.Advance()
	}
	if _, err := s.Reveal("Ana"); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignSip("Cleo", "7♦", "Ben"); err != nil {
		t.Fatal(err)
	}

	// Row 3 is 9♣ 10♣ J♣ Q♣, row 4 starts K♣ A♣ 7♠.
	for s.Turn() != (Turn{Row: 4, Col: 2, Phase: PhaseReveal}) {
		s.Advance()
	}

	res, err := s.Reveal("Ana")
	if err != nil {
		t.Fatal(err)
	}
	if res.Card.ID != "7♠" {
		t.Fatalf("revealed %s", res.Card.ID)
	}
	if len(res.Drinkers) != 1 || res.Drinkers[0] != "Ben" {
		t.Fatalf("drinkers = %v, want [Ben]", res.Drinkers)
	}
	ben, _ := s.Player("Ben")
	if ben.Sips != SipsPerAssignment+SipsPerMatch {
		t.Fatalf("Ben sips = %d", ben.Sips)
	}
	if res.AutoAdvance {
		t.Fatal("Ana still holds 7♥, AutoAdvance should be false")
	}
}

func TestNeedsAutoAdvanceAfterHolderLeaves(t *testing.T) {
	// Small deck: Ana 7-10♥, Ben J-A♥, Cleo 7-10♦. The first cell is J♦,
	// which only Ben can answer.
	s := newTestSession(t, "Ana", "Ben", "Cleo")
	if err := s.Start("Ana", noShuffle); err != nil {
		t.Fatal(err)
	}
	res, err := s.Reveal("Ana")
	if err != nil {
		t.Fatal(err)
	}
	if res.Card.ID != "J♦" || res.AutoAdvance {
		t.Fatalf("reveal = %+v", res)
	}

	s.RemovePlayer("Ben")
	if !s.NeedsAutoAdvance() {
		t.Fatal("no holder of J left but NeedsAutoAdvance is false")
	}
}

func TestPublicViewHidesFaceDownCards(t *testing.T) {
	s := newTestSession(t, "Ana", "Ben")
	if err := s.Start("Ana", noShuffle); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reveal("Ana"); err != nil {
		t.Fatal(err)
	}

	v := s.PublicView()
	if v.Pyramid[0][0].ID == "" {
		t.Fatal("revealed card was hidden")
	}
	if v.Pyramid[1][0].ID != "" || v.Pyramid[1][0].Value != "" {
		t.Fatalf("face-down card leaked: %+v", v.Pyramid[1][0])
	}
	if full := s.View(); full.Pyramid[1][0].ID == "" {
		t.Fatal("View lost face-down card")
	}
	for _, p := range v.Players {
		if len(p.Hand) != HandSize || p.Hand[0].ID == "" {
			t.Fatalf("hand of %s not shared: %v", p.Nickname, p.Hand)
		}
	}
}

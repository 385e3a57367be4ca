package pyramid

import (
	"math/rand"
)

type Suit string

const (
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
	Spades   Suit = "♠"
)

var suits = []Suit{Hearts, Diamonds, Clubs, Spades}

type Rank string

var ranks = []Rank{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// Ranks dropped from the small deck.
var lowRanks = map[Rank]bool{"2": true, "3": true, "4": true, "5": true, "6": true}

// Card is a single playing card. ID is value+suit and unique within a deck.
type Card struct {
	ID    string `json:"id"`
	Value Rank   `json:"value"`
	Suit  Suit   `json:"suit"`
}

func NewCard(value Rank, suit Suit) Card {
	return Card{
		ID:    string(value) + string(suit),
		Value: value,
		Suit:  suit,
	}
}

func (c Card) String() string {
	return c.ID
}

// Red reports whether the card is a heart or a diamond.
func (c Card) Red() bool {
	return c.Suit == Hearts || c.Suit == Diamonds
}

type DeckSize string

const (
	DeckSmall DeckSize = "small"
	DeckLarge DeckSize = "large"
)

func (d DeckSize) Valid() bool {
	return d == DeckSmall || d == DeckLarge
}

// Count is the number of cards in a full deck of this size.
func (d DeckSize) Count() int {
	if d == DeckLarge {
		return len(ranks) * len(suits)
	}
	return (len(ranks) - len(lowRanks)) * len(suits)
}

// NewDeck returns an ordered deck, grouped by suit.
func NewDeck(size DeckSize) []Card {
	deck := make([]Card, 0, size.Count())
	for _, s := range suits {
		for _, v := range ranks {
			if size != DeckLarge && lowRanks[v] {
				continue
			}
			deck = append(deck, NewCard(v, s))
		}
	}
	return deck
}

// Shuffler permutes n elements through swap. rand.Shuffle satisfies it.
type Shuffler func(n int, swap func(i, j int))

// DefaultShuffler is a uniform Fisher-Yates shuffle.
var DefaultShuffler Shuffler = rand.Shuffle

func Shuffle(deck []Card, shuffle Shuffler) {
	if shuffle == nil {
		shuffle = DefaultShuffler
	}
	shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
}

// CardsNeeded is the number of cards dealt for a game: four per player plus
// every pyramid cell.
func CardsNeeded(players, rows int) int {
	return HandSize*players + rows*(rows+1)/2
}

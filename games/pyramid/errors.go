package pyramid

import (
	"errors"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameAlreadyStarted = errors.New("game has already started")
	ErrRoomFull           = errors.New("room is full")
	ErrNicknameTaken      = errors.New("nickname is already taken")
	ErrInvalidNickname    = errors.New("nickname must not be empty")
	ErrDeckTooSmall       = errors.New("deck is too small for this pyramid")
	ErrNotHost            = errors.New("only the host may do that")
	ErrNotEnoughPlayers   = errors.New("at least two players are required")
	ErrDisplayMissing     = errors.New("waiting for the external display")
	ErrNotPlaying         = errors.New("game is not running")
	ErrWrongPhase         = errors.New("not possible in this phase of the turn")
	ErrCardNotHeld        = errors.New("card is not in your hand or does not match")
	ErrUnknownPlayer      = errors.New("no such player")
	ErrSelfAssign         = errors.New("you cannot give sips to yourself")
	ErrInvalidSetting     = errors.New("invalid setting")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "room_not_found"},
	{ErrGameAlreadyStarted, "game_already_started"},
	{ErrRoomFull, "room_full"},
	{ErrNicknameTaken, "nickname_taken"},
	{ErrInvalidNickname, "invalid_nickname"},
	{ErrDeckTooSmall, "deck_too_small"},
	{ErrNotHost, "not_host"},
	{ErrNotEnoughPlayers, "not_enough_players"},
	{ErrDisplayMissing, "display_missing"},
	{ErrNotPlaying, "not_playing"},
	{ErrWrongPhase, "wrong_phase"},
	{ErrCardNotHeld, "card_not_held"},
	{ErrUnknownPlayer, "unknown_player"},
	{ErrSelfAssign, "self_assign"},
	{ErrInvalidSetting, "invalid_setting"},
}

// Code maps an error to the stable identifier sent to clients.
func Code(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}

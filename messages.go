package main

import (
	"github.com/Seednode/pyramid/games/pyramid"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "host", "join", "display", "setting", "start", "reveal", "assign"
	Nickname string `json:"nickname,omitempty"` // host / join
	Key      string `json:"key,omitempty"`      // setting
	Value    string `json:"value,omitempty"`    // setting
	Card     string `json:"card,omitempty"`     // assign
	Target   string `json:"target,omitempty"`   // assign
}

type role string

const (
	roleNone    role = ""
	roleHost    role = "host"
	rolePlayer  role = "player"
	roleDisplay role = "display"
)

// SessionInfoMessage tells a connection which role its cookie holds.
type SessionInfoMessage struct {
	Type     string `json:"type"` // "session_info"
	Room     string `json:"room"`
	Role     role   `json:"role"`
	Nickname string `json:"nickname,omitempty"`
	Hosted   bool   `json:"hosted"` // a host has opened the room
}

// StateMessage carries the whole game after every change.
type StateMessage struct {
	Type string       `json:"type"` // "state"
	Game pyramid.View `json:"game"`
}

// ErrorMessage is sent only to the client whose command failed.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SimpleMessage is for generic notifications ("ended").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    "error",
		Code:    pyramid.Code(err),
		Message: err.Error(),
	}
}

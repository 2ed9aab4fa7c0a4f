package gateway

import (
	"encoding/json"
	"strings"

	"github.com/park285/charades-server/internal/game"
	"github.com/park285/charades-server/pkg/charadesdto"
)

// inbound is the closed set of client events. Each variant validates its
// own payload shape; game rules are checked later by the engines.
type inbound interface {
	errorEvent() string
	validate() error
}

type (
	createRoomEvent       struct{ charadesdto.CreateRoomRequest }
	joinRoomEvent         struct{ charadesdto.JoinRoomRequest }
	rejoinRoomEvent       struct{ charadesdto.RejoinRoomRequest }
	leaveRoomEvent        struct{ charadesdto.LeaveRoomRequest }
	startGameEvent        struct{ charadesdto.StartGameRequest }
	startRoundEvent       struct{ charadesdto.StartRoundRequest }
	deploySabotageEvent   struct{ charadesdto.DeploySabotageRequest }
	endRoundEvent         struct{ charadesdto.EndRoundRequest }
	requestGameStateEvent struct{ charadesdto.RequestGameStateRequest }
)

func (createRoomEvent) errorEvent() string       { return charadesdto.EventRoomError }
func (joinRoomEvent) errorEvent() string         { return charadesdto.EventRoomError }
func (rejoinRoomEvent) errorEvent() string       { return charadesdto.EventRoomError }
func (leaveRoomEvent) errorEvent() string        { return "" }
func (startGameEvent) errorEvent() string        { return charadesdto.EventGameError }
func (startRoundEvent) errorEvent() string       { return charadesdto.EventGameError }
func (deploySabotageEvent) errorEvent() string   { return charadesdto.EventSabotageError }
func (endRoundEvent) errorEvent() string         { return charadesdto.EventGameError }
func (requestGameStateEvent) errorEvent() string { return charadesdto.EventGameError }

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func (e createRoomEvent) validate() error {
	if blank(e.PlayerName) {
		return game.ErrInvalidPlayerName
	}
	return nil
}

func (e joinRoomEvent) validate() error {
	if !game.ValidRoomCode(e.RoomCode) {
		return game.ErrInvalidCode
	}
	if blank(e.PlayerName) {
		return game.ErrInvalidPlayerName
	}
	return nil
}

func (e rejoinRoomEvent) validate() error {
	if !game.ValidRoomCode(e.RoomCode) {
		return game.ErrInvalidCode
	}
	if blank(e.PlayerID) {
		return game.ErrInvalidData
	}
	return nil
}

func (e leaveRoomEvent) validate() error {
	if blank(e.PlayerID) {
		return game.ErrInvalidData
	}
	return nil
}

func (e startGameEvent) validate() error {
	if !game.ValidRoomCode(e.RoomCode) {
		return game.ErrInvalidCode
	}
	if blank(e.RequestedBy) {
		return game.ErrInvalidData
	}
	return nil
}

func (e startRoundEvent) validate() error {
	if !game.ValidRoomCode(e.RoomCode) {
		return game.ErrInvalidCode
	}
	if blank(e.RequestedBy) {
		return game.ErrInvalidData
	}
	return nil
}

func (e deploySabotageEvent) validate() error {
	if !game.ValidRoomCode(e.RoomCode) {
		return game.ErrInvalidCode
	}
	if blank(e.SabotageID) || blank(e.DirectorID) {
		return game.ErrInvalidData
	}
	return nil
}

func (e endRoundEvent) validate() error {
	if !game.ValidRoomCode(e.RoomCode) {
		return game.ErrInvalidCode
	}
	return nil
}

func (e requestGameStateEvent) validate() error {
	if blank(e.PlayerID) {
		return game.ErrInvalidData
	}
	return nil
}

// decode parses an envelope into its variant. On a payload error the
// returned variant is still set, so the caller can pick the error event.
func decode(raw []byte) (inbound, error) {
	var env charadesdto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, game.ErrInvalidData
	}
	var ev inbound
	var err error
	switch env.Type {
	case charadesdto.EventCreateRoom:
		var e createRoomEvent
		err = unmarshalPayload(env.Payload, &e.CreateRoomRequest)
		ev = e
	case charadesdto.EventJoinRoom:
		var e joinRoomEvent
		err = unmarshalPayload(env.Payload, &e.JoinRoomRequest)
		ev = e
	case charadesdto.EventRejoinRoom:
		var e rejoinRoomEvent
		err = unmarshalPayload(env.Payload, &e.RejoinRoomRequest)
		ev = e
	case charadesdto.EventLeaveRoom:
		var e leaveRoomEvent
		err = unmarshalPayload(env.Payload, &e.LeaveRoomRequest)
		ev = e
	case charadesdto.EventStartGame:
		var e startGameEvent
		err = unmarshalPayload(env.Payload, &e.StartGameRequest)
		ev = e
	case charadesdto.EventStartRound:
		var e startRoundEvent
		err = unmarshalPayload(env.Payload, &e.StartRoundRequest)
		ev = e
	case charadesdto.EventDeploySabotage:
		var e deploySabotageEvent
		err = unmarshalPayload(env.Payload, &e.DeploySabotageRequest)
		ev = e
	case charadesdto.EventEndRound:
		var e endRoundEvent
		err = unmarshalPayload(env.Payload, &e.EndRoundRequest)
		ev = e
	case charadesdto.EventRequestGameState:
		var e requestGameStateEvent
		err = unmarshalPayload(env.Payload, &e.RequestGameStateRequest)
		ev = e
	default:
		return nil, game.ErrInvalidData
	}
	return ev, err
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return game.ErrInvalidData
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return game.ErrInvalidData
	}
	return nil
}

func errorEventFor(ev inbound) string {
	if ev == nil {
		return charadesdto.EventGameError
	}
	return ev.errorEvent()
}

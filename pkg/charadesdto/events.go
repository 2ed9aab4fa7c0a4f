package charadesdto

import "encoding/json"

// Envelope is one WebSocket frame in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> server
const (
	EventCreateRoom       = "create_room"
	EventJoinRoom         = "join_room"
	EventRejoinRoom       = "rejoin_room"
	EventLeaveRoom        = "leave_room"
	EventStartGame        = "start_game"
	EventStartRound       = "start_round"
	EventDeploySabotage   = "deploy_sabotage"
	EventEndRound         = "end_round"
	EventRequestGameState = "request_game_state"
)

// Server -> client
const (
	EventRoomCreated        = "room_created"
	EventRoomJoined         = "room_joined"
	EventPlayerJoined       = "player_joined"
	EventPlayerLeft         = "player_left"
	EventPlayerReconnected  = "player_reconnected"
	EventPlayerDisconnected = "player_disconnected"
	EventGameStateUpdate    = "game_state_update"
	EventSabotageDeployed   = "sabotage_deployed"
	EventSabotageEnded      = "sabotage_ended"
	EventRoundComplete      = "round_complete"
	EventGameComplete       = "game_complete"
	EventTimerUpdate        = "timer_update"

	EventRoomError     = "room_error"
	EventGameError     = "game_error"
	EventSabotageError = "sabotage_error"
)

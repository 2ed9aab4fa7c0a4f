package charadesdto

import "github.com/park285/charades-server/internal/domain"

// RoomEntered answers both room_created and room_joined.
type RoomEntered struct {
	Room      domain.Room       `json:"room"`
	PlayerID  string            `json:"playerId"`
	GameState *domain.GameState `json:"gameState"`
}

type PlayerEvent struct {
	Player domain.Player `json:"player"`
	Room   domain.Room   `json:"room"`
}

type PlayerRef struct {
	PlayerID string      `json:"playerId"`
	Room     domain.Room `json:"room"`
}

type SabotageDeployed struct {
	Sabotage domain.ActiveSabotage `json:"sabotage"`
}

type SabotageEnded struct {
	SabotageID string `json:"sabotageId"`
}

type RoundComplete struct {
	CompletedRound domain.CompletedRound `json:"completedRound"`
	GameState      *domain.GameState     `json:"gameState"`
}

type GameComplete struct {
	GameState      *domain.GameState      `json:"gameState"`
	CompletedRound *domain.CompletedRound `json:"completedRound,omitempty"`
}

type TimerUpdate struct {
	TimeRemaining int64 `json:"timeRemaining"`
}

// RoomSnapshot is the read-only HTTP view of a room.
type RoomSnapshot struct {
	GameState *domain.GameState `json:"gameState"`
	Standings []string          `json:"standings"`
	// Remaining ms of the active round, 0 when none.
	TimeRemaining int64 `json:"timeRemaining"`
}

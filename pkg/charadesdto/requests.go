package charadesdto

import "github.com/park285/charades-server/internal/domain"

type CreateRoomRequest struct {
	PlayerName string                  `json:"playerName"`
	GameConfig *domain.ConfigOverrides `json:"gameConfig,omitempty"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type RejoinRoomRequest struct {
	PlayerID string `json:"playerId"`
	RoomCode string `json:"roomCode"`
}

type LeaveRoomRequest struct {
	PlayerID string `json:"playerId"`
}

type StartGameRequest struct {
	RoomCode    string `json:"roomCode"`
	RequestedBy string `json:"requestedBy"`
}

type StartRoundRequest struct {
	RoomCode    string `json:"roomCode"`
	RequestedBy string `json:"requestedBy"`
	// Optional prompt filters.
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

type DeploySabotageRequest struct {
	RoomCode   string `json:"roomCode"`
	SabotageID string `json:"sabotageId"`
	DirectorID string `json:"directorId"`
}

type EndRoundRequest struct {
	RoomCode string `json:"roomCode"`
	WinnerID string `json:"winnerId,omitempty"`
}

type RequestGameStateRequest struct {
	PlayerID string `json:"playerId"`
}

package game

import "errors"

// Code is the machine-readable error identifier sent to clients.
type Code string

const (
	CodeInvalidData             Code = "INVALID_DATA"
	CodeInvalidPlayerName       Code = "INVALID_PLAYER_NAME"
	CodeInvalidCode             Code = "INVALID_CODE"
	CodeRoomNotFound            Code = "ROOM_NOT_FOUND"
	CodeRoomFull                Code = "ROOM_FULL"
	CodeGameInProgress          Code = "GAME_IN_PROGRESS"
	CodePlayerNameTaken         Code = "PLAYER_NAME_TAKEN"
	CodePlayerNotFound          Code = "PLAYER_NOT_FOUND"
	CodeUnauthorized            Code = "UNAUTHORIZED"
	CodeRoundNotActive          Code = "ROUND_NOT_ACTIVE"
	CodeRoundInProgress         Code = "ROUND_IN_PROGRESS"
	CodeNoActiveRound           Code = "NO_ACTIVE_ROUND"
	CodeInsufficientPlayers     Code = "INSUFFICIENT_PLAYERS"
	CodeGameNotStarted          Code = "GAME_NOT_STARTED"
	CodeGameComplete            Code = "GAME_COMPLETE"
	CodeInvalidWinner           Code = "INVALID_WINNER"
	CodeGracePeriodActive       Code = "GRACE_PERIOD_ACTIVE"
	CodeMaxSabotagesReached     Code = "MAX_SABOTAGES_REACHED"
	CodeSabotageAlreadyActive   Code = "SABOTAGE_ALREADY_ACTIVE"
	CodeSabotageNotFound        Code = "SABOTAGE_NOT_FOUND"
	CodeCodeGenerationExhausted Code = "CODE_GENERATION_EXHAUSTED"
	CodePromptsExhausted        Code = "PROMPTS_EXHAUSTED"
	CodeRateLimited             Code = "RATE_LIMITED"
	CodeServerError             Code = "SERVER_ERROR"
	CodeStateSyncError          Code = "STATE_SYNC_ERROR"
)

// Error is a rejected game operation. Two errors match under errors.Is when
// their codes are equal, so callers can compare against the sentinels below.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return string(e.Code)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newErr(code Code, msg string) *Error { return &Error{Code: code, Msg: msg} }

var (
	ErrInvalidData             = newErr(CodeInvalidData, "invalid payload")
	ErrInvalidPlayerName       = newErr(CodeInvalidPlayerName, "invalid player name")
	ErrInvalidCode             = newErr(CodeInvalidCode, "invalid room code")
	ErrRoomNotFound            = newErr(CodeRoomNotFound, "room not found")
	ErrRoomFull                = newErr(CodeRoomFull, "room is full")
	ErrGameInProgress          = newErr(CodeGameInProgress, "game already in progress")
	ErrPlayerNameTaken         = newErr(CodePlayerNameTaken, "player name taken")
	ErrPlayerNotFound          = newErr(CodePlayerNotFound, "player not found")
	ErrUnauthorized            = newErr(CodeUnauthorized, "not allowed")
	ErrRoundNotActive          = newErr(CodeRoundNotActive, "round not active")
	ErrRoundInProgress         = newErr(CodeRoundInProgress, "round already in progress")
	ErrNoActiveRound           = newErr(CodeNoActiveRound, "no active round")
	ErrInsufficientPlayers     = newErr(CodeInsufficientPlayers, "not enough players")
	ErrGameNotStarted          = newErr(CodeGameNotStarted, "game not started")
	ErrGameComplete            = newErr(CodeGameComplete, "game complete")
	ErrInvalidWinner           = newErr(CodeInvalidWinner, "invalid winner")
	ErrGracePeriodActive       = newErr(CodeGracePeriodActive, "grace period active")
	ErrMaxSabotagesReached     = newErr(CodeMaxSabotagesReached, "sabotage limit reached")
	ErrSabotageAlreadyActive   = newErr(CodeSabotageAlreadyActive, "sabotage already active")
	ErrSabotageNotFound        = newErr(CodeSabotageNotFound, "sabotage not available")
	ErrCodeGenerationExhausted = newErr(CodeCodeGenerationExhausted, "could not allocate room code")
	ErrPromptsExhausted        = newErr(CodePromptsExhausted, "no prompts available")
	ErrRateLimited             = newErr(CodeRateLimited, "too many requests")
	ErrStateSync               = newErr(CodeStateSyncError, "could not load game state")
)

// CodeOf maps any error to a client code. Unknown errors are SERVER_ERROR.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeServerError
}

package domain

// All timestamps are unix milliseconds. JSON names follow the client protocol.

type ConnectionStatus string

const (
	ConnConnecting   ConnectionStatus = "connecting"
	ConnConnected    ConnectionStatus = "connected"
	ConnDisconnected ConnectionStatus = "disconnected"
	ConnReconnecting ConnectionStatus = "reconnecting"
)

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomComplete RoomStatus = "complete"
)

type RoundStatus string

const (
	RoundActive   RoundStatus = "active"
	RoundComplete RoundStatus = "complete"
)

type RoundOutcome string

const (
	OutcomeCorrectGuess RoundOutcome = "correct_guess"
	OutcomeTimeUp       RoundOutcome = "time_up"
)

type Player struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	JoinedAt         int64            `json:"joinedAt"`
}

// Room keeps players in join order; index 0 is the host.
type Room struct {
	Code       string     `json:"code"`
	Players    []Player   `json:"players"`
	Status     RoomStatus `json:"status"`
	CreatedAt  int64      `json:"createdAt"`
	MaxPlayers int        `json:"maxPlayers"`
}

func (r *Room) IndexOf(playerID string) int {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

func (r *Room) Player(playerID string) (Player, bool) {
	if i := r.IndexOf(playerID); i >= 0 {
		return r.Players[i], true
	}
	return Player{}, false
}

func (r *Room) HostID() string {
	if len(r.Players) == 0 {
		return ""
	}
	return r.Players[0].ID
}

type GameConfig struct {
	RoundDurationMs int64 `json:"roundDuration"`
	GracePeriodMs   int64 `json:"gracePeriod"`
	MaxSabotages    int   `json:"maxSabotages"`
}

func DefaultGameConfig() GameConfig {
	return GameConfig{RoundDurationMs: 90_000, GracePeriodMs: 20_000, MaxSabotages: 3}
}

// ConfigOverrides is the partial config a host may send on create_room.
type ConfigOverrides struct {
	RoundDurationMs *int64 `json:"roundDuration,omitempty"`
	GracePeriodMs   *int64 `json:"gracePeriod,omitempty"`
	MaxSabotages    *int   `json:"maxSabotages,omitempty"`
}

func (c GameConfig) Apply(o *ConfigOverrides) GameConfig {
	if o == nil {
		return c
	}
	if o.RoundDurationMs != nil {
		c.RoundDurationMs = *o.RoundDurationMs
	}
	if o.GracePeriodMs != nil {
		c.GracePeriodMs = *o.GracePeriodMs
	}
	if o.MaxSabotages != nil {
		c.MaxSabotages = *o.MaxSabotages
	}
	return c
}

type GamePrompt struct {
	ID         string `json:"id" yaml:"id"`
	Text       string `json:"text" yaml:"text"`
	Category   string `json:"category" yaml:"category"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
}

type SabotageAction struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	DurationMs  int64  `json:"duration" yaml:"duration"`
	Category    string `json:"category" yaml:"category"`
}

type ActiveSabotage struct {
	Action     SabotageAction `json:"action"`
	DeployedBy string         `json:"deployedBy"`
	DeployedAt int64          `json:"deployedAt"`
	EndsAt     int64          `json:"endsAt"`
}

// SabotageKey identifies one deployment; the same action can be deployed twice in a round.
type SabotageKey struct {
	ActionID   string
	DeployedAt int64
}

func (a *ActiveSabotage) Key() SabotageKey {
	return SabotageKey{ActionID: a.Action.ID, DeployedAt: a.DeployedAt}
}

type CurrentRound struct {
	Number                 int              `json:"number"`
	ActorID                string           `json:"actorId"`
	DirectorID             string           `json:"directorId"`
	Prompt                 GamePrompt       `json:"prompt"`
	StartTime              int64            `json:"startTime"`
	DurationMs             int64            `json:"duration"`
	CurrentSabotage        *ActiveSabotage  `json:"currentSabotage"`
	SabotagesDeployedCount int              `json:"sabotagesDeployedCount"`
	AvailableSabotages     []SabotageAction `json:"availableSabotages"`
	Status                 RoundStatus      `json:"status"`
}

func (r *CurrentRound) EndsAt() int64 { return r.StartTime + r.DurationMs }

// Remaining never goes below zero.
func (r *CurrentRound) Remaining(now int64) int64 {
	left := r.EndsAt() - now
	if left < 0 {
		return 0
	}
	return left
}

type PlayerScoreChange struct {
	PlayerID     string `json:"playerId"`
	PointsEarned int    `json:"pointsEarned"`
	TotalScore   int    `json:"totalScore"`
}

type CompletedRound struct {
	RoundNumber   int                 `json:"roundNumber"`
	ActorID       string              `json:"actorId"`
	DirectorID    string              `json:"directorId"`
	Prompt        GamePrompt          `json:"prompt"`
	Outcome       RoundOutcome        `json:"outcome"`
	WinnerID      string              `json:"winnerId,omitempty"`
	SabotagesUsed int                 `json:"sabotagesUsed"`
	ScoreChanges  []PlayerScoreChange `json:"scoreChanges"`
	CompletedAt   int64               `json:"completedAt"`
}

// GameState is the per-room aggregate. Engines never mutate a state they
// were given; they return a modified Clone.
type GameState struct {
	Room         Room             `json:"room"`
	CurrentRound *CurrentRound    `json:"currentRound"`
	Scores       map[string]int   `json:"scores"`
	GameConfig   GameConfig       `json:"gameConfig"`
	RoundHistory []CompletedRound `json:"roundHistory"`

	// RoundsStarted counts rounds opened this game, abandoned ones included.
	RoundsStarted int `json:"roundsStarted"`
}

func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := &GameState{
		Room:          s.Room,
		GameConfig:    s.GameConfig,
		RoundsStarted: s.RoundsStarted,
	}
	out.Room.Players = append([]Player(nil), s.Room.Players...)
	out.Scores = make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		out.Scores[k] = v
	}
	if s.CurrentRound != nil {
		cr := *s.CurrentRound
		if cr.CurrentSabotage != nil {
			sab := *cr.CurrentSabotage
			cr.CurrentSabotage = &sab
		}
		cr.AvailableSabotages = append([]SabotageAction(nil), cr.AvailableSabotages...)
		out.CurrentRound = &cr
	}
	if s.RoundHistory != nil {
		out.RoundHistory = make([]CompletedRound, len(s.RoundHistory))
		for i, h := range s.RoundHistory {
			h.ScoreChanges = append([]PlayerScoreChange(nil), h.ScoreChanges...)
			out.RoundHistory[i] = h
		}
	}
	return out
}

// ActiveRound returns the in-progress round or nil.
func (s *GameState) ActiveRound() *CurrentRound {
	if s == nil || s.CurrentRound == nil || s.CurrentRound.Status != RoundActive {
		return nil
	}
	return s.CurrentRound
}

// GameSummary is the final record handed to result sinks.
type GameSummary struct {
	RoomCode    string           `json:"roomCode"`
	Players     []Player         `json:"players"`
	Scores      map[string]int   `json:"scores"`
	Winners     []string         `json:"winners"`
	Rounds      []CompletedRound `json:"rounds"`
	StartedAt   int64            `json:"startedAt"`
	CompletedAt int64            `json:"completedAt"`
}

package game

import "github.com/park285/charades-server/internal/domain"

// IsGameComplete reports whether the number of distinct actors so far,
// counting the in-progress round, has reached the current player count.
func IsGameComplete(s *domain.GameState) bool {
	n := len(s.Room.Players)
	if n == 0 {
		return false
	}
	actors := make(map[string]struct{}, n)
	for _, h := range s.RoundHistory {
		actors[h.ActorID] = struct{}{}
	}
	if s.CurrentRound != nil {
		actors[s.CurrentRound.ActorID] = struct{}{}
	}
	return len(actors) >= n
}

func MarkComplete(s *domain.GameState) *domain.GameState {
	out := s.Clone()
	out.Room.Status = domain.RoomComplete
	out.CurrentRound = nil
	return out
}

// NextRoles picks the actor and director for the next round.
//
// First round: players[0] directs, players[1] acts. Afterwards the previous
// actor directs and the player after them acts. If the previous actor has
// left, rotation restarts at players[0] with the last player directing.
func NextRoles(s *domain.GameState) (actorID, directorID string, err error) {
	players := s.Room.Players
	n := len(players)
	if n < 2 {
		return "", "", ErrInsufficientPlayers
	}
	prev := ""
	if s.CurrentRound != nil {
		prev = s.CurrentRound.ActorID
	} else if len(s.RoundHistory) > 0 {
		prev = s.RoundHistory[len(s.RoundHistory)-1].ActorID
	}
	if prev == "" {
		return players[1].ID, players[0].ID, nil
	}
	idx := s.Room.IndexOf(prev)
	if idx < 0 {
		return players[0].ID, players[n-1].ID, nil
	}
	return players[(idx+1)%n].ID, prev, nil
}

// nextRoundNumber never hands out a number twice in one game, even when the
// round that held it was abandoned before reaching history.
func nextRoundNumber(s *domain.GameState) int {
	n := s.RoundsStarted
	if len(s.RoundHistory) > 0 {
		n = max(n, s.RoundHistory[len(s.RoundHistory)-1].RoundNumber)
	}
	return n + 1
}

// StartRound opens the next round. When every player has already acted it
// returns the state marked complete with no round instead.
func StartRound(s *domain.GameState, prompt domain.GamePrompt, sabotages []domain.SabotageAction, now int64) (*domain.GameState, error) {
	if s.ActiveRound() != nil {
		return nil, ErrRoundInProgress
	}
	if IsGameComplete(s) {
		return MarkComplete(s), nil
	}
	actor, director, err := NextRoles(s)
	if err != nil {
		return nil, err
	}
	number := nextRoundNumber(s)
	out := s.Clone()
	out.RoundsStarted = number
	out.CurrentRound = &domain.CurrentRound{
		Number:             number,
		ActorID:            actor,
		DirectorID:         director,
		Prompt:             prompt,
		StartTime:          now,
		DurationMs:         s.GameConfig.RoundDurationMs,
		AvailableSabotages: append([]domain.SabotageAction(nil), sabotages...),
		Status:             domain.RoundActive,
	}
	out.Room.Status = domain.RoomPlaying
	return out, nil
}

// EndRound scores and archives the active round. winnerID "" means time ran out.
// Completion is left to the caller.
func EndRound(s *domain.GameState, winnerID string, now int64) (*domain.GameState, domain.CompletedRound, error) {
	r := s.ActiveRound()
	if r == nil {
		return nil, domain.CompletedRound{}, ErrNoActiveRound
	}
	outcome := domain.OutcomeTimeUp
	if winnerID != "" {
		outcome = domain.OutcomeCorrectGuess
	}
	scores, changes := CalculateScores(s.Scores, winnerID, r)

	done := domain.CompletedRound{
		RoundNumber:   r.Number,
		ActorID:       r.ActorID,
		DirectorID:    r.DirectorID,
		Prompt:        r.Prompt,
		Outcome:       outcome,
		WinnerID:      winnerID,
		SabotagesUsed: r.SabotagesDeployedCount,
		ScoreChanges:  changes,
		CompletedAt:   now,
	}
	out := s.Clone()
	out.Scores = scores
	out.RoundHistory = append(out.RoundHistory, done)
	out.CurrentRound = nil
	return out, done, nil
}

// UsedPromptIDs lists prompts already played this game, including the active one.
func UsedPromptIDs(s *domain.GameState) map[string]bool {
	used := make(map[string]bool, len(s.RoundHistory)+1)
	for _, h := range s.RoundHistory {
		used[h.Prompt.ID] = true
	}
	if s.CurrentRound != nil {
		used[s.CurrentRound.Prompt.ID] = true
	}
	return used
}

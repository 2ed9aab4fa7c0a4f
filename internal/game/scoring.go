package game

import "github.com/park285/charades-server/internal/domain"

const (
	pointsActorOnGuess    = 2
	pointsWinner          = 1
	pointsDirectorOnTimer = 2
)

// CalculateScores applies round scoring to a copy of scores.
//
// Correct guess: actor +2, director -1 per sabotage deployed, winner +1.
// Time up: director +2. Zero deltas are not reported. A winner who is also
// the director gets both adjustments.
func CalculateScores(scores map[string]int, winnerID string, r *domain.CurrentRound) (map[string]int, []domain.PlayerScoreChange) {
	out := make(map[string]int, len(scores))
	for k, v := range scores {
		out[k] = v
	}
	var changes []domain.PlayerScoreChange
	apply := func(id string, delta int) {
		if delta == 0 || id == "" {
			return
		}
		out[id] += delta
		changes = append(changes, domain.PlayerScoreChange{PlayerID: id, PointsEarned: delta, TotalScore: out[id]})
	}

	if winnerID != "" {
		apply(r.ActorID, pointsActorOnGuess)
		apply(r.DirectorID, -r.SabotagesDeployedCount)
		apply(winnerID, pointsWinner)
	} else {
		apply(r.DirectorID, pointsDirectorOnTimer)
	}
	if changes == nil {
		changes = []domain.PlayerScoreChange{}
	}
	return out, changes
}

package game

import (
	"sort"

	"github.com/park285/charades-server/internal/domain"
)

// Summarize builds the final record of a game. Winners are the current
// players sharing the top score, in join order.
func Summarize(s *domain.GameState, now int64) domain.GameSummary {
	c := s.Clone()
	best, first := 0, true
	for _, p := range c.Room.Players {
		if sc := c.Scores[p.ID]; first || sc > best {
			best, first = sc, false
		}
	}
	winners := []string{}
	for _, p := range c.Room.Players {
		if c.Scores[p.ID] == best {
			winners = append(winners, p.ID)
		}
	}
	return domain.GameSummary{
		RoomCode:    c.Room.Code,
		Players:     c.Room.Players,
		Scores:      c.Scores,
		Winners:     winners,
		Rounds:      c.RoundHistory,
		StartedAt:   c.Room.CreatedAt,
		CompletedAt: now,
	}
}

// Standings orders player ids by score, highest first; ties keep join order.
func Standings(s *domain.GameState) []string {
	ids := make([]string, 0, len(s.Room.Players))
	for _, p := range s.Room.Players {
		ids = append(ids, p.ID)
	}
	sort.SliceStable(ids, func(i, j int) bool { return s.Scores[ids[i]] > s.Scores[ids[j]] })
	return ids
}

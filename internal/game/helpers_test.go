package game

import (
	"testing"

	"github.com/park285/charades-server/internal/domain"
)

// newState builds a waiting room whose player ids equal their names.
func newState(t *testing.T, names ...string) *domain.GameState {
	t.Helper()
	st := &domain.GameState{
		Room: domain.Room{
			Code:       "1234",
			Status:     domain.RoomWaiting,
			CreatedAt:  1_000,
			MaxPlayers: DefaultMaxPlayers,
		},
		Scores:       map[string]int{},
		GameConfig:   domain.DefaultGameConfig(),
		RoundHistory: []domain.CompletedRound{},
	}
	for i, n := range names {
		st.Room.Players = append(st.Room.Players, domain.Player{
			ID:               n,
			Name:             n,
			ConnectionStatus: domain.ConnConnected,
			JoinedAt:         int64(1_000 + i),
		})
		st.Scores[n] = 0
	}
	return st
}

func testPrompt(id string) domain.GamePrompt {
	return domain.GamePrompt{ID: id, Text: "prompt " + id, Category: "modern_life", Difficulty: "easy"}
}

func testSabotages() []domain.SabotageAction {
	return []domain.SabotageAction{
		{ID: "s1", Name: "Slow Motion", DurationMs: 20_000, Category: "physical"},
		{ID: "s2", Name: "Hiccups", DurationMs: 20_000, Category: "sensory"},
	}
}

func mustStart(t *testing.T, st *domain.GameState, promptID string, now int64) *domain.GameState {
	t.Helper()
	out, err := StartRound(st, testPrompt(promptID), testSabotages(), now)
	if err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	return out
}

func mustEnd(t *testing.T, st *domain.GameState, winner string, now int64) (*domain.GameState, domain.CompletedRound) {
	t.Helper()
	out, done, err := EndRound(st, winner, now)
	if err != nil {
		t.Fatalf("EndRound: %v", err)
	}
	return out, done
}

// stableIDs makes generated player ids deterministic for the test.
func stableIDs(t *testing.T, ids ...string) {
	t.Helper()
	prev := newPlayerID
	i := 0
	newPlayerID = func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
	t.Cleanup(func() { newPlayerID = prev })
}

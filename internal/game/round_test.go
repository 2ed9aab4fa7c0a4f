package game

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/charades-server/internal/domain"
)

func TestFirstRoundRoles(t *testing.T) {
	st := mustStart(t, newState(t, "Ann", "Bob", "Cid"), "p1", 100)
	r := st.CurrentRound
	require.NotNil(t, r)
	assert.Equal(t, 1, r.Number)
	assert.Equal(t, "Ann", r.DirectorID)
	assert.Equal(t, "Bob", r.ActorID)
	assert.Equal(t, domain.RoundActive, r.Status)
	assert.Equal(t, int64(100), r.StartTime)
	assert.Equal(t, int64(90_000), r.DurationMs)
	assert.Equal(t, domain.RoomPlaying, st.Room.Status)
	assert.Len(t, r.AvailableSabotages, 2)
}

func TestStartRoundNeedsTwoPlayers(t *testing.T) {
	_, err := StartRound(newState(t, "Ann"), testPrompt("p1"), nil, 0)
	assert.ErrorIs(t, err, ErrInsufficientPlayers)
}

func TestStartRoundRejectsActiveRound(t *testing.T) {
	st := mustStart(t, newState(t, "Ann", "Bob", "Cid"), "p1", 0)
	_, err := StartRound(st, testPrompt("p2"), nil, 10)
	assert.ErrorIs(t, err, ErrRoundInProgress)
}

func TestStartRoundRejectsActiveFinalRound(t *testing.T) {
	st := mustStart(t, newState(t, "Ann", "Bob"), "p1", 0)
	st, _ = mustEnd(t, st, "", 10)
	st = mustStart(t, st, "p2", 20)
	require.True(t, IsGameComplete(st), "last actor is on stage")

	_, err := StartRound(st, testPrompt("p3"), nil, 30)
	assert.ErrorIs(t, err, ErrRoundInProgress)
	assert.Equal(t, domain.RoundActive, st.CurrentRound.Status)
}

func TestAbandonedRoundKeepsItsNumber(t *testing.T) {
	st := mustStart(t, newState(t, "Ann", "Bob", "Cid"), "p1", 0)
	require.Equal(t, 1, st.CurrentRound.Number)

	// the director leaves mid-round, nothing reaches history
	st, err := LeaveRoom(st, "Ann")
	require.NoError(t, err)
	require.Nil(t, st.CurrentRound)
	require.Empty(t, st.RoundHistory)

	st = mustStart(t, st, "p2", 50)
	assert.Equal(t, 2, st.CurrentRound.Number)
	assert.Equal(t, 2, st.RoundsStarted)

	st, done := mustEnd(t, st, "", 60)
	assert.Equal(t, 2, done.RoundNumber)
	assert.Equal(t, 3, mustStart(t, st, "p3", 70).CurrentRound.Number)

	assert.Equal(t, 1, mustStart(t, ResetGame(st), "p4", 80).CurrentRound.Number)
}

// Ann hosts, Bob and Cid join; three rounds then the game is over.
func TestThreePlayerGame(t *testing.T) {
	st := newState(t, "Ann", "Bob", "Cid")

	st = mustStart(t, st, "p1", 0)
	assert.Equal(t, "Bob", st.CurrentRound.ActorID)
	st, r1 := mustEnd(t, st, "Cid", 30_000)
	assert.Equal(t, domain.OutcomeCorrectGuess, r1.Outcome)
	assert.False(t, IsGameComplete(st))

	st = mustStart(t, st, "p2", 40_000)
	assert.Equal(t, 2, st.CurrentRound.Number)
	assert.Equal(t, "Bob", st.CurrentRound.DirectorID)
	assert.Equal(t, "Cid", st.CurrentRound.ActorID)
	st, r2 := mustEnd(t, st, "", 130_000)
	assert.Equal(t, domain.OutcomeTimeUp, r2.Outcome)

	st = mustStart(t, st, "p3", 140_000)
	assert.Equal(t, 3, st.CurrentRound.Number)
	assert.Equal(t, "Cid", st.CurrentRound.DirectorID)
	assert.Equal(t, "Ann", st.CurrentRound.ActorID)
	assert.True(t, IsGameComplete(st), "in-progress actor counts")
	st, _ = mustEnd(t, st, "Bob", 150_000)
	require.True(t, IsGameComplete(st))

	want := map[string]int{
		"Ann": 2,         // actor, round 3
		"Bob": 2 + 2 + 1, // actor r1, director on time up r2, winner r3
		"Cid": 1,         // winner r1
	}
	if diff := cmp.Diff(want, st.Scores); diff != "" {
		t.Fatalf("scores mismatch (-want +got):\n%s", diff)
	}

	final, err := StartRound(st, testPrompt("p4"), nil, 160_000)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomComplete, final.Room.Status)
	assert.Nil(t, final.CurrentRound)
	assert.Len(t, final.RoundHistory, 3)
}

func TestRotationAfterActorLeft(t *testing.T) {
	st := newState(t, "Ann", "Bob", "Cid", "Dee")
	st = mustStart(t, st, "p1", 0)
	st, _ = mustEnd(t, st, "", 10) // Bob acted

	st, err := LeaveRoom(st, "Bob")
	require.NoError(t, err)

	st = mustStart(t, st, "p2", 20)
	assert.Equal(t, "Ann", st.CurrentRound.ActorID)
	assert.Equal(t, "Dee", st.CurrentRound.DirectorID)
	assert.Equal(t, 2, st.CurrentRound.Number)
}

func TestRotationWraps(t *testing.T) {
	st := newState(t, "Ann", "Bob")
	st = mustStart(t, st, "p1", 0)
	st, _ = mustEnd(t, st, "", 10)
	actor, director, err := NextRoles(st)
	require.NoError(t, err)
	assert.Equal(t, "Ann", actor)
	assert.Equal(t, "Bob", director)
}

func TestEndRoundWithoutRound(t *testing.T) {
	_, _, err := EndRound(newState(t, "Ann", "Bob"), "", 0)
	assert.ErrorIs(t, err, ErrNoActiveRound)
}

func TestEndRoundDoesNotMutateInput(t *testing.T) {
	st := mustStart(t, newState(t, "Ann", "Bob", "Cid"), "p1", 0)
	_, _ = mustEnd(t, st, "Cid", 10)
	assert.NotNil(t, st.CurrentRound)
	assert.Empty(t, st.RoundHistory)
	assert.Equal(t, 0, st.Scores["Bob"])
}

func TestUsedPromptIDs(t *testing.T) {
	st := mustStart(t, newState(t, "Ann", "Bob", "Cid"), "p1", 0)
	st, _ = mustEnd(t, st, "", 10)
	st = mustStart(t, st, "p2", 20)
	assert.Equal(t, map[string]bool{"p1": true, "p2": true}, UsedPromptIDs(st))
}

func TestSummarize(t *testing.T) {
	st := mustStart(t, newState(t, "Ann", "Bob", "Cid"), "p1", 0)
	st, _ = mustEnd(t, st, "Cid", 10)
	sum := Summarize(st, 99)
	assert.Equal(t, []string{"Bob"}, sum.Winners)
	assert.Equal(t, "1234", sum.RoomCode)
	assert.Equal(t, int64(99), sum.CompletedAt)
	assert.Len(t, sum.Rounds, 1)
	assert.Equal(t, []string{"Bob", "Cid", "Ann"}, Standings(st))
}

package archive

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/park285/charades-server/internal/domain"
)

func sampleSummary() domain.GameSummary {
	return domain.GameSummary{
		RoomCode: "4821",
		Players: []domain.Player{
			{ID: "ann", Name: "Ann", ConnectionStatus: domain.ConnConnected, JoinedAt: 1_000},
			{ID: "bob", Name: "Bob", ConnectionStatus: domain.ConnConnected, JoinedAt: 1_001},
		},
		Scores:  map[string]int{"ann": 1, "bob": 2},
		Winners: []string{"bob"},
		Rounds: []domain.CompletedRound{{
			RoundNumber: 1,
			ActorID:     "bob",
			DirectorID:  "ann",
			Outcome:     domain.OutcomeTimeUp,
			ScoreChanges: []domain.PlayerScoreChange{
				{PlayerID: "ann", PointsEarned: 2, TotalScore: 2},
			},
			CompletedAt: 91_000,
		}},
		StartedAt:   1_000,
		CompletedAt: 95_000,
	}
}

func TestGameIDIsStable(t *testing.T) {
	s := sampleSummary()
	if GameID(s) != GameID(s) {
		t.Fatal("same summary produced different ids")
	}
	other := s
	other.CompletedAt++
	if GameID(s) == GameID(other) {
		t.Fatal("different games share an id")
	}
}

func TestToRow(t *testing.T) {
	row, err := toRow(sampleSummary())
	if err != nil {
		t.Fatalf("toRow: %v", err)
	}
	if row.durationMs != 94_000 {
		t.Fatalf("duration = %d", row.durationMs)
	}
	if row.roundCount != 1 {
		t.Fatalf("round count = %d", row.roundCount)
	}
	if !row.endedAt.Equal(time.UnixMilli(95_000)) {
		t.Fatalf("ended at = %v", row.endedAt)
	}
	var scores map[string]int
	if err := json.Unmarshal(row.scores, &scores); err != nil {
		t.Fatalf("scores json: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"ann": 1, "bob": 2}, scores); diff != "" {
		t.Fatalf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRepositoryRequiresURL(t *testing.T) {
	if _, err := NewRepository("  "); err == nil {
		t.Fatal("expected error for empty url")
	}
}

// Runs against a real database when CHARADES_TEST_DATABASE_URL is set.
func TestRepositoryRoundTrip(t *testing.T) {
	url := os.Getenv("CHARADES_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CHARADES_TEST_DATABASE_URL not set")
	}
	repo, err := NewRepository(url)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	s := sampleSummary()
	s.RoomCode = "t" + time.Now().Format("150405.000")
	if err := repo.RecordGame(ctx, s); err != nil {
		t.Fatalf("RecordGame: %v", err)
	}
	// retried delivery is an upsert
	if err := repo.RecordGame(ctx, s); err != nil {
		t.Fatalf("RecordGame again: %v", err)
	}
	got, err := repo.RecentGames(ctx, s.RoomCode, 5)
	if err != nil {
		t.Fatalf("RecentGames: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d games, want 1", len(got))
	}
	if diff := cmp.Diff(s, got[0]); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

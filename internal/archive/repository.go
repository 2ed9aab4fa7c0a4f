package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/park285/charades-server/internal/domain"
)

// gameNamespace seeds deterministic game ids, so a retried sink call
// updates the same row.
var gameNamespace = uuid.MustParse("6f1c8a52-3d0e-4b9a-9f51-2c7e0d4b8a13")

const schema = `
CREATE TABLE IF NOT EXISTS charades_games (
	game_id      UUID PRIMARY KEY,
	room_code    TEXT NOT NULL,
	players      JSONB NOT NULL,
	scores       JSONB NOT NULL,
	winners      JSONB NOT NULL,
	rounds       JSONB NOT NULL,
	round_count  INTEGER NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS charades_games_room_idx ON charades_games (room_code, ended_at DESC);`

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure charades_games: %w", err)
	}
	return nil
}

type gameRow struct {
	id         uuid.UUID
	roomCode   string
	players    []byte
	scores     []byte
	winners    []byte
	rounds     []byte
	roundCount int
	startedAt  time.Time
	endedAt    time.Time
	durationMs int64
}

func GameID(s domain.GameSummary) uuid.UUID {
	key := s.RoomCode + ":" + strconv.FormatInt(s.StartedAt, 10) + ":" + strconv.FormatInt(s.CompletedAt, 10)
	return uuid.NewSHA1(gameNamespace, []byte(key))
}

func toRow(s domain.GameSummary) (gameRow, error) {
	row := gameRow{
		id:         GameID(s),
		roomCode:   s.RoomCode,
		roundCount: len(s.Rounds),
		startedAt:  time.UnixMilli(s.StartedAt).UTC(),
		endedAt:    time.UnixMilli(s.CompletedAt).UTC(),
		durationMs: s.CompletedAt - s.StartedAt,
	}
	if row.durationMs < 0 {
		row.durationMs = 0
	}
	var err error
	if row.players, err = json.Marshal(s.Players); err != nil {
		return gameRow{}, fmt.Errorf("marshal players: %w", err)
	}
	if row.scores, err = json.Marshal(s.Scores); err != nil {
		return gameRow{}, fmt.Errorf("marshal scores: %w", err)
	}
	if row.winners, err = json.Marshal(s.Winners); err != nil {
		return gameRow{}, fmt.Errorf("marshal winners: %w", err)
	}
	if row.rounds, err = json.Marshal(s.Rounds); err != nil {
		return gameRow{}, fmt.Errorf("marshal rounds: %w", err)
	}
	return row, nil
}

// RecordGame upserts a finished game.
func (r *Repository) RecordGame(ctx context.Context, s domain.GameSummary) error {
	if r == nil || r.db == nil {
		return nil
	}
	row, err := toRow(s)
	if err != nil {
		return err
	}
	const q = `INSERT INTO charades_games (
		game_id, room_code, players, scores, winners, rounds,
		round_count, started_at, ended_at, duration_ms
	) VALUES (
		$1, $2, $3::jsonb, $4::jsonb, $5::jsonb, $6::jsonb, $7, $8, $9, $10
	) ON CONFLICT (game_id) DO UPDATE SET
		players=EXCLUDED.players,
		scores=EXCLUDED.scores,
		winners=EXCLUDED.winners,
		rounds=EXCLUDED.rounds,
		round_count=EXCLUDED.round_count,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		row.id.String(), row.roomCode,
		string(row.players), string(row.scores), string(row.winners), string(row.rounds),
		row.roundCount, row.startedAt, row.endedAt, row.durationMs,
	)
	if err != nil {
		return fmt.Errorf("insert charades game: %w", err)
	}
	return nil
}

// RecentGames lists archived games for a room, newest first.
func (r *Repository) RecentGames(ctx context.Context, roomCode string, limit int) ([]domain.GameSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
		SELECT room_code, players, scores, winners, rounds, started_at, ended_at
		FROM charades_games
		WHERE room_code = $1
		ORDER BY ended_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, roomCode, limit)
	if err != nil {
		return nil, fmt.Errorf("select charades games: %w", err)
	}
	defer rows.Close()

	out := make([]domain.GameSummary, 0, limit)
	for rows.Next() {
		var (
			s                                  domain.GameSummary
			players, scores, winners, roundsJS []byte
			started, ended                     time.Time
		)
		if err := rows.Scan(&s.RoomCode, &players, &scores, &winners, &roundsJS, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan charades game: %w", err)
		}
		for _, f := range []struct {
			raw []byte
			dst any
		}{{players, &s.Players}, {scores, &s.Scores}, {winners, &s.Winners}, {roundsJS, &s.Rounds}} {
			if err := json.Unmarshal(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("unmarshal charades game: %w", err)
			}
		}
		s.StartedAt = started.UnixMilli()
		s.CompletedAt = ended.UnixMilli()
		out = append(out, s)
	}
	return out, rows.Err()
}

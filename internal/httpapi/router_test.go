package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/charades-server/internal/domain"
	"github.com/park285/charades-server/pkg/charadesdto"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeRooms struct {
	rooms map[string]*domain.GameState
	err   error
	now   time.Time
}

func (f *fakeRooms) Snapshot(_ context.Context, code string) (*domain.GameState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rooms[code], nil
}

func (f *fakeRooms) RoomCount(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.rooms), nil
}

func (f *fakeRooms) Now() time.Time { return f.now }

type fixedConns int

func (n fixedConns) Len() int { return int(n) }

func playingRoom() *domain.GameState {
	return &domain.GameState{
		Room: domain.Room{
			Code:   "4821",
			Status: domain.RoomPlaying,
			Players: []domain.Player{
				{ID: "ann", Name: "Ann"},
				{ID: "bob", Name: "Bob"},
				{ID: "cid", Name: "Cid"},
			},
		},
		Scores: map[string]int{"ann": -1, "bob": 2, "cid": 1},
		CurrentRound: &domain.CurrentRound{
			Number:     2,
			ActorID:    "cid",
			DirectorID: "bob",
			StartTime:  1_000_000,
			DurationMs: 90_000,
			Status:     domain.RoundActive,
		},
		GameConfig: domain.DefaultGameConfig(),
	}
}

func do(r http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func TestHealth(t *testing.T) {
	rooms := &fakeRooms{rooms: map[string]*domain.GameState{"4821": playingRoom()}}
	r := NewRouter(Options{Rooms: rooms, Conns: fixedConns(3)})

	res := do(r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok","rooms":1,"connections":3}`, res.Body.String())

	rooms.err = errors.New("redis down")
	res = do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestRoomSnapshot(t *testing.T) {
	rooms := &fakeRooms{
		rooms: map[string]*domain.GameState{"4821": playingRoom()},
		now:   time.UnixMilli(1_030_000),
	}
	r := NewRouter(Options{Rooms: rooms})

	tests := []struct {
		name string
		path string
		want int
		code string
	}{
		{"bad code", "/rooms/48x1", http.StatusBadRequest, "INVALID_CODE"},
		{"missing", "/rooms/0000", http.StatusNotFound, "ROOM_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := do(r, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.want, res.Code)
			var e charadesdto.DomainError
			require.NoError(t, json.Unmarshal(res.Body.Bytes(), &e))
			assert.Equal(t, tt.code, e.Code)
		})
	}

	res := do(r, http.MethodGet, "/rooms/4821", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var snap charadesdto.RoomSnapshot
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &snap))
	assert.Equal(t, []string{"bob", "cid", "ann"}, snap.Standings)
	assert.Equal(t, int64(60_000), snap.TimeRemaining)
	assert.Equal(t, "cid", snap.GameState.CurrentRound.ActorID)
}

func TestRoomSnapshot_StoreError(t *testing.T) {
	r := NewRouter(Options{Rooms: &fakeRooms{err: errors.New("boom")}})
	res := do(r, http.MethodGet, "/rooms/4821", nil)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestCORS(t *testing.T) {
	r := NewRouter(Options{Rooms: &fakeRooms{}, AllowedOrigins: []string{"https://play.example.com"}})

	res := do(r, http.MethodOptions, "/healthz", map[string]string{
		"Origin":                        "https://play.example.com",
		"Access-Control-Request-Method": http.MethodGet,
	})
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, "https://play.example.com", res.Header().Get("Access-Control-Allow-Origin"))

	res = do(r, http.MethodGet, "/healthz", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

type fakeHistory struct {
	gotCode  string
	gotLimit int
}

func (f *fakeHistory) RecentGames(_ context.Context, code string, limit int) ([]domain.GameSummary, error) {
	f.gotCode, f.gotLimit = code, limit
	return []domain.GameSummary{{RoomCode: code, Winners: []string{"bob"}}}, nil
}

func TestRoomHistory(t *testing.T) {
	hist := &fakeHistory{}
	r := NewRouter(Options{Rooms: &fakeRooms{}, History: hist})

	res := do(r, http.MethodGet, "/rooms/4821/history?limit=500", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "4821", hist.gotCode)
	assert.Equal(t, 10, hist.gotLimit)

	var body struct {
		Games []domain.GameSummary `json:"games"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Games, 1)
	assert.Equal(t, []string{"bob"}, body.Games[0].Winners)

	// without an archive the route does not exist
	r = NewRouter(Options{Rooms: &fakeRooms{}})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/rooms/4821/history", nil).Code)
}

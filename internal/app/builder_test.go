package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/charades-server/internal/config"
	"github.com/park285/charades-server/internal/domain"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		ListenAddr:        ":0",
		StoreBackend:      config.StoreMemory,
		RoomTTL:           time.Hour,
		Game:              domain.DefaultGameConfig(),
		MaxPlayers:        8,
		MinPlayersToStart: 3,
		SabotageChoices:   6,
		DisconnectGrace:   30 * time.Second,
		TimerTick:         time.Second,
		WSRatePerSec:      5,
		WSRateBurst:       10,
	}
}

func healthOf(t *testing.T, d *Deps) map[string]any {
	t.Helper()
	w := httptest.NewRecorder()
	d.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestNew_Memory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d, err := New(testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	assert.Nil(t, d.Repo)
	body := healthOf(t, d)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["rooms"])
}

func TestNew_Redis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.StoreBackend = config.StoreRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	d, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	st := &domain.GameState{
		Room:   domain.Room{Code: "4821", Players: []domain.Player{{ID: "ann", Name: "Ann"}}, Status: domain.RoomWaiting, MaxPlayers: 8},
		Scores: map[string]int{"ann": 0},
	}
	require.NoError(t, d.Store.Save(context.Background(), st))
	assert.EqualValues(t, 1, healthOf(t, d)["rooms"])
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg := testConfig()
	cfg.StoreBackend = config.StoreRedis
	cfg.RedisURL = "ftp://localhost"
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://user:pw@cache.internal:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Nil(t, opts.TLSConfig)

	opts, err = parseRedisURL("rediss://cache.internal")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6379", opts.Addr)
	require.NotNil(t, opts.TLSConfig)

	for _, bad := range []string{"http://x", "redis://x:port", "redis://x/db"} {
		_, err := parseRedisURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"https://play.example.com", "http://localhost:5173", "::bad"})
	assert.Equal(t, []string{"play.example.com", "localhost:5173"}, got)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/park285/charades-server/internal/domain"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type AppConfig struct {
	ListenAddr string
	ClientURLs []string

	StoreBackend string
	RedisURL     string
	RoomTTL      time.Duration

	DatabaseURL       string
	ResultsWebhookURL string
	WebhookSecret     string

	CatalogDir  string
	MessagesDir string

	Game              domain.GameConfig
	MaxPlayers        int
	MinPlayersToStart int
	SabotageChoices   int
	DisconnectGrace   time.Duration
	TimerTick         time.Duration

	WSRatePerSec float64
	WSRateBurst  int
}

// Load reads an optional .env file, then the environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:        ":3001",
		StoreBackend:      StoreMemory,
		RoomTTL:           6 * time.Hour,
		Game:              domain.DefaultGameConfig(),
		MaxPlayers:        8,
		MinPlayersToStart: 3,
		SabotageChoices:   6,
		DisconnectGrace:   30 * time.Second,
		TimerTick:         time.Second,
		WSRatePerSec:      5,
		WSRateBurst:       10,
	}

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	} else if v := env("PORT"); v != "" {
		cfg.ListenAddr = ":" + v
	}
	cfg.ClientURLs = splitList(env("CLIENT_URL"))

	if v := env("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.ResultsWebhookURL = env("RESULTS_WEBHOOK_URL")
	cfg.WebhookSecret = env("RESULTS_WEBHOOK_SECRET")
	cfg.CatalogDir = env("CATALOG_DIR")
	cfg.MessagesDir = env("MESSAGES_DIR")

	var errs []error
	intVar := func(key string, dst *int, min int) {
		if v := env(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < min {
				errs = append(errs, fmt.Errorf("%s must be an integer >= %d, got %q", key, min, v))
				return
			}
			*dst = n
		}
	}
	msVar := func(key string, dst *int64, min int64) {
		if v := env(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < min {
				errs = append(errs, fmt.Errorf("%s must be milliseconds >= %d, got %q", key, min, v))
				return
			}
			*dst = n
		}
	}
	durVar := func(key string, dst *time.Duration) {
		ms := dst.Milliseconds()
		msVar(key, &ms, 1)
		*dst = time.Duration(ms) * time.Millisecond
	}

	msVar("ROUND_DURATION_MS", &cfg.Game.RoundDurationMs, 1)
	msVar("GRACE_PERIOD_MS", &cfg.Game.GracePeriodMs, 0)
	intVar("MAX_SABOTAGES", &cfg.Game.MaxSabotages, 0)
	intVar("MAX_PLAYERS", &cfg.MaxPlayers, 2)
	intVar("MIN_PLAYERS_TO_START", &cfg.MinPlayersToStart, 2)
	intVar("SABOTAGE_CHOICES", &cfg.SabotageChoices, 1)
	intVar("WS_RATE_BURST", &cfg.WSRateBurst, 1)
	durVar("DISCONNECT_GRACE_MS", &cfg.DisconnectGrace)
	durVar("TIMER_TICK_MS", &cfg.TimerTick)

	if v := env("ROOM_TTL_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("ROOM_TTL_SEC must be a positive integer, got %q", v))
		} else {
			cfg.RoomTTL = time.Duration(n) * time.Second
		}
	}
	if v := env("WS_RATE_PER_SEC"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			errs = append(errs, fmt.Errorf("WS_RATE_PER_SEC must be a positive number, got %q", v))
		} else {
			cfg.WSRatePerSec = f
		}
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if cfg.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be memory or redis, got %q", cfg.StoreBackend))
	}
	if cfg.MinPlayersToStart > cfg.MaxPlayers {
		errs = append(errs, fmt.Errorf("MIN_PLAYERS_TO_START (%d) exceeds MAX_PLAYERS (%d)", cfg.MinPlayersToStart, cfg.MaxPlayers))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

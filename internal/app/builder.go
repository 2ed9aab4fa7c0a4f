package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/park285/charades-server/internal/archive"
	"github.com/park285/charades-server/internal/catalog"
	"github.com/park285/charades-server/internal/config"
	"github.com/park285/charades-server/internal/gateway"
	"github.com/park285/charades-server/internal/httpapi"
	"github.com/park285/charades-server/internal/msgcat"
	"github.com/park285/charades-server/internal/sched"
	"github.com/park285/charades-server/internal/session"
	"github.com/park285/charades-server/internal/webhook"
	"github.com/park285/charades-server/internal/wsconn"
)

// Deps is the fully wired server. Run the gateway loop and serve Router.
type Deps struct {
	Gateway *gateway.Gateway
	Hub     *wsconn.Hub
	Router  *gin.Engine
	Store   session.Store
	Sched   *sched.Gocron
	Repo    *archive.Repository
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close(context.Background())
		}
	}()

	// Room store
	switch cfg.StoreBackend {
	case config.StoreRedis:
		opts, err := parseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.Store = session.NewRedisStore(rdb, cfg.RoomTTL)
	default:
		d.Store = session.NewMemoryStore()
	}

	content, err := catalog.New(cfg.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Sched, err = sched.NewGocron(logger)
	if err != nil {
		return nil, err
	}

	// Result sinks (both optional)
	var sinks []gateway.ResultSink
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		d.Repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = d.Repo.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, d.Repo)
	}
	if strings.TrimSpace(cfg.ResultsWebhookURL) != "" {
		secret := cfg.WebhookSecret
		sinks = append(sinks, webhook.NewClient(cfg.ResultsWebhookURL,
			webhook.WithHeaderProvider(func() map[string]string {
				if secret == "" {
					return nil
				}
				return map[string]string{"X-Webhook-Secret": secret}
			}),
		))
	}

	d.Hub = wsconn.NewHub(
		wsconn.WithLogger(logger),
		wsconn.WithOriginPatterns(originPatterns(cfg.ClientURLs)...),
		wsconn.WithRateLimit(rate.Limit(cfg.WSRatePerSec), cfg.WSRateBurst),
	)
	d.Gateway = gateway.New(d.Store, session.NewConnections(), d.Hub, content, d.Sched, gateway.Config{
		Defaults:          cfg.Game,
		MaxPlayers:        cfg.MaxPlayers,
		MinPlayersToStart: cfg.MinPlayersToStart,
		SabotageChoices:   cfg.SabotageChoices,
		DisconnectGrace:   cfg.DisconnectGrace,
		TickInterval:      cfg.TimerTick,
	}, gateway.WithLogger(logger), gateway.WithMessages(msgs), gateway.WithSinks(sinks...))
	d.Hub.SetHandler(d.Gateway)

	ro := httpapi.Options{
		Rooms:          d.Gateway,
		WS:             d.Hub,
		Conns:          d.Hub,
		AllowedOrigins: cfg.ClientURLs,
		Logger:         logger,
	}
	if d.Repo != nil {
		ro.History = d.Repo
	}
	d.Router = httpapi.NewRouter(ro)

	ok = true
	return d, nil
}

// Close releases everything New opened, outermost first. The gateway loop
// must already be stopped.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if d.Hub != nil {
		errs = append(errs, d.Hub.Close(ctx))
	}
	if d.Gateway != nil {
		errs = append(errs, d.Gateway.Close(ctx))
	}
	if d.Sched != nil {
		errs = append(errs, d.Sched.Shutdown())
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	if d.Repo != nil {
		errs = append(errs, d.Repo.Close())
	}
	return errors.Join(errs...)
}

// originPatterns turns CLIENT_URL entries into host patterns for the
// WebSocket origin check.
func originPatterns(urls []string) []string {
	var out []string
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		out = append(out, u.Host)
	}
	return out
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return nil, err
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{
		Addr:     host + ":" + portStr,
		Username: u.User.Username(),
		Password: pass,
		DB:       db,
	}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	return opts, nil
}

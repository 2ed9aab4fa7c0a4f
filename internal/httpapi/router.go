package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/charades-server/internal/domain"
	"github.com/park285/charades-server/internal/game"
	"github.com/park285/charades-server/pkg/charadesdto"
)

// RoomReader is the read side of the gateway.
type RoomReader interface {
	Snapshot(ctx context.Context, code string) (*domain.GameState, error)
	RoomCount(ctx context.Context) (int, error)
	Now() time.Time
}

// History lists archived games of a room.
type History interface {
	RecentGames(ctx context.Context, roomCode string, limit int) ([]domain.GameSummary, error)
}

// ConnCounter reports live WebSocket connections.
type ConnCounter interface {
	Len() int
}

type Options struct {
	Rooms          RoomReader
	WS             http.Handler
	Conns          ConnCounter
	History        History
	AllowedOrigins []string
	Logger         *zap.Logger
}

type handlers struct {
	rooms   RoomReader
	conns   ConnCounter
	history History
	logger  *zap.Logger
}

func NewRouter(o Options) *gin.Engine {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger))
	if len(o.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     o.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodOptions},
			AllowHeaders:     []string{"Content-Type", "Origin"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := &handlers{rooms: o.Rooms, conns: o.Conns, history: o.History, logger: logger}
	r.GET("/healthz", h.health)
	r.GET("/rooms/:code", h.room)
	if o.History != nil {
		r.GET("/rooms/:code/history", h.roomHistory)
	}
	if o.WS != nil {
		r.GET("/ws", gin.WrapH(o.WS))
	}
	return r
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (h *handlers) health(c *gin.Context) {
	rooms, err := h.rooms.RoomCount(c.Request.Context())
	if err != nil {
		h.logger.Warn("health_rooms_failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	body := gin.H{"status": "ok", "rooms": rooms}
	if h.conns != nil {
		body["connections"] = h.conns.Len()
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) room(c *gin.Context) {
	code := c.Param("code")
	if !game.ValidRoomCode(code) {
		c.JSON(http.StatusBadRequest, charadesdto.DomainError{Code: string(game.CodeInvalidCode), Message: "room code must be 4 digits"})
		return
	}
	st, err := h.rooms.Snapshot(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("room_snapshot_failed", zap.String("room", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, charadesdto.DomainError{Code: string(game.CodeServerError), Message: "could not load room", Retryable: true})
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, charadesdto.DomainError{Code: string(game.CodeRoomNotFound), Message: "room not found"})
		return
	}
	snap := charadesdto.RoomSnapshot{GameState: st, Standings: game.Standings(st)}
	if r := st.ActiveRound(); r != nil {
		snap.TimeRemaining = r.Remaining(h.rooms.Now().UnixMilli())
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) roomHistory(c *gin.Context) {
	code := c.Param("code")
	if !game.ValidRoomCode(code) {
		c.JSON(http.StatusBadRequest, charadesdto.DomainError{Code: string(game.CodeInvalidCode), Message: "room code must be 4 digits"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	games, err := h.history.RecentGames(c.Request.Context(), code, limit)
	if err != nil {
		h.logger.Error("room_history_failed", zap.String("room", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, charadesdto.DomainError{Code: string(game.CodeServerError), Message: "could not load history", Retryable: true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

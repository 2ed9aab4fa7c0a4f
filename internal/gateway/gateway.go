package gateway

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/charades-server/internal/domain"
	"github.com/park285/charades-server/internal/game"
	"github.com/park285/charades-server/internal/msgcat"
	"github.com/park285/charades-server/internal/sched"
	"github.com/park285/charades-server/internal/session"
	"github.com/park285/charades-server/pkg/charadesdto"
)

var ErrStopped = errors.New("gateway stopped")

// Transport delivers outbound events. Implementations must be safe for
// concurrent use.
type Transport interface {
	Send(connID, event string, payload any) error
	// Broadcast skips exceptConnID when it is non-empty.
	Broadcast(group, event string, payload any, exceptConnID string)
	JoinGroup(connID, group string)
	LeaveGroup(connID, group string)
}

// Content supplies prompts and sabotage choices.
type Content interface {
	RandomPrompt(used map[string]bool, category, difficulty string) (domain.GamePrompt, error)
	RandomSabotages(n int) []domain.SabotageAction
}

type Config struct {
	Defaults          domain.GameConfig
	MaxPlayers        int
	MinPlayersToStart int
	SabotageChoices   int
	DisconnectGrace   time.Duration
	TickInterval      time.Duration
	InboxSize         int
	SinkTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.Defaults == (domain.GameConfig{}) {
		c.Defaults = domain.DefaultGameConfig()
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = game.DefaultMaxPlayers
	}
	if c.MinPlayersToStart <= 0 {
		c.MinPlayersToStart = 3
	}
	if c.SabotageChoices <= 0 {
		c.SabotageChoices = 6
	}
	if c.DisconnectGrace <= 0 {
		c.DisconnectGrace = 30 * time.Second
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 256
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = 10 * time.Second
	}
	return c
}

type job struct {
	connID   string
	errEvent string
	fn       func(ctx context.Context)
	done     chan struct{}
}

// Gateway owns every read-modify-write of game state. All work runs on the
// Run goroutine; Handle, Disconnect and timer callbacks only enqueue.
type Gateway struct {
	store   session.Store
	conns   *session.Connections
	tr      Transport
	content Content
	msgs    *msgcat.Catalog
	sched   sched.Scheduler
	sinks   []ResultSink
	cfg     Config
	now     func() time.Time
	logger  *zap.Logger

	inbox    chan job
	stopped  chan struct{}
	stopOnce sync.Once
	sinkWG   sync.WaitGroup

	// touched only on the Run goroutine
	roundTimers      map[string]roundTimer
	sabotageTimers   map[string]sabotageTimer
	disconnectTimers map[string]sched.Cancel
}

type Option func(*Gateway)

func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func WithSinks(sinks ...ResultSink) Option {
	return func(g *Gateway) { g.sinks = append(g.sinks, sinks...) }
}

func WithMessages(m *msgcat.Catalog) Option {
	return func(g *Gateway) { g.msgs = m }
}

func New(store session.Store, conns *session.Connections, tr Transport, content Content, s sched.Scheduler, cfg Config, opts ...Option) *Gateway {
	cfg = cfg.withDefaults()
	g := &Gateway{
		store:            store,
		conns:            conns,
		tr:               tr,
		content:          content,
		sched:            s,
		cfg:              cfg,
		now:              time.Now,
		logger:           zap.NewNop(),
		inbox:            make(chan job, cfg.InboxSize),
		stopped:          make(chan struct{}),
		roundTimers:      make(map[string]roundTimer),
		sabotageTimers:   make(map[string]sabotageTimer),
		disconnectTimers: make(map[string]sched.Cancel),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run processes queued work until ctx is cancelled. Timers still pending
// at that point are cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	defer g.stopOnce.Do(func() { close(g.stopped) })
	defer g.cancelAllTimers()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-g.inbox:
			g.runJob(ctx, j)
		}
	}
}

func (g *Gateway) runJob(ctx context.Context, j job) {
	defer func() {
		if j.done != nil {
			close(j.done)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("gateway_panic",
				zap.String("conn", j.connID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			if j.connID != "" && j.errEvent != "" {
				g.fail(j.connID, j.errEvent, fmt.Errorf("panic: %v", r))
			}
		}
	}()
	j.fn(ctx)
}

// exec enqueues fn and waits for it to finish.
func (g *Gateway) exec(ctx context.Context, connID, errEvent string, fn func(ctx context.Context)) error {
	j := job{connID: connID, errEvent: errEvent, fn: fn, done: make(chan struct{})}
	select {
	case g.inbox <- j:
	case <-g.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-j.done:
		return nil
	case <-g.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues fn without waiting. Used by timer callbacks.
func (g *Gateway) post(fn func(ctx context.Context)) {
	select {
	case g.inbox <- job{fn: fn}:
	case <-g.stopped:
	}
}

// Handle decodes one inbound frame and processes it. It returns after the
// event has been handled, so frames from one connection stay ordered.
func (g *Gateway) Handle(ctx context.Context, connID string, raw []byte) {
	ev, err := decode(raw)
	if err != nil {
		g.fail(connID, errorEventFor(ev), err)
		return
	}
	if err := ev.validate(); err != nil {
		g.fail(connID, ev.errorEvent(), err)
		return
	}
	if err := g.exec(ctx, connID, ev.errorEvent(), func(ctx context.Context) { g.dispatch(ctx, connID, ev) }); err != nil {
		g.logger.Debug("gateway_handle_dropped", zap.String("conn", connID), zap.Error(err))
	}
}

// Throttled answers a frame dropped by the transport's rate limiter.
func (g *Gateway) Throttled(_ context.Context, connID string, raw []byte) {
	ev, _ := decode(raw)
	g.fail(connID, errorEventFor(ev), game.ErrRateLimited)
}

// Disconnect is called once the transport connection is gone.
func (g *Gateway) Disconnect(ctx context.Context, connID string) {
	if err := g.exec(ctx, connID, "", func(ctx context.Context) { g.onDisconnect(ctx, connID) }); err != nil {
		g.logger.Debug("gateway_disconnect_dropped", zap.String("conn", connID), zap.Error(err))
	}
}

// Close waits for in-flight result sinks.
func (g *Gateway) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.sinkWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot reads a room for the HTTP surface. It does not go through the loop.
func (g *Gateway) Snapshot(ctx context.Context, code string) (*domain.GameState, error) {
	return g.store.Get(ctx, code)
}

func (g *Gateway) RoomCount(ctx context.Context) (int, error) {
	codes, err := g.store.Codes(ctx)
	if err != nil {
		return 0, err
	}
	return len(codes), nil
}

// Now is the gateway clock, exposed so readers compute remaining time the same way.
func (g *Gateway) Now() time.Time { return g.now() }

func (g *Gateway) nowMs() int64 { return g.now().UnixMilli() }

func group(code string) string { return "room:" + code }

func (g *Gateway) fail(connID, event string, err error) {
	code := game.CodeOf(err)
	if code == game.CodeServerError {
		g.logger.Error("gateway_error", zap.String("conn", connID), zap.String("event", event), zap.Error(err))
	} else {
		g.logger.Debug("gateway_reject", zap.String("conn", connID), zap.String("code", string(code)))
	}
	if event == "" {
		return
	}
	msg := g.msgs.ErrorMessage(string(code), map[string]any{"min": g.cfg.MinPlayersToStart})
	payload := charadesdto.DomainError{
		Code:      string(code),
		Message:   msg,
		Retryable: code == game.CodeServerError || code == game.CodeRateLimited || code == game.CodeCodeGenerationExhausted,
	}
	if err := g.tr.Send(connID, event, payload); err != nil {
		g.logger.Debug("gateway_send_failed", zap.String("conn", connID), zap.Error(err))
	}
}

func (g *Gateway) send(connID, event string, payload any) {
	if err := g.tr.Send(connID, event, payload); err != nil {
		g.logger.Debug("gateway_send_failed", zap.String("conn", connID), zap.String("event", event), zap.Error(err))
	}
}

func (g *Gateway) broadcast(code, event string, payload any, except string) {
	g.tr.Broadcast(group(code), event, payload, except)
}

// load returns ROOM_NOT_FOUND for a missing room.
func (g *Gateway) load(ctx context.Context, code string) (*domain.GameState, error) {
	st, err := g.store.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	if st == nil {
		return nil, game.ErrRoomNotFound
	}
	return st, nil
}

func (g *Gateway) save(ctx context.Context, st *domain.GameState) error {
	if err := g.store.Save(ctx, st); err != nil {
		return fmt.Errorf("save room %s: %w", st.Room.Code, err)
	}
	return nil
}

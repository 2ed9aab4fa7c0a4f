package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/park285/charades-server/pkg/charadesdto"
)

var (
	ErrUnknownConn = errors.New("unknown connection")
	ErrSlowConn    = errors.New("connection send buffer full")
)

// Handler consumes inbound frames. Handle must return only after the frame
// has been processed; the hub reads the next frame afterwards.
type Handler interface {
	Handle(ctx context.Context, connID string, raw []byte)
	Throttled(ctx context.Context, connID string, raw []byte)
	Disconnect(ctx context.Context, connID string)
}

type client struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	groups  map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close(code, reason)
	})
}

// Hub accepts WebSocket connections and fans events out to them by id or
// by named group.
type Hub struct {
	handler Handler
	logger  *zap.Logger

	origins      []string
	pingInterval time.Duration
	writeTimeout time.Duration
	sendBuffer   int
	readLimit    int64
	rateLimit    rate.Limit
	rateBurst    int

	mu      sync.RWMutex
	clients map[string]*client
	groups  map[string]map[string]*client

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type Option func(*Hub)

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithOriginPatterns lists the browser origins allowed to connect.
func WithOriginPatterns(p ...string) Option {
	return func(h *Hub) { h.origins = append(h.origins, p...) }
}

func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) { h.pingInterval = d }
}

func WithRateLimit(r rate.Limit, burst int) Option {
	return func(h *Hub) {
		h.rateLimit = r
		h.rateBurst = burst
	}
}

func WithSendBuffer(n int) Option {
	return func(h *Hub) { h.sendBuffer = n }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger:       zap.NewNop(),
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
		sendBuffer:   64,
		readLimit:    32 << 10,
		rateLimit:    5,
		rateBurst:    10,
		clients:      make(map[string]*client),
		groups:       make(map[string]map[string]*client),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetHandler must be called before the hub serves its first request.
func (h *Hub) SetHandler(handler Handler) { h.handler = handler }

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isStopping() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Warn("ws_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	ws.SetReadLimit(h.readLimit)

	c := &client{
		id:      uuid.NewString(),
		ws:      ws,
		send:    make(chan []byte, h.sendBuffer),
		limiter: rate.NewLimiter(h.rateLimit, h.rateBurst),
		groups:  make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	h.register(c)
	h.logger.Info("ws_connect", zap.String("conn", c.id), zap.String("remote", r.RemoteAddr))

	h.wg.Add(1)
	defer h.wg.Done()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		h.writeLoop(ctx, c)
	}()
	go func() {
		defer loops.Done()
		h.pingLoop(ctx, c)
	}()
	h.readLoop(ctx, c)

	h.unregister(c)
	c.close(websocket.StatusNormalClosure, "")
	cancel()
	loops.Wait()

	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	h.handler.Disconnect(dctx, c.id)
	h.logger.Info("ws_disconnect", zap.String("conn", c.id))
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !h.isStopping() && ctx.Err() == nil {
				h.logger.Debug("ws_read_failed", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if !c.limiter.Allow() {
			h.handler.Throttled(ctx, c.id, data)
			continue
		}
		h.handler.Handle(ctx, c.id, data)
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				h.logger.Debug("ws_write_failed", zap.String("conn", c.id), zap.Error(err))
				c.close(websocket.StatusGoingAway, "write failure")
				return
			}
		}
	}
}

func (h *Hub) pingLoop(ctx context.Context, c *client) {
	t := time.NewTicker(h.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.ws.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				h.logger.Debug("ws_ping_failed", zap.String("conn", c.id), zap.Error(err))
				c.close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
	for g := range c.groups {
		if members := h.groups[g]; members != nil {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.groups, g)
			}
		}
	}
}

func encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(charadesdto.Envelope{Type: event, Payload: raw})
}

// enqueue never blocks; a client that cannot keep up is dropped.
func (h *Hub) enqueue(c *client, data []byte) error {
	select {
	case <-c.done:
		return ErrUnknownConn
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		h.logger.Warn("ws_slow_conn", zap.String("conn", c.id))
		// the close handshake can block; callers run on the game loop
		go c.close(websocket.StatusPolicyViolation, "too slow")
		return ErrSlowConn
	}
}

func (h *Hub) Send(connID, event string, payload any) error {
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return ErrUnknownConn
	}
	data, err := encode(event, payload)
	if err != nil {
		return err
	}
	return h.enqueue(c, data)
}

func (h *Hub) Broadcast(group, event string, payload any, exceptConnID string) {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Error("ws_encode_failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	targets := make([]*client, 0, len(h.groups[group]))
	for id, c := range h.groups[group] {
		if id != exceptConnID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		_ = h.enqueue(c, data)
	}
}

func (h *Hub) JoinGroup(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.clients[connID]
	if c == nil {
		return
	}
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]*client)
	}
	h.groups[group][connID] = c
	c.groups[group] = struct{}{}
}

func (h *Hub) LeaveGroup(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members := h.groups[group]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if c := h.clients[connID]; c != nil {
		delete(c.groups, group)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close drops every connection and waits for their handlers to finish.
func (h *Hub) Close(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.close(websocket.StatusGoingAway, "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (h *Hub) isStopping() bool {
	select {
	case <-h.stopCh:
		return true
	default:
		return false
	}
}

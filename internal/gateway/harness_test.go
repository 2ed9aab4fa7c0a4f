package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/charades-server/internal/catalog"
	"github.com/park285/charades-server/internal/domain"
	"github.com/park285/charades-server/internal/msgcat"
	"github.com/park285/charades-server/internal/sched"
	"github.com/park285/charades-server/internal/session"
	"github.com/park285/charades-server/pkg/charadesdto"
)

type delivery struct {
	conn    string
	event   string
	payload any
}

// fakeTransport delivers broadcasts eagerly to every group member so tests
// can read one flat log per connection.
type fakeTransport struct {
	mu     sync.Mutex
	groups map[string]map[string]bool
	out    []delivery
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{groups: make(map[string]map[string]bool)}
}

func (f *fakeTransport) Send(connID, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, delivery{conn: connID, event: event, payload: payload})
	return nil
}

func (f *fakeTransport) Broadcast(group, event string, payload any, except string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.groups[group] {
		if c != except {
			f.out = append(f.out, delivery{conn: c, event: event, payload: payload})
		}
	}
}

func (f *fakeTransport) JoinGroup(connID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[group] == nil {
		f.groups[group] = make(map[string]bool)
	}
	f.groups[group][connID] = true
}

func (f *fakeTransport) LeaveGroup(connID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups[group], connID)
}

func (f *fakeTransport) count(conn, event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.out {
		if d.conn == conn && d.event == event {
			n++
		}
	}
	return n
}

func (f *fakeTransport) last(conn, event string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.out) - 1; i >= 0; i-- {
		if d := f.out[i]; d.conn == conn && d.event == event {
			return d.payload, true
		}
	}
	return nil, false
}

func (f *fakeTransport) members(group string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.groups[group])
}

func lastOf[T any](t *testing.T, tr *fakeTransport, conn, event string) T {
	t.Helper()
	p, ok := tr.last(conn, event)
	require.Truef(t, ok, "no %s delivered to %s", event, conn)
	v, ok := p.(T)
	require.Truef(t, ok, "%s payload is %T", event, p)
	return v
}

func lastError(t *testing.T, tr *fakeTransport, conn, event string) charadesdto.DomainError {
	t.Helper()
	return lastOf[charadesdto.DomainError](t, tr, conn, event)
}

type fakeJob struct {
	every     bool
	d         time.Duration
	fn        func()
	cancelled bool
}

// fakeSched never fires on its own; tests call fire.
type fakeSched struct {
	mu   sync.Mutex
	jobs []*fakeJob
}

func (s *fakeSched) add(every bool, d time.Duration, fn func()) (sched.Cancel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &fakeJob{every: every, d: d, fn: fn}
	s.jobs = append(s.jobs, j)
	return func() {
		s.mu.Lock()
		j.cancelled = true
		s.mu.Unlock()
	}, nil
}

func (s *fakeSched) Every(d time.Duration, fn func()) (sched.Cancel, error) { return s.add(true, d, fn) }
func (s *fakeSched) After(d time.Duration, fn func()) (sched.Cancel, error) { return s.add(false, d, fn) }
func (s *fakeSched) Shutdown() error                                        { return nil }

func (s *fakeSched) active(every bool) []*fakeJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeJob
	for _, j := range s.jobs {
		if j.every == every && !j.cancelled {
			out = append(out, j)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeContent hands out prompts in order and sabotages s1..sn.
type fakeContent struct {
	prompts []domain.GamePrompt
}

func newFakeContent() fakeContent {
	var ps []domain.GamePrompt
	for i := 1; i <= 5; i++ {
		ps = append(ps, domain.GamePrompt{
			ID:         fmt.Sprintf("p%d", i),
			Text:       fmt.Sprintf("prompt %d", i),
			Category:   "modern_life",
			Difficulty: "easy",
		})
	}
	return fakeContent{prompts: ps}
}

func (c fakeContent) RandomPrompt(used map[string]bool, category, difficulty string) (domain.GamePrompt, error) {
	for _, p := range c.prompts {
		if used[p.ID] || (category != "" && p.Category != category) || (difficulty != "" && p.Difficulty != difficulty) {
			continue
		}
		return p, nil
	}
	return domain.GamePrompt{}, catalog.ErrNoPrompts
}

func (fakeContent) RandomSabotages(n int) []domain.SabotageAction {
	out := make([]domain.SabotageAction, n)
	for i := range out {
		out[i] = domain.SabotageAction{ID: fmt.Sprintf("s%d", i+1), Name: fmt.Sprintf("Sabotage %d", i+1), DurationMs: 20_000, Category: "physical"}
	}
	return out
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	g     *Gateway
	tr    *fakeTransport
	sch   *fakeSched
	store *session.MemoryStore
	conns *session.Connections
	clock *fakeClock

	cancel context.CancelFunc
	done   chan struct{}
}

func newHarness(t *testing.T, content Content, opts ...Option) *harness {
	t.Helper()
	msgs, err := msgcat.New("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		t:     t,
		ctx:   ctx,
		tr:    newFakeTransport(),
		sch:   &fakeSched{},
		store: session.NewMemoryStore(),
		conns: session.NewConnections(),
		clock: &fakeClock{now: time.UnixMilli(1_700_000_000_000)},
	}
	opts = append([]Option{WithClock(h.clock.Now), WithMessages(msgs)}, opts...)
	h.g = New(h.store, h.conns, h.tr, content, h.sch, Config{}, opts...)

	h.cancel = cancel
	h.done = make(chan struct{})
	go func() {
		_ = h.g.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(h.stop)
	return h
}

// stop cancels Run and waits for it to return.
func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func (h *harness) send(conn, event string, payload any) {
	h.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(h.t, err)
	frame, err := json.Marshal(charadesdto.Envelope{Type: event, Payload: raw})
	require.NoError(h.t, err)
	h.g.Handle(h.ctx, conn, frame)
}

// sync waits until everything posted so far has been processed.
func (h *harness) sync() {
	h.t.Helper()
	require.NoError(h.t, h.g.exec(h.ctx, "", "", func(context.Context) {}))
}

func (h *harness) fire(j *fakeJob) {
	h.t.Helper()
	j.fn()
	h.sync()
}

func (h *harness) state(code string) *domain.GameState {
	h.t.Helper()
	st, err := h.store.Get(h.ctx, code)
	require.NoError(h.t, err)
	return st
}

func (h *harness) create(conn, name string) (code, playerID string) {
	h.t.Helper()
	h.send(conn, charadesdto.EventCreateRoom, charadesdto.CreateRoomRequest{PlayerName: name})
	p := lastOf[charadesdto.RoomEntered](h.t, h.tr, conn, charadesdto.EventRoomCreated)
	return p.Room.Code, p.PlayerID
}

func (h *harness) join(conn, code, name string) string {
	h.t.Helper()
	h.send(conn, charadesdto.EventJoinRoom, charadesdto.JoinRoomRequest{RoomCode: code, PlayerName: name})
	return lastOf[charadesdto.RoomEntered](h.t, h.tr, conn, charadesdto.EventRoomJoined).PlayerID
}

// lobby seats Ann (host, c1), Bob (c2) and Cid (c3).
func (h *harness) lobby() (code, ann, bob, cid string) {
	h.t.Helper()
	code, ann = h.create("c1", "Ann")
	bob = h.join("c2", code, "Bob")
	cid = h.join("c3", code, "Cid")
	return code, ann, bob, cid
}

func (h *harness) startGame(conn, code, by string) {
	h.t.Helper()
	h.send(conn, charadesdto.EventStartGame, charadesdto.StartGameRequest{RoomCode: code, RequestedBy: by})
}

package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/charades-server/internal/domain"
	"github.com/park285/charades-server/internal/game"
	"github.com/park285/charades-server/internal/sched"
	"github.com/park285/charades-server/pkg/charadesdto"
)

// Timer callbacks run on scheduler goroutines and only post work. The
// posted work re-reads the room and checks that its target still exists
// before writing.

type roundTimer struct {
	key    roundKey
	cancel sched.Cancel
}

// roundKey identifies one opened round. The start time tells apart rounds
// that share a number across a reset.
type roundKey struct {
	number int
	start  int64
}

func keyOfRound(r *domain.CurrentRound) roundKey {
	return roundKey{number: r.Number, start: r.StartTime}
}

type sabotageTimer struct {
	key    domain.SabotageKey
	cancel sched.Cancel
}

func (g *Gateway) startRoundTimer(code string, r *domain.CurrentRound) {
	g.stopRoundTimer(code)
	key := keyOfRound(r)
	cancel, err := g.sched.Every(g.cfg.TickInterval, func() {
		g.post(func(ctx context.Context) { g.tick(ctx, code, key) })
	})
	if err != nil {
		g.logger.Error("round_timer_failed", zap.String("room", code), zap.Error(err))
		return
	}
	g.roundTimers[code] = roundTimer{key: key, cancel: cancel}
}

func (g *Gateway) stopRoundTimer(code string) {
	if t, ok := g.roundTimers[code]; ok {
		t.cancel()
		delete(g.roundTimers, code)
	}
}

func (g *Gateway) tick(ctx context.Context, code string, key roundKey) {
	if t, ok := g.roundTimers[code]; !ok || t.key != key {
		return
	}
	st, err := g.store.Get(ctx, code)
	if err != nil {
		g.logger.Warn("round_tick_load_failed", zap.String("room", code), zap.Error(err))
		return
	}
	if st == nil {
		g.stopRoundTimer(code)
		return
	}
	r := st.ActiveRound()
	if r == nil || keyOfRound(r) != key {
		g.stopRoundTimer(code)
		return
	}
	remaining := r.Remaining(g.nowMs())
	g.broadcast(code, charadesdto.EventTimerUpdate, charadesdto.TimerUpdate{TimeRemaining: remaining}, "")
	if remaining > 0 {
		return
	}
	g.stopRoundTimer(code)
	if err := g.finishRound(ctx, st, ""); err != nil {
		g.logger.Error("round_timeout_failed", zap.String("room", code), zap.Error(err))
	}
}

func (g *Gateway) startSabotageTimer(code string, active *domain.ActiveSabotage) {
	g.stopSabotageTimer(code)
	key := active.Key()
	wait := time.Duration(active.EndsAt-g.nowMs()) * time.Millisecond
	cancel, err := g.sched.After(wait, func() {
		g.post(func(ctx context.Context) { g.expireSabotage(ctx, code, key) })
	})
	if err != nil {
		g.logger.Error("sabotage_timer_failed", zap.String("room", code), zap.Error(err))
		return
	}
	g.sabotageTimers[code] = sabotageTimer{key: key, cancel: cancel}
}

func (g *Gateway) stopSabotageTimer(code string) {
	if t, ok := g.sabotageTimers[code]; ok {
		t.cancel()
		delete(g.sabotageTimers, code)
	}
}

func (g *Gateway) expireSabotage(ctx context.Context, code string, key domain.SabotageKey) {
	if t, ok := g.sabotageTimers[code]; ok && t.key == key {
		delete(g.sabotageTimers, code)
	}
	st, err := g.store.Get(ctx, code)
	if err != nil || st == nil {
		return
	}
	next, changed := game.ExpireSabotage(st, key)
	if !changed {
		return
	}
	if err := g.save(ctx, next); err != nil {
		g.logger.Error("sabotage_expire_failed", zap.String("room", code), zap.Error(err))
		return
	}
	g.broadcast(code, charadesdto.EventSabotageEnded, charadesdto.SabotageEnded{SabotageID: key.ActionID}, "")
	g.logger.Info("sabotage_expire", zap.String("room", code), zap.String("sabotage", key.ActionID))
}

func (g *Gateway) startDisconnectTimer(code, playerID string) {
	g.cancelDisconnectTimer(playerID)
	cancel, err := g.sched.After(g.cfg.DisconnectGrace, func() {
		g.post(func(ctx context.Context) { g.expireDisconnect(ctx, code, playerID) })
	})
	if err != nil {
		g.logger.Error("disconnect_timer_failed", zap.String("room", code), zap.Error(err))
		return
	}
	g.disconnectTimers[playerID] = cancel
}

func (g *Gateway) cancelDisconnectTimer(playerID string) {
	if cancel, ok := g.disconnectTimers[playerID]; ok {
		cancel()
		delete(g.disconnectTimers, playerID)
	}
}

func (g *Gateway) stopRoomTimers(code string) {
	g.stopRoundTimer(code)
	g.stopSabotageTimer(code)
}

func (g *Gateway) cancelAllTimers() {
	for code := range g.roundTimers {
		g.stopRoundTimer(code)
	}
	for code := range g.sabotageTimers {
		g.stopSabotageTimer(code)
	}
	for id := range g.disconnectTimers {
		g.cancelDisconnectTimer(id)
	}
}

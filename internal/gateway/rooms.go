package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/charades-server/internal/domain"
	"github.com/park285/charades-server/internal/game"
	"github.com/park285/charades-server/pkg/charadesdto"
)

func (g *Gateway) dispatch(ctx context.Context, connID string, ev inbound) {
	var err error
	switch e := ev.(type) {
	case createRoomEvent:
		err = g.createRoom(ctx, connID, e.CreateRoomRequest)
	case joinRoomEvent:
		err = g.joinRoom(ctx, connID, e.JoinRoomRequest)
	case rejoinRoomEvent:
		err = g.rejoinRoom(ctx, connID, e.RejoinRoomRequest)
	case leaveRoomEvent:
		err = g.leaveRoom(ctx, connID, e.LeaveRoomRequest)
	case startGameEvent:
		err = g.startGame(ctx, connID, e.StartGameRequest)
	case startRoundEvent:
		err = g.startRound(ctx, connID, e.StartRoundRequest)
	case deploySabotageEvent:
		err = g.deploySabotage(ctx, connID, e.DeploySabotageRequest)
	case endRoundEvent:
		err = g.endRound(ctx, connID, e.EndRoundRequest)
	case requestGameStateEvent:
		err = g.requestGameState(ctx, connID, e.RequestGameStateRequest)
	}
	if err != nil {
		g.fail(connID, ev.errorEvent(), err)
	}
}

// detach drops any previous membership of connID. Callers run it only once
// the room being entered has accepted the connection.
func (g *Gateway) detach(ctx context.Context, connID string) {
	b, ok := g.conns.ByConn(connID)
	if !ok {
		return
	}
	g.conns.UnbindConn(connID)
	g.tr.LeaveGroup(connID, group(b.RoomCode))
	if err := g.removePlayer(ctx, b.RoomCode, b.PlayerID); err != nil {
		g.logger.Warn("room_detach_failed", zap.String("room", b.RoomCode), zap.Error(err))
	}
}

func (g *Gateway) attach(connID string, st *domain.GameState, playerID string) {
	code := st.Room.Code
	if replaced := g.conns.Bind(connID, playerID, code); replaced != "" {
		g.tr.LeaveGroup(replaced, group(code))
	}
	g.tr.JoinGroup(connID, group(code))
}

func (g *Gateway) createRoom(ctx context.Context, connID string, req charadesdto.CreateRoomRequest) error {
	codes, err := g.store.Codes(ctx)
	if err != nil {
		return err
	}
	st, host, err := game.CreateRoom(game.CreateParams{
		HostName:      req.PlayerName,
		ExistingCodes: codes,
		Defaults:      g.cfg.Defaults,
		Overrides:     req.GameConfig,
		MaxPlayers:    g.cfg.MaxPlayers,
		Now:           g.nowMs(),
	})
	if err != nil {
		return err
	}
	if err := g.save(ctx, st); err != nil {
		return err
	}
	g.detach(ctx, connID)
	g.attach(connID, st, host.ID)
	g.send(connID, charadesdto.EventRoomCreated, charadesdto.RoomEntered{Room: st.Room, PlayerID: host.ID, GameState: st})
	g.logger.Info("room_create", zap.String("room", st.Room.Code), zap.String("host", host.ID))
	return nil
}

func (g *Gateway) joinRoom(ctx context.Context, connID string, req charadesdto.JoinRoomRequest) error {
	st, err := g.load(ctx, req.RoomCode)
	if err != nil {
		return err
	}
	b, bound := g.conns.ByConn(connID)
	if bound && b.RoomCode == req.RoomCode {
		// Re-entering the same room under a new name gives up the old seat
		// first, so the join is checked against the room without it.
		without, err := game.LeaveRoom(st, b.PlayerID)
		if err != nil {
			return err
		}
		if without == nil {
			return game.ErrRoomNotFound
		}
		if _, _, err := game.JoinRoom(without, req.PlayerName, g.nowMs()); err != nil {
			return err
		}
		g.detach(ctx, connID)
		if st, err = g.load(ctx, req.RoomCode); err != nil {
			return err
		}
	}
	next, pl, err := game.JoinRoom(st, req.PlayerName, g.nowMs())
	if err != nil {
		return err
	}
	if err := g.save(ctx, next); err != nil {
		return err
	}
	if bound && b.RoomCode != req.RoomCode {
		g.detach(ctx, connID)
	}
	g.attach(connID, next, pl.ID)
	g.send(connID, charadesdto.EventRoomJoined, charadesdto.RoomEntered{Room: next.Room, PlayerID: pl.ID, GameState: next})
	g.broadcast(req.RoomCode, charadesdto.EventPlayerJoined, charadesdto.PlayerEvent{Player: pl, Room: next.Room}, connID)
	g.logger.Info("room_join", zap.String("room", req.RoomCode), zap.String("player", pl.ID))
	return nil
}

func (g *Gateway) rejoinRoom(ctx context.Context, connID string, req charadesdto.RejoinRoomRequest) error {
	st, err := g.load(ctx, req.RoomCode)
	if err != nil {
		return err
	}
	if _, ok := st.Room.Player(req.PlayerID); !ok {
		return game.ErrPlayerNotFound
	}
	if b, ok := g.conns.ByConn(connID); ok && b.PlayerID != req.PlayerID {
		g.detach(ctx, connID)
		if b.RoomCode == req.RoomCode {
			if st, err = g.load(ctx, req.RoomCode); err != nil {
				return err
			}
		}
	}
	g.cancelDisconnectTimer(req.PlayerID)

	next, err := game.SetConnectionStatus(st, req.PlayerID, domain.ConnConnected)
	if err != nil {
		return err
	}
	if err := g.save(ctx, next); err != nil {
		return err
	}
	pl, _ := next.Room.Player(req.PlayerID)
	g.attach(connID, next, req.PlayerID)
	g.send(connID, charadesdto.EventGameStateUpdate, next)
	g.broadcast(req.RoomCode, charadesdto.EventPlayerReconnected, charadesdto.PlayerEvent{Player: pl, Room: next.Room}, connID)
	g.logger.Info("room_rejoin", zap.String("room", req.RoomCode), zap.String("player", req.PlayerID))
	return nil
}

func (g *Gateway) leaveRoom(ctx context.Context, connID string, req charadesdto.LeaveRoomRequest) error {
	b, ok := g.conns.ByConn(connID)
	if !ok || b.PlayerID != req.PlayerID {
		return game.ErrUnauthorized
	}
	g.conns.UnbindConn(connID)
	g.tr.LeaveGroup(connID, group(b.RoomCode))
	return g.removePlayer(ctx, b.RoomCode, b.PlayerID)
}

// removePlayer is the shared tail of an explicit leave and an expired
// disconnect. The caller has already unbound the player's connection.
func (g *Gateway) removePlayer(ctx context.Context, code, playerID string) error {
	st, err := g.store.Get(ctx, code)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	g.cancelDisconnectTimer(playerID)
	hadRound := st.ActiveRound() != nil

	next, err := game.LeaveRoom(st, playerID)
	if err != nil {
		return err
	}
	if next == nil {
		g.stopRoomTimers(code)
		if err := g.store.Delete(ctx, code); err != nil {
			return err
		}
		g.logger.Info("room_delete", zap.String("room", code))
		return nil
	}
	if err := g.save(ctx, next); err != nil {
		return err
	}
	g.broadcast(code, charadesdto.EventPlayerLeft, charadesdto.PlayerRef{PlayerID: playerID, Room: next.Room}, "")
	if hadRound && next.CurrentRound == nil {
		g.stopRoomTimers(code)
		g.broadcast(code, charadesdto.EventGameStateUpdate, next, "")
		g.logger.Info("round_abandon", zap.String("room", code), zap.String("player", playerID))
	}
	g.logger.Info("room_leave", zap.String("room", code), zap.String("player", playerID))
	return nil
}

func (g *Gateway) requestGameState(ctx context.Context, connID string, req charadesdto.RequestGameStateRequest) error {
	if b, ok := g.conns.ByConn(connID); ok && b.PlayerID != req.PlayerID {
		return game.ErrUnauthorized
	}
	code, err := g.store.RoomOfPlayer(ctx, req.PlayerID)
	if err != nil {
		g.logger.Warn("state_sync_failed", zap.String("player", req.PlayerID), zap.Error(err))
		return game.ErrStateSync
	}
	if code == "" {
		return game.ErrPlayerNotFound
	}
	st, err := g.store.Get(ctx, code)
	if err != nil {
		g.logger.Warn("state_sync_failed", zap.String("room", code), zap.Error(err))
		return game.ErrStateSync
	}
	if st == nil {
		return game.ErrRoomNotFound
	}
	g.send(connID, charadesdto.EventGameStateUpdate, st)
	return nil
}

func (g *Gateway) onDisconnect(ctx context.Context, connID string) {
	b, ok := g.conns.UnbindConn(connID)
	if !ok {
		return
	}
	g.tr.LeaveGroup(connID, group(b.RoomCode))

	st, err := g.store.Get(ctx, b.RoomCode)
	if err != nil || st == nil {
		return
	}
	next, err := game.SetConnectionStatus(st, b.PlayerID, domain.ConnDisconnected)
	if err != nil {
		return
	}
	if err := g.save(ctx, next); err != nil {
		g.logger.Error("disconnect_save_failed", zap.String("room", b.RoomCode), zap.Error(err))
		return
	}
	g.broadcast(b.RoomCode, charadesdto.EventPlayerDisconnected, charadesdto.PlayerRef{PlayerID: b.PlayerID, Room: next.Room}, "")
	g.startDisconnectTimer(b.RoomCode, b.PlayerID)
	g.logger.Info("player_disconnect", zap.String("room", b.RoomCode), zap.String("player", b.PlayerID))
}

// expireDisconnect removes the player if they are still gone.
func (g *Gateway) expireDisconnect(ctx context.Context, code, playerID string) {
	delete(g.disconnectTimers, playerID)
	st, err := g.store.Get(ctx, code)
	if err != nil || st == nil {
		return
	}
	pl, ok := st.Room.Player(playerID)
	if !ok || pl.ConnectionStatus != domain.ConnDisconnected {
		return
	}
	if _, bound := g.conns.ConnOf(playerID); bound {
		return
	}
	if err := g.removePlayer(ctx, code, playerID); err != nil {
		g.logger.Error("disconnect_remove_failed", zap.String("room", code), zap.String("player", playerID), zap.Error(err))
	}
}

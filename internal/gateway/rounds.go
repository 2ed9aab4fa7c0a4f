package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/park285/charades-server/internal/catalog"
	"github.com/park285/charades-server/internal/domain"
	"github.com/park285/charades-server/internal/game"
	"github.com/park285/charades-server/pkg/charadesdto"
)

// caller returns the player bound to connID, requiring it to be claimedID
// and to sit in room code.
func (g *Gateway) caller(connID, code, claimedID string) (string, error) {
	b, ok := g.conns.ByConn(connID)
	if !ok || b.RoomCode != code {
		return "", game.ErrUnauthorized
	}
	if claimedID != "" && claimedID != b.PlayerID {
		return "", game.ErrUnauthorized
	}
	return b.PlayerID, nil
}

func (g *Gateway) requireHost(ctx context.Context, connID, code, requestedBy string) (*domain.GameState, error) {
	if _, err := g.caller(connID, code, requestedBy); err != nil {
		return nil, err
	}
	st, err := g.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if st.Room.HostID() != requestedBy {
		return nil, game.ErrUnauthorized
	}
	return st, nil
}

func (g *Gateway) startGame(ctx context.Context, connID string, req charadesdto.StartGameRequest) error {
	st, err := g.requireHost(ctx, connID, req.RoomCode, req.RequestedBy)
	if err != nil {
		return err
	}
	switch st.Room.Status {
	case domain.RoomPlaying:
		return game.ErrGameInProgress
	case domain.RoomComplete:
		g.stopRoomTimers(req.RoomCode)
		next := game.ResetGame(st)
		if err := g.save(ctx, next); err != nil {
			return err
		}
		g.broadcast(req.RoomCode, charadesdto.EventGameStateUpdate, next, "")
		g.logger.Info("game_reset", zap.String("room", req.RoomCode))
		return nil
	}
	if len(st.Room.Players) < g.cfg.MinPlayersToStart {
		return game.ErrInsufficientPlayers
	}
	g.logger.Info("game_start", zap.String("room", req.RoomCode), zap.Int("players", len(st.Room.Players)))
	return g.beginRound(ctx, st, "", "")
}

func (g *Gateway) startRound(ctx context.Context, connID string, req charadesdto.StartRoundRequest) error {
	st, err := g.requireHost(ctx, connID, req.RoomCode, req.RequestedBy)
	if err != nil {
		return err
	}
	switch st.Room.Status {
	case domain.RoomWaiting:
		return game.ErrGameNotStarted
	case domain.RoomComplete:
		return game.ErrGameComplete
	}
	if st.ActiveRound() != nil {
		return game.ErrRoundInProgress
	}
	return g.beginRound(ctx, st, req.Category, req.Difficulty)
}

// beginRound opens the next round, or finalizes the game when everyone has acted.
func (g *Gateway) beginRound(ctx context.Context, st *domain.GameState, category, difficulty string) error {
	code := st.Room.Code
	if game.IsGameComplete(st) {
		return g.completeGame(ctx, game.MarkComplete(st), nil)
	}

	prompt, err := g.content.RandomPrompt(game.UsedPromptIDs(st), category, difficulty)
	if errors.Is(err, catalog.ErrNoPrompts) {
		// every matching prompt was used; allow repeats
		prompt, err = g.content.RandomPrompt(nil, category, difficulty)
	}
	if err != nil {
		if errors.Is(err, catalog.ErrNoPrompts) {
			return game.ErrPromptsExhausted
		}
		return err
	}
	next, err := game.StartRound(st, prompt, g.content.RandomSabotages(g.cfg.SabotageChoices), g.nowMs())
	if err != nil {
		return err
	}
	if err := g.save(ctx, next); err != nil {
		return err
	}
	g.broadcast(code, charadesdto.EventGameStateUpdate, next, "")
	g.startRoundTimer(code, next.CurrentRound)
	g.logger.Info("round_start",
		zap.String("room", code),
		zap.Int("round", next.CurrentRound.Number),
		zap.String("actor", next.CurrentRound.ActorID),
		zap.String("director", next.CurrentRound.DirectorID),
		zap.String("prompt", prompt.ID))
	return nil
}

func (g *Gateway) deploySabotage(ctx context.Context, connID string, req charadesdto.DeploySabotageRequest) error {
	if _, err := g.caller(connID, req.RoomCode, req.DirectorID); err != nil {
		return err
	}
	st, err := g.load(ctx, req.RoomCode)
	if err != nil {
		return err
	}
	next, active, err := game.DeploySabotage(st, req.SabotageID, req.DirectorID, g.nowMs())
	if err != nil {
		return err
	}
	if err := g.save(ctx, next); err != nil {
		return err
	}
	g.broadcast(req.RoomCode, charadesdto.EventSabotageDeployed, charadesdto.SabotageDeployed{Sabotage: *active}, "")
	g.startSabotageTimer(req.RoomCode, active)
	g.logger.Info("sabotage_deploy",
		zap.String("room", req.RoomCode),
		zap.String("sabotage", active.Action.ID),
		zap.Int("count", next.CurrentRound.SabotagesDeployedCount))
	return nil
}

func (g *Gateway) endRound(ctx context.Context, connID string, req charadesdto.EndRoundRequest) error {
	callerID, err := g.caller(connID, req.RoomCode, "")
	if err != nil {
		return err
	}
	st, err := g.load(ctx, req.RoomCode)
	if err != nil {
		return err
	}
	r := st.ActiveRound()
	if r == nil {
		return game.ErrNoActiveRound
	}
	if callerID != r.DirectorID {
		return game.ErrUnauthorized
	}
	if req.WinnerID != "" {
		if _, ok := st.Room.Player(req.WinnerID); !ok || req.WinnerID == r.ActorID || req.WinnerID == r.DirectorID {
			return game.ErrInvalidWinner
		}
	}
	return g.finishRound(ctx, st, req.WinnerID)
}

// finishRound scores the active round and either reports it or ends the game.
func (g *Gateway) finishRound(ctx context.Context, st *domain.GameState, winnerID string) error {
	code := st.Room.Code
	g.stopRoomTimers(code)

	next, done, err := game.EndRound(st, winnerID, g.nowMs())
	if err != nil {
		return err
	}
	g.logger.Info("round_end",
		zap.String("room", code),
		zap.Int("round", done.RoundNumber),
		zap.String("outcome", string(done.Outcome)),
		zap.String("winner", winnerID))

	if game.IsGameComplete(next) {
		return g.completeGame(ctx, game.MarkComplete(next), &done)
	}
	if err := g.save(ctx, next); err != nil {
		return err
	}
	g.broadcast(code, charadesdto.EventRoundComplete, charadesdto.RoundComplete{CompletedRound: done, GameState: next}, "")
	return nil
}

// completeGame commits a state already marked complete and hands the summary to the sinks.
func (g *Gateway) completeGame(ctx context.Context, st *domain.GameState, last *domain.CompletedRound) error {
	code := st.Room.Code
	g.stopRoomTimers(code)
	if err := g.save(ctx, st); err != nil {
		return err
	}
	if last == nil && len(st.RoundHistory) > 0 {
		h := st.RoundHistory[len(st.RoundHistory)-1]
		last = &h
	}
	g.broadcast(code, charadesdto.EventGameComplete, charadesdto.GameComplete{GameState: st, CompletedRound: last}, "")
	g.logger.Info("game_complete", zap.String("room", code), zap.Int("rounds", len(st.RoundHistory)))
	g.publish(game.Summarize(st, g.nowMs()))
	return nil
}

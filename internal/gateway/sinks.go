package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/charades-server/internal/domain"
)

// ResultSink receives the summary of every completed game.
type ResultSink interface {
	RecordGame(ctx context.Context, s domain.GameSummary) error
}

type SinkFunc func(ctx context.Context, s domain.GameSummary) error

func (f SinkFunc) RecordGame(ctx context.Context, s domain.GameSummary) error { return f(ctx, s) }

// publish runs every sink off the loop. Failures are logged only.
func (g *Gateway) publish(s domain.GameSummary) {
	for i, sink := range g.sinks {
		g.sinkWG.Add(1)
		go func(i int, sink ResultSink) {
			defer g.sinkWG.Done()
			ctx, cancel := context.WithTimeout(context.Background(), g.cfg.SinkTimeout)
			defer cancel()
			if err := sink.RecordGame(ctx, s); err != nil {
				g.logger.Warn("result_sink_failed", zap.Int("sink", i), zap.String("room", s.RoomCode), zap.Error(err))
			}
		}(i, sink)
	}
}

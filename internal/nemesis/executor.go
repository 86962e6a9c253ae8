package nemesis

import (
	"context"
	"fmt"
	"log/slog"

	"jepsengo/internal/cluster"
	"jepsengo/internal/logging"
)

// Executor drives a Record's effect (and its inverse) against a
// cluster's fault capabilities.
type Executor struct {
	adapter cluster.FaultOps
	logger  *slog.Logger
}

// NewExecutor builds an Executor against adapter. A nil logger discards
// output.
func NewExecutor(adapter cluster.FaultOps, logger *slog.Logger) *Executor {
	logger = logging.Default(logger)
	return &Executor{adapter: adapter, logger: logger.With("component", "nemesis-executor")}
}

func keys(set map[ServerID]struct{}) []ServerID {
	out := make([]ServerID, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Execute applies rec's effect to the cluster.
func (e *Executor) Execute(ctx context.Context, rec Record) error {
	switch rec.Kind {
	case RecordNoop:
		return nil
	case RecordKill:
		e.logger.Info("kill", "servers", keys(rec.Servers))
		return e.adapter.Kill(ctx, keys(rec.Servers))
	case RecordPause:
		e.logger.Info("pause", "servers", keys(rec.Servers))
		return e.adapter.Pause(ctx, keys(rec.Servers))
	case RecordNet:
		for from, targets := range rec.Net {
			for to := range targets {
				e.logger.Info("clog", "from", from, "to", to)
				if err := e.adapter.ClogOneWay(ctx, from, to); err != nil {
					return fmt.Errorf("nemesis: clog %d->%d: %w", from, to, err)
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("nemesis: unknown record kind %d", rec.Kind)
	}
}

// Recover reverses rec's effect, returning the cluster to its
// fault-free state.
func (e *Executor) Recover(ctx context.Context, rec Record) error {
	switch rec.Kind {
	case RecordNoop:
		return nil
	case RecordKill:
		e.logger.Info("restart", "servers", keys(rec.Servers))
		return e.adapter.Restart(ctx, keys(rec.Servers))
	case RecordPause:
		e.logger.Info("resume", "servers", keys(rec.Servers))
		return e.adapter.Resume(ctx, keys(rec.Servers))
	case RecordNet:
		for from, targets := range rec.Net {
			for to := range targets {
				e.logger.Info("unclog", "from", from, "to", to)
				if err := e.adapter.UnclogOneWay(ctx, from, to); err != nil {
					return fmt.Errorf("nemesis: unclog %d->%d: %w", from, to, err)
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("nemesis: unknown record kind %d", rec.Kind)
	}
}

// Package dispatcher drives one generator per logical process against a
// cluster's data-plane ops, appending paired invoke/close entries to a
// shared history. Workers join through an errgroup so the first
// worker-fatal error cancels the rest.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"jepsengo/internal/cluster"
	"jepsengo/internal/generator"
	"jepsengo/internal/history"
	"jepsengo/internal/logging"
	"jepsengo/internal/op"
)

// Worker drives a single logical process's generator to completion,
// recording every attempted op into history.
type Worker struct {
	process uint64
	gen     *generator.Generator[op.Op]
	ops     cluster.Ops
	history *history.History
	logger  *slog.Logger
}

// NewWorker builds a Worker for process, pulling invocations from gen and
// executing them against ops. A nil logger discards output.
func NewWorker(process uint64, gen *generator.Generator[op.Op], ops cluster.Ops, h *history.History, logger *slog.Logger) *Worker {
	logger = logging.Default(logger)
	return &Worker{
		process: process,
		gen:     gen,
		ops:     ops,
		history: h,
		logger:  logger.With("component", "dispatcher", "process", process),
	}
}

// Run pulls invocations from the worker's generator until it is
// exhausted or ctx is cancelled, recording an invoke/close pair per
// invocation. It returns the first error a history write reports; a
// failed or ambiguous op against the cluster is recorded, not returned.
func (w *Worker) Run(ctx context.Context) error {
	for {
		invocation, err := w.gen.Next(ctx)
		if err != nil {
			return err
		}
		if invocation == nil {
			return nil
		}
		if err := w.handleOp(ctx, *invocation); err != nil {
			return err
		}
	}
}

func (w *Worker) handleOp(ctx context.Context, invocation op.Op) error {
	w.history.PushInvoke(w.process, invocation)

	result, kind, errPayload := w.execute(ctx, invocation)
	w.logger.Debug("op complete", "kind", kind, "op", result)

	_, err := w.history.PushClose(w.process, kind, result, errPayload)
	return err
}

// execute applies o against the cluster, recursing into Txn children in
// order and aborting on the first non-Ok child: Jepsen txns never
// partially commit from the client's point of view, so a failing or
// ambiguous child ends the attempt there.
func (w *Worker) execute(ctx context.Context, o op.Op) (op.Op, history.Type, []string) {
	switch o.Kind() {
	case op.KindRead:
		val, err := w.ops.Get(ctx, o.Key())
		if err != nil {
			return o, classifyErr(err), []string{err.Error()}
		}
		return o.WithValue(val), history.Ok, nil

	case op.KindWrite:
		if err := w.ops.Put(ctx, o.Key(), *o.Value()); err != nil {
			return o, classifyErr(err), []string{err.Error()}
		}
		return o, history.Ok, nil

	case op.KindTxn:
		children := make([]op.Op, 0, len(o.Children()))
		for _, child := range o.Children() {
			result, kind, errPayload := w.execute(ctx, child)
			children = append(children, result)
			if kind != history.Ok {
				txn, _ := op.Txn(children...)
				return txn, kind, errPayload
			}
		}
		txn, _ := op.Txn(children...)
		return txn, history.Ok, nil

	default:
		return o, history.Fail, []string{"dispatcher: unknown op kind"}
	}
}

// classifyErr distinguishes a definite failure (Fail) from an ambiguous
// one (Info) where the operation may or may not have taken effect, such
// as a context cancellation mid-request.
func classifyErr(err error) history.Type {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return history.Info
	}
	return history.Fail
}

// RunAll runs every worker concurrently and waits for all to finish,
// returning the first error any of them reports. Cancelling ctx (or a
// worker returning a non-nil error) stops the rest.
func RunAll(ctx context.Context, workers []*Worker) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		g.Go(func() error { return w.Run(gctx) })
	}
	return g.Wait()
}

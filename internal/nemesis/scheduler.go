package nemesis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"jepsengo/internal/logging"
)

// Scheduler injects nemeses on a fixed cadence, independent of the
// generator algebra's own per-process timing — a second, coarser-grained
// clock for fault injection. Each tick asks next for the Intent to
// inject, resolves it, executes it, and retains the Record for later
// recovery through reg.
type Scheduler struct {
	sched  gocron.Scheduler
	calc   *Calculator
	exec   *Executor
	reg    *Register
	next   func() (Intent, bool)
	logger *slog.Logger
}

// NewScheduler builds a Scheduler. next is called once per tick; a false
// second return value skips that tick without injecting anything.
func NewScheduler(calc *Calculator, exec *Executor, reg *Register, next func() (Intent, bool), logger *slog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("nemesis: create scheduler: %w", err)
	}
	return &Scheduler{
		sched:  gs,
		calc:   calc,
		exec:   exec,
		reg:    reg,
		next:   next,
		logger: logging.Default(logger).With("component", "nemesis-scheduler"),
	}, nil
}

// Start begins ticking every interval until Stop is called.
func (s *Scheduler) Start(interval time.Duration) error {
	if _, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.tick),
	); err != nil {
		return fmt.Errorf("nemesis: schedule job: %w", err)
	}
	s.sched.Start()
	return nil
}

func (s *Scheduler) tick() {
	intent, ok := s.next()
	if !ok {
		return
	}

	ctx := context.Background()
	rec, err := s.calc.Calculate(ctx, intent)
	if err != nil {
		s.logger.Warn("calculate nemesis failed", "error", err)
		return
	}
	if err := s.exec.Execute(ctx, rec); err != nil {
		s.logger.Warn("execute nemesis failed", "error", err)
		return
	}
	if err := s.reg.Push(ctx, rec); err != nil {
		s.logger.Warn("register nemesis failed", "error", err)
	}
}

// Stop shuts the scheduler down, waiting for any in-flight tick to
// finish. It does not recover retained faults; call Register's
// DrainAndRecover separately at harness shutdown.
func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

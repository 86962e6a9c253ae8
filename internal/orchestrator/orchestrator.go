// Package orchestrator wires the generator algebra, the dispatcher, the
// nemesis fault scheduler, and the consistency checker into a single run:
// build the operation stream, drive it against the cluster-under-test
// while a fault schedule runs alongside it, then hand the resulting
// history to a checker for analysis.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jepsengo/internal/checker"
	"jepsengo/internal/cluster"
	"jepsengo/internal/config"
	"jepsengo/internal/delay"
	"jepsengo/internal/dispatcher"
	"jepsengo/internal/generator"
	"jepsengo/internal/global"
	"jepsengo/internal/logging"
	"jepsengo/internal/nemesis"
	"jepsengo/internal/rawgen"
)

const (
	registerWorkloadCacheSize = 64
	registerWorkloadTxnProb   = 0.1

	// defaultNemesisInterval paces fault injection independently of the
	// data-plane generators' own delay budget.
	defaultNemesisInterval = 250 * time.Millisecond
)

// Config is an Orchestrator's fixed dependencies, injected once at
// construction the way the rest of this module injects its collaborators.
type Config struct {
	Logger *slog.Logger
	// Now overrides the clock used for history timestamps. Defaults to
	// time.Now; tests supply a deterministic clock.
	Now func() time.Time

	ClusterOps cluster.Ops
	FaultOps   cluster.FaultOps
	Checker    checker.Checker

	// Processes is the number of concurrent logical client processes the
	// data-plane op stream is split across. Defaults to 1.
	Processes int

	// NemesisInterval overrides the fault-injection cadence. Defaults to
	// defaultNemesisInterval.
	NemesisInterval time.Duration

	// CheckDirectory is where the checker dumps its history and verdict.
	// Defaults to checker.DefaultCheckOption's directory.
	CheckDirectory string
}

// Orchestrator drives exactly one run end to end.
type Orchestrator struct {
	logger *slog.Logger
	now    func() time.Time

	clusterOps cluster.Ops
	faultOps   cluster.FaultOps
	checker    checker.Checker

	processes       int
	nemesisInterval time.Duration
	checkDirectory  string
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	processes := cfg.Processes
	if processes <= 0 {
		processes = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	interval := cfg.NemesisInterval
	if interval <= 0 {
		interval = defaultNemesisInterval
	}
	return &Orchestrator{
		logger:          logging.Default(cfg.Logger).With("component", "orchestrator"),
		now:             now,
		clusterOps:      cfg.ClusterOps,
		faultOps:        cfg.FaultOps,
		checker:         cfg.Checker,
		processes:       processes,
		nemesisInterval: interval,
		checkDirectory:  cfg.CheckDirectory,
	}
}

// Run executes one full harness run under harness's configuration: builds
// the operation stream, drives it against the cluster while the nemesis
// scheduler injects and retains faults on its own cadence, then checks the
// resulting history.
//
// A run is considered to have failed outright (returning an error rather
// than a CheckResult) when the nemesis scheduler cannot be built or
// started, when the dispatcher itself errors, when a process is left with
// an unclosed invocation at shutdown, or when the checker returns an
// error — none of these is a property of the cluster under test. An op failing or
// timing out against the cluster is a normal, expected outcome recorded in
// the history and left for the checker to judge.
func (o *Orchestrator) Run(ctx context.Context, harness config.Harness) (checker.CheckResult, error) {
	o.logger.Info("run starting",
		"op-count", harness.OpCount,
		"cluster-size", harness.ClusterSize,
		"processes", o.processes,
	)

	g := global.New(
		rawgen.NewRegisterWorkload(uint64(harness.ClusterSize), registerWorkloadCacheSize, registerWorkloadTxnProb, harness.Seed),
		global.WithLogger(o.logger),
		global.WithNow(o.now),
	)

	workers := o.buildWorkers(g, harness)

	calc := nemesis.NewCalculator(o.faultOps, harness.Seed)
	exec := nemesis.NewExecutor(o.faultOps, o.logger)
	reg := nemesis.NewRegister(toRetentionPolicy(harness.NemesisRetentionPolicy), harness.NemesisRetentionCapacity, exec, harness.Seed)

	sched, err := nemesis.NewScheduler(calc, exec, reg, o.buildNemesisSource(g, harness), o.logger)
	if err != nil {
		return checker.CheckResult{}, fmt.Errorf("orchestrator: build nemesis scheduler: %w", err)
	}
	if err := sched.Start(o.nemesisInterval); err != nil {
		return checker.CheckResult{}, fmt.Errorf("orchestrator: start nemesis scheduler: %w", err)
	}

	runErr := dispatcher.RunAll(ctx, workers)

	if err := sched.Stop(); err != nil {
		o.logger.Warn("stop nemesis scheduler", "error", err)
	}
	if err := reg.DrainAndRecover(context.Background()); err != nil {
		o.logger.Warn("drain nemesis register", "error", err)
	}

	if runErr != nil {
		return checker.CheckResult{}, fmt.Errorf("orchestrator: run workers: %w", runErr)
	}
	if open := g.History.OpenProcesses(); len(open) > 0 {
		return checker.CheckResult{}, fmt.Errorf("orchestrator: %d process(es) left with an open invocation at shutdown", len(open))
	}

	opt := checker.DefaultCheckOption()
	opt.ConsistencyModels = harness.ConsistencyModels
	if o.checkDirectory != "" {
		opt.Directory = o.checkDirectory
	}

	result, err := o.checker.Check(ctx, g.History, opt)
	if err != nil {
		return checker.CheckResult{}, fmt.Errorf("orchestrator: check: %w", err)
	}
	o.logger.Info("run finished", "valid", result.Valid, "entries", g.History.Len())
	return result, nil
}

// buildWorkers splits harness's op budget evenly across o.processes
// dispatcher workers, each over its own generator fed from g's shared raw
// source.
func (o *Orchestrator) buildWorkers(g *global.Global, harness config.Harness) []*dispatcher.Worker {
	perProcess := harness.OpCount / o.processes
	if perProcess <= 0 {
		perProcess = 1
	}
	delayPolicy := buildDelay(harness.Delay)

	workers := make([]*dispatcher.Worker, 0, o.processes)
	for i := 0; i < o.processes; i++ {
		items := g.TakePrefix(perProcess)
		gen := generator.New(g, items, delayPolicy)
		workers = append(workers, dispatcher.NewWorker(gen.ID(), gen, o.clusterOps, g.History, o.logger))
	}
	return workers
}

// buildNemesisSource combines one generator per palette entry into a
// Group under harness's configured strategy and quotas, and adapts its
// NextWithID into the callback shape nemesis.Scheduler expects. This is
// the same Group/Generator machinery the data plane uses, applied to a
// different element type: the fault intents the scheduler ticks through
// rather than the ops the dispatcher executes.
func (o *Orchestrator) buildNemesisSource(g *global.Global, harness config.Harness) func() (nemesis.Intent, bool) {
	palette := nemesisPalette(harness.ClusterSize)
	specs := make([]generator.ChildSpec[nemesis.Intent], len(palette))
	for i, intent := range palette {
		items := make([]nemesis.Intent, harness.OpCount+1)
		for j := range items {
			items[j] = intent
		}
		quota := 1
		if i < len(harness.GroupRatios) {
			quota = harness.GroupRatios[i]
		}
		specs[i] = generator.ChildSpec[nemesis.Intent]{
			Gen:   generator.New(g, items, delay.NewNone()),
			Quota: quota,
		}
	}
	grp := generator.NewGroup(toStrategy(harness.GroupStrategy), harness.Seed, specs...)

	return func() (nemesis.Intent, bool) {
		item, _, err := grp.NextWithID(context.Background())
		if err != nil || item == nil {
			return nemesis.Intent{}, false
		}
		return *item, true
	}
}

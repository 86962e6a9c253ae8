package orchestrator

import (
	"golang.org/x/time/rate"

	"jepsengo/internal/config"
	"jepsengo/internal/delay"
	"jepsengo/internal/generator"
	"jepsengo/internal/nemesis"
)

// newLimiter builds a token-bucket limiter for the rate-limited delay
// policy, with a burst of 1 so every element waits its own turn.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// nemesisPalette is the fixed set of fault shapes the nemesis source
// cycles through; PartitionRandomN's minority size scales with the
// cluster so it stays a valid bipartition at any cluster size of two or
// more (a single-server cluster has no valid N).
func nemesisPalette(clusterSize int) []nemesis.Intent {
	n := clusterSize / 2
	if n <= 0 {
		n = 1
	}
	return []nemesis.Intent{
		{Type: nemesis.Noop},
		{Type: nemesis.PartitionRandomN, N: n},
		{Type: nemesis.PartitionMajoritiesRing},
		{Type: nemesis.PartitionLeaderAndMajority},
	}
}

func buildDelay(cfg config.DelayConfig) delay.Policy {
	switch cfg.Kind {
	case config.DelayFixed:
		return delay.NewFixed(cfg.Duration)
	case config.DelayUniform:
		return delay.NewUniform(cfg.Duration)
	case config.DelayRateLimited:
		return delay.NewRateLimited(newLimiter(cfg.RatePerSecond))
	case config.DelayNone:
		fallthrough
	default:
		return delay.NewNone()
	}
}

func toStrategy(s config.GroupStrategy) generator.Strategy {
	switch s {
	case config.GroupChain:
		return generator.Chain
	case config.GroupRandom:
		return generator.Random
	case config.GroupRoundRobin:
		fallthrough
	default:
		return generator.RoundRobin
	}
}

func toRetentionPolicy(p config.RetentionPolicy) nemesis.RetentionPolicy {
	switch p {
	case config.RetentionRandom:
		return nemesis.RandomQueue
	case config.RetentionFIFO:
		fallthrough
	default:
		return nemesis.FIFO
	}
}

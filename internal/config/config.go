// Package config loads and hot-reloads the harness's declarative
// configuration: the shape of one run, not the state of a run in
// progress. Config changes only take effect on the next run the
// orchestrator starts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"jepsengo/internal/checker"
)

// DelayKind names one of the generator's delay policies.
type DelayKind string

const (
	DelayNone        DelayKind = "none"
	DelayFixed       DelayKind = "fixed"
	DelayUniform     DelayKind = "uniform"
	DelayRateLimited DelayKind = "rate-limited"
)

// DelayConfig configures the inter-operation delay applied by every
// generator the harness builds.
type DelayConfig struct {
	Kind          DelayKind     `yaml:"kind"`
	Duration      time.Duration `yaml:"duration,omitempty"`
	RatePerSecond float64       `yaml:"rate-per-second,omitempty"`
}

// GroupStrategy names one of the GeneratorGroup multiplexing strategies.
type GroupStrategy string

const (
	GroupChain      GroupStrategy = "chain"
	GroupRoundRobin GroupStrategy = "round-robin"
	GroupRandom     GroupStrategy = "random"
)

// RetentionPolicy names one of the nemesis register's eviction policies.
type RetentionPolicy string

const (
	RetentionFIFO   RetentionPolicy = "fifo"
	RetentionRandom RetentionPolicy = "random"
)

// Harness is one run's declarative configuration.
type Harness struct {
	OpCount                  int                        `yaml:"op-count"`
	Delay                    DelayConfig                `yaml:"delay"`
	GroupStrategy            GroupStrategy              `yaml:"group-strategy"`
	GroupRatios              []int                      `yaml:"group-ratios,omitempty"`
	NemesisRetentionPolicy   RetentionPolicy            `yaml:"nemesis-retention-policy"`
	NemesisRetentionCapacity int                        `yaml:"nemesis-retention-capacity"`
	ClusterSize              int                        `yaml:"cluster-size"`
	ConsistencyModels        []checker.ConsistencyModel `yaml:"consistency-models"`
	Seed                     uint64                     `yaml:"seed"`
}

// Default returns the harness's out-of-the-box configuration.
func Default() Harness {
	return Harness{
		OpCount:                  1000,
		Delay:                    DelayConfig{Kind: DelayNone},
		GroupStrategy:            GroupRoundRobin,
		GroupRatios:              []int{1},
		NemesisRetentionPolicy:   RetentionFIFO,
		NemesisRetentionCapacity: 1,
		ClusterSize:              5,
		ConsistencyModels:        []checker.ConsistencyModel{checker.Serializable},
		Seed:                     1,
	}
}

// Load reads and parses a Harness from a YAML file at path, starting
// from Default so an omitted field keeps its default value.
func Load(path string) (Harness, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Harness{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	h := Default()
	if err := yaml.Unmarshal(data, &h); err != nil {
		return Harness{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return h, nil
}

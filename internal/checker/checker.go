// Package checker bridges a completed run's history to an external
// consistency analyzer and parses back its verdict. The analyzer itself
// is a separate process (the harness never re-implements consistency
// analysis); this package owns the wire contract to it.
package checker

import (
	"context"
	"encoding/json"
	"fmt"

	"jepsengo/internal/history"
)

// ValidType is the analyzer's tri-state verdict: true, false, or
// "unknown" when the analyzer could not reach a conclusion (for example,
// an incomplete history or an unsupported consistency model).
type ValidType int

const (
	ValidTrue ValidType = iota
	ValidFalse
	ValidUnknown
)

// MarshalJSON renders ValidTrue/ValidFalse as a JSON bool and
// ValidUnknown as the string "unknown", matching the analyzer's wire
// contract.
func (v ValidType) MarshalJSON() ([]byte, error) {
	switch v {
	case ValidTrue:
		return json.Marshal(true)
	case ValidFalse:
		return json.Marshal(false)
	case ValidUnknown:
		return json.Marshal("unknown")
	default:
		return nil, fmt.Errorf("checker: unknown ValidType %d", v)
	}
}

func (v *ValidType) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*v = ValidTrue
		} else {
			*v = ValidFalse
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s == "unknown" {
		*v = ValidUnknown
		return nil
	}
	return fmt.Errorf("checker: invalid valid? value: %s", data)
}

// ConsistencyModel names one of the analyzer's supported models.
type ConsistencyModel string

const (
	ConsistentView               ConsistencyModel = "consistent-view"
	ConflictSerializable          ConsistencyModel = "conflict-serializable"
	CursorStability               ConsistencyModel = "cursor-stability"
	ForwardConsistentView         ConsistencyModel = "forward-consistent-view"
	MonotonicSnapshotRead         ConsistencyModel = "monotonic-snapshot-read"
	MonotonicView                 ConsistencyModel = "monotonic-view"
	ReadCommitted                 ConsistencyModel = "read-committed"
	ReadUncommitted               ConsistencyModel = "read-uncommitted"
	RepeatableRead                ConsistencyModel = "repeatable-read"
	Serializable                  ConsistencyModel = "serializable"
	SnapshotIsolation              ConsistencyModel = "snapshot-isolation"
	StrictSerializable             ConsistencyModel = "strict-serializable"
	StrongSerializable             ConsistencyModel = "strong-serializable"
	UpdateSerializable             ConsistencyModel = "update-serializable"
	StrongSessionReadUncommitted  ConsistencyModel = "strong-session-read-uncommitted"
	StrongSessionReadCommitted    ConsistencyModel = "strong-session-read-committed"
	StrongReadUncommitted          ConsistencyModel = "strong-read-uncommitted"
	StrongReadCommitted            ConsistencyModel = "strong-read-committed"
)

// CheckOption configures a single analysis run.
type CheckOption struct {
	ConsistencyModels []ConsistencyModel `json:":consistency-models"`
	Directory         string             `json:":directory"`
	Anomalies         []string           `json:":anomalies,omitempty"`
}

// DefaultCheckOption returns the analyzer's default: plain Serializable,
// dumping diagnostics under ./out.
func DefaultCheckOption() CheckOption {
	return CheckOption{
		ConsistencyModels: []ConsistencyModel{Serializable},
		Directory:         "./out",
	}
}

// CheckResult is the analyzer's verdict for one run.
type CheckResult struct {
	Valid        ValidType       `json:":valid?"`
	AnomalyTypes []string        `json:":anomaly-types,omitempty"`
	Anomalies    json.RawMessage `json:":anomalies,omitempty"`
	Not          []string        `json:":not,omitempty"`
	AlsoNot      []string        `json:":also-not,omitempty"`
}

// Checker analyzes a completed history for consistency anomalies.
type Checker interface {
	Check(ctx context.Context, h *history.History, opt CheckOption) (CheckResult, error)
}

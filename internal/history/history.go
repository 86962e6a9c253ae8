// Package history is the append-only record of operation invocations and
// their outcomes.
//
// A History is exclusively owned by a single Global context (see
// internal/global) for the lifetime of one run. It exposes exactly two
// mutating operations, push_invoke and push_close, both of which mint a
// timestamp from a monotonic clock under the history's lock. Entries are
// never removed or reordered.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"jepsengo/internal/op"
)

// Type is the history-entry discriminant. Values match the wire tags
// expected by the checker bridge.
type Type string

const (
	Invoke Type = ":invoke"
	Ok     Type = ":ok"
	Fail   Type = ":fail"
	Info   Type = ":info"
)

// ErrNotOpen is returned by PushClose when there is no open invocation for
// the given process.
var ErrNotOpen = errors.New("history: no open invocation for process")

// ErrKindErrorMismatch is returned when Ok is closed with a non-nil error,
// or Fail/Info is closed with a nil error.
var ErrKindErrorMismatch = errors.New("history: ok must close without an error, fail/info must close with one")

// Entry is a single history record.
type Entry struct {
	Index   uint64
	Type    Type
	F       op.Kind
	Value   op.Op
	Time    time.Duration
	Process uint64
	Error   []string // nil iff Type is Invoke or Ok
}

type wireEntry struct {
	Index   uint64   `json:":index"`
	Type    Type     `json:":type"`
	F       op.Kind  `json:":f"`
	Value   op.Op    `json:":value"`
	Time    int64    `json:":time"`
	Process uint64   `json:":process"`
	Error   []string `json:":error,omitempty"`
}

// MarshalJSON renders the entry in the checker's keyword-field wire schema.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEntry{
		Index:   e.Index,
		Type:    e.Type,
		F:       e.F,
		Value:   e.Value,
		Time:    e.Time.Nanoseconds(),
		Process: e.Process,
		Error:   e.Error,
	})
}

// UnmarshalJSON parses the checker's wire schema for a history entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("history: unmarshal entry: %w", err)
	}
	e.Index = w.Index
	e.Type = w.Type
	e.F = w.F
	e.Value = w.Value
	e.Time = time.Duration(w.Time)
	e.Process = w.Process
	e.Error = w.Error
	return nil
}

// History is the append-only, exclusive-ownership history list.
type History struct {
	mu        sync.Mutex
	start     time.Time
	now       func() time.Time
	entries   []Entry
	openAt    map[uint64]int // process -> index of its open Invoke
}

// New creates an empty History whose timestamps are measured from start.
// now defaults to time.Now if nil (tests may supply a deterministic clock).
func New(start time.Time, now func() time.Time) *History {
	if now == nil {
		now = time.Now
	}
	return &History{
		start:  start,
		now:    now,
		openAt: make(map[uint64]int),
	}
}

// PushInvoke appends an Invoke entry for process and returns its index.
// value must satisfy op.IsInvocationShape(); this is the caller's
// responsibility (the worker constructs invocation-shaped ops).
func (h *History) PushInvoke(process uint64, value op.Op) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := uint64(len(h.entries))
	h.entries = append(h.entries, Entry{
		Index:   idx,
		Type:    Invoke,
		F:       value.Kind(),
		Value:   value,
		Time:    h.now().Sub(h.start),
		Process: process,
	})
	h.openAt[process] = int(idx)
	return idx
}

// PushClose appends a closing entry (Ok, Fail, or Info) for process,
// pairing it with that process's most recent open Invoke. It returns
// ErrNotOpen if process has no open invocation, and ErrKindErrorMismatch
// if the kind/error-presence invariant is violated.
func (h *History) PushClose(process uint64, kind Type, value op.Op, errPayload []string) (uint64, error) {
	if kind == Invoke {
		return 0, fmt.Errorf("history: PushClose called with kind Invoke")
	}
	if (kind == Ok) != (errPayload == nil) {
		return 0, ErrKindErrorMismatch
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, open := h.openAt[process]; !open {
		return 0, ErrNotOpen
	}
	delete(h.openAt, process)

	idx := uint64(len(h.entries))
	h.entries = append(h.entries, Entry{
		Index:   idx,
		Type:    kind,
		F:       value.Kind(),
		Value:   value,
		Time:    h.now().Sub(h.start),
		Process: process,
		Error:   errPayload,
	})
	return idx, nil
}

// Entries returns a snapshot copy of the history list.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries recorded so far.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// OpenProcesses returns the set of processes with an outstanding,
// unclosed Invoke. Used by the orchestrator to detect a shutdown that
// would otherwise leave an invocation unpaired.
func (h *History) OpenProcesses() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]uint64, 0, len(h.openAt))
	for p := range h.openAt {
		out = append(out, p)
	}
	return out
}

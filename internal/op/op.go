// Package op defines the operation value type shared by the generator,
// the dispatcher, and the history it appends to.
//
// An Op is immutable once constructed: transforming an Op (for example,
// attaching an observed value to a Read) always produces a new Op.
package op

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates the operation variants. Values match the wire tags
// used by the checker bridge (see internal/checker).
type Kind string

const (
	KindRead  Kind = ":r"
	KindWrite Kind = ":w"
	KindTxn   Kind = ":txn"
)

// ErrNestedTxn is returned by Txn when given a child that is itself a Txn.
var ErrNestedTxn = errors.New("op: txn children must not contain a txn")

// Op is a tagged union over Read, Write, and Txn.
//
// Read(key, value): value is nil when the Op represents an invocation and
// populated (or left nil to mean "observed absence") on a result.
// Write(key, value): value is always populated.
// Txn(children): an ordered sequence of Read/Write children; never nested.
type Op struct {
	kind     Kind
	key      uint64
	value    *uint64
	children []Op
}

// Read constructs a Read op. Pass a nil value for an invocation record or
// an observed-absence result; pass a non-nil value for an observed result.
func Read(key uint64, value *uint64) Op {
	return Op{kind: KindRead, key: key, value: value}
}

// Write constructs a Write op. value is carried identically at invocation
// and at its OK result.
func Write(key, value uint64) Op {
	v := value
	return Op{kind: KindWrite, key: key, value: &v}
}

// Txn constructs a transaction over children, which must each be Read or
// Write. Txn returns ErrNestedTxn if any child is itself a Txn.
func Txn(children ...Op) (Op, error) {
	for _, c := range children {
		if c.kind == KindTxn {
			return Op{}, ErrNestedTxn
		}
	}
	cp := make([]Op, len(children))
	copy(cp, children)
	return Op{kind: KindTxn, children: cp}, nil
}

// Kind reports the operation's discriminant.
func (o Op) Kind() Kind { return o.kind }

// Key returns the key for Read and Write ops. It panics for Txn.
func (o Op) Key() uint64 {
	if o.kind == KindTxn {
		panic("op: Key called on a Txn")
	}
	return o.key
}

// Value returns the value pointer for Read and Write ops (nil for an
// unresolved Read). It panics for Txn.
func (o Op) Value() *uint64 {
	if o.kind == KindTxn {
		panic("op: Value called on a Txn")
	}
	return o.value
}

// Children returns the ordered children of a Txn. It panics for Read/Write.
func (o Op) Children() []Op {
	if o.kind != KindTxn {
		panic("op: Children called on a non-Txn op")
	}
	return o.children
}

// WithValue returns a copy of a Read or Write op with value replaced. Used
// by the worker to attach an observed value to a result op.
func (o Op) WithValue(value *uint64) Op {
	if o.kind == KindTxn {
		panic("op: WithValue called on a Txn")
	}
	o.value = value
	return o
}

// IsInvocationShape reports whether o is valid as an Invoke-record value:
// a Read must carry a nil value; a Write must carry a non-nil value; a
// Txn's children must each satisfy the same rule.
func (o Op) IsInvocationShape() bool {
	switch o.kind {
	case KindRead:
		return o.value == nil
	case KindWrite:
		return o.value != nil
	case KindTxn:
		for _, c := range o.children {
			if !c.IsInvocationShape() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Equal reports whether two ops are structurally identical.
func (o Op) Equal(other Op) bool {
	if o.kind != other.kind {
		return false
	}
	switch o.kind {
	case KindRead:
		if o.key != other.key {
			return false
		}
		return ptrEqual(o.value, other.value)
	case KindWrite:
		return o.key == other.key && ptrEqual(o.value, other.value)
	case KindTxn:
		if len(o.children) != len(other.children) {
			return false
		}
		for i := range o.children {
			if !o.children[i].Equal(other.children[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func ptrEqual(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// MarshalJSON renders the op in the checker's wire schema:
//
//	Read  -> [":r", key, value|null]
//	Write -> [":w", key, value]
//	Txn   -> [[child], [child], ...]
func (o Op) MarshalJSON() ([]byte, error) {
	switch o.kind {
	case KindRead, KindWrite:
		var val any
		if o.value != nil {
			val = *o.value
		}
		return json.Marshal([]any{o.kind, o.key, val})
	case KindTxn:
		return json.Marshal(o.children)
	default:
		return nil, fmt.Errorf("op: marshal: unknown kind %q", o.kind)
	}
}

// UnmarshalJSON parses the checker's wire schema for an op (see MarshalJSON).
func (o *Op) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("op: unmarshal: %w", err)
	}
	if len(raw) == 0 {
		*o = Op{kind: KindTxn}
		return nil
	}

	var tag string
	if err := json.Unmarshal(raw[0], &tag); err != nil {
		// First element isn't a string tag: this is a Txn of children.
		children := make([]Op, len(raw))
		for i, r := range raw {
			if err := json.Unmarshal(r, &children[i]); err != nil {
				return fmt.Errorf("op: unmarshal txn child %d: %w", i, err)
			}
		}
		*o = Op{kind: KindTxn, children: children}
		return nil
	}

	switch Kind(tag) {
	case KindRead:
		if len(raw) != 3 {
			return fmt.Errorf("op: unmarshal: read op needs 3 elements, got %d", len(raw))
		}
		var key uint64
		if err := json.Unmarshal(raw[1], &key); err != nil {
			return fmt.Errorf("op: unmarshal read key: %w", err)
		}
		var value *uint64
		var rawVal any
		if err := json.Unmarshal(raw[2], &rawVal); err != nil {
			return fmt.Errorf("op: unmarshal read value: %w", err)
		}
		if rawVal != nil {
			var v uint64
			if err := json.Unmarshal(raw[2], &v); err != nil {
				return fmt.Errorf("op: unmarshal read value: %w", err)
			}
			value = &v
		}
		*o = Op{kind: KindRead, key: key, value: value}
		return nil
	case KindWrite:
		if len(raw) != 3 {
			return fmt.Errorf("op: unmarshal: write op needs 3 elements, got %d", len(raw))
		}
		var key, value uint64
		if err := json.Unmarshal(raw[1], &key); err != nil {
			return fmt.Errorf("op: unmarshal write key: %w", err)
		}
		if err := json.Unmarshal(raw[2], &value); err != nil {
			return fmt.Errorf("op: unmarshal write value: %w", err)
		}
		*o = Op{kind: KindWrite, key: key, value: &value}
		return nil
	default:
		return fmt.Errorf("op: unmarshal: unknown op tag %q", tag)
	}
}

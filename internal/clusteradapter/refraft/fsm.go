// Package refraft is the reference cluster-under-test: a multi-node
// hashicorp/raft register, all in one process, connected over raft's
// in-memory transport. It exists so the harness has something to point
// at without a real deployment, and so the nemesis calculator's partition
// math has real links to clog.
package refraft

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// registerFSM applies committed writes to an in-memory key/value map. Get
// reads bypass the log entirely: a caller that wants a linearizable read
// must route it through the leader, same as a write.
type registerFSM struct {
	mu    sync.RWMutex
	store map[uint64]uint64
}

func newRegisterFSM() *registerFSM {
	return &registerFSM{store: make(map[uint64]uint64)}
}

// encodeCommand packs a put command into raft.Apply's log payload: two
// fixed-width uint64s, key then value.
func encodeCommand(key, value uint64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], key)
	binary.BigEndian.PutUint64(buf[8:], value)
	return buf
}

func decodeCommand(data []byte) (key, value uint64, err error) {
	if len(data) != 16 {
		return 0, 0, fmt.Errorf("refraft: command must be 16 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint64(data[:8]), binary.BigEndian.Uint64(data[8:]), nil
}

// Apply decodes and applies one committed log entry.
func (f *registerFSM) Apply(l *raft.Log) any {
	key, value, err := decodeCommand(l.Data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.store[key] = value
	f.mu.Unlock()
	return nil
}

// Get performs a local, non-consensus read of key.
func (f *registerFSM) Get(key uint64) (*uint64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.store[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

type fsmSnapshot struct {
	entries map[uint64]uint64
}

func (f *registerFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cp := make(map[uint64]uint64, len(f.store))
	for k, v := range f.store {
		cp[k] = v
	}
	return &fsmSnapshot{entries: cp}, nil
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.entries); err != nil {
		_ = sink.Cancel()
		return fmt.Errorf("refraft: encode snapshot: %w", err)
	}
	if _, err := sink.Write(buf.Bytes()); err != nil {
		_ = sink.Cancel()
		return fmt.Errorf("refraft: write snapshot: %w", err)
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}

func (f *registerFSM) Restore(rc io.ReadCloser) error {
	defer func() { _ = rc.Close() }()
	var entries map[uint64]uint64
	if err := gob.NewDecoder(rc).Decode(&entries); err != nil {
		return fmt.Errorf("refraft: decode snapshot: %w", err)
	}
	f.mu.Lock()
	f.store = entries
	f.mu.Unlock()
	return nil
}

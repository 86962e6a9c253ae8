package checker

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jepsengo/internal/history"
	"jepsengo/internal/op"
)

func TestValidTypeMarshalJSON(t *testing.T) {
	cases := []struct {
		v    ValidType
		want string
	}{
		{ValidTrue, "true"},
		{ValidFalse, "false"},
		{ValidUnknown, `"unknown"`},
	}
	for _, c := range cases {
		got, err := json.Marshal(c.v)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", c.v, err)
		}
		if string(got) != c.want {
			t.Errorf("Marshal(%v) = %s, want %s", c.v, got, c.want)
		}
	}
}

func TestValidTypeUnmarshalJSON(t *testing.T) {
	var v ValidType
	if err := json.Unmarshal([]byte("true"), &v); err != nil || v != ValidTrue {
		t.Errorf("unmarshal true: v=%v err=%v", v, err)
	}
	if err := json.Unmarshal([]byte("false"), &v); err != nil || v != ValidFalse {
		t.Errorf("unmarshal false: v=%v err=%v", v, err)
	}
	if err := json.Unmarshal([]byte(`"unknown"`), &v); err != nil || v != ValidUnknown {
		t.Errorf("unmarshal unknown: v=%v err=%v", v, err)
	}
	if err := json.Unmarshal([]byte(`"bogus"`), &v); err == nil {
		t.Error("expected error for unrecognized string value")
	}
}

func TestCheckOptionWireKeys(t *testing.T) {
	opt := DefaultCheckOption()
	raw, err := json.Marshal(opt)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{":consistency-models", ":directory"} {
		if _, ok := asMap[key]; !ok {
			t.Errorf("expected key %q in %v", key, asMap)
		}
	}
}

func TestDumpInvariantViolationWritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	h := history.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	h.PushInvoke(0, op.Write(1, 1))
	_, _ = h.PushClose(0, history.Ok, op.Write(1, 1), nil)

	cause := errors.New("process count drifted mid-run")
	if err := DumpInvariantViolation(dir, cause, h); err != nil {
		t.Fatalf("DumpInvariantViolation: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "invariant-violation-history.json.zst")); err != nil {
		t.Errorf("expected history dump: %v", err)
	}
	notePath := filepath.Join(dir, "invariant-violation.txt")
	note, err := os.ReadFile(notePath)
	if err != nil {
		t.Fatalf("ReadFile note: %v", err)
	}
	if string(note) != cause.Error()+"\n" {
		t.Errorf("note = %q, want %q", note, cause.Error()+"\n")
	}
}

package op

import (
	"encoding/json"
	"testing"
)

func u64(v uint64) *uint64 { return &v }

func TestMarshalUnmarshal(t *testing.T) {
	txn, err := Txn(Write(6, 1), Read(8, nil))
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}

	cases := []struct {
		name string
		op   Op
		want string
	}{
		{"write", Write(6, 1), `["w",6,1]`},
		{"read-unresolved", Read(8, nil), `["r",8,null]`},
		{"read-resolved", Read(8, u64(3)), `["r",8,3]`},
		{"txn", txn, `[["w",6,1],["r",8,null]]`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := json.Marshal(c.op)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			// want uses bare tags above for readability; translate to the
			// colon-keyword wire form before comparing.
			want := wireForm(c.want)
			if string(got) != want {
				t.Errorf("Marshal: got %s, want %s", got, want)
			}

			var back Op
			if err := json.Unmarshal(got, &back); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !back.Equal(c.op) {
				t.Errorf("roundtrip mismatch: got %+v, want %+v", back, c.op)
			}
		})
	}
}

func wireForm(s string) string {
	out := []byte{}
	for i := 0; i < len(s); i++ {
		if s[i] == '"' && i+1 < len(s) && (s[i+1] == 'w' || s[i+1] == 'r') {
			out = append(out, '"', ':')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func TestTxnRejectsNesting(t *testing.T) {
	inner, _ := Txn(Write(1, 1))
	if _, err := Txn(inner); err != ErrNestedTxn {
		t.Fatalf("expected ErrNestedTxn, got %v", err)
	}
}

func TestIsInvocationShape(t *testing.T) {
	if !Read(1, nil).IsInvocationShape() {
		t.Error("Read(nil) should be a valid invocation shape")
	}
	if Read(1, u64(2)).IsInvocationShape() {
		t.Error("Read(value) should not be a valid invocation shape")
	}
	if !Write(1, 2).IsInvocationShape() {
		t.Error("Write should always be a valid invocation shape")
	}
	txn, _ := Txn(Write(1, 1), Read(2, nil))
	if !txn.IsInvocationShape() {
		t.Error("Txn of valid invocation-shape children should be valid")
	}
	bad, _ := Txn(Read(2, u64(9)))
	if bad.IsInvocationShape() {
		t.Error("Txn with a resolved Read child should not be a valid invocation shape")
	}
}

func TestOpsSerde(t *testing.T) {
	txn1, _ := Txn(Write(6, 1), Write(8, 1))
	txn2, _ := Txn(Write(9, 1), Read(8, nil))
	ops := []Op{txn1, txn2}

	got, err := json.Marshal(ops)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[[["w",6,1],["w",8,1]],[["w",9,1],["r",8,null]]]`
	want = wireForm(want)
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}

	var back []Op
	if err := json.Unmarshal(got, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for i := range ops {
		if !back[i].Equal(ops[i]) {
			t.Errorf("index %d: got %+v, want %+v", i, back[i], ops[i])
		}
	}
}

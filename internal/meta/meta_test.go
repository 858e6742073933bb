package meta

import "testing"

func TestDigestOfIsStableAndDistinct(t *testing.T) {
	d1 := DigestOf("alice", "fix the bug\n")
	d2 := DigestOf("alice", "fix the bug\n")
	if d1 != d2 {
		t.Fatalf("DigestOf not stable: %v != %v", d1, d2)
	}
	d3 := DigestOf("bob", "fix the bug\n")
	if d1 == d3 {
		t.Fatalf("DigestOf collided across different authors")
	}
}

func TestValidateRejectsSharedSymbolRoot(t *testing.T) {
	r := &CVSRevision{ID: 1, BranchRoots: []SymbolID{5}, TagRoots: []SymbolID{5}}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error when a symbol is both branch-root and tag-root")
	}
}

func TestOperationString(t *testing.T) {
	cases := map[Operation]string{
		OpAdd:    "add",
		OpChange: "change",
		OpDelete: "delete",
		OpNoop:   "noop",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("Operation(%d).String() = %q, want %q", op, got, want)
		}
	}
}

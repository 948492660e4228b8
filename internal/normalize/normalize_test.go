package normalize

import "testing"

func TestPairKeyOrderIndependent(t *testing.T) {
	if PairKey("bob", "alice") != PairKey("alice", "bob") {
		t.Fatalf("expected the same key regardless of argument order")
	}
	if PairKey("alice", "bob") != "alice|bob" {
		t.Fatalf("unexpected key: %s", PairKey("alice", "bob"))
	}
}

func TestPairTrimsWhitespace(t *testing.T) {
	lo, hi := Pair(" bob ", "alice")
	if lo != "alice" || hi != "bob" {
		t.Fatalf("got (%q, %q)", lo, hi)
	}
}

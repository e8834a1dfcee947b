package opcodes

import "testing"

func TestLookupRoundTrip(t *testing.T) {
	for op := ExecuteAs; op <= RunFunc; op++ {
		name := op.String()
		got, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) not found for opcode %d", name, op)
		}
		if got != op {
			t.Errorf("Lookup(%q) = %d, want %d", name, got, op)
		}
	}
}

func TestConsecutiveAssignment(t *testing.T) {
	// The corrected format version 4 enumeration must not collide; the
	// historical version 3 reused value 12 for both setblock and
	// list_scores (see disassembler output in original_source).
	if Setblock == ListScores {
		t.Fatal("Setblock and ListScores must not collide in the corrected enumeration")
	}
}

func TestUnknownOpcode(t *testing.T) {
	var op Opcode = 200
	if op.Known() {
		t.Fatal("opcode 200 should not be known")
	}
	if op.String() != "UNKNOWN(200)" {
		t.Errorf("unexpected string for unknown opcode: %s", op.String())
	}
}

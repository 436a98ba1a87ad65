package capfile

import "testing"

func TestParseRefLocationCompact(t *testing.T) {
	data := mustHex(t, "09000700020102000103")
	rl, err := parseRefLocation(data, false)
	if err != nil {
		t.Fatalf("parseRefLocation: %v", err)
	}
	if len(rl.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(rl.Blocks))
	}
	b := rl.Blocks[0]
	if len(b.ByteIndexOffsets) != 2 || b.ByteIndexOffsets[0] != 1 || b.ByteIndexOffsets[1] != 2 {
		t.Errorf("byte index offsets = %v, want [1 2]", b.ByteIndexOffsets)
	}
	if len(b.ByteIndex2Offsets) != 1 || b.ByteIndex2Offsets[0] != 3 {
		t.Errorf("byte index2 offsets = %v, want [3]", b.ByteIndex2Offsets)
	}
}

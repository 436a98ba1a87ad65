package bertlv

import (
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestParseSimplePrimitive(t *testing.T) {
	data := mustHex(t, "4F07A0000000030000")
	nodes, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("want 1 node, got %d", len(nodes))
	}
	if nodes[0].Tag != "4F" {
		t.Errorf("tag = %s, want 4F", nodes[0].Tag)
	}
	if hex.EncodeToString(nodes[0].Value) != "a0000000030000" {
		t.Errorf("value = %x", nodes[0].Value)
	}
}

func TestParseConstructedAndFindAll(t *testing.T) {
	// E3 0D [ 4F 07 A0000000030000 9F70 01 07 ]
	data := mustHex(t, "E30D4F07A00000000300009F700107")
	nodes, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(nodes) != 1 || !nodes[0].Constructed {
		t.Fatalf("expected one constructed E3 node, got %+v", nodes)
	}

	lifecycles := FindAll(nodes, []string{"E3", "9F70"})
	if len(lifecycles) != 1 || lifecycles[0][0] != 0x07 {
		t.Fatalf("life-cycle tag not found via path, got %x", lifecycles)
	}

	aids := FindAll(nodes, []string{"E3", "4F"})
	if len(aids) != 1 || hex.EncodeToString(aids[0]) != "a0000000030000" {
		t.Fatalf("aid tag not found via path, got %x", aids)
	}
}

func TestParseMultiByteTag(t *testing.T) {
	// Tag 0x9F70 = first byte 0x9F (low 5 bits = 0x1F -> continuation), second byte 0x70 (high bit clear -> last byte)
	data := mustHex(t, "9F700107")
	nodes, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if nodes[0].Tag != "9F70" {
		t.Errorf("tag = %s, want 9F70", nodes[0].Tag)
	}
}

func TestParseLongFormLength(t *testing.T) {
	value := make([]byte, 200)
	for i := range value {
		value[i] = byte(i)
	}
	data := append(mustHex(t, "5F2081C8"), value...) // tag 5F20, length 0x81 0xC8 = 200
	nodes, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(nodes[0].Value) != 200 {
		t.Fatalf("value len = %d, want 200", len(nodes[0].Value))
	}
}

func TestParseTruncatedValue(t *testing.T) {
	data := mustHex(t, "4F08A000") // declares length 8 but only provides 2 bytes
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for truncated value")
	}
}

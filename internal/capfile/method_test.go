package capfile

import (
	"encoding/hex"
	"testing"
)

func TestParseMethodCompact(t *testing.T) {
	data := mustHex(t, "07000500deadbeef")
	m, err := parseMethod(data, false)
	if err != nil {
		t.Fatalf("parseMethod: %v", err)
	}
	if len(m.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(m.Blocks))
	}
	b := m.Blocks[0]
	if b.HandlerCount != 0 || len(b.Handlers) != 0 {
		t.Errorf("handler count = %d, want 0", b.HandlerCount)
	}
	if hex.EncodeToString(b.Bytecode) != "deadbeef" {
		t.Errorf("bytecode = %x, want deadbeef", b.Bytecode)
	}
}

func TestParseMethodWithHandler(t *testing.T) {
	// handler_count=1, exception_handler_info{start=0x0010, stop_bit=1, active_length=0x2020,
	// handler_offset=0x0030, catch_type_index=0x0002}, then 2 bytes of bytecode.
	data := []byte{0x07, 0x00, 0x0B, 0x01, 0x00, 0x10, 0xA0, 0x20, 0x00, 0x30, 0x00, 0x02, 0x12, 0x34}
	m, err := parseMethod(data, false)
	if err != nil {
		t.Fatalf("parseMethod: %v", err)
	}
	b := m.Blocks[0]
	if b.HandlerCount != 1 || len(b.Handlers) != 1 {
		t.Fatalf("handler count = %d, entries = %d, want 1/1", b.HandlerCount, len(b.Handlers))
	}
	h := b.Handlers[0]
	if h.StartOffset != 0x0010 {
		t.Errorf("start offset = %#x, want 0x10", h.StartOffset)
	}
	if !h.StopBit {
		t.Errorf("expected stop bit set")
	}
	if h.ActiveLength != 0x2020 {
		t.Errorf("active length = %#x, want 0x2020", h.ActiveLength)
	}
	if h.HandlerOffset != 0x0030 {
		t.Errorf("handler offset = %#x, want 0x30", h.HandlerOffset)
	}
	if h.CatchTypeIndex != 0x0002 {
		t.Errorf("catch type index = %#x, want 2", h.CatchTypeIndex)
	}
	if len(b.Bytecode) != 2 {
		t.Errorf("bytecode length = %d, want 2", len(b.Bytecode))
	}
}

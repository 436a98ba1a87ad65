package capfile

import "testing"

func TestParseExport(t *testing.T) {
	data := mustHex(t, "0a000b0100040102001000200030")
	e, err := parseExport(data, false)
	if err != nil {
		t.Fatalf("parseExport: %v", err)
	}
	if e.ClassCount != 1 || len(e.Classes) != 1 {
		t.Fatalf("class count = %d, entries = %d, want 1/1", e.ClassCount, len(e.Classes))
	}
	ce := e.Classes[0]
	if ce.ClassOffset != 0x0004 {
		t.Errorf("class offset = %#x, want 4", ce.ClassOffset)
	}
	if len(ce.StaticFieldOffsets) != 1 || ce.StaticFieldOffsets[0] != 0x0010 {
		t.Errorf("static field offsets = %v, want [0x10]", ce.StaticFieldOffsets)
	}
	if len(ce.StaticMethodOffsets) != 2 || ce.StaticMethodOffsets[0] != 0x0020 || ce.StaticMethodOffsets[1] != 0x0030 {
		t.Errorf("static method offsets = %v, want [0x20 0x30]", ce.StaticMethodOffsets)
	}
}

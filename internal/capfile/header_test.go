package capfile

import (
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	return b
}

func TestParseHeaderCompact(t *testing.T) {
	data := mustHex(t, "01000fdecaffed020200000105a000000003")
	h, err := parseHeader(data)
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	if h.CapFormatMinor != 2 || h.CapFormatMajor != 2 {
		t.Errorf("format = %d.%d, want 2.2", h.CapFormatMajor, h.CapFormatMinor)
	}
	if h.Flags&HeaderFlagExtended != 0 {
		t.Errorf("expected non-extended header")
	}
	if hex.EncodeToString(h.Package.AID) != "a000000003" {
		t.Errorf("package aid = %x", h.Package.AID)
	}
	if h.PackageName != nil {
		t.Errorf("expected no package name, got %x", h.PackageName)
	}
}

func TestParseHeaderBadMagic(t *testing.T) {
	data := mustHex(t, "0100050102030405")
	if _, err := parseHeader(data); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

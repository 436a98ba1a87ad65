package capfile

import (
	"encoding/hex"
	"testing"
)

func TestParseAppletCompact(t *testing.T) {
	data := mustHex(t, "0300090105a0000001510010")
	a, err := parseApplet(data, false)
	if err != nil {
		t.Fatalf("parseApplet: %v", err)
	}
	if a.Count != 1 || len(a.Applets) != 1 {
		t.Fatalf("count = %d, entries = %d, want 1/1", a.Count, len(a.Applets))
	}
	ap := a.Applets[0]
	if hex.EncodeToString(ap.AID) != "a000000151" {
		t.Errorf("aid = %x", ap.AID)
	}
	if ap.InstallMethodOffset != 0x0010 {
		t.Errorf("install method offset = %#x, want 0x10", ap.InstallMethodOffset)
	}
}

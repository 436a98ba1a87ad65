package capfile

import (
	"encoding/hex"
	"testing"
)

func TestParseImport(t *testing.T) {
	data := mustHex(t, "04000901000105a000000151")
	im, err := parseImport(data)
	if err != nil {
		t.Fatalf("parseImport: %v", err)
	}
	if im.Count != 1 || len(im.Packages) != 1 {
		t.Fatalf("count = %d, entries = %d, want 1/1", im.Count, len(im.Packages))
	}
	p := im.Packages[0]
	if p.MinorVersion != 0 || p.MajorVersion != 1 {
		t.Errorf("version = %d.%d, want 1.0", p.MajorVersion, p.MinorVersion)
	}
	if hex.EncodeToString(p.AID) != "a000000151" {
		t.Errorf("aid = %x", p.AID)
	}
}

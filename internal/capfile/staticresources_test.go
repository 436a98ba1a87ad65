package capfile

import (
	"encoding/hex"
	"testing"
)

func TestParseStaticResources(t *testing.T) {
	data := mustHex(t, "0d0000000e0001000000000000000401020304")
	sr, err := parseStaticResources(data)
	if err != nil {
		t.Fatalf("parseStaticResources: %v", err)
	}
	if sr.Count != 1 || len(sr.Directory) != 1 {
		t.Fatalf("count = %d, entries = %d, want 1/1", sr.Count, len(sr.Directory))
	}
	if sr.Directory[0].Offset != 0 || sr.Directory[0].Size != 4 {
		t.Errorf("directory entry = %+v, want offset 0 size 4", sr.Directory[0])
	}
	if hex.EncodeToString(sr.Data) != "01020304" {
		t.Errorf("data = %x", sr.Data)
	}
}

package capfile

import (
	"encoding/hex"
	"testing"
)

func TestParseStaticField(t *testing.T) {
	data := mustHex(t, "08001300200002000103000301020300050003aabbcc")
	s, err := parseStaticField(data)
	if err != nil {
		t.Fatalf("parseStaticField: %v", err)
	}
	if s.ImageSize != 0x0020 {
		t.Errorf("image size = %#x, want 0x20", s.ImageSize)
	}
	if s.ReferenceCount != 2 {
		t.Errorf("reference count = %d, want 2", s.ReferenceCount)
	}
	if len(s.ArrayInit) != 1 {
		t.Fatalf("array init entries = %d, want 1", len(s.ArrayInit))
	}
	ai := s.ArrayInit[0]
	if ai.Type != ArrayTypeByte || ai.Count != 3 {
		t.Errorf("array init = type %d count %d, want byte/3", ai.Type, ai.Count)
	}
	if hex.EncodeToString(ai.Values) != "010203" {
		t.Errorf("array init values = %x", ai.Values)
	}
	if s.DefaultValueCount != 5 || s.NonDefaultValueCount != 3 {
		t.Errorf("default/non-default counts = %d/%d, want 5/3", s.DefaultValueCount, s.NonDefaultValueCount)
	}
	if hex.EncodeToString(s.NonDefaultValues) != "aabbcc" {
		t.Errorf("non-default values = %x", s.NonDefaultValues)
	}
}

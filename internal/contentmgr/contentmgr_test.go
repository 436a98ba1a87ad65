package contentmgr

import "testing"

func TestDecodeHexAIDEmpty(t *testing.T) {
	b, err := decodeHexAID("enc key", "")
	if err != nil {
		t.Fatalf("decodeHexAID: %v", err)
	}
	if b != nil {
		t.Errorf("decoded = %x, want nil", b)
	}
}

func TestDecodeHexAIDStripsSpaces(t *testing.T) {
	b, err := decodeHexAID("sd_aid", "A0 00 00 01 51 00 00 00")
	if err != nil {
		t.Fatalf("decodeHexAID: %v", err)
	}
	want := []byte{0xA0, 0x00, 0x00, 0x01, 0x51, 0x00, 0x00, 0x00}
	if len(b) != len(want) {
		t.Fatalf("decoded = %x, want %x", b, want)
	}
	for i := range want {
		if b[i] != want[i] {
			t.Errorf("decoded = %x, want %x", b, want)
			break
		}
	}
}

func TestDecodeHexAIDInvalid(t *testing.T) {
	if _, err := decodeHexAID("package_aid", "zz"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}

func TestSecurityLevelFromString(t *testing.T) {
	cases := map[string]byte{
		"":          1,
		"mac":       1,
		"c-mac":     1,
		"mac+enc":   3,
		"cmac+cenc": 3,
	}
	for s, want := range cases {
		got, err := securityLevelFromString(s)
		if err != nil {
			t.Fatalf("securityLevelFromString(%q): %v", s, err)
		}
		if byte(got) != want {
			t.Errorf("securityLevelFromString(%q) = %#x, want %#x", s, byte(got), want)
		}
	}
}

func TestSecurityLevelFromStringUnknown(t *testing.T) {
	if _, err := securityLevelFromString("bogus"); err == nil {
		t.Fatalf("expected error for unknown security level")
	}
}

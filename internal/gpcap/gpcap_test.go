package gpcap

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

func TestParseSCPAndIParamBothProtocols(t *testing.T) {
	// 66 { 73 { 64 { 06 len <oid bytes ending 02 02> 06 len <oid bytes ending 03 30> } } }
	oidSCP02 := mustHex(t, "06082a864886fc6b0202")  // ends 02 02
	oidSCP03 := mustHex(t, "06082a864886fc6b0330") // ends 03 30
	inner := append(append([]byte{}, oidSCP02...), oidSCP03...)
	tag64 := append([]byte{0x64, byte(len(inner))}, inner...)
	tag73 := append([]byte{0x73, byte(len(tag64))}, tag64...)
	crd := append([]byte{0x66, byte(len(tag73))}, tag73...)

	params, err := ParseSCPAndIParam(crd)
	if err != nil {
		t.Fatalf("ParseSCPAndIParam: %v", err)
	}
	if params[ProtocolSCP02] != 0x02 {
		t.Errorf("scp02 iparam = %x, want 02", params[ProtocolSCP02])
	}
	if params[ProtocolSCP03] != 0x30 {
		t.Errorf("scp03 iparam = %x, want 30", params[ProtocolSCP03])
	}
}

func TestParseKeyInfoCompact(t *testing.T) {
	// E0 { C0 { key_id=01 key_version=01 [type=88(AES) len=10] [keytype=88 datalen=00] } }
	entry := mustHex(t, "0101881088" + "00")
	c0 := append([]byte{0xC0, byte(len(entry))}, entry...)
	data := append([]byte{0xE0, byte(len(c0))}, c0...)

	keys, err := ParseKeyInfo(data)
	if err != nil {
		t.Fatalf("ParseKeyInfo: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("keys = %d, want 1", len(keys))
	}
	k := keys[0]
	if k.KeyID != 0x01 || k.KeyVersion != 0x01 {
		t.Errorf("key id/version = %x/%x, want 01/01", k.KeyID, k.KeyVersion)
	}
	if len(k.Components) != 1 || k.Components[0].Type != "AES" || k.Components[0].Length != 0x10 {
		t.Errorf("components = %+v, want one AES/16", k.Components)
	}
}

func TestProtocolString(t *testing.T) {
	if ProtocolSCP02.String() != "SCP02" {
		t.Errorf("SCP02 string = %q", ProtocolSCP02.String())
	}
	if ProtocolSCP03.String() != "SCP03" {
		t.Errorf("SCP03 string = %q", ProtocolSCP03.String())
	}
	if ProtocolNone.String() != "none" {
		t.Errorf("none string = %q", ProtocolNone.String())
	}
}

func TestDetectSCP02Only(t *testing.T) {
	oidSCP02 := mustHex(t, "06082a864886fc6b0215")
	tag64 := append([]byte{0x64, byte(len(oidSCP02))}, oidSCP02...)
	tag73 := append([]byte{0x73, byte(len(tag64))}, tag64...)
	crd := append([]byte{0x66, byte(len(tag73))}, tag73...)

	calls := 0
	tx := func(apdu []byte) ([]byte, byte, byte, error) {
		calls++
		switch {
		case len(apdu) >= 4 && apdu[2] == 0x00 && apdu[3] == 0x66:
			return crd, 0x90, 0x00, nil
		case len(apdu) >= 4 && apdu[2] == 0x00 && apdu[3] == 0xE0:
			return nil, 0x90, 0x00, nil
		}
		t.Fatalf("unexpected apdu: %x", apdu)
		return nil, 0, 0, nil
	}

	caps, err := Detect(tx)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if caps.Protocol != ProtocolSCP02 {
		t.Errorf("protocol = %v, want SCP02", caps.Protocol)
	}
	if caps.IParam != 0x15 {
		t.Errorf("iparam = %x, want 15", caps.IParam)
	}
	if caps.KeyLength != KeyLength2K3DES {
		t.Errorf("key length = %d, want %d", caps.KeyLength, KeyLength2K3DES)
	}
}

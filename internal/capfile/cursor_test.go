package capfile

import "testing"

func TestCursorReads(t *testing.T) {
	c := newCursor([]byte{0x01, 0x02, 0x03, 0xAA, 0xBB, 0xCC, 0xDD, 0x05, 'h', 'e', 'l', 'l', 'o'})

	b, err := c.u8()
	if err != nil || b != 0x01 {
		t.Fatalf("u8 = %v, %v", b, err)
	}
	u16, err := c.u16()
	if err != nil || u16 != 0x0203 {
		t.Fatalf("u16 = %x, %v", u16, err)
	}
	u32, err := c.u32()
	if err != nil || u32 != 0xAABBCCDD {
		t.Fatalf("u32 = %x, %v", u32, err)
	}
	name, err := c.lengthPrefixedBytes()
	if err != nil || string(name) != "hello" {
		t.Fatalf("lengthPrefixedBytes = %q, %v", name, err)
	}
	if !c.atEnd() {
		t.Fatalf("expected atEnd after consuming all bytes")
	}
}

func TestCursorOverrun(t *testing.T) {
	c := newCursor([]byte{0x01})
	if _, err := c.u16(); err == nil {
		t.Fatalf("expected error reading u16 past end of 1-byte buffer")
	}
	c2 := newCursor([]byte{0x05, 'a', 'b'})
	if _, err := c2.lengthPrefixedBytes(); err == nil {
		t.Fatalf("expected error: length prefix claims 5 bytes but only 2 remain")
	}
}

package capfile

import "testing"

func TestParseConstantPool(t *testing.T) {
	data := mustHex(t, "05000a00020100050005810203")
	cp, err := parseConstantPool(data, 2, 3)
	if err != nil {
		t.Fatalf("parseConstantPool: %v", err)
	}
	if cp.Count != 2 || len(cp.Constants) != 2 {
		t.Fatalf("count = %d, entries = %d, want 2/2", cp.Count, len(cp.Constants))
	}

	c0 := cp.Constants[0]
	if c0.Tag != CPTagClassRef {
		t.Fatalf("entry 0 tag = %d, want ClassRef", c0.Tag)
	}
	if c0.Class.External {
		t.Errorf("entry 0: expected internal class ref")
	}
	if c0.Class.InternalOffset != 0x0005 {
		t.Errorf("entry 0: internal offset = %#x, want 5", c0.Class.InternalOffset)
	}

	c1 := cp.Constants[1]
	if c1.Tag != CPTagStaticFieldRef {
		t.Fatalf("entry 1 tag = %d, want StaticFieldRef", c1.Tag)
	}
	if !c1.Static.External {
		t.Errorf("entry 1: expected external static field ref (high bit set)")
	}
	if c1.Static.PackageToken != 0x01 || c1.Static.ClassToken != 0x02 || c1.Static.Token != 0x03 {
		t.Errorf("entry 1: pkg/class/token = %d/%d/%d, want 1/2/3",
			c1.Static.PackageToken, c1.Static.ClassToken, c1.Static.Token)
	}
}

func TestParseConstantPoolUnknownTag(t *testing.T) {
	data := mustHex(t, "0500060001ff000000")
	if _, err := parseConstantPool(data, 2, 2); err == nil {
		t.Fatalf("expected error for unknown constant-pool tag")
	}
}

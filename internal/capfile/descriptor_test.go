package capfile

import "testing"

func TestParseDescriptorFormat22(t *testing.T) {
	data := mustHex(t, "0b001601000100060000010001000100100002010900000004")
	d, err := parseDescriptor(data, false, 2, 2)
	if err != nil {
		t.Fatalf("parseDescriptor: %v", err)
	}
	if d.ClassCount != 1 || len(d.Classes) != 1 {
		t.Fatalf("class count = %d, entries = %d, want 1/1", d.ClassCount, len(d.Classes))
	}
	cd := d.Classes[0]
	if cd.ThisClassRef.InternalOffset != 0x0006 {
		t.Errorf("this class ref offset = %#x, want 6", cd.ThisClassRef.InternalOffset)
	}
	if len(cd.Fields) != 1 || cd.Fields[0].FieldRef != 0x0010 {
		t.Fatalf("fields = %+v", cd.Fields)
	}
	if len(cd.Methods) != 1 || cd.Methods[0].Token != 1 {
		t.Fatalf("methods = %+v", cd.Methods)
	}
	if d.TypeDescriptorPool != nil {
		t.Errorf("format 2.2 archive should not carry a trailing type descriptor pool")
	}
}

package capfile

import "testing"

func TestParseClassFormat21(t *testing.T) {
	data := mustHex(t, "06000a00800104000200000000")
	cls, err := parseClass(data, false, 2, 1)
	if err != nil {
		t.Fatalf("parseClass: %v", err)
	}
	if cls.SignaturePool != nil {
		t.Errorf("format 2.1 archive should not carry a signature pool")
	}
	if len(cls.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(cls.Entries))
	}
	e := cls.Entries[0]
	if e.IsInterface {
		t.Fatalf("expected a class_info entry, got interface_info")
	}
	if !e.SuperClass.External || e.SuperClass.ExternalPackageToken != 0 || e.SuperClass.ExternalClassToken != 1 {
		t.Errorf("super class ref = %+v", e.SuperClass)
	}
	if e.DeclaredInstanceSize != 4 || e.ReferenceCount != 2 {
		t.Errorf("declared instance size/reference count = %d/%d, want 4/2",
			e.DeclaredInstanceSize, e.ReferenceCount)
	}
	if e.Remote != nil {
		t.Errorf("expected no remote interface info")
	}
}

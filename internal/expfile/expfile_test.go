package expfile

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

func TestParseFormat10(t *testing.T) {
	data := mustHex(t, "00facade00010003010003706b670d000001000105a0000001510100074d79436c617373000201000001000300000000000000")
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.MajorVersion != 1 || f.MinorVersion != 0 {
		t.Errorf("version = %d.%d, want 1.0", f.MajorVersion, f.MinorVersion)
	}
	if len(f.ConstantPool) != 3 {
		t.Fatalf("constant pool entries = %d, want 3", len(f.ConstantPool))
	}
	if f.ConstantPool[0].UTF8 != "pkg" {
		t.Errorf("cp[0] utf8 = %q, want pkg", f.ConstantPool[0].UTF8)
	}
	pkg, err := f.Package()
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if hex.EncodeToString(pkg.PackageAID) != "a000000151" {
		t.Errorf("package aid = %x", pkg.PackageAID)
	}
	if f.ReferencedPackages != nil {
		t.Errorf("format 1.0 should not carry referenced_packages")
	}
	if len(f.Classes) != 1 {
		t.Fatalf("classes = %d, want 1", len(f.Classes))
	}
	ci := f.Classes[0]
	name, err := f.UTF8At(ci.NameIndex)
	if err != nil {
		t.Fatalf("UTF8At: %v", err)
	}
	if name != "MyClass" {
		t.Errorf("class name = %q, want MyClass", name)
	}
	mods := AccessModifiers(ci.AccessFlags)
	if len(mods) != 1 || mods[0] != "Public" {
		t.Errorf("access modifiers = %v, want [Public]", mods)
	}
	if ci.HasCAP22InheritablePublicMethodTokenCount() {
		t.Errorf("format 1.0 class_info should not carry the format-2.3 trailing field")
	}
}

func TestParseBadMagic(t *testing.T) {
	data := mustHex(t, "deadbeef0001")
	if _, err := Parse(data); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestUTF8AtOutOfRange(t *testing.T) {
	f := &File{ConstantPool: []CPEntry{{Tag: CPTagUTF8, UTF8: "x"}}}
	if _, err := f.UTF8At(5); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, err := f.UTF8At(0); err == nil {
		t.Fatalf("expected out-of-range error for index 0")
	}
}

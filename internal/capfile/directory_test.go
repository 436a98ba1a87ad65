package capfile

import "testing"

func TestParseDirectoryCompact(t *testing.T) {
	data := mustHex(t, "02002500120000000000060000000000000000000000000000000000000000001000000000010100")
	d, err := parseDirectory(data, false)
	if err != nil {
		t.Fatalf("parseDirectory: %v", err)
	}
	if d.Sizes.Header != 0x0012 {
		t.Errorf("Header size = %#x, want 0x12", d.Sizes.Header)
	}
	if d.Sizes.Import != 0x0006 {
		t.Errorf("Import size = %#x, want 0x6", d.Sizes.Import)
	}
	if d.StaticFieldSize.ImageSize != 0x0010 {
		t.Errorf("image size = %#x, want 0x10", d.StaticFieldSize.ImageSize)
	}
	if d.ImportCount != 1 || d.AppletCount != 1 {
		t.Errorf("import/applet counts = %d/%d, want 1/1", d.ImportCount, d.AppletCount)
	}
	if d.CustomCount != 0 || len(d.Custom) != 0 {
		t.Errorf("expected no custom components")
	}
}

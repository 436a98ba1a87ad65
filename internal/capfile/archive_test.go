package capfile

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"testing"
)

func buildTestCAP(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	members := map[string]string{
		"javacard/pkg/Header.cap":       "01000fdecaffed020200000105a000000003",
		"javacard/pkg/Directory.cap":    "02002500120000000000060000000000000000000000000000000000000000001000000000010100",
		"javacard/pkg/Import.cap":       "04000901000105a000000151",
		"javacard/pkg/Applet.cap":       "0300090105a0000001510010",
		"javacard/pkg/ConstantPool.cap": "05000a00020100050005810203",
	}
	for name, h := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(mustHex(t, h)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestOpenArchiveAndParseCAP(t *testing.T) {
	data := buildTestCAP(t)
	ar, err := OpenArchive(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	for _, name := range []string{"Header", "Directory", "Import", "Applet", "ConstantPool"} {
		if !ar.Has(name) {
			t.Fatalf("archive missing component %s", name)
		}
	}

	f, err := ParseCAP(ar.Components)
	if err != nil {
		t.Fatalf("ParseCAP: %v", err)
	}
	if hex.EncodeToString(f.PackageAID()) != "a000000003" {
		t.Errorf("package aid = %x", f.PackageAID())
	}
	minor, major := f.PackageVersion()
	if minor != 0 || major != 1 {
		t.Errorf("package version = %d.%d, want 1.0", major, minor)
	}
	aids := f.AppletAIDs()
	if len(aids) != 1 || hex.EncodeToString(aids[0]) != "a000000151" {
		t.Errorf("applet aids = %x", aids)
	}
	imports := f.Imports()
	if len(imports) != 1 || hex.EncodeToString(imports[0]) != "a000000151" {
		t.Errorf("imports = %x", imports)
	}
}

func TestOpenArchiveNoComponents(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("readme.txt")
	_, _ = w.Write([]byte("not a cap file"))
	_ = zw.Close()

	if _, err := OpenArchive(bytes.NewReader(buf.Bytes()), int64(buf.Len())); err == nil {
		t.Fatalf("expected error for archive with no recognized components")
	}
}

package gpagent

import (
	"bytes"
	"testing"
)

func TestReorderComponentsDefault(t *testing.T) {
	components := map[string][]byte{
		"Method":    []byte("M"),
		"Header":    []byte("H"),
		"Directory": []byte("D"),
		"Debug":     []byte("DBG"),
	}
	ordered := reorderComponents(components, nil, true)
	if len(ordered) != 3 {
		t.Fatalf("ordered len = %d, want 3 (Debug dropped)", len(ordered))
	}
	got := string(bytes.Join(ordered, nil))
	if got != "HDM" {
		t.Errorf("order = %q, want HDM (header, directory, method)", got)
	}
}

func TestReorderComponentsCustomOrderToHead(t *testing.T) {
	components := map[string][]byte{
		"Header":    []byte("H"),
		"Directory": []byte("D"),
		"Method":    []byte("M"),
	}
	ordered := reorderComponents(components, []string{"Method.cap"}, true)
	got := string(bytes.Join(ordered, nil))
	if got != "MHD" {
		t.Errorf("order = %q, want MHD (method forced first)", got)
	}
}

func TestEncodeBERLength(t *testing.T) {
	cases := []struct {
		length int
		want   []byte
	}{
		{0, []byte{0x00}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x80}},
		{0x1234, []byte{0x82, 0x12, 0x34}},
	}
	for _, c := range cases {
		got := encodeBERLength(c.length)
		if !bytes.Equal(got, c.want) {
			t.Errorf("encodeBERLength(%d) = %X, want %X", c.length, got, c.want)
		}
	}
}

func TestBuildLoadFileDataBlock(t *testing.T) {
	lfdb := buildLoadFileDataBlock([][]byte{{0x01, 0x02}, {0x03}})
	want := []byte{0xC4, 0x03, 0x01, 0x02, 0x03}
	if !bytes.Equal(lfdb, want) {
		t.Errorf("lfdb = %X, want %X", lfdb, want)
	}
}

func TestLoadChunksDefault(t *testing.T) {
	data := make([]byte, 250)
	for i := range data {
		data[i] = byte(i)
	}
	chunks := loadChunks(data, nil, true)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Errorf("chunk sizes = %d/%d/%d, want 100/100/50", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	reassembled := bytes.Join(chunks, nil)
	if !bytes.Equal(reassembled, data) {
		t.Errorf("reassembled data does not match original")
	}
}

func TestLoadChunksTailHint(t *testing.T) {
	data := make([]byte, 130)
	for i := range data {
		data[i] = byte(i)
	}
	// Last chunk should be exactly 30 bytes; everything before falls to default chunking.
	chunks := loadChunks(data, []int{30}, false)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if len(chunks[len(chunks)-1]) != 30 {
		t.Errorf("last chunk len = %d, want 30", len(chunks[len(chunks)-1]))
	}
	reassembled := bytes.Join(chunks, nil)
	if !bytes.Equal(reassembled, data) {
		t.Errorf("reassembled data does not match original")
	}
}

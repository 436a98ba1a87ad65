// Package capfile opens Java Card CAP archives and parses their 13 defined
// components, grounded in original_source/cap2json.py's component docstrings
// and original_source/utils/gpagent.py's ZipFile-based component extraction.
package capfile

import (
	"encoding/binary"
	"fmt"
)

// cursor is a forward-only byte reader used by every component parser. It never panics;
// every read that would run past the end of data returns an error instead.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) u8() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, fmt.Errorf("capfile: unexpected end of data at offset %d", c.pos)
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) u16() (uint16, error) {
	if c.pos+2 > len(c.data) {
		return 0, fmt.Errorf("capfile: unexpected end of data at offset %d", c.pos)
	}
	v := binary.BigEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if c.pos+4 > len(c.data) {
		return 0, fmt.Errorf("capfile: unexpected end of data at offset %d", c.pos)
	}
	v := binary.BigEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, fmt.Errorf("capfile: unexpected end of data, want %d bytes at offset %d", n, c.pos)
	}
	out := make([]byte, n)
	copy(out, c.data[c.pos:c.pos+n])
	c.pos += n
	return out, nil
}

// lengthPrefixedBytes reads a u1 length followed by that many bytes (the AID/name pattern
// used throughout the CAP format).
func (c *cursor) lengthPrefixedBytes() ([]byte, error) {
	n, err := c.u8()
	if err != nil {
		return nil, err
	}
	return c.bytes(int(n))
}

func (c *cursor) remaining() []byte {
	return c.data[c.pos:]
}

func (c *cursor) len() int {
	return len(c.data) - c.pos
}

func (c *cursor) atEnd() bool {
	return c.pos >= len(c.data)
}

package capfile

// RefLocationOffsets is one offsets_to_byte_indices pair: byte-sized offsets (each relative
// to the previous one) into the Method component's bytecode identifying operands that hold
// a one-byte or two-byte constant-pool/class-ref index requiring relocation.
type RefLocationOffsets struct {
	ByteIndexOffsets  []byte
	ByteIndex2Offsets []byte
}

func parseRefLocationOffsets(c *cursor) (RefLocationOffsets, error) {
	var r RefLocationOffsets
	n1, err := c.u16()
	if err != nil {
		return r, err
	}
	if r.ByteIndexOffsets, err = c.bytes(int(n1)); err != nil {
		return r, err
	}
	n2, err := c.u16()
	if err != nil {
		return r, err
	}
	if r.ByteIndex2Offsets, err = c.bytes(int(n2)); err != nil {
		return r, err
	}
	return r, nil
}

// RefLocationComponent is the parsed Reference-Location.cap component. In extended-format
// archives the Method component is split into blocks, so the offsets are repeated once per
// block; in compact archives there is exactly one set.
type RefLocationComponent struct {
	raw []byte

	Blocks []RefLocationOffsets
}

func (r *RefLocationComponent) Tag() byte   { return TagReferenceLocation }
func (r *RefLocationComponent) Raw() []byte { return r.raw }

func parseRefLocation(data []byte, extended bool) (*RefLocationComponent, error) {
	sizeWidth := 2
	if extended {
		sizeWidth = 4
	}
	_, _, info, err := readComponentHeader(data, sizeWidth)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	rl := &RefLocationComponent{raw: data}

	if !extended {
		offs, err := parseRefLocationOffsets(c)
		if err != nil {
			return nil, err
		}
		rl.Blocks = append(rl.Blocks, offs)
		return rl, nil
	}

	blockCount, err := c.u8()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(blockCount); i++ {
		offs, err := parseRefLocationOffsets(c)
		if err != nil {
			return nil, err
		}
		rl.Blocks = append(rl.Blocks, offs)
	}
	return rl, nil
}

package capfile

// ExceptionHandlerInfo is one entry of a method block's exception table. ActiveLength and
// StopBit share a single packed u2: the high bit is StopBit, the remaining 15 bits are
// ActiveLength.
type ExceptionHandlerInfo struct {
	StartOffset       uint16
	StopBit           bool
	ActiveLength      uint16
	HandlerOffset     uint16
	CatchTypeIndex    uint16
}

func parseExceptionHandler(c *cursor) (ExceptionHandlerInfo, error) {
	var h ExceptionHandlerInfo
	var err error
	if h.StartOffset, err = c.u16(); err != nil {
		return h, err
	}
	packed, err := c.u16()
	if err != nil {
		return h, err
	}
	h.StopBit = packed&0x8000 != 0
	h.ActiveLength = packed & 0x7FFF
	if h.HandlerOffset, err = c.u16(); err != nil {
		return h, err
	}
	if h.CatchTypeIndex, err = c.u16(); err != nil {
		return h, err
	}
	return h, nil
}

// MethodBlock is one method_component_compact (or, in extended archives, one block of a
// method_component_extended). Bytecode is retained as an opaque blob: decoding individual
// method_info/method_header_info records requires walking the Method and RefLocation
// components together against a live class hierarchy, which is out of scope here.
type MethodBlock struct {
	HandlerCount byte
	Handlers     []ExceptionHandlerInfo
	Bytecode     []byte
}

func parseMethodBlock(c *cursor) (MethodBlock, error) {
	var b MethodBlock
	var err error
	if b.HandlerCount, err = c.u8(); err != nil {
		return b, err
	}
	for i := 0; i < int(b.HandlerCount); i++ {
		h, err := parseExceptionHandler(c)
		if err != nil {
			return b, err
		}
		b.Handlers = append(b.Handlers, h)
	}
	b.Bytecode = c.remaining()
	c.pos = len(c.data)
	return b, nil
}

// MethodComponent is the parsed Method.cap component.
type MethodComponent struct {
	raw []byte

	Blocks []MethodBlock
}

func (m *MethodComponent) Tag() byte   { return TagMethod }
func (m *MethodComponent) Raw() []byte { return m.raw }

func parseMethod(data []byte, extended bool) (*MethodComponent, error) {
	sizeWidth := 2
	if extended {
		sizeWidth = 4
	}
	_, _, info, err := readComponentHeader(data, sizeWidth)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	m := &MethodComponent{raw: data}

	if !extended {
		b, err := parseMethodBlock(c)
		if err != nil {
			return nil, err
		}
		m.Blocks = append(m.Blocks, b)
		return m, nil
	}

	for !c.atEnd() {
		blockSize, err := c.u32()
		if err != nil {
			return nil, err
		}
		blockData, err := c.bytes(int(blockSize))
		if err != nil {
			return nil, err
		}
		bc := newCursor(blockData)
		b, err := parseMethodBlock(bc)
		if err != nil {
			return nil, err
		}
		m.Blocks = append(m.Blocks, b)
	}
	return m, nil
}

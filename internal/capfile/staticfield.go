package capfile

import "fmt"

// Array element type codes used by array_init_info.
const (
	ArrayTypeBoolean = 2
	ArrayTypeByte    = 3
	ArrayTypeShort   = 4
	ArrayTypeInt     = 5
)

func arrayElementWidth(t byte) int {
	switch t {
	case ArrayTypeBoolean, ArrayTypeByte:
		return 1
	case ArrayTypeShort:
		return 2
	case ArrayTypeInt:
		return 4
	default:
		return 1
	}
}

// ArrayInitInfo is one array-initializer entry of the Static Field component.
type ArrayInitInfo struct {
	Type   byte
	Count  uint16
	Values []byte // Count * arrayElementWidth(Type) raw bytes
}

// StaticFieldComponent is the parsed StaticField.cap component: the shape of the class
// image's static-field area plus its initializer data.
type StaticFieldComponent struct {
	raw []byte

	ImageSize          uint16
	ReferenceCount      uint16
	ArrayInitCount      uint16
	ArrayInit           []ArrayInitInfo
	DefaultValueCount    uint16
	NonDefaultValueCount uint16
	NonDefaultValues     []byte
}

func (s *StaticFieldComponent) Tag() byte   { return TagStaticField }
func (s *StaticFieldComponent) Raw() []byte { return s.raw }

func parseStaticField(data []byte) (*StaticFieldComponent, error) {
	_, _, info, err := readComponentHeader(data, 2)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	s := &StaticFieldComponent{raw: data}
	if s.ImageSize, err = c.u16(); err != nil {
		return nil, err
	}
	if s.ReferenceCount, err = c.u16(); err != nil {
		return nil, err
	}
	if s.ArrayInitCount, err = c.u16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(s.ArrayInitCount); i++ {
		t, err := c.u8()
		if err != nil {
			return nil, err
		}
		count, err := c.u16()
		if err != nil {
			return nil, err
		}
		values, err := c.bytes(int(count) * arrayElementWidth(t))
		if err != nil {
			return nil, fmt.Errorf("array_init_info[%d]: %w", i, err)
		}
		s.ArrayInit = append(s.ArrayInit, ArrayInitInfo{Type: t, Count: count, Values: values})
	}
	if s.DefaultValueCount, err = c.u16(); err != nil {
		return nil, err
	}
	if s.NonDefaultValueCount, err = c.u16(); err != nil {
		return nil, err
	}
	if s.NonDefaultValues, err = c.bytes(int(s.NonDefaultValueCount)); err != nil {
		return nil, err
	}

	return s, nil
}

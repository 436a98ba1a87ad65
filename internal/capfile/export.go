package capfile

// ClassExportInfo lists the static field and method offsets a package's public/protected
// class exposes to importers of this package.
type ClassExportInfo struct {
	ClassOffset        uint16
	StaticFieldCount    byte
	StaticMethodCount   byte
	StaticFieldOffsets  []uint16
	StaticMethodOffsets []uint16
}

// ExportComponent is the parsed Export.cap component. Present only for packages that export
// at least one public or protected class.
type ExportComponent struct {
	raw []byte

	ClassCount byte
	Classes    []ClassExportInfo
}

func (e *ExportComponent) Tag() byte   { return TagExport }
func (e *ExportComponent) Raw() []byte { return e.raw }

func parseExport(data []byte, extended bool) (*ExportComponent, error) {
	_, _, info, err := readComponentHeader(data, 2)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	e := &ExportComponent{raw: data}
	if e.ClassCount, err = c.u8(); err != nil {
		return nil, err
	}
	for i := 0; i < int(e.ClassCount); i++ {
		var ce ClassExportInfo
		if ce.ClassOffset, err = c.u16(); err != nil {
			return nil, err
		}
		if ce.StaticFieldCount, err = c.u8(); err != nil {
			return nil, err
		}
		if ce.StaticMethodCount, err = c.u8(); err != nil {
			return nil, err
		}
		for j := 0; j < int(ce.StaticFieldCount); j++ {
			v, err := c.u16()
			if err != nil {
				return nil, err
			}
			ce.StaticFieldOffsets = append(ce.StaticFieldOffsets, v)
		}
		for j := 0; j < int(ce.StaticMethodCount); j++ {
			v, err := c.u16()
			if err != nil {
				return nil, err
			}
			ce.StaticMethodOffsets = append(ce.StaticMethodOffsets, v)
		}
		e.Classes = append(e.Classes, ce)
	}
	return e, nil
}

package capfile

// ComponentSizes mirrors component_size_info_compact/extended: the component sizes the
// Directory component repeats for consistency checking against the components actually
// present in the archive.
type ComponentSizes struct {
	Header          uint16
	Directory       uint16
	Applet          uint16
	Import          uint16
	ConstantPool    uint16
	Class           uint16
	Method          uint16
	StaticField     uint16
	RefLocation     uint16
	Export          uint16
	Descriptor      uint16
	Debug           uint16 // since CAP format 2.2
	StaticResources uint32 // since CAP format 2.3, always 4 bytes wide
}

// StaticFieldSizeInfo mirrors static_field_size_info, repeated for consistency against the
// StaticField component's own image_size/array_init fields.
type StaticFieldSizeInfo struct {
	ImageSize     uint16
	ArrayInitCount uint16
	ArrayInitSize  uint16
}

// CustomComponentInfo describes a vendor-defined component (tag in [128,255]).
type CustomComponentInfo struct {
	Tag  byte
	Size uint16
	AID  []byte
}

// DirectoryComponent is the parsed Directory.cap component.
type DirectoryComponent struct {
	raw []byte

	Sizes           ComponentSizes
	StaticFieldSize StaticFieldSizeInfo
	ImportCount     byte
	AppletCount     byte

	// MethodComponentBlockCount is present only in extended-format archives.
	MethodComponentBlockCount byte

	CustomCount byte
	Custom      []CustomComponentInfo
}

func (d *DirectoryComponent) Tag() byte   { return TagDirectory }
func (d *DirectoryComponent) Raw() []byte { return d.raw }

func parseDirectory(data []byte, extended bool) (*DirectoryComponent, error) {
	_, _, info, err := readComponentHeader(data, 2)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	d := &DirectoryComponent{raw: data}

	u16Fields := []*uint16{
		&d.Sizes.Header, &d.Sizes.Directory, &d.Sizes.Applet, &d.Sizes.Import,
		&d.Sizes.ConstantPool, &d.Sizes.Class, &d.Sizes.Method, &d.Sizes.StaticField,
		&d.Sizes.RefLocation, &d.Sizes.Export, &d.Sizes.Descriptor, &d.Sizes.Debug,
	}
	for _, f := range u16Fields {
		v, err := c.u16()
		if err != nil {
			return nil, err
		}
		*f = v
	}
	if d.Sizes.StaticResources, err = c.u32(); err != nil {
		return nil, err
	}

	if d.StaticFieldSize.ImageSize, err = c.u16(); err != nil {
		return nil, err
	}
	if d.StaticFieldSize.ArrayInitCount, err = c.u16(); err != nil {
		return nil, err
	}
	if d.StaticFieldSize.ArrayInitSize, err = c.u16(); err != nil {
		return nil, err
	}

	if d.ImportCount, err = c.u8(); err != nil {
		return nil, err
	}
	if d.AppletCount, err = c.u8(); err != nil {
		return nil, err
	}
	if extended {
		if d.MethodComponentBlockCount, err = c.u8(); err != nil {
			return nil, err
		}
	}
	if d.CustomCount, err = c.u8(); err != nil {
		return nil, err
	}
	for i := 0; i < int(d.CustomCount); i++ {
		tag, err := c.u8()
		if err != nil {
			return nil, err
		}
		size, err := c.u16()
		if err != nil {
			return nil, err
		}
		aid, err := c.lengthPrefixedBytes()
		if err != nil {
			return nil, err
		}
		d.Custom = append(d.Custom, CustomComponentInfo{Tag: tag, Size: size, AID: aid})
	}

	return d, nil
}

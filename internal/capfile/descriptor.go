package capfile

// FieldDescriptorInfo describes one field's token, access flags, and its constant-pool
// field-ref plus type, for off-card verification and export-file linking.
type FieldDescriptorInfo struct {
	Token        byte
	AccessFlags  byte
	FieldRef     uint16
	TypeOffset   uint16
}

// MethodDescriptorInfo mirrors FieldDescriptorInfo for methods.
type MethodDescriptorInfo struct {
	Token        byte
	AccessFlags  byte
	MethodOffset uint16
	TypeOffset   uint16
}

// ClassDescriptorInfo describes one class or interface defined by this package, sufficient
// for an off-card verifier to typecheck it without the original source.
type ClassDescriptorInfo struct {
	Token         byte
	AccessFlags   byte
	ThisClassRef  ClassRef
	InterfaceCount byte
	Interfaces    []ClassRef
	Fields        []FieldDescriptorInfo
	Methods       []MethodDescriptorInfo
}

// DescriptorComponent is the parsed Descriptor.cap component.
type DescriptorComponent struct {
	raw []byte

	ClassCount byte
	Classes    []ClassDescriptorInfo

	// TypeDescriptorPool holds the signature pool for archives predating CAP format 2.2,
	// where it lived in the Descriptor component instead of the Class component.
	TypeDescriptorPool []TypeDescriptor
}

func (d *DescriptorComponent) Tag() byte   { return TagDescriptor }
func (d *DescriptorComponent) Raw() []byte { return d.raw }

func parseDescriptor(data []byte, extended bool, capMajor, capMinor byte) (*DescriptorComponent, error) {
	sizeWidth := 2
	if extended {
		sizeWidth = 4
	}
	_, _, info, err := readComponentHeader(data, sizeWidth)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	d := &DescriptorComponent{raw: data}
	if d.ClassCount, err = c.u8(); err != nil {
		return nil, err
	}
	for i := 0; i < int(d.ClassCount); i++ {
		var cd ClassDescriptorInfo
		if cd.Token, err = c.u8(); err != nil {
			return nil, err
		}
		if cd.AccessFlags, err = c.u8(); err != nil {
			return nil, err
		}
		b0, err := c.u8()
		if err != nil {
			return nil, err
		}
		b1, err := c.u8()
		if err != nil {
			return nil, err
		}
		cd.ThisClassRef = parseClassRef2(b0, b1)
		if cd.InterfaceCount, err = c.u8(); err != nil {
			return nil, err
		}
		fieldCount, err := c.u16()
		if err != nil {
			return nil, err
		}
		methodCount, err := c.u16()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(cd.InterfaceCount); j++ {
			ib0, err := c.u8()
			if err != nil {
				return nil, err
			}
			ib1, err := c.u8()
			if err != nil {
				return nil, err
			}
			cd.Interfaces = append(cd.Interfaces, parseClassRef2(ib0, ib1))
		}
		for j := 0; j < int(fieldCount); j++ {
			var fd FieldDescriptorInfo
			if fd.Token, err = c.u8(); err != nil {
				return nil, err
			}
			if fd.AccessFlags, err = c.u8(); err != nil {
				return nil, err
			}
			if fd.FieldRef, err = c.u16(); err != nil {
				return nil, err
			}
			if fd.TypeOffset, err = c.u16(); err != nil {
				return nil, err
			}
			cd.Fields = append(cd.Fields, fd)
		}
		for j := 0; j < int(methodCount); j++ {
			var md MethodDescriptorInfo
			if md.Token, err = c.u8(); err != nil {
				return nil, err
			}
			if md.AccessFlags, err = c.u8(); err != nil {
				return nil, err
			}
			if md.MethodOffset, err = c.u16(); err != nil {
				return nil, err
			}
			if md.TypeOffset, err = c.u16(); err != nil {
				return nil, err
			}
			cd.Methods = append(cd.Methods, md)
		}
		d.Classes = append(d.Classes, cd)
	}

	format22OrLater := capMajor > 2 || (capMajor == 2 && capMinor >= 2)
	if !format22OrLater {
		for !c.atEnd() {
			td, err := parseTypeDescriptor(c)
			if err != nil {
				return nil, err
			}
			d.TypeDescriptorPool = append(d.TypeDescriptorPool, td)
		}
	}

	return d, nil
}

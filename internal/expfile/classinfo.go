package expfile

// AttributeInfo is an opaque class-file-style attribute attached to a
// field_info record (e.g. ConstantValue). Its payload is kept raw.
type AttributeInfo struct {
	AttributeNameIndex uint16
	Info               []byte
}

func parseAttribute(c *cursor) (AttributeInfo, error) {
	var a AttributeInfo
	var err error
	if a.AttributeNameIndex, err = c.u16(); err != nil {
		return a, err
	}
	length, err := c.u32()
	if err != nil {
		return a, err
	}
	if a.Info, err = c.bytes(int(length)); err != nil {
		return a, err
	}
	return a, nil
}

// FieldInfo describes one exported field.
type FieldInfo struct {
	Token           byte
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

func parseFieldInfo(c *cursor) (FieldInfo, error) {
	var f FieldInfo
	var err error
	if f.Token, err = c.u8(); err != nil {
		return f, err
	}
	if f.AccessFlags, err = c.u16(); err != nil {
		return f, err
	}
	if f.NameIndex, err = c.u16(); err != nil {
		return f, err
	}
	if f.DescriptorIndex, err = c.u16(); err != nil {
		return f, err
	}
	attrCount, err := c.u16()
	if err != nil {
		return f, err
	}
	for i := 0; i < int(attrCount); i++ {
		a, err := parseAttribute(c)
		if err != nil {
			return f, err
		}
		f.Attributes = append(f.Attributes, a)
	}
	return f, nil
}

// MethodInfo describes one exported method.
type MethodInfo struct {
	Token           byte
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
}

func parseMethodInfo(c *cursor) (MethodInfo, error) {
	var m MethodInfo
	var err error
	if m.Token, err = c.u8(); err != nil {
		return m, err
	}
	if m.AccessFlags, err = c.u16(); err != nil {
		return m, err
	}
	if m.NameIndex, err = c.u16(); err != nil {
		return m, err
	}
	if m.DescriptorIndex, err = c.u16(); err != nil {
		return m, err
	}
	return m, nil
}

// ClassInfo describes one publicly visible class or interface this package
// exports, along with every externally-resolvable member it declares.
type ClassInfo struct {
	Token             byte
	AccessFlags       uint16
	NameIndex         uint16
	Supers            []uint16
	Interfaces        []uint16
	Fields            []FieldInfo
	Methods           []MethodInfo

	// CAP22InheritablePublicMethodTokenCount is present only since EXP
	// format 2.3.
	CAP22InheritablePublicMethodTokenCount byte
	hasCAP22Field                          bool
}

// HasCAP22InheritablePublicMethodTokenCount reports whether this class_info
// record carried the format-2.3-only trailing field.
func (ci ClassInfo) HasCAP22InheritablePublicMethodTokenCount() bool {
	return ci.hasCAP22Field
}

func parseClassInfo(c *cursor, format23OrLater bool) (ClassInfo, error) {
	var ci ClassInfo
	var err error
	if ci.Token, err = c.u8(); err != nil {
		return ci, err
	}
	if ci.AccessFlags, err = c.u16(); err != nil {
		return ci, err
	}
	if ci.NameIndex, err = c.u16(); err != nil {
		return ci, err
	}
	superCount, err := c.u16()
	if err != nil {
		return ci, err
	}
	for i := 0; i < int(superCount); i++ {
		v, err := c.u16()
		if err != nil {
			return ci, err
		}
		ci.Supers = append(ci.Supers, v)
	}
	ifaceCount, err := c.u8()
	if err != nil {
		return ci, err
	}
	for i := 0; i < int(ifaceCount); i++ {
		v, err := c.u16()
		if err != nil {
			return ci, err
		}
		ci.Interfaces = append(ci.Interfaces, v)
	}
	fieldCount, err := c.u16()
	if err != nil {
		return ci, err
	}
	for i := 0; i < int(fieldCount); i++ {
		f, err := parseFieldInfo(c)
		if err != nil {
			return ci, err
		}
		ci.Fields = append(ci.Fields, f)
	}
	methodCount, err := c.u16()
	if err != nil {
		return ci, err
	}
	for i := 0; i < int(methodCount); i++ {
		m, err := parseMethodInfo(c)
		if err != nil {
			return ci, err
		}
		ci.Methods = append(ci.Methods, m)
	}
	if format23OrLater {
		if ci.CAP22InheritablePublicMethodTokenCount, err = c.u8(); err != nil {
			return ci, err
		}
		ci.hasCAP22Field = true
	}
	return ci, nil
}

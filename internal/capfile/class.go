package capfile

// Class-entry flag bits (packed into the high nibble of the leading flags/interface_count
// byte of each interface_info/class_info record), per the JCVM class_info bit layout.
const (
	ClassFlagInterface = 0x8
	ClassFlagShareable = 0x4
	ClassFlagRemote    = 0x2
	ClassFlagAbstract  = 0x1
)

// TypeDescriptor is one nibble-packed type signature entry from the signature pool (since
// CAP format 2.2) or the Descriptor component's type_descriptor_info.
type TypeDescriptor struct {
	NibbleCount byte
	Type        []byte // packed nibbles, (NibbleCount+1)/2 bytes
}

func parseTypeDescriptor(c *cursor) (TypeDescriptor, error) {
	n, err := c.u8()
	if err != nil {
		return TypeDescriptor{}, err
	}
	b, err := c.bytes((int(n) + 1) / 2)
	if err != nil {
		return TypeDescriptor{}, err
	}
	return TypeDescriptor{NibbleCount: n, Type: b}, nil
}

// ImplementedInterfaceInfo records one interface a class_info implements, along with the
// virtual-method-table slots that satisfy it.
type ImplementedInterfaceInfo struct {
	Interface ClassRef
	Index     []byte
}

// RemoteMethodInfo is one entry of a remote_interface_info's remote_methods table.
type RemoteMethodInfo struct {
	RemoteMethodHash  uint16
	SignatureOffset   uint16
	VirtualMethodToken byte
}

// RemoteInterfaceInfo is present on a class_info record only when ClassFlagRemote is set
// (since CAP format 2.2).
type RemoteInterfaceInfo struct {
	RemoteMethods     []RemoteMethodInfo
	HashModifier      []byte
	ClassName         []byte
	RemoteInterfaces  []ClassRef
}

// ClassEntry is one parsed record from the Class component's mixed interface/class stream.
type ClassEntry struct {
	IsInterface bool
	Flags       byte // high nibble of the leading byte

	// interface_info fields.
	SuperInterfaces []ClassRef
	InterfaceName   []byte // only if ClassFlagRemote set

	// class_info_compact fields.
	SuperClass                ClassRef
	DeclaredInstanceSize      byte
	FirstReferenceToken       byte
	ReferenceCount            byte
	PublicMethodTableBase     byte
	PublicMethodTableCount    byte
	PackageMethodTableBase    byte
	PackageMethodTableCount   byte
	PublicVirtualMethodTable  []uint16
	PackageVirtualMethodTable []uint16
	Interfaces                []ImplementedInterfaceInfo
	Remote                     *RemoteInterfaceInfo

	// Since CAP format 2.3.
	PublicVirtualMethodTokenMapping []byte
	CAP22InheritablePublicMethodTokenCount byte
}

// ClassComponent is the parsed Class.cap component.
type ClassComponent struct {
	raw []byte

	SignaturePool []TypeDescriptor
	Entries       []ClassEntry
}

func (cc *ClassComponent) Tag() byte   { return TagClass }
func (cc *ClassComponent) Raw() []byte { return cc.raw }

func parseClass(data []byte, extended bool, capMajor, capMinor byte) (*ClassComponent, error) {
	_, _, info, err := readComponentHeader(data, 2)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	cls := &ClassComponent{raw: data}

	format22OrLater := capMajor > 2 || (capMajor == 2 && capMinor >= 2)
	format23OrLater := capMajor > 2 || (capMajor == 2 && capMinor >= 3)

	if format22OrLater {
		poolLen, err := c.u16()
		if err != nil {
			return nil, err
		}
		end := c.pos + int(poolLen)
		for c.pos < end {
			td, err := parseTypeDescriptor(c)
			if err != nil {
				return nil, err
			}
			cls.SignaturePool = append(cls.SignaturePool, td)
		}
	}

	for !c.atEnd() {
		b, err := c.u8()
		if err != nil {
			return nil, err
		}
		flags := b >> 4
		interfaceCount := int(b & 0x0F)
		entry := ClassEntry{Flags: flags}

		if flags&ClassFlagInterface != 0 {
			entry.IsInterface = true
			for i := 0; i < interfaceCount; i++ {
				b0, err := c.u8()
				if err != nil {
					return nil, err
				}
				b1, err := c.u8()
				if err != nil {
					return nil, err
				}
				entry.SuperInterfaces = append(entry.SuperInterfaces, parseClassRef2(b0, b1))
			}
			if flags&ClassFlagRemote != 0 {
				name, err := c.lengthPrefixedBytes()
				if err != nil {
					return nil, err
				}
				entry.InterfaceName = name
			}
			cls.Entries = append(cls.Entries, entry)
			continue
		}

		// class_info_compact
		b0, err := c.u8()
		if err != nil {
			return nil, err
		}
		b1, err := c.u8()
		if err != nil {
			return nil, err
		}
		entry.SuperClass = parseClassRef2(b0, b1)

		if entry.DeclaredInstanceSize, err = c.u8(); err != nil {
			return nil, err
		}
		if entry.FirstReferenceToken, err = c.u8(); err != nil {
			return nil, err
		}
		if entry.ReferenceCount, err = c.u8(); err != nil {
			return nil, err
		}
		if entry.PublicMethodTableBase, err = c.u8(); err != nil {
			return nil, err
		}
		if entry.PublicMethodTableCount, err = c.u8(); err != nil {
			return nil, err
		}
		if entry.PackageMethodTableBase, err = c.u8(); err != nil {
			return nil, err
		}
		if entry.PackageMethodTableCount, err = c.u8(); err != nil {
			return nil, err
		}
		for i := 0; i < int(entry.PublicMethodTableCount); i++ {
			v, err := c.u16()
			if err != nil {
				return nil, err
			}
			entry.PublicVirtualMethodTable = append(entry.PublicVirtualMethodTable, v)
		}
		for i := 0; i < int(entry.PackageMethodTableCount); i++ {
			v, err := c.u16()
			if err != nil {
				return nil, err
			}
			entry.PackageVirtualMethodTable = append(entry.PackageVirtualMethodTable, v)
		}
		for i := 0; i < interfaceCount; i++ {
			ib0, err := c.u8()
			if err != nil {
				return nil, err
			}
			ib1, err := c.u8()
			if err != nil {
				return nil, err
			}
			cnt, err := c.u8()
			if err != nil {
				return nil, err
			}
			idx, err := c.bytes(int(cnt))
			if err != nil {
				return nil, err
			}
			entry.Interfaces = append(entry.Interfaces, ImplementedInterfaceInfo{
				Interface: parseClassRef2(ib0, ib1),
				Index:     idx,
			})
		}

		if format22OrLater && flags&ClassFlagRemote != 0 {
			ri := &RemoteInterfaceInfo{}
			remoteCount, err := c.u8()
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(remoteCount); i++ {
				hash, err := c.u16()
				if err != nil {
					return nil, err
				}
				sigOff, err := c.u16()
				if err != nil {
					return nil, err
				}
				tok, err := c.u8()
				if err != nil {
					return nil, err
				}
				ri.RemoteMethods = append(ri.RemoteMethods, RemoteMethodInfo{
					RemoteMethodHash: hash, SignatureOffset: sigOff, VirtualMethodToken: tok,
				})
			}
			if ri.HashModifier, err = c.lengthPrefixedBytes(); err != nil {
				return nil, err
			}
			if ri.ClassName, err = c.lengthPrefixedBytes(); err != nil {
				return nil, err
			}
			remoteIfaceCount, err := c.u8()
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(remoteIfaceCount); i++ {
				rb0, err := c.u8()
				if err != nil {
					return nil, err
				}
				rb1, err := c.u8()
				if err != nil {
					return nil, err
				}
				ri.RemoteInterfaces = append(ri.RemoteInterfaces, parseClassRef2(rb0, rb1))
			}
			entry.Remote = ri
		}

		if format23OrLater {
			mapping, err := c.bytes(int(entry.PublicMethodTableCount))
			if err != nil {
				return nil, err
			}
			entry.PublicVirtualMethodTokenMapping = mapping
			if entry.CAP22InheritablePublicMethodTokenCount, err = c.u8(); err != nil {
				return nil, err
			}
		}

		cls.Entries = append(cls.Entries, entry)
	}

	return cls, nil
}

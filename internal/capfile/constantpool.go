package capfile

import "fmt"

// Constant-pool entry tags.
const (
	CPTagClassRef         = 1
	CPTagInstanceFieldRef = 2
	CPTagVirtualMethodRef = 3
	CPTagSuperMethodRef   = 4
	CPTagStaticFieldRef   = 5
	CPTagStaticMethodRef  = 6
)

// ClassRef is either an internal 16-bit offset into the Class component's info, or an
// external reference to a class exported by an imported package (package_token|0x80,
// class_token), discriminated by the high bit of the first encoded byte.
type ClassRef struct {
	External            bool
	InternalOffset      uint16
	ExternalPackageToken byte
	ExternalClassToken   byte
}

func parseClassRef2(b0, b1 byte) ClassRef {
	if b0&0x80 != 0 {
		return ClassRef{External: true, ExternalPackageToken: b0 & 0x7F, ExternalClassToken: b1}
	}
	return ClassRef{InternalOffset: uint16(b0)<<8 | uint16(b1)}
}

// StaticRef is either an internal offset (into the Static Field Image or Method
// component's info, depending on context) or an external (package_token, class_token,
// token) reference, discriminated the same way as ClassRef.
type StaticRef struct {
	External bool

	// Internal form.
	MethodInfoBlockIndex byte // StaticMethodRef only, CAP format >= 2.3
	Offset               uint16

	// External form.
	PackageToken byte
	ClassToken   byte
	Token        byte
}

// CPConstant is one decoded constant-pool entry.
type CPConstant struct {
	Tag byte

	Class ClassRef // ClassRef, InstanceFieldRef, VirtualMethodRef, SuperMethodRef
	Token byte      // InstanceFieldRef/VirtualMethodRef/SuperMethodRef token, or ClassRef padding byte

	Static StaticRef // StaticFieldRef, StaticMethodRef
}

// ConstantPoolComponent is the parsed ConstantPool.cap component.
type ConstantPoolComponent struct {
	raw []byte

	Count     uint16
	Constants []CPConstant
}

func (p *ConstantPoolComponent) Tag() byte   { return TagConstantPool }
func (p *ConstantPoolComponent) Raw() []byte { return p.raw }

func parseConstantPool(data []byte, capMajor, capMinor byte) (*ConstantPoolComponent, error) {
	_, _, info, err := readComponentHeader(data, 2)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	p := &ConstantPoolComponent{raw: data}
	if p.Count, err = c.u16(); err != nil {
		return nil, err
	}

	format23OrLater := capMajor > 2 || (capMajor == 2 && capMinor >= 3)

	for i := 0; i < int(p.Count); i++ {
		entryBytes, err := c.bytes(4)
		if err != nil {
			return nil, fmt.Errorf("cp_info[%d]: %w", i, err)
		}
		ec := newCursor(entryBytes)
		tag, _ := ec.u8()
		b := [3]byte{}
		for j := range b {
			v, err := ec.u8()
			if err != nil {
				return nil, err
			}
			b[j] = v
		}

		var cp CPConstant
		cp.Tag = tag
		switch tag {
		case CPTagClassRef:
			cp.Class = parseClassRef2(b[0], b[1])
			cp.Token = b[2] // padding
		case CPTagInstanceFieldRef, CPTagVirtualMethodRef, CPTagSuperMethodRef:
			cp.Class = parseClassRef2(b[0], b[1])
			cp.Token = b[2]
		case CPTagStaticFieldRef:
			if b[0]&0x80 != 0 {
				cp.Static = StaticRef{External: true, PackageToken: b[0] & 0x7F, ClassToken: b[1], Token: b[2]}
			} else {
				cp.Static = StaticRef{Offset: uint16(b[1])<<8 | uint16(b[2])}
			}
		case CPTagStaticMethodRef:
			if b[0]&0x80 != 0 {
				cp.Static = StaticRef{External: true, PackageToken: b[0] & 0x7F, ClassToken: b[1], Token: b[2]}
			} else if format23OrLater {
				cp.Static = StaticRef{MethodInfoBlockIndex: b[0], Offset: uint16(b[1])<<8 | uint16(b[2])}
			} else {
				cp.Static = StaticRef{Offset: uint16(b[1])<<8 | uint16(b[2])}
			}
		default:
			return nil, fmt.Errorf("cp_info[%d]: unknown constant-pool tag %d", i, tag)
		}
		p.Constants = append(p.Constants, cp)
	}

	return p, nil
}

package expfile

import (
	"bytes"
	"fmt"
)

// Magic is the fixed 4-byte magic every EXP file begins with.
var Magic = []byte{0x00, 0xFA, 0xCA, 0xDE}

// File is a parsed Export (EXP) file: the constant pool plus every publicly
// exported class/interface this package declares.
type File struct {
	MinorVersion byte
	MajorVersion byte

	ConstantPool []CPEntry

	// ThisPackage is a 1-based index into ConstantPool identifying this
	// file's own CONSTANT_Package_info entry.
	ThisPackage uint16

	// ReferencedPackages is present only since EXP format 2.3: indices into
	// ConstantPool of every package this one references.
	ReferencedPackages []uint16

	Classes []ClassInfo
}

// format23OrLater reports whether this file's version is >= 2.3, per
// exp2json.py's string comparison on "major.minor".
func format23OrLater(major, minor byte) bool {
	return major > 2 || (major == 2 && minor >= 3)
}

// Parse decodes a complete EXP file from raw bytes.
func Parse(data []byte) (*File, error) {
	c := newCursor(data)

	magic, err := c.bytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, Magic) {
		return nil, fmt.Errorf("expfile: bad magic %X, want %X", magic, Magic)
	}

	f := &File{}
	if f.MinorVersion, err = c.u8(); err != nil {
		return nil, err
	}
	if f.MajorVersion, err = c.u8(); err != nil {
		return nil, err
	}

	cpCount, err := c.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(cpCount); i++ {
		e, err := parseCPEntry(c)
		if err != nil {
			return nil, fmt.Errorf("expfile: cp_info[%d]: %w", i, err)
		}
		f.ConstantPool = append(f.ConstantPool, e)
	}

	if f.ThisPackage, err = c.u16(); err != nil {
		return nil, err
	}

	format23 := format23OrLater(f.MajorVersion, f.MinorVersion)
	if format23 {
		refCount, err := c.u8()
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(refCount); i++ {
			v, err := c.u16()
			if err != nil {
				return nil, err
			}
			f.ReferencedPackages = append(f.ReferencedPackages, v)
		}
	}

	classCount, err := c.u8()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(classCount); i++ {
		ci, err := parseClassInfo(c, format23)
		if err != nil {
			return nil, fmt.Errorf("expfile: class_info[%d]: %w", i, err)
		}
		f.Classes = append(f.Classes, ci)
	}

	return f, nil
}

// Package returns this file's own CONSTANT_Package_info entry, resolved via
// ThisPackage.
func (f *File) Package() (CPEntry, error) {
	if int(f.ThisPackage) == 0 || int(f.ThisPackage) > len(f.ConstantPool) {
		return CPEntry{}, fmt.Errorf("expfile: this_package index %d out of range", f.ThisPackage)
	}
	e := f.ConstantPool[f.ThisPackage-1]
	if e.Tag != CPTagPackage {
		return CPEntry{}, fmt.Errorf("expfile: this_package index %d is not a Package entry (tag %d)", f.ThisPackage, e.Tag)
	}
	return e, nil
}

// UTF8At resolves a 1-based constant-pool index to its UTF8 string, erroring
// if the index is out of range or not a UTF8 entry.
func (f *File) UTF8At(index uint16) (string, error) {
	if int(index) == 0 || int(index) > len(f.ConstantPool) {
		return "", fmt.Errorf("expfile: constant pool index %d out of range", index)
	}
	e := f.ConstantPool[index-1]
	if e.Tag != CPTagUTF8 {
		return "", fmt.Errorf("expfile: constant pool index %d is not UTF8 (tag %d)", index, e.Tag)
	}
	return e.UTF8, nil
}

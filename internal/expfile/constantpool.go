package expfile

import "fmt"

// Constant-pool entry tags.
const (
	CPTagUTF8     = 1
	CPTagInteger  = 3
	CPTagClassRef = 7
	CPTagPackage  = 13
)

// PackageFlag values for a CONSTANT_Package_info entry.
const (
	PackageFlagNone    = 0
	PackageFlagLibrary = 1
)

// CPEntry is one decoded constant-pool entry. Only the fields relevant to its
// Tag are populated.
type CPEntry struct {
	Tag byte

	// CPTagUTF8
	UTF8 string

	// CPTagInteger
	IntegerBytes []byte

	// CPTagClassRef
	NameIndex uint16

	// CPTagPackage
	PackageFlag        byte
	PackageNameIndex   uint16
	PackageMinorVersion byte
	PackageMajorVersion byte
	PackageAID          []byte
}

func parseCPEntry(c *cursor) (CPEntry, error) {
	tag, err := c.u8()
	if err != nil {
		return CPEntry{}, err
	}
	e := CPEntry{Tag: tag}

	switch tag {
	case CPTagUTF8:
		length, err := c.u16()
		if err != nil {
			return e, err
		}
		b, err := c.bytes(int(length))
		if err != nil {
			return e, err
		}
		e.UTF8 = string(b)
	case CPTagInteger:
		b, err := c.bytes(4)
		if err != nil {
			return e, err
		}
		e.IntegerBytes = b
	case CPTagClassRef:
		if e.NameIndex, err = c.u16(); err != nil {
			return e, err
		}
	case CPTagPackage:
		if e.PackageFlag, err = c.u8(); err != nil {
			return e, err
		}
		if e.PackageNameIndex, err = c.u16(); err != nil {
			return e, err
		}
		if e.PackageMinorVersion, err = c.u8(); err != nil {
			return e, err
		}
		if e.PackageMajorVersion, err = c.u8(); err != nil {
			return e, err
		}
		aidLen, err := c.u8()
		if err != nil {
			return e, err
		}
		if e.PackageAID, err = c.bytes(int(aidLen)); err != nil {
			return e, err
		}
	default:
		return e, fmt.Errorf("expfile: unknown constant-pool tag %d", tag)
	}

	return e, nil
}

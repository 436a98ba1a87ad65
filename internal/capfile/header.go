package capfile

import (
	"bytes"
	"fmt"
)

// HeaderMagic is the fixed 4-byte magic every Header component begins with.
var HeaderMagic = []byte{0xDE, 0xCA, 0xFF, 0xED}

// Header flag bits.
const (
	HeaderFlagInt      = 0x01
	HeaderFlagExport   = 0x02
	HeaderFlagApplet   = 0x04
	HeaderFlagExtended = 0x08
)

// PackageInfo identifies a package by version and AID, the shape shared by the Header,
// Import and Directory components' package references.
type PackageInfo struct {
	MinorVersion byte
	MajorVersion byte
	AID          []byte
}

func parsePackageInfo(c *cursor) (PackageInfo, error) {
	minor, err := c.u8()
	if err != nil {
		return PackageInfo{}, err
	}
	major, err := c.u8()
	if err != nil {
		return PackageInfo{}, err
	}
	aid, err := c.lengthPrefixedBytes()
	if err != nil {
		return PackageInfo{}, err
	}
	return PackageInfo{MinorVersion: minor, MajorVersion: major, AID: aid}, nil
}

// HeaderComponent is the parsed Header.cap component.
type HeaderComponent struct {
	raw []byte

	CapFormatMinor byte
	CapFormatMajor byte
	Flags          byte

	// Extended-format-only fields (valid when Flags&HeaderFlagExtended != 0).
	CapVersionMinor byte
	CapVersionMajor byte
	CapAID          []byte
	Packages        []PackageInfo // one entry per public package defined in this CAP file

	// Compact-format field: the single package this CAP file defines.
	Package     PackageInfo
	PackageName []byte // present for format >= 2.2, absent if no remote interfaces/classes
}

func (h *HeaderComponent) Tag() byte   { return TagHeader }
func (h *HeaderComponent) Raw() []byte { return h.raw }

func parseHeader(data []byte) (*HeaderComponent, error) {
	_, _, info, err := readComponentHeader(data, 2)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	magic, err := c.bytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, HeaderMagic) {
		return nil, fmt.Errorf("capfile: bad Header magic %X, want %X", magic, HeaderMagic)
	}

	h := &HeaderComponent{raw: data}
	if h.CapFormatMinor, err = c.u8(); err != nil {
		return nil, err
	}
	if h.CapFormatMajor, err = c.u8(); err != nil {
		return nil, err
	}
	if h.Flags, err = c.u8(); err != nil {
		return nil, err
	}

	if h.Flags&HeaderFlagExtended != 0 {
		if h.CapVersionMinor, err = c.u8(); err != nil {
			return nil, err
		}
		if h.CapVersionMajor, err = c.u8(); err != nil {
			return nil, err
		}
		if h.CapAID, err = c.lengthPrefixedBytes(); err != nil {
			return nil, err
		}
		count, err := c.u8()
		if err != nil {
			return nil, err
		}
		pkgs := make([]PackageInfo, 0, count)
		for i := 0; i < int(count); i++ {
			pkg, err := parsePackageInfo(c)
			if err != nil {
				return nil, fmt.Errorf("package_info[%d]: %w", i, err)
			}
			pkgs = append(pkgs, pkg)
		}
		names := make([][]byte, 0, count)
		for i := 0; i < int(count); i++ {
			name, err := c.lengthPrefixedBytes()
			if err != nil {
				return nil, fmt.Errorf("package_name_info[%d]: %w", i, err)
			}
			names = append(names, name)
		}
		h.Packages = pkgs
		if len(pkgs) > 0 {
			h.Package = pkgs[0]
		}
		if len(names) > 0 {
			h.PackageName = names[0]
		}
		return h, nil
	}

	pkg, err := parsePackageInfo(c)
	if err != nil {
		return nil, err
	}
	h.Package = pkg
	h.Packages = []PackageInfo{pkg}

	// package_name_info is present since CAP format 2.2 and absent if the package
	// defines no remote interfaces/classes: only consume it if bytes remain.
	if !c.atEnd() {
		name, err := c.lengthPrefixedBytes()
		if err == nil {
			h.PackageName = name
		}
	}

	return h, nil
}

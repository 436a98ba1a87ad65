package capfile

import "fmt"

// Component tag values, per the GlobalPlatform/Java Card CAP component table.
const (
	TagHeader             = 1
	TagDirectory          = 2
	TagApplet             = 3
	TagImport             = 4
	TagConstantPool       = 5
	TagClass              = 6
	TagMethod             = 7
	TagStaticField        = 8
	TagReferenceLocation  = 9
	TagExport             = 10
	TagDescriptor         = 11
	TagDebug              = 12
	TagStaticResources    = 13
)

// Component is implemented by every parsed CAP component, per spec's "parsed CAP as a
// tagged union" design note.
type Component interface {
	Tag() byte
	Raw() []byte
}

// readComponentHeader consumes the leading tag + size fields common to every component
// file. sizeWidth is 2 for compact-form components, 4 for components carried in extended
// form (Method, RefLocation, Descriptor, Debug, custom) and always for StaticResources.
func readComponentHeader(data []byte, sizeWidth int) (tag byte, size uint32, info []byte, err error) {
	c := newCursor(data)
	tag, err = c.u8()
	if err != nil {
		return 0, 0, nil, err
	}
	switch sizeWidth {
	case 2:
		var s uint16
		s, err = c.u16()
		size = uint32(s)
	case 4:
		size, err = c.u32()
	default:
		return 0, 0, nil, fmt.Errorf("capfile: invalid size width %d", sizeWidth)
	}
	if err != nil {
		return 0, 0, nil, err
	}
	info, err = c.bytes(int(size))
	if err != nil {
		return 0, 0, nil, err
	}
	return tag, size, info, nil
}

// File is the parsed, linked view of a CAP archive's components. Method bytecode payloads
// are retained as opaque []byte and never decoded into instructions.
type File struct {
	Extended bool

	Header          *HeaderComponent
	Directory       *DirectoryComponent
	Applet          *AppletComponent
	Import          *ImportComponent
	ConstantPool    *ConstantPoolComponent
	Class           *ClassComponent
	Method          *MethodComponent
	StaticField     *StaticFieldComponent
	RefLocation     *RefLocationComponent
	Export          *ExportComponent
	Descriptor      *DescriptorComponent
	Debug           []byte
	StaticResources *StaticResourcesComponent
}

// ParseCAP decodes every present component, keyed by the normalized names produced by
// OpenArchive (or supplied directly by a caller that already has component bytes).
func ParseCAP(components map[string][]byte) (*File, error) {
	f := &File{}

	headerData, ok := components["Header"]
	if !ok {
		return nil, fmt.Errorf("capfile: archive has no Header component")
	}
	header, err := parseHeader(headerData)
	if err != nil {
		return nil, fmt.Errorf("capfile: Header: %w", err)
	}
	f.Header = header
	f.Extended = header.Flags&HeaderFlagExtended != 0

	if data, ok := components["Directory"]; ok {
		f.Directory, err = parseDirectory(data, f.Extended)
		if err != nil {
			return nil, fmt.Errorf("capfile: Directory: %w", err)
		}
	}
	if data, ok := components["Applet"]; ok {
		f.Applet, err = parseApplet(data, f.Extended)
		if err != nil {
			return nil, fmt.Errorf("capfile: Applet: %w", err)
		}
	}
	if data, ok := components["Import"]; ok {
		f.Import, err = parseImport(data)
		if err != nil {
			return nil, fmt.Errorf("capfile: Import: %w", err)
		}
	}
	if data, ok := components["ConstantPool"]; ok {
		f.ConstantPool, err = parseConstantPool(data, header.CapFormatMajor, header.CapFormatMinor)
		if err != nil {
			return nil, fmt.Errorf("capfile: ConstantPool: %w", err)
		}
	}
	if data, ok := components["Class"]; ok {
		f.Class, err = parseClass(data, f.Extended, header.CapFormatMajor, header.CapFormatMinor)
		if err != nil {
			return nil, fmt.Errorf("capfile: Class: %w", err)
		}
	}
	if data, ok := components["Method"]; ok {
		f.Method, err = parseMethod(data, f.Extended)
		if err != nil {
			return nil, fmt.Errorf("capfile: Method: %w", err)
		}
	}
	if data, ok := components["StaticField"]; ok {
		f.StaticField, err = parseStaticField(data)
		if err != nil {
			return nil, fmt.Errorf("capfile: StaticField: %w", err)
		}
	}
	if data, ok := components["RefLocation"]; ok {
		f.RefLocation, err = parseRefLocation(data, f.Extended)
		if err != nil {
			return nil, fmt.Errorf("capfile: RefLocation: %w", err)
		}
	}
	if data, ok := components["Export"]; ok {
		f.Export, err = parseExport(data, f.Extended)
		if err != nil {
			return nil, fmt.Errorf("capfile: Export: %w", err)
		}
	}
	if data, ok := components["Descriptor"]; ok {
		f.Descriptor, err = parseDescriptor(data, f.Extended, header.CapFormatMajor, header.CapFormatMinor)
		if err != nil {
			return nil, fmt.Errorf("capfile: Descriptor: %w", err)
		}
	}
	if data, ok := components["Debug"]; ok {
		f.Debug = data
	}
	if data, ok := components["StaticResources"]; ok {
		f.StaticResources, err = parseStaticResources(data)
		if err != nil {
			return nil, fmt.Errorf("capfile: StaticResources: %w", err)
		}
	}

	return f, nil
}

// PackageAID returns the AID of the package this CAP file defines.
func (f *File) PackageAID() []byte {
	if f.Header == nil {
		return nil
	}
	return f.Header.Package.AID
}

// PackageVersion returns the defining package's minor.major version.
func (f *File) PackageVersion() (minor, major byte) {
	if f.Header == nil {
		return 0, 0
	}
	return f.Header.Package.MinorVersion, f.Header.Package.MajorVersion
}

// AppletAIDs returns the AIDs of every applet class defined by this CAP file, in
// declaration order.
func (f *File) AppletAIDs() [][]byte {
	if f.Applet == nil {
		return nil
	}
	out := make([][]byte, 0, len(f.Applet.Applets))
	for _, a := range f.Applet.Applets {
		out = append(out, a.AID)
	}
	return out
}

// Imports returns the AIDs of every package imported by this CAP file, in package-token
// order (index 0 is package token 0, referenced from Import-component entries elsewhere).
func (f *File) Imports() [][]byte {
	if f.Import == nil {
		return nil
	}
	out := make([][]byte, 0, len(f.Import.Packages))
	for _, p := range f.Import.Packages {
		out = append(out, p.AID)
	}
	return out
}

package capfile

// ImportComponent is the parsed Import.cap component: one package_info entry for every
// package referenced (but not defined) by this CAP file. The index into Packages is the
// "package token" other components use to refer to an imported package.
type ImportComponent struct {
	raw []byte

	Count    byte
	Packages []PackageInfo
}

func (i *ImportComponent) Tag() byte   { return TagImport }
func (i *ImportComponent) Raw() []byte { return i.raw }

func parseImport(data []byte) (*ImportComponent, error) {
	_, _, info, err := readComponentHeader(data, 2)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	im := &ImportComponent{raw: data}
	if im.Count, err = c.u8(); err != nil {
		return nil, err
	}
	for i := 0; i < int(im.Count); i++ {
		pkg, err := parsePackageInfo(c)
		if err != nil {
			return nil, err
		}
		im.Packages = append(im.Packages, pkg)
	}
	return im, nil
}

package capfile

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Archive holds the raw bytes of every component member found in a CAP/CAPX container,
// keyed by a normalized component name ("Header", "Directory", "Applet", ...).
type Archive struct {
	Components map[string][]byte
}

// componentNames lists the normalized component names that a CAP zip entry's basename
// is matched against, grounded in gpagent.py::_get_cap_components's case-insensitive
// basename matching against "<Name>.cap"/"<Name>.capx".
var componentNames = []string{
	"Header", "Directory", "Applet", "Import", "ConstantPool", "Class", "Method",
	"StaticField", "RefLocation", "Export", "Descriptor", "Debug", "StaticResources",
}

// OpenArchive reads a CAP/CAPX zip container and extracts every recognized component by
// basename, case-insensitively, accepting both ".cap" and ".capx" extensions.
func OpenArchive(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("capfile: open zip: %w", err)
	}

	a := &Archive{Components: map[string][]byte{}}
	for _, f := range zr.File {
		base := path.Base(f.Name)
		ext := strings.ToLower(path.Ext(base))
		if ext != ".cap" && ext != ".capx" {
			continue
		}
		stem := strings.TrimSuffix(base, path.Ext(base))

		name := matchComponentName(stem)
		if name == "" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("capfile: open member %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("capfile: read member %s: %w", f.Name, err)
		}
		a.Components[name] = data
	}
	if len(a.Components) == 0 {
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("capfile: no recognized CAP components found in archive, entries: %v", names)
	}
	return a, nil
}

func matchComponentName(stem string) string {
	for _, name := range componentNames {
		if strings.EqualFold(stem, name) {
			return name
		}
	}
	return ""
}

// Has reports whether the archive contains the named component.
func (a *Archive) Has(name string) bool {
	_, ok := a.Components[name]
	return ok
}

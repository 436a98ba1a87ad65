// Package gpregistry decodes GET-STATUS response payloads into normalized application
// and package records, grounded in original_source/utils/gpdata.py's
// get_parsed_gp_registry_info, _get_life_cycle_str and _get_priv_str.
package gpregistry

import (
	"gpcm/internal/bertlv"
)

// ComponentType distinguishes the two life-cycle label tables.
type ComponentType int

const (
	ComponentApplication ComponentType = iota
	ComponentPackage
)

// Application is one decoded application (or Security Domain) registry record.
type Application struct {
	AID               []byte
	LifeCycle         string
	Privileges        []string
	AssociatedPackage []byte
}

// Package is one decoded executable-load-file (package) registry record.
type Package struct {
	AID              []byte
	LifeCycle        string
	AppletClassAIDs  [][]byte
	Version          []byte
}

const gpRegistryRelatedDataTag = 0xE3

// LifeCycleLabel converts a raw life-cycle byte into its GP status label, following
// the table in original_source/utils/gpdata.py::_get_life_cycle_str.
func LifeCycleLabel(raw byte, kind ComponentType) string {
	switch kind {
	case ComponentPackage:
		if raw == 0x01 {
			return "LOADED"
		}
		return "UNKNOWN"
	case ComponentApplication:
		switch {
		case raw == 0x03:
			return "INSTALLED"
		case raw == 0x07:
			return "SELECTABLE"
		case raw == 0x0F:
			return "PERSONALIZED"
		case raw&0x83 == 0x03:
			return "APP-SPECIFIC"
		case raw&0x83 == 0x83:
			return "LOCKED"
		default:
			return "UNKNOWN"
		}
	}
	return "UNKNOWN"
}

// privilegeByteMaps mirrors the three-byte privilege bitmap table in
// original_source/utils/gpdata.py::_get_priv_str.
var privilegeByteMaps = [3]map[byte]string{
	{
		0x80: "Security Domain",
		0xC0: "DAP Verification",
		0xA0: "Delegated Management",
		0x10: "Card Lock",
		0x08: "Card Terminate",
		0x04: "Card Reset",
		0x02: "CVM Management",
		0xC1: "Mandated DAP Verification",
	},
	{
		0x80: "Trusted Path",
		0x40: "Authorized Management",
		0x20: "Token Management",
		0x10: "Global Delete",
		0x08: "Global Lock",
		0x04: "Global Registry",
		0x02: "Final Application",
		0x01: "Global Service",
	},
	{
		0x80: "Receipt Generation",
		0x40: "CFLDB",
		0x20: "Contactless Activation",
		0x10: "Contactless Self-Activation",
	},
}

// privilegeOrder fixes the iteration order of each byte map so output is stable.
var privilegeOrder = [3][]byte{
	{0x80, 0xC0, 0xA0, 0x10, 0x08, 0x04, 0x02, 0xC1},
	{0x80, 0x40, 0x20, 0x10, 0x08, 0x04, 0x02, 0x01},
	{0x80, 0x40, 0x20, 0x10},
}

// PrivilegeLabels renders the (up to 3-byte) privilege bitmap into human-readable names.
func PrivilegeLabels(privBytes []byte) []string {
	var privileges []string
	for i, byteMap := range privilegeByteMaps {
		if i >= len(privBytes) {
			break
		}
		v := privBytes[i]
		for _, bitmask := range privilegeOrder[i] {
			if v&bitmask == bitmask {
				privileges = append(privileges, byteMap[bitmask])
			}
		}
	}
	return privileges
}

// ParseApplications decodes a GET-STATUS applications/ISD payload, dispatching on the
// leading tag to the modern E3-TLV form or the deprecated flat form.
func ParseApplications(data []byte) ([]Application, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == gpRegistryRelatedDataTag {
		return parseApplicationsModern(data)
	}
	return parseApplicationsDeprecated(data)
}

func parseApplicationsModern(data []byte) ([]Application, error) {
	nodes, err := bertlv.Parse(data)
	if err != nil {
		return nil, err
	}
	elements := bertlv.FindAllNodes(nodes, []string{"E3"})
	apps := make([]Application, 0, len(elements))
	for _, el := range elements {
		app := Application{}
		for _, tlv := range el.Children {
			switch tlv.Tag {
			case "4F":
				app.AID = append([]byte{}, tlv.Value...)
			case "9F70":
				if len(tlv.Value) > 0 {
					app.LifeCycle = LifeCycleLabel(tlv.Value[0], ComponentApplication)
				}
			case "C5":
				app.Privileges = PrivilegeLabels(tlv.Value)
			case "C4":
				app.AssociatedPackage = append([]byte{}, tlv.Value...)
			}
		}
		if app.LifeCycle == "" {
			app.LifeCycle = "-"
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func parseApplicationsDeprecated(data []byte) ([]Application, error) {
	var apps []Application
	for len(data) > 0 {
		if len(data) < 1 {
			break
		}
		aidLen := int(data[0])
		data = data[1:]
		if len(data) < aidLen+2 {
			return nil, errTruncated("applications")
		}
		aid := data[:aidLen]
		data = data[aidLen:]
		lifeCycle := LifeCycleLabel(data[0], ComponentApplication)
		priv := PrivilegeLabels(data[1:2])
		data = data[2:]
		apps = append(apps, Application{
			AID:        append([]byte{}, aid...),
			LifeCycle:  lifeCycle,
			Privileges: priv,
		})
	}
	return apps, nil
}

// ParsePackages decodes a GET-STATUS packages payload (modern or deprecated form).
func ParsePackages(data []byte) ([]Package, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == gpRegistryRelatedDataTag {
		return parsePackagesModern(data)
	}
	return parsePackagesDeprecated(data)
}

func parsePackagesModern(data []byte) ([]Package, error) {
	nodes, err := bertlv.Parse(data)
	if err != nil {
		return nil, err
	}
	elements := bertlv.FindAllNodes(nodes, []string{"E3"})
	pkgs := make([]Package, 0, len(elements))
	for _, el := range elements {
		pkg := Package{}
		for _, tlv := range el.Children {
			switch tlv.Tag {
			case "4F":
				pkg.AID = append([]byte{}, tlv.Value...)
			case "9F70":
				if len(tlv.Value) > 0 {
					pkg.LifeCycle = LifeCycleLabel(tlv.Value[0], ComponentPackage)
				}
			case "84":
				pkg.AppletClassAIDs = append(pkg.AppletClassAIDs, append([]byte{}, tlv.Value...))
			case "CE":
				pkg.Version = append([]byte{}, tlv.Value...)
			}
		}
		if pkg.LifeCycle == "" {
			pkg.LifeCycle = "-"
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

func parsePackagesDeprecated(data []byte) ([]Package, error) {
	var pkgs []Package
	for len(data) > 0 {
		aidLen := int(data[0])
		data = data[1:]
		if len(data) < aidLen+2 {
			return nil, errTruncated("packages")
		}
		aid := data[:aidLen]
		data = data[aidLen:]
		lifeCycle := LifeCycleLabel(data[0], ComponentPackage)
		data = data[2:] // life cycle byte + deprecated privileges byte
		if len(data) < 1 {
			return nil, errTruncated("packages")
		}
		classCount := int(data[0])
		data = data[1:]
		classes := make([][]byte, 0, classCount)
		for i := 0; i < classCount; i++ {
			if len(data) < 1 {
				return nil, errTruncated("packages")
			}
			classAIDLen := int(data[0])
			data = data[1:]
			if len(data) < classAIDLen {
				return nil, errTruncated("packages")
			}
			classes = append(classes, append([]byte{}, data[:classAIDLen]...))
			data = data[classAIDLen:]
		}
		pkgs = append(pkgs, Package{
			AID:             append([]byte{}, aid...),
			LifeCycle:       lifeCycle,
			AppletClassAIDs: classes,
		})
	}
	return pkgs, nil
}

type registryError string

func (e registryError) Error() string { return string(e) }

func errTruncated(what string) error {
	return registryError("gpregistry: truncated " + what + " payload")
}

// Package gpconfig holds JSON-tagged configuration for the content-management agent:
// default reader, default secure-channel parameters, known keysets, and CAP load/install
// jobs. Mirrors sim/config.go's SIMConfig/GlobalPlatformConfig in style, adapted into a
// standalone top-level config for a CAP-focused agent rather than an embedded section.
package gpconfig

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the top-level agent configuration.
type Config struct {
	// Reader is the PC/SC reader name substring to match. If empty, the first
	// available reader is used.
	Reader string `json:"reader,omitempty"`

	// SDAID is the Security Domain / Card Manager AID to select before mutual
	// authentication (hex). If empty, a partial SELECT is used and the AID is
	// recovered from the FCI.
	SDAID string `json:"sd_aid,omitempty"`

	// SecurityLevel is the Secure Channel security level: "mac" or "mac+enc".
	SecurityLevel string `json:"security_level,omitempty"`

	// KVN is the Key Version Number used for INITIALIZE UPDATE. 0 lets the card
	// pick its current default.
	KVN int `json:"kvn,omitempty"`

	// StaticKeys is the default keyset, used when no KeySets entry is selected.
	StaticKeys KeysConfig `json:"static_keys,omitempty"`

	// KeySets is a list of named keysets an operator can select between.
	KeySets []KeySetConfig `json:"keysets,omitempty"`

	// DefaultKeySet selects a KeySets entry by Name.
	DefaultKeySet string `json:"default_keyset,omitempty"`

	// Loads describes CAP load/install jobs this config can drive non-interactively.
	Loads []LoadConfig `json:"loads,omitempty"`
}

// KeysConfig holds GlobalPlatform key material as hex strings.
type KeysConfig struct {
	ENC string `json:"enc,omitempty"`
	MAC string `json:"mac,omitempty"`
	DEK string `json:"dek,omitempty"`
}

// KeySetConfig is one named, versioned keyset.
type KeySetConfig struct {
	Name string     `json:"name,omitempty"`
	KVN  int        `json:"kvn,omitempty"`
	Keys KeysConfig `json:"keys,omitempty"`
}

// LoadConfig describes one CAP load and applet install operation.
type LoadConfig struct {
	// CAPPath is the path to the CAP/CAPX archive on disk.
	CAPPath string `json:"cap_path,omitempty"`

	// PackageAID is the Executable Load File AID (package AID), hex, compact form.
	PackageAID string `json:"package_aid,omitempty"`

	// AppletAID is the Executable Module / applet class AID, hex.
	AppletAID string `json:"applet_aid,omitempty"`

	// InstanceAID is the application instance AID. Defaults to AppletAID if empty.
	InstanceAID string `json:"instance_aid,omitempty"`

	// SDAID overrides Config.SDAID for this load only, hex.
	SDAID string `json:"sd_aid,omitempty"`

	// Privileges is a list of hex-encoded privilege bytes for INSTALL [for install].
	Privileges []string `json:"privileges,omitempty"`

	// InstallParameters is hex-encoded applet install parameter data.
	InstallParameters string `json:"install_parameters,omitempty"`
}

// Load reads and parses a JSON config file. Unknown keys are ignored, per
// encoding/json's default behavior.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("gpconfig: reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("gpconfig: parsing config file: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg to filename as indented JSON.
func Save(filename string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("gpconfig: encoding config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("gpconfig: writing config file: %w", err)
	}
	return nil
}

// ResolveKeySet returns the named keyset's keys, falling back to StaticKeys when name is
// empty or unset when DefaultKeySet is also empty.
func (c *Config) ResolveKeySet(name string) (KeysConfig, int, error) {
	if name == "" {
		name = c.DefaultKeySet
	}
	if name == "" {
		return c.StaticKeys, c.KVN, nil
	}
	for _, ks := range c.KeySets {
		if ks.Name == name {
			return ks.Keys, ks.KVN, nil
		}
	}
	return KeysConfig{}, 0, fmt.Errorf("gpconfig: keyset %q not found", name)
}

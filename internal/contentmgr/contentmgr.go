// Package contentmgr is a thin facade over internal/gpagent that resolves
// hex-string/config-driven inputs (as used by the CLI and config-file-driven jobs) into
// the byte-slice parameters internal/gpagent's Agent expects, and reports results in a
// form convenient for CLI rendering.
package contentmgr

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gpcm/card"
	"gpcm/internal/gpagent"
	"gpcm/internal/gpconfig"
	"gpcm/internal/gpregistry"
)

// Manager wraps a gpagent.Agent bound to one reader connection.
type Manager struct {
	agent *gpagent.Agent
}

// New returns a Manager bound to an already-connected reader.
func New(r *card.Reader) *Manager {
	return &Manager{agent: gpagent.New(r)}
}

// State reports the underlying agent's lifecycle state.
func (m *Manager) State() gpagent.SessionState { return m.agent.State() }

func decodeHexAID(label, s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("contentmgr: %s: invalid hex: %w", label, err)
	}
	return b, nil
}

func securityLevelFromString(s string) (card.GPSecurityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mac", "c-mac", "cmac":
		return card.GPSecMAC, nil
	case "mac+enc", "cmac+cenc", "c-mac+c-enc":
		return card.GPSecMACENC, nil
	default:
		return 0, fmt.Errorf("contentmgr: unknown security level %q", s)
	}
}

// Authenticate resolves cfg's default (or named) keyset and SD AID, then selects the ISD
// and performs mutual authentication.
func (m *Manager) Authenticate(cfg *gpconfig.Config, keySetName string) error {
	keys, kvn, err := cfg.ResolveKeySet(keySetName)
	if err != nil {
		return err
	}
	enc, err := decodeHexAID("enc key", keys.ENC)
	if err != nil {
		return err
	}
	mac, err := decodeHexAID("mac key", keys.MAC)
	if err != nil {
		return err
	}
	dek, err := decodeHexAID("dek key", keys.DEK)
	if err != nil {
		return err
	}
	sdAID, err := decodeHexAID("sd_aid", cfg.SDAID)
	if err != nil {
		return err
	}
	sec, err := securityLevelFromString(cfg.SecurityLevel)
	if err != nil {
		return err
	}

	m.agent.KVN = byte(kvn)
	m.agent.SecLvl = sec

	return m.agent.MutualAuth(gpagent.KeySet{ENC: enc, MAC: mac, DEK: dek}, sdAID)
}

// LoadAndInstall runs a CAP load followed by applet install, per one gpconfig.LoadConfig
// entry. defaultSDAID is used when the entry does not override it.
func (m *Manager) LoadAndInstall(job gpconfig.LoadConfig, defaultSDAID string) error {
	archiveData, err := os.ReadFile(job.CAPPath)
	if err != nil {
		return fmt.Errorf("contentmgr: reading %s: %w", job.CAPPath, err)
	}

	packageAID, err := decodeHexAID("package_aid", job.PackageAID)
	if err != nil {
		return err
	}
	appletAID, err := decodeHexAID("applet_aid", job.AppletAID)
	if err != nil {
		return err
	}
	instanceAID, err := decodeHexAID("instance_aid", job.InstanceAID)
	if err != nil {
		return err
	}
	if len(instanceAID) == 0 {
		instanceAID = appletAID
	}

	sdAIDHex := job.SDAID
	if sdAIDHex == "" {
		sdAIDHex = defaultSDAID
	}
	sdAID, err := decodeHexAID("sd_aid", sdAIDHex)
	if err != nil {
		return err
	}

	installParams, err := decodeHexAID("install_parameters", job.InstallParameters)
	if err != nil {
		return err
	}

	var privileges []byte
	for _, p := range job.Privileges {
		b, err := decodeHexAID("privilege", p)
		if err != nil {
			return err
		}
		privileges = append(privileges, b...)
	}

	if err := m.agent.LoadCAP(archiveData, packageAID, sdAID, nil, gpagent.LoadOptions{ApplyOrderToHead: true, ApplySizesToHead: true}); err != nil {
		return fmt.Errorf("contentmgr: loading %s: %w", job.CAPPath, err)
	}
	if err := m.agent.InstallApplet(packageAID, appletAID, instanceAID, privileges, installParams); err != nil {
		return fmt.Errorf("contentmgr: installing applet from %s: %w", job.CAPPath, err)
	}
	return nil
}

// Delete removes the content identified by the given hex AID.
func (m *Manager) Delete(aidHex string) error {
	aid, err := decodeHexAID("aid", aidHex)
	if err != nil {
		return err
	}
	return m.agent.DeleteContent(aid)
}

// List returns the card's application and package registries.
func (m *Manager) List() ([]gpregistry.Application, []gpregistry.Package, error) {
	return m.agent.ListContent(false)
}

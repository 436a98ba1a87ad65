// Package gpagent orchestrates GlobalPlatform content management against a card: ISD
// selection, mutual authentication (SCP02 or SCP03, chosen automatically via
// internal/gpcap), CAP loading, applet installation, content deletion, and registry
// listing. Grounded throughout on original_source/utils/gpagent.py's GPAgent class.
package gpagent

import (
	"bytes"
	"fmt"

	"gpcm/card"
	"gpcm/internal/gpcap"
	"gpcm/internal/gperr"
	"gpcm/internal/gpregistry"
)

// SessionState tracks where an Agent is in the ISD-select / mutual-auth lifecycle.
type SessionState int

const (
	StateUnselected SessionState = iota
	StateSelected
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateSelected:
		return "selected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unselected"
	}
}

// KeySet holds the three static GlobalPlatform keys used for mutual authentication.
type KeySet struct {
	ENC []byte
	MAC []byte
	DEK []byte
}

// Agent is a stateful GlobalPlatform content-management session bound to one reader.
type Agent struct {
	Reader *card.Reader

	state  SessionState
	sdAID  []byte
	scp    card.GPSession
	KVN    byte
	SecLvl card.GPSecurityLevel
}

// New returns an Agent bound to an already-connected reader.
func New(r *card.Reader) *Agent {
	return &Agent{Reader: r, SecLvl: card.GPSecMAC}
}

// State reports the current lifecycle state.
func (a *Agent) State() SessionState { return a.state }

// transmit adapts Reader.TransmitAPDU to the gpcap.Transmit signature, routing through the
// secure channel once one is established (mirrors GPAgent.send_apdu's dispatch).
func (a *Agent) transmit(apdu []byte) ([]byte, byte, byte, error) {
	if a.scp != nil {
		var le *byte
		if len(apdu) >= 5 {
			l := apdu[4]
			le = &l
		}
		cla, ins, p1, p2 := apdu[0], apdu[1], apdu[2], apdu[3]
		data := []byte{}
		if len(apdu) > 5 {
			data = apdu[5:]
		}
		resp, err := a.scp.WrapAndSend(cla, ins, p1, p2, data, le)
		if err != nil {
			return nil, 0, 0, err
		}
		return resp.Data, resp.SW1, resp.SW2, nil
	}
	resp, err := a.Reader.TransmitAPDU(apdu, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	return resp.Data, resp.SW1, resp.SW2, nil
}

// SelectISD selects the Issuer Security Domain. With an empty sdAID it SELECTs with no
// data and extracts the SD's own AID from the FCI tag 0x6F, mirroring select_isd's
// partial-SELECT fallback path.
func (a *Agent) SelectISD(sdAID []byte) error {
	if len(sdAID) > 0 {
		apdu := append([]byte{0x00, 0xA4, 0x04, 0x00, byte(len(sdAID))}, sdAID...)
		resp, err := a.Reader.SendAPDU(apdu)
		if err != nil {
			return fmt.Errorf("gpagent: select ISD: %w", err)
		}
		if !resp.IsOK() {
			return gperr.CardStatus("SELECT", resp.SW1, resp.SW2)
		}
		a.sdAID = sdAID
		a.state = StateSelected
		return nil
	}

	resp, err := a.Reader.SendAPDU([]byte{0x00, 0xA4, 0x04, 0x00, 0x00})
	if err != nil {
		return fmt.Errorf("gpagent: select ISD (no AID): %w", err)
	}
	if !resp.IsOK() {
		return gperr.CardStatus("SELECT", resp.SW1, resp.SW2)
	}

	fciIndex := bytes.IndexByte(resp.Data, 0x6F)
	if fciIndex < 0 || fciIndex+4 > len(resp.Data) {
		return fmt.Errorf("gpagent: FCI tag 6F not found in SELECT response")
	}
	aidLen := int(resp.Data[fciIndex+3])
	aidStart := fciIndex + 4
	if aidStart+aidLen > len(resp.Data) {
		return fmt.Errorf("gpagent: FCI AID extends past response")
	}
	isdAID := resp.Data[aidStart : aidStart+aidLen]

	apdu := append([]byte{0x00, 0xA4, 0x04, 0x00, byte(len(isdAID))}, isdAID...)
	resp, err = a.Reader.SendAPDU(apdu)
	if err != nil {
		return fmt.Errorf("gpagent: re-select ISD by extracted AID: %w", err)
	}
	if !resp.IsOK() {
		return gperr.CardStatus("SELECT", resp.SW1, resp.SW2)
	}

	a.sdAID = isdAID
	a.state = StateSelected
	return nil
}

// MutualAuth selects the ISD (if not already selected), detects the card's SCP protocol
// and key length via internal/gpcap, expands the given keys by repetition when that
// length is a whole multiple of a key's length (e.g. 16-byte material repeated to fill
// a 32-byte AES key, mirroring mutual_auth's key-repetition comment; a key whose length
// does not divide it, such as 16 bytes for AES-192, is passed on unchanged), and opens
// the secure channel.
func (a *Agent) MutualAuth(keys KeySet, sdAID []byte) error {
	if a.state == StateUnselected {
		if err := a.SelectISD(sdAID); err != nil {
			return err
		}
	}

	caps, err := gpcap.Detect(a.transmit)
	if err != nil {
		return fmt.Errorf("gpagent: capability detection: %w", err)
	}

	switch caps.Protocol {
	case gpcap.ProtocolSCP02:
		if caps.IParam != 0x15 && caps.IParam != 0x55 {
			return fmt.Errorf("gpagent: SCP02 implementation param %#02x not supported", caps.IParam)
		}
		hostChallenge, err := card.GenerateHostChallenge(8)
		if err != nil {
			return err
		}
		sess, err := card.OpenSCP02(a.Reader, card.GPKeySet{ENC: keys.ENC, MAC: keys.MAC, DEK: keys.DEK}, a.KVN, a.SecLvl, hostChallenge)
		if err != nil {
			return fmt.Errorf("gpagent: SCP02 mutual auth: %w", err)
		}
		a.scp = sess

	case gpcap.ProtocolSCP03:
		expand := func(k []byte) []byte {
			if len(k) == 0 || caps.KeyLength%len(k) != 0 {
				return k
			}
			out := make([]byte, 0, caps.KeyLength)
			for len(out) < caps.KeyLength {
				out = append(out, k...)
			}
			return out
		}
		enc := expand(keys.ENC)
		mac := expand(keys.MAC)
		dek := expand(keys.DEK)

		challengeLen := 8
		if caps.KeyLength > 16 {
			challengeLen = 16
		}
		hostChallenge, err := card.GenerateHostChallenge(challengeLen)
		if err != nil {
			return err
		}
		initUpdateAPDU := append([]byte{0x80, 0x50, 0x00, 0x00, byte(len(hostChallenge))}, hostChallenge...)
		resp, err := a.Reader.SendAPDU(initUpdateAPDU)
		if err != nil {
			return fmt.Errorf("gpagent: SCP03 INITIALIZE UPDATE: %w", err)
		}
		if !resp.IsOK() {
			return gperr.CardStatus("INITIALIZE UPDATE", resp.SW1, resp.SW2)
		}
		sess, err := card.OpenSCP03FromInitUpdate(a.Reader, a.KVN, a.SecLvl, card.GPKeySet{ENC: enc, MAC: mac, DEK: dek}, hostChallenge, resp.Data)
		if err != nil {
			return fmt.Errorf("gpagent: SCP03 mutual auth: %w", err)
		}
		a.scp = sess

	default:
		return fmt.Errorf("gpagent: card does not advertise a supported secure channel protocol")
	}

	a.state = StateAuthenticated
	return nil
}

func (a *Agent) requireAuthenticated(op string) error {
	if a.state != StateAuthenticated || a.scp == nil {
		return fmt.Errorf("gpagent: %s: %w", op, gperr.ErrNotAuthenticated)
	}
	return nil
}

func (a *Agent) secureSend(cla, ins, p1, p2 byte, data []byte) (*card.APDUResponse, error) {
	le := byte(0x00)
	return a.scp.WrapAndSend(cla, ins, p1, p2, data, &le)
}

// DeleteContent issues DELETE [object/cascade] for the given AID.
func (a *Agent) DeleteContent(aid []byte) error {
	if err := a.requireAuthenticated("delete content"); err != nil {
		return err
	}
	data := append([]byte{0x4F, byte(len(aid))}, aid...)
	resp, err := a.secureSend(0x80, 0xE4, 0x00, 0x80, data)
	if err != nil {
		return fmt.Errorf("gpagent: DELETE: %w", err)
	}
	if !resp.IsOK() {
		return gperr.CardStatus("DELETE", resp.SW1, resp.SW2)
	}
	return nil
}

// ListContent reads the ISD, application, and package registries via paginated
// GET STATUS, mirroring list_content's SW=6310 continuation loop per data kind.
func (a *Agent) ListContent(deprecated bool) ([]gpregistry.Application, []gpregistry.Package, error) {
	if err := a.requireAuthenticated("list content"); err != nil {
		return nil, nil, err
	}

	dataStruct := byte(0x02)
	if deprecated {
		dataStruct = 0x00
	}

	fetchAll := func(p1 byte) ([]byte, error) {
		var all []byte
		resp, err := a.secureSend(0x80, 0xF2, p1, dataStruct, []byte{0x4F, 0x00})
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		for resp.SW1 == 0x63 && resp.SW2 == 0x10 {
			resp, err = a.secureSend(0x80, 0xF2, p1, dataStruct|0x01, []byte{0x4F, 0x00})
			if err != nil {
				return nil, err
			}
			all = append(all, resp.Data...)
		}
		if resp.SW1 != 0x90 || resp.SW2 != 0x00 {
			return nil, gperr.CardStatus("GET STATUS", resp.SW1, resp.SW2)
		}
		return all, nil
	}

	isdInfo, err := fetchAll(0x80)
	if err != nil {
		return nil, nil, fmt.Errorf("gpagent: GET STATUS (ISD): %w", err)
	}
	appsInfo, err := fetchAll(0x40)
	if err != nil {
		return nil, nil, fmt.Errorf("gpagent: GET STATUS (applications): %w", err)
	}
	pkgInfo, err := fetchAll(0x10)
	if err != nil {
		return nil, nil, fmt.Errorf("gpagent: GET STATUS (packages): %w", err)
	}

	applications, err := gpregistry.ParseApplications(append(isdInfo, appsInfo...))
	if err != nil {
		return nil, nil, fmt.Errorf("gpagent: parsing application registry: %w", err)
	}
	packages, err := gpregistry.ParsePackages(pkgInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("gpagent: parsing package registry: %w", err)
	}
	return applications, packages, nil
}

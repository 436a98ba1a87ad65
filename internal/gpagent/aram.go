package gpagent

import (
	"fmt"

	"gpcm/internal/gperr"
)

// ARAMRule is a minimal representation of a single ARA-M (Access Rule Application Master)
// access rule, as used by Android Carrier Privileges / Secure Element access control
// (GlobalPlatform SE Access Control / GP Amendment B REF-AR-DO).
type ARAMRule struct {
	// TargetAID is the AID the rule applies to. Use FFFFFFFFFFFF to match any AID (wildcard).
	TargetAID []byte
	// CertHash is the SHA-1 (20 bytes) or SHA-256 (32 bytes) hash of the signing certificate.
	CertHash []byte
	// Perm is PERM-AR-DO (DB) value. Commonly 8 bytes.
	Perm []byte
	// ApduRule is APDU-AR-DO (D0) value. 0x01 means ALWAYS allow (common).
	ApduRule byte
}

func tlv(tag byte, value []byte) []byte {
	out := make([]byte, 0, 2+len(value))
	out = append(out, tag, byte(len(value)))
	out = append(out, value...)
	return out
}

// buildARAMStoreData builds a single-block STORE DATA payload for adding one ARA-M rule:
// E2 (REF-AR-DO) { E1 (REF-DO) { 4F (AID-REF-DO), C1 (DeviceAppID-REF-DO) } , E3 (AR-DO) { D0, DB } }
func buildARAMStoreData(rule ARAMRule) ([]byte, error) {
	if len(rule.TargetAID) == 0 {
		return nil, fmt.Errorf("gpagent: ARA-M rule: empty TargetAID")
	}
	if len(rule.CertHash) != 20 && len(rule.CertHash) != 32 {
		return nil, fmt.Errorf("gpagent: ARA-M rule: CertHash must be 20 (SHA-1) or 32 (SHA-256) bytes, got %d", len(rule.CertHash))
	}
	if len(rule.Perm) == 0 {
		return nil, fmt.Errorf("gpagent: ARA-M rule: empty Perm")
	}

	refDo := make([]byte, 0, 2+len(rule.TargetAID)+2+len(rule.CertHash))
	refDo = append(refDo, tlv(0x4F, rule.TargetAID)...) // AID-REF-DO
	refDo = append(refDo, tlv(0xC1, rule.CertHash)...)  // DeviceAppID-REF-DO

	arDo := make([]byte, 0, 2+1+2+len(rule.Perm))
	arDo = append(arDo, tlv(0xD0, []byte{rule.ApduRule})...) // APDU-AR-DO
	arDo = append(arDo, tlv(0xDB, rule.Perm)...)             // PERM-AR-DO

	e1 := tlv(0xE1, refDo)
	e3 := tlv(0xE3, arDo)

	payload := make([]byte, 0, 2+len(e1)+len(e3))
	payload = append(payload, e1...)
	payload = append(payload, e3...)

	return tlv(0xE2, payload), nil
}

// StoreARAMRule SELECTs the ARA-M applet (best-effort; some setups route STORE DATA without
// a prior SELECT) and stores one access rule over the already-authenticated secure channel.
// Different cards expect different STORE DATA P1 structure hints, so a small set of common
// values is tried in turn.
func (a *Agent) StoreARAMRule(aramAID []byte, rule ARAMRule) error {
	if err := a.requireAuthenticated("store ARA-M rule"); err != nil {
		return err
	}

	_, _ = a.Reader.SendAPDU(append([]byte{0x00, 0xA4, 0x04, 0x00, byte(len(aramAID))}, aramAID...))

	payload, err := buildARAMStoreData(rule)
	if err != nil {
		return err
	}

	var lastErr error
	for _, p1 := range []byte{0x80, 0x90, 0xA0} {
		resp, err := a.secureSend(0x80, 0xE2, p1, 0x00, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.IsOK() {
			return nil
		}
		lastErr = gperr.CardStatus("STORE DATA", resp.SW1, resp.SW2)
	}
	return lastErr
}

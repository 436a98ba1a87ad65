package card

import (
	"fmt"

	"gpcm/internal/gpcap"
)

// ProbeSecureChannelAuto attempts a full mutual authentication against an
// already-SELECTed security domain with the given static keys and KVN,
// auto-detecting SCP02 vs SCP03 via internal/gpcap.Detect. It returns nil only if
// authentication fully succeeds and discards the resulting session, so callers get
// a bare yes/no answer for one candidate keyset/KVN without needing an
// internal/gpagent.Agent. Mirrors gpagent.Agent.MutualAuth's protocol dispatch.
func ProbeSecureChannelAuto(r *Reader, static GPKeySet, kvn byte, hostChallenge []byte) error {
	transmit := func(apdu []byte) ([]byte, byte, byte, error) {
		resp, err := r.TransmitAPDU(apdu, nil)
		if err != nil {
			return nil, 0, 0, err
		}
		return resp.Data, resp.SW1, resp.SW2, nil
	}

	caps, err := gpcap.Detect(transmit)
	if err != nil {
		return fmt.Errorf("card: capability detection: %w", err)
	}

	switch caps.Protocol {
	case gpcap.ProtocolSCP02:
		if caps.IParam != 0x15 && caps.IParam != 0x55 {
			return fmt.Errorf("card: SCP02 implementation param %#02x not supported", caps.IParam)
		}
		hc := hostChallenge
		if len(hc) != 8 {
			hc, err = GenerateHostChallenge(8)
			if err != nil {
				return err
			}
		}
		_, err := OpenSCP02(r, static, kvn, GPSecMAC, hc)
		return err

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
		enc := expand(static.ENC)
		mac := expand(static.MAC)
		dek := expand(static.DEK)

		challengeLen := 8
		if caps.KeyLength > 16 {
			challengeLen = 16
		}
		hc := hostChallenge
		if len(hc) != challengeLen {
			hc, err = GenerateHostChallenge(challengeLen)
			if err != nil {
				return err
			}
		}

		initUpdateAPDU := append([]byte{0x80, 0x50, 0x00, 0x00, byte(len(hc))}, hc...)
		resp, err := r.TransmitAPDU(initUpdateAPDU, nil)
		if err != nil {
			return fmt.Errorf("card: SCP03 INITIALIZE UPDATE: %w", err)
		}
		if !resp.IsOK() {
			return fmt.Errorf("card: INITIALIZE UPDATE failed: SW=%s", SWToString(resp.SW()))
		}
		_, err = OpenSCP03FromInitUpdate(r, kvn, GPSecMAC, GPKeySet{ENC: enc, MAC: mac, DEK: dek}, hc, resp.Data)
		return err

	default:
		return fmt.Errorf("card: no supported secure channel protocol detected")
	}
}

package gpcap

import "fmt"

// Transmit sends a raw APDU and returns response data plus status bytes. It abstracts
// over the transport so this package stays independent of any particular reader or
// secure-channel implementation; callers typically adapt card.Reader.TransmitAPDU.
type Transmit func(apdu []byte) (data []byte, sw1, sw2 byte, err error)

// Capabilities is the detected secure channel protocol, implementation parameter, and
// key length a card expects for mutual authentication.
type Capabilities struct {
	Protocol  Protocol
	IParam    byte
	KeyLength int
}

var (
	crdTag     = []byte{0x00, 0x66}
	keyInfoTag = []byte{0x00, 0xE0}
)

// Detect determines SCP protocol, "i" parameter, and key length by reading GET DATA
// (Card Recognition Data and Key Information templates), falling back to an active
// INIT UPDATE probe when those templates do not resolve the question. Grounded on
// original_source/utils/gpagent.py::determineSCPAndKeyLength/activeSCPInfoDetection.
func Detect(tx Transmit) (Capabilities, error) {
	crd, _, _, err := tx(append([]byte{0x80, 0xCA}, append(crdTag, 0x00)...))
	if err != nil {
		return Capabilities{}, fmt.Errorf("gpcap: reading card recognition data: %w", err)
	}
	iParams, err := ParseSCPAndIParam(crd)
	if err != nil {
		return Capabilities{}, fmt.Errorf("gpcap: parsing card recognition data: %w", err)
	}

	keyInfoRaw, _, _, err := tx(append([]byte{0x80, 0xCA}, append(keyInfoTag, 0x00)...))
	if err != nil {
		return Capabilities{}, fmt.Errorf("gpcap: reading key information template: %w", err)
	}
	keys, err := ParseKeyInfo(keyInfoRaw)
	if err != nil {
		return Capabilities{}, fmt.Errorf("gpcap: parsing key information template: %w", err)
	}

	scp02IParam, hasSCP02 := iParams[ProtocolSCP02]
	scp03IParam, hasSCP03 := iParams[ProtocolSCP03]

	// First AES/DES key under key ID 0x01 is assumed to be the SCP key used for
	// INIT UPDATE with P1=0x00.
	findComponent := func(want string) (KeyComponent, bool) {
		for _, k := range keys {
			if k.KeyID != 0x01 {
				continue
			}
			for _, c := range k.Components {
				if c.Type == want {
					return c, true
				}
			}
		}
		return KeyComponent{}, false
	}

	switch {
	case hasSCP02 && !hasSCP03:
		return Capabilities{Protocol: ProtocolSCP02, IParam: scp02IParam, KeyLength: KeyLength2K3DES}, nil

	case hasSCP03 && !hasSCP02:
		if c, ok := findComponent("AES"); ok {
			return Capabilities{Protocol: ProtocolSCP03, IParam: scp03IParam, KeyLength: c.Length}, nil
		}

	case hasSCP02 && hasSCP03:
		if c, ok := findComponent("AES"); ok {
			return Capabilities{Protocol: ProtocolSCP03, IParam: scp03IParam, KeyLength: c.Length}, nil
		}
		if c, ok := findComponent("DES"); ok {
			return Capabilities{Protocol: ProtocolSCP02, IParam: scp02IParam, KeyLength: c.Length}, nil
		}
	}

	return activeProbe(tx, keys)
}

// activeProbe sends a redundant INIT UPDATE (P1=0x00) and inspects the key version and
// SCP identifier byte in the response to resolve what GET DATA left ambiguous.
func activeProbe(tx Transmit, keys []KeyInfo) (Capabilities, error) {
	challenge := make([]byte, 8)
	apdu := append([]byte{0x80, 0x50, 0x00, 0x00, byte(len(challenge))}, challenge...)
	resp, sw1, sw2, err := tx(apdu)
	if err != nil {
		return Capabilities{}, fmt.Errorf("gpcap: active probe: %w", err)
	}

	// A longer challenge is expected; this implicitly means SCP03 in S16 mode.
	if sw1 == 0x67 && sw2 == 0x00 {
		challenge = make([]byte, 16)
		apdu = append([]byte{0x80, 0x50, 0x00, 0x00, byte(len(challenge))}, challenge...)
		resp, sw1, sw2, err = tx(apdu)
		if err != nil {
			return Capabilities{}, fmt.Errorf("gpcap: active probe retry: %w", err)
		}
	}

	if sw1 != 0x90 || sw2 != 0x00 {
		return Capabilities{Protocol: ProtocolNone}, nil
	}
	if len(resp) < 13 {
		return Capabilities{}, fmt.Errorf("gpcap: active probe response too short: %d bytes", len(resp))
	}

	keyVersion := resp[10]
	scpProto := resp[11]

	switch scpProto {
	case 0x02:
		// The implementation parameter cannot be recovered from this response; 0x15
		// (i=21, the most common SCP02 variant) is assumed.
		return Capabilities{Protocol: ProtocolSCP02, IParam: 0x15, KeyLength: KeyLength2K3DES}, nil
	case 0x03:
		for _, k := range keys {
			if k.KeyID != 0x01 || k.KeyVersion != keyVersion {
				continue
			}
			for _, c := range k.Components {
				if c.Type == "AES" {
					return Capabilities{Protocol: ProtocolSCP03, IParam: resp[12], KeyLength: c.Length}, nil
				}
			}
		}
	}

	return Capabilities{Protocol: ProtocolNone}, nil
}

// Package gpcap determines which Secure Channel Protocol a card supports and the
// key length it expects, from the Card Recognition Data and Key Information
// templates exposed by GET DATA, falling back to an active probe when those
// templates are inconclusive. Grounded in
// original_source/utils/gpagent.py::determineSCPAndKeyLength/activeSCPInfoDetection
// and original_source/utils/gpdata.py::get_scp_proto_and_i_param/get_parsed_key_info.
package gpcap

import (
	"fmt"

	"gpcm/internal/bertlv"
)

// Protocol identifies a GlobalPlatform Secure Channel Protocol.
type Protocol int

const (
	ProtocolNone Protocol = iota
	ProtocolSCP02
	ProtocolSCP03
)

func (p Protocol) String() string {
	switch p {
	case ProtocolSCP02:
		return "SCP02"
	case ProtocolSCP03:
		return "SCP03"
	default:
		return "none"
	}
}

// KeyLength values, in bytes, for the symmetric key types this package cares about.
const (
	KeyLength2K3DES = 16
	KeyLengthAES128 = 16
	KeyLengthAES192 = 24
	KeyLengthAES256 = 32
)

// KeyComponent is one parsed key-component entry of a Key Information template entry
// (a key may carry several components, e.g. ENC/MAC/DEK under one key version).
type KeyComponent struct {
	Type   string // human-readable type, e.g. "AES", "DES"
	Length int    // in bytes
}

// KeyInfo is one parsed entry of the 0xE0/0xC0 Key Information template.
type KeyInfo struct {
	KeyID      byte
	KeyVersion byte
	Components []KeyComponent
	Usage      []byte
	Access     []byte
}

// keyTypeNames mirrors gpdata.py::_get_key_type_str's lookup table, trimmed to the
// symmetric types this package distinguishes between; everything else renders as
// "Unknown/<hex>".
var keyTypeNames = map[byte]string{
	0x80: "DES",
	0x85: "TLS Pre-Shared",
	0x88: "AES",
	0x90: "HMAC-SHA1",
	0x91: "HMAC-SHA1-160",
}

func keyTypeName(b byte) string {
	if name, ok := keyTypeNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Unknown/%02X", b)
}

// ParseKeyInfo decodes a GET DATA (Key Information template, tag 00E0) response body
// into one entry per key, taking each C0 entry under the E0 template.
func ParseKeyInfo(data []byte) ([]KeyInfo, error) {
	nodes, err := bertlv.Parse(data)
	if err != nil {
		return nil, err
	}
	entries := bertlv.FindAllNodes(nodes, []string{"E0", "C0"})
	if len(entries) == 0 {
		entries = bertlv.FindAllNodes(nodes, []string{"C0"})
	}

	var keys []KeyInfo
	for _, e := range entries {
		ki, err := parseKeyInfoEntry(e.Value)
		if err != nil {
			return nil, err
		}
		keys = append(keys, ki)
	}
	return keys, nil
}

func parseKeyInfoEntry(b []byte) (KeyInfo, error) {
	var ki KeyInfo
	if len(b) < 3 {
		return ki, fmt.Errorf("gpcap: key info entry too short")
	}
	ki.KeyID = b[0]
	ki.KeyVersion = b[1]
	extended := b[2] == 0xFF
	pos := 2

	for pos < len(b) {
		var componentType []byte
		var componentLength int

		if extended {
			if pos+2 > len(b) {
				break
			}
			if b[pos] != 0xFF {
				break
			}
			componentType = b[pos : pos+2]
			pos += 2
			if pos+2 > len(b) {
				return ki, fmt.Errorf("gpcap: truncated key component length")
			}
			componentLength = int(b[pos])<<8 | int(b[pos+1])
			pos += 2
		} else {
			if pos+2 > len(b) {
				break
			}
			componentType = b[pos : pos+1]
			componentLength = int(b[pos+1])
			pos += 2
		}

		ki.Components = append(ki.Components, KeyComponent{
			Type:   keyTypeName(componentType[len(componentType)-1]),
			Length: componentLength,
		})

		if pos >= len(b) {
			return ki, fmt.Errorf("gpcap: truncated key type byte")
		}
		keyType := b[pos]
		pos++
		if keyType == 0xFF {
			pos++ // two-byte key type, second byte unused here
		}

		var keyDataLength int
		if extended {
			if pos+2 > len(b) {
				return ki, fmt.Errorf("gpcap: truncated key data length")
			}
			keyDataLength = int(b[pos])<<8 | int(b[pos+1])
			pos += 2
		} else {
			if pos+1 > len(b) {
				return ki, fmt.Errorf("gpcap: truncated key data length")
			}
			keyDataLength = int(b[pos])
			pos++
		}
		pos += keyDataLength // key data itself is not retained
	}

	if extended && pos < len(b) {
		usageLen := int(b[pos])
		pos++
		if pos+usageLen > len(b) {
			return ki, fmt.Errorf("gpcap: truncated key usage")
		}
		ki.Usage = b[pos : pos+usageLen]
		pos += usageLen

		if pos < len(b) {
			accessLen := int(b[pos])
			pos++
			if pos+accessLen > len(b) {
				return ki, fmt.Errorf("gpcap: truncated key access")
			}
			ki.Access = b[pos : pos+accessLen]
			pos += accessLen
		}
	}

	return ki, nil
}

// ParseSCPAndIParam decodes a GET DATA (Card Recognition Data, tag 0066) response,
// returning each SCP protocol's "i" implementation parameter as advertised in the
// card's SCP OIDs. Per the original implementation's documented assumption, a card is
// taken to support at most one "i" value per protocol.
func ParseSCPAndIParam(crd []byte) (map[Protocol]byte, error) {
	nodes, err := bertlv.Parse(crd)
	if err != nil {
		return nil, err
	}
	result := map[Protocol]byte{}
	for _, el := range bertlv.FindAllNodes(nodes, []string{"66", "73", "64"}) {
		for _, oid := range bertlv.FindAllNodes([]bertlv.Node{el}, []string{"06"}) {
			if len(oid.Value) < 2 {
				continue
			}
			scpProto := oid.Value[len(oid.Value)-2]
			iParam := oid.Value[len(oid.Value)-1]
			switch scpProto {
			case 0x02:
				result[ProtocolSCP02] = iParam
			case 0x03:
				result[ProtocolSCP03] = iParam
			}
		}
	}
	return result, nil
}

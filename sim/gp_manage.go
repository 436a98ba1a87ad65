package sim

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gpcm/card"
)

// GPConfig contains parameters for GlobalPlatform operations.
// For now we implement SCP02 with static ENC/MAC/DEK keys.
type GPConfig struct {
	KVN        byte
	Security   card.GPSecurityLevel
	StaticKeys card.GPKeySet
	SDAID      []byte // ISD/Card Manager AID to select (optional)
	BlockSize  int    // LOAD block size (bytes, before MAC)
}

func ParseHexBytes(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, "0x", "")
	if s == "" {
		return nil, fmt.Errorf("empty hex string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func ParseAIDHex(s string) ([]byte, error) {
	b, err := ParseHexBytes(s)
	if err != nil {
		return nil, fmt.Errorf("invalid AID hex: %w", err)
	}
	if len(b) < 5 || len(b) > 16 {
		// AID length can vary, but this keeps us safe from obvious mistakes
		return nil, fmt.Errorf("unexpected AID length %d (expected 5..16 bytes)", len(b))
	}
	return b, nil
}

func ParseGPSecurityLevel(s string) (card.GPSecurityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mac", "c-mac", "cmac", "01", "0x01":
		return card.GPSecMAC, nil
	case "mac+enc", "cmac+cenc", "c-mac+c-enc", "03", "0x03":
		return card.GPSecMACENC, nil
	default:
		return 0, fmt.Errorf("unknown GP security level: %s (use: mac, mac+enc)", s)
	}
}

// GPSelectVerify selects an AID and returns SW.
func GPSelectVerify(reader *card.Reader, aid []byte) (uint16, error) {
	resp, err := reader.Select(aid)
	if err != nil {
		return 0, err
	}
	return resp.SW(), nil
}

// ParseAIDList parses comma-separated hex AIDs.
func ParseAIDList(s string) ([][]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	var out [][]byte
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		aid, err := ParseAIDHex(p)
		if err != nil {
			return nil, err
		}
		out = append(out, aid)
	}
	return out, nil
}

// EnsureFileExists checks path exists (helpful for user-facing error).
func EnsureFileExists(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	_, err := os.Stat(path)
	if err != nil {
		return err
	}
	return nil
}

// ReadICCIDQuick selects the MF and reads EF_ICCID (2FE2), trying GSM class (CLA=A0)
// selection if the plain ISO SELECT fails. Used by DMS auto-probe to match a card
// against its provisioning row by ICCID without a full USIM data read.
func ReadICCIDQuick(reader *card.Reader) (string, error) {
	resp, err := reader.Select([]byte{0x3F, 0x00})
	if err != nil || !resp.IsOK() {
		reader.SelectGSM([]byte{0x3F, 0x00})
	}

	resp, err = reader.Select([]byte{0x2F, 0xE2})
	if err != nil || resp == nil || !resp.IsOK() {
		resp, err = reader.SelectGSM([]byte{0x2F, 0xE2})
		if err != nil {
			return "", err
		}
		if !resp.IsOK() {
			return "", fmt.Errorf("select EF_ICCID failed: %s", card.SWToString(resp.SW()))
		}
		resp, err = reader.ReadBinaryGSM(0, 10)
	} else {
		resp, err = reader.ReadBinary(0, 10)
	}
	if err != nil {
		return "", err
	}
	if !resp.IsOK() {
		return "", fmt.Errorf("read EF_ICCID failed: %s", card.SWToString(resp.SW()))
	}

	return decodeICCIDBCD(resp.Data), nil
}

// decodeICCIDBCD decodes an ICCID from its swapped-BCD on-card encoding (10 bytes).
func decodeICCIDBCD(data []byte) string {
	if len(data) < 10 {
		return hex.EncodeToString(data)
	}
	var sb strings.Builder
	for _, b := range data[:10] {
		low, high := b&0x0F, (b>>4)&0x0F
		if low <= 9 {
			sb.WriteByte('0' + low)
		}
		if high <= 9 {
			sb.WriteByte('0' + high)
		}
	}
	return sb.String()
}

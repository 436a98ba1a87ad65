package gpagent

import (
	"bytes"
	"fmt"
	"strings"

	"gpcm/internal/capfile"
	"gpcm/internal/gperr"
)

// normalInstallOrder is the component load order GlobalPlatform expects, keyed by the
// component's normalized name (as produced by capfile.OpenArchive, case-insensitive
// regardless of whether the archive used compact (.cap) or extended (.capx) framing).
// Mirrors NORMAL_INSTALL_ORDER.
var normalInstallOrder = []string{
	"header",
	"directory",
	"import",
	"applet",
	"class",
	"method",
	"staticfield",
	"export",
	"constantpool",
	"reflocation",
	"staticresources",
	"descriptor",
}

// reorderComponents returns archive component payloads (keyed by capfile.Archive's
// normalized component names) in GlobalPlatform load order. The Debug component is
// dropped (it is never loaded onto the card); a non-empty order overrides the default,
// either prepended to it or appended, depending on applyOrderToHead. Mirrors
// _get_reordered_components.
func reorderComponents(components map[string][]byte, order []string, applyOrderToHead bool) [][]byte {
	components = copyComponents(components)
	delete(components, "Debug")

	var reference []string
	if len(order) == 0 {
		reference = normalInstallOrder
	} else {
		requested := make([]string, 0, len(order))
		seen := map[string]bool{}
		for _, item := range order {
			name := strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(item, ".capx"), ".cap"))
			requested = append(requested, name)
		}
		if applyOrderToHead {
			reference = dedupe(append(append([]string{}, requested...), normalInstallOrder...), seen)
		} else {
			reversedRequested := reverseStrings(requested)
			reversedDefault := reverseStrings(normalInstallOrder)
			reference = reverseStrings(dedupe(append(reversedRequested, reversedDefault...), seen))
		}
	}

	var ordered [][]byte
	used := map[string]bool{}
	for _, name := range reference {
		for fileName, data := range components {
			if strings.HasPrefix(strings.ToLower(fileName), name) {
				ordered = append(ordered, data)
				used[fileName] = true
			}
		}
	}
	for fileName, data := range components {
		if !used[fileName] {
			ordered = append(ordered, data)
		}
	}
	return ordered
}

func copyComponents(m map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dedupe(items []string, seen map[string]bool) []string {
	var out []string
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

func reverseStrings(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// encodeBERLength encodes a length in BER-TLV short or long form.
func encodeBERLength(length int) []byte {
	if length <= 0x7F {
		return []byte{byte(length)}
	}
	needed := 0
	for n := length; n > 0; n >>= 8 {
		needed++
	}
	out := make([]byte, 1+needed)
	out[0] = 0x80 | byte(needed)
	for i := needed; i >= 1; i-- {
		out[i] = byte(length)
		length >>= 8
	}
	return out
}

// buildLoadFileDataBlock concatenates component payloads (already reordered) and wraps
// them in a tag-0xC4 BER-TLV, the Load File Data Block GlobalPlatform's LOAD command
// expects.
func buildLoadFileDataBlock(components [][]byte) []byte {
	var payload []byte
	for _, c := range components {
		payload = append(payload, c...)
	}
	out := append([]byte{0xC4}, encodeBERLength(len(payload))...)
	return append(out, payload...)
}

const defaultLoadChunkSize = 100

// loadChunks splits a Load File Data Block into LOAD-command chunks. With no explicit
// chunkSizes it simply slices into fixed-size pieces. With chunkSizes given, those sizes
// are consumed first (from the tail when applySizesToHead is false, mirroring the
// reverse-then-split-then-reverse trick in _get_load_chunks) and any remaining bytes
// fall back to the default chunk size.
func loadChunks(lfdb []byte, chunkSizes []int, applySizesToHead bool) [][]byte {
	if len(chunkSizes) == 0 {
		return fixedChunks(lfdb, defaultLoadChunkSize)
	}

	sizes := append([]int{}, chunkSizes...)
	data := lfdb
	if !applySizesToHead {
		sizes = reverseInts(sizes)
		data = reverseBytes(data)
	}

	remaining := len(data)
	offset := 0
	var chunks [][]byte
	for len(sizes) > 0 {
		size := sizes[0]
		sizes = sizes[1:]
		if size > remaining {
			break
		}
		chunks = append(chunks, data[offset:offset+size])
		offset += size
		remaining -= size
	}
	if remaining > 0 {
		chunks = append(chunks, fixedChunks(data[len(data)-remaining:], defaultLoadChunkSize)...)
	}

	if !applySizesToHead {
		chunks = reverseChunkBytes(chunks)
	}
	return chunks
}

func fixedChunks(data []byte, size int) [][]byte {
	var out [][]byte
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[i:end])
	}
	return out
}

func reverseInts(in []int) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func reverseBytes(in []byte) []byte {
	out := make([]byte, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func reverseChunkBytes(chunks [][]byte) [][]byte {
	out := make([][]byte, len(chunks))
	for i, c := range chunks {
		out[len(chunks)-1-i] = reverseBytes(c)
	}
	return out
}

// LoadOptions customizes CAP component ordering and LOAD-command chunking.
type LoadOptions struct {
	ComponentsOrder  []string
	ApplyOrderToHead bool
	ChunkSizes       []int
	ApplySizesToHead bool
}

// LoadCAP performs INSTALL [for load] followed by the chunked LOAD command sequence for
// the given CAP/CAPX archive. Mirrors load_cap.
func (a *Agent) LoadCAP(archiveData []byte, capAID, sdAID []byte, loadParams []byte, opts LoadOptions) error {
	if err := a.requireAuthenticated("load CAP"); err != nil {
		return err
	}

	archive, err := capfile.OpenArchive(bytes.NewReader(archiveData), int64(len(archiveData)))
	if err != nil {
		return fmt.Errorf("gpagent: opening CAP archive: %w", err)
	}

	lfdbh := []byte{}
	token := []byte{}
	lc := 1 + len(capAID) + 1 + len(sdAID) + 1 + len(lfdbh) + 1 + len(loadParams) + 1 + len(token)
	if lc > 0xFF {
		return fmt.Errorf("gpagent: INSTALL [for load] data too long: %d bytes", lc)
	}

	data := make([]byte, 0, lc)
	data = append(data, byte(len(capAID)))
	data = append(data, capAID...)
	data = append(data, byte(len(sdAID)))
	data = append(data, sdAID...)
	data = append(data, byte(len(lfdbh)))
	data = append(data, lfdbh...)
	data = append(data, byte(len(loadParams)))
	data = append(data, loadParams...)
	data = append(data, byte(len(token)))
	data = append(data, token...)

	resp, err := a.secureSend(0x80, 0xE6, 0x02, 0x00, data)
	if err != nil {
		return fmt.Errorf("gpagent: INSTALL [for load]: %w", err)
	}
	if !resp.IsOK() {
		return gperr.CardStatus("INSTALL [for load]", resp.SW1, resp.SW2)
	}

	ordered := reorderComponents(archive.Components, opts.ComponentsOrder, opts.ApplyOrderToHead)
	lfdb := buildLoadFileDataBlock(ordered)
	chunks := loadChunks(lfdb, opts.ChunkSizes, opts.ApplySizesToHead)

	for i, chunk := range chunks {
		p1 := byte(0x00)
		if i == len(chunks)-1 {
			p1 = 0x80
		}
		resp, err := a.secureSend(0x80, 0xE8, p1, byte(i), chunk)
		if err != nil {
			return fmt.Errorf("gpagent: LOAD chunk %d: %w", i, err)
		}
		if !resp.IsOK() {
			return gperr.CardStatus(fmt.Sprintf("LOAD chunk %d", i), resp.SW1, resp.SW2)
		}
	}

	return nil
}

// InstallApplet performs INSTALL [for install and make selectable]. Mirrors
// install_applet.
func (a *Agent) InstallApplet(capAID, classAID, instanceAID []byte, privileges, installParams []byte) error {
	if err := a.requireAuthenticated("install applet"); err != nil {
		return err
	}
	if len(privileges) == 0 {
		privileges = []byte{0x00}
	}
	token := []byte{}
	lc := 1 + len(capAID) + 1 + len(classAID) + 1 + len(instanceAID) + 1 + len(privileges) + 1 + len(installParams) + 1 + len(token)
	if lc > 0xFF {
		return fmt.Errorf("gpagent: INSTALL data too long: %d bytes", lc)
	}

	data := make([]byte, 0, lc)
	data = append(data, byte(len(capAID)))
	data = append(data, capAID...)
	data = append(data, byte(len(classAID)))
	data = append(data, classAID...)
	data = append(data, byte(len(instanceAID)))
	data = append(data, instanceAID...)
	data = append(data, byte(len(privileges)))
	data = append(data, privileges...)
	data = append(data, byte(len(installParams)))
	data = append(data, installParams...)
	data = append(data, byte(len(token)))
	data = append(data, token...)

	resp, err := a.secureSend(0x80, 0xE6, 0x0C, 0x00, data)
	if err != nil {
		return fmt.Errorf("gpagent: INSTALL [for install and make selectable]: %w", err)
	}
	if !resp.IsOK() {
		return gperr.CardStatus("INSTALL [for install and make selectable]", resp.SW1, resp.SW2)
	}
	return nil
}

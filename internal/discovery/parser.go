package discovery

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"

	"solana-launch-sniper/internal/codec"
	"solana-launch-sniper/internal/domain"
)

// LaunchParser extracts launch events from transaction logs.
type LaunchParser interface {
	// ParseLaunchEvents extracts pool-creation events from transaction logs.
	ParseLaunchEvents(logs []string, txSig string, slot int64) []*LaunchEvent
}

// programDataPattern matches base64-encoded anchor event payloads.
var programDataPattern = regexp.MustCompile(`Program data: ([A-Za-z0-9+/=]+)`)

// curveCreateEventDisc is the anchor discriminator of the bonding-curve
// CreateEvent payload.
var curveCreateEventDisc = []byte{0x1b, 0x72, 0xa9, 0x4d, 0xde, 0xeb, 0x63, 0x76}

// CurveLaunchParser parses bonding-curve token creations. The create
// transaction emits an anchor event carrying the mint and creator, so no
// follow-up transaction fetch is needed.
type CurveLaunchParser struct {
	createPattern *regexp.Regexp
}

// NewCurveLaunchParser creates a bonding-curve launch parser.
func NewCurveLaunchParser() *CurveLaunchParser {
	return &CurveLaunchParser{
		createPattern: regexp.MustCompile(`Program log: Instruction: Create`),
	}
}

// ParseLaunchEvents extracts token creations from bonding-curve program logs.
func (p *CurveLaunchParser) ParseLaunchEvents(logs []string, txSig string, slot int64) []*LaunchEvent {
	var events []*LaunchEvent
	inProgram := false
	sawCreate := false

	for _, line := range logs {
		if strings.Contains(line, "Program "+codec.BondingCurveProgramID+" invoke") {
			inProgram = true
			sawCreate = false
			continue
		}
		if strings.Contains(line, "Program "+codec.BondingCurveProgramID+" success") ||
			strings.Contains(line, "Program "+codec.BondingCurveProgramID+" failed") {
			inProgram = false
			sawCreate = false
			continue
		}
		if !inProgram {
			continue
		}

		if p.createPattern.MatchString(line) {
			sawCreate = true
			continue
		}
		if !sawCreate {
			continue
		}

		match := programDataPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(match[1])
		if err != nil {
			continue
		}

		mint, creator, ok := parseCurveCreateEvent(data)
		if !ok {
			continue
		}

		events = append(events, &LaunchEvent{
			Mint:      mint,
			Platform:  domain.PlatformBondingCurve,
			Developer: creator,
			Signature: txSig,
			Slot:      slot,
		})
		sawCreate = false
	}

	return events
}

// parseCurveCreateEvent decodes the CreateEvent payload:
// discriminator(8) + name(borsh string) + symbol(borsh string) +
// uri(borsh string) + mint(32) + bondingCurve(32) + user(32).
func parseCurveCreateEvent(data []byte) (mint, creator string, ok bool) {
	if len(data) < 8 || !bytes.Equal(data[:8], curveCreateEventDisc) {
		return "", "", false
	}
	offset := 8

	// Skip the three metadata strings.
	for i := 0; i < 3; i++ {
		if len(data) < offset+4 {
			return "", "", false
		}
		strLen := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4 + strLen
		if strLen < 0 || len(data) < offset {
			return "", "", false
		}
	}

	if len(data) < offset+96 {
		return "", "", false
	}
	mint = base58.Encode(data[offset : offset+32])
	creator = base58.Encode(data[offset+64 : offset+96])
	return mint, creator, true
}

// LaunchpadLaunchParser parses launchpad pool initializations. The
// initialize transaction emits an anchor event whose payload starts with the
// pool state, creator and base mint.
type LaunchpadLaunchParser struct {
	initPattern *regexp.Regexp
}

// launchpadInitEventDisc is the anchor discriminator of the launchpad
// pool-creation event payload.
var launchpadInitEventDisc = []byte{0x97, 0x8f, 0x84, 0x85, 0x7e, 0xb1, 0x5c, 0x39}

// NewLaunchpadLaunchParser creates a launchpad launch parser.
func NewLaunchpadLaunchParser() *LaunchpadLaunchParser {
	return &LaunchpadLaunchParser{
		initPattern: regexp.MustCompile(`Program log: Instruction: Initialize`),
	}
}

// ParseLaunchEvents extracts pool creations from launchpad program logs.
func (p *LaunchpadLaunchParser) ParseLaunchEvents(logs []string, txSig string, slot int64) []*LaunchEvent {
	var events []*LaunchEvent
	inProgram := false
	sawInit := false

	for _, line := range logs {
		if strings.Contains(line, "Program "+codec.LaunchpadProgramID+" invoke") {
			inProgram = true
			sawInit = false
			continue
		}
		if strings.Contains(line, "Program "+codec.LaunchpadProgramID+" success") ||
			strings.Contains(line, "Program "+codec.LaunchpadProgramID+" failed") {
			inProgram = false
			sawInit = false
			continue
		}
		if !inProgram {
			continue
		}

		if p.initPattern.MatchString(line) {
			sawInit = true
			continue
		}
		if !sawInit {
			continue
		}

		match := programDataPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(match[1])
		if err != nil {
			continue
		}

		mint, creator, ok := parseLaunchpadInitEvent(data)
		if !ok {
			continue
		}

		events = append(events, &LaunchEvent{
			Mint:      mint,
			Platform:  domain.PlatformLaunchpad,
			Developer: creator,
			Signature: txSig,
			Slot:      slot,
		})
		sawInit = false
	}

	return events
}

// parseLaunchpadInitEvent decodes the pool-creation event payload:
// discriminator(8) + poolState(32) + creator(32) + config(32) + baseMint(32).
func parseLaunchpadInitEvent(data []byte) (mint, creator string, ok bool) {
	if len(data) < 8+128 || !bytes.Equal(data[:8], launchpadInitEventDisc) {
		return "", "", false
	}
	creator = base58.Encode(data[40:72])
	mint = base58.Encode(data[104:136])
	return mint, creator, true
}

// LaunchDetector fans transaction logs through the per-program parsers.
type LaunchDetector struct {
	parsers map[string]LaunchParser
}

// NewLaunchDetector creates a detector with both venue parsers registered.
func NewLaunchDetector() *LaunchDetector {
	d := &LaunchDetector{parsers: make(map[string]LaunchParser)}
	d.Register(codec.BondingCurveProgramID, NewCurveLaunchParser())
	d.Register(codec.LaunchpadProgramID, NewLaunchpadLaunchParser())
	return d
}

// Register registers a parser for a program ID.
func (d *LaunchDetector) Register(programID string, parser LaunchParser) {
	d.parsers[programID] = parser
}

// Programs returns the program IDs with registered parsers, for log
// subscriptions.
func (d *LaunchDetector) Programs() []string {
	programs := make([]string, 0, len(d.parsers))
	for id := range d.parsers {
		programs = append(programs, id)
	}
	return programs
}

// ParseLaunchEvents runs every registered parser over the logs and merges
// results.
func (d *LaunchDetector) ParseLaunchEvents(logs []string, txSig string, slot int64) []*LaunchEvent {
	var all []*LaunchEvent
	for _, parser := range d.parsers {
		all = append(all, parser.ParseLaunchEvents(logs, txSig, slot)...)
	}
	return all
}

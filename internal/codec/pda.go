// Package codec derives program addresses and serializes swap instructions.
// Everything here is pure: no RPC, no clocks, no shared mutable state.
package codec

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program ids.
const (
	SystemProgramID          = "11111111111111111111111111111111"
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	WSOLMint                 = "So11111111111111111111111111111111111111112"
)

// ErrDerivation is returned when the bump search 255..0 finds no off-curve
// address. This cannot happen for honest inputs; treat it as a bug.
var ErrDerivation = fmt.Errorf("program address derivation: bump search exhausted")

const pdaMarker = "ProgramDerivedAddress"

// DerivedAddress is a program-derived address with its canonical bump.
type DerivedAddress struct {
	Address string
	Bump    uint8
}

// FindProgramAddress computes the canonical PDA for (seeds, programID).
// Bumps are searched 255 down to 0; the first sha256 digest that is not a
// valid ed25519 curve point wins.
func FindProgramAddress(seeds [][]byte, programID string) (DerivedAddress, error) {
	program, err := base58.Decode(programID)
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("decode program id %q: %w", programID, err)
	}

	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, program...)
		data = append(data, pdaMarker...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return DerivedAddress{
				Address: base58.Encode(hash[:]),
				Bump:    uint8(bump),
			}, nil
		}
	}

	return DerivedAddress{}, ErrDerivation
}

// isOnCurve reports whether a 32-byte value decodes as an ed25519 point.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// AssociatedTokenAddress derives the associated token account of owner for
// mint under the given token program.
func AssociatedTokenAddress(owner, mint, tokenProgram string) (DerivedAddress, error) {
	ownerBytes, err := base58.Decode(owner)
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("decode owner %q: %w", owner, err)
	}
	programBytes, err := base58.Decode(tokenProgram)
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("decode token program %q: %w", tokenProgram, err)
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("decode mint %q: %w", mint, err)
	}

	return FindProgramAddress([][]byte{ownerBytes, programBytes, mintBytes}, AssociatedTokenProgramID)
}

// Deriver memoizes PDA lookups for the lifetime of a single request.
// Not safe for concurrent use; build one per request and drop it after.
type Deriver struct {
	memo map[string]DerivedAddress
}

// NewDeriver creates an empty per-request memo.
func NewDeriver() *Deriver {
	return &Deriver{memo: make(map[string]DerivedAddress)}
}

// Find computes or recalls the canonical PDA for (seeds, programID).
func (d *Deriver) Find(seeds [][]byte, programID string) (DerivedAddress, error) {
	var key strings.Builder
	key.WriteString(programID)
	for _, seed := range seeds {
		key.WriteByte('/')
		key.Write(seed)
	}

	if addr, ok := d.memo[key.String()]; ok {
		return addr, nil
	}

	addr, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return DerivedAddress{}, err
	}
	d.memo[key.String()] = addr
	return addr, nil
}

// decodeAddress decodes a base58 account address and checks its length.
func decodeAddress(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("address %q: expected 32 bytes, got %d", s, len(b))
	}
	return b, nil
}

// mustDecode58 decodes base58 output the package itself produced.
func mustDecode58(s string) []byte {
	b, err := base58.Decode(s)
	if err != nil {
		panic(err)
	}
	return b
}

package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-launch-sniper/internal/domain"
)

// Account discriminators for the two pool-state account types.
var (
	launchpadPoolDisc = [8]byte{0xf7, 0xed, 0xe3, 0xf5, 0xd7, 0xc3, 0xde, 0x46}
	bondingCurveDisc  = [8]byte{0x17, 0xb7, 0xf8, 0x37, 0x60, 0xd8, 0xac, 0x60}
)

// LaunchpadPoolState is the decoded launchpad pool account.
type LaunchpadPoolState struct {
	Status        uint8
	BaseDecimals  uint8
	QuoteDecimals uint8
	Supply        uint64
	TotalBaseSell uint64
	VirtualBase   uint64
	VirtualQuote  uint64
	RealBase      uint64
	RealQuote     uint64
	PlatformFee   uint64
	ProtocolFee   uint64
	BaseMint      string
	QuoteMint     string
	Creator       string
}

// launchpadPoolMinLen covers the fields decoded below:
// disc(8) epoch(8) authBump(1) status(1) baseDec(1) quoteDec(1)
// migrateType(1) supply(8) totalBaseSell(8) virtualBase(8) virtualQuote(8)
// realBase(8) realQuote(8) totalQuoteFundRaising(8) quoteProtocolFee(8)
// platformFee(8) migrateFee(8) vesting(40) globalConfig(32)
// platformConfig(32) baseMint(32) quoteMint(32) baseVault(32)
// quoteVault(32) creator(32).
const launchpadPoolMinLen = 8 + 8 + 5 + 8*10 + 40 + 32*7

// ParseLaunchpadPool decodes a launchpad pool-state account.
func ParseLaunchpadPool(data []byte) (*LaunchpadPoolState, error) {
	if len(data) < launchpadPoolMinLen {
		return nil, fmt.Errorf("parse launchpad pool: %d bytes, want at least %d", len(data), launchpadPoolMinLen)
	}
	for i, b := range launchpadPoolDisc {
		if data[i] != b {
			return nil, fmt.Errorf("parse launchpad pool: unexpected discriminator")
		}
	}

	s := &LaunchpadPoolState{}
	off := 8 + 8 + 1 // skip discriminator, epoch, auth bump
	s.Status = data[off]
	s.BaseDecimals = data[off+1]
	s.QuoteDecimals = data[off+2]
	off += 4 // status, decimals, migrate type

	u64 := func() uint64 {
		v := binary.LittleEndian.Uint64(data[off:])
		off += 8
		return v
	}
	s.Supply = u64()
	s.TotalBaseSell = u64()
	s.VirtualBase = u64()
	s.VirtualQuote = u64()
	s.RealBase = u64()
	s.RealQuote = u64()
	_ = u64() // total quote fund raising
	s.ProtocolFee = u64()
	s.PlatformFee = u64()
	_ = u64() // migrate fee
	off += 40 // vesting schedule

	pubkey := func() string {
		v := base58.Encode(data[off : off+32])
		off += 32
		return v
	}
	_ = pubkey() // global config
	_ = pubkey() // platform config
	s.BaseMint = pubkey()
	s.QuoteMint = pubkey()
	_ = pubkey() // base vault
	_ = pubkey() // quote vault
	s.Creator = pubkey()

	return s, nil
}

// Snapshot maps the pool onto a quote-engine snapshot. The snapshot's base
// side is the side a buy deposits into, which is the lamport side; the
// effective reserves are virtual plus/minus the realized amounts.
func (s *LaunchpadPoolState) Snapshot() *domain.PoolSnapshot {
	return &domain.PoolSnapshot{
		BaseMint:       s.QuoteMint,
		QuoteMint:      s.BaseMint,
		BaseReserve:    s.VirtualQuote + s.RealQuote,
		QuoteReserve:   s.VirtualBase - s.RealBase,
		BaseDecimals:   s.QuoteDecimals,
		QuoteDecimals:  s.BaseDecimals,
		PlatformFeeBPS: uint16(s.PlatformFee),
		ProtocolFeeBPS: uint16(s.ProtocolFee),
	}
}

// CurveState is the decoded bonding-curve account.
type CurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              string
}

// curveStateMinLen: disc(8) + 5 u64 fields + complete(1) + creator(32).
const curveStateMinLen = 8 + 8*5 + 1 + 32

// ParseCurveState decodes a bonding-curve account.
func ParseCurveState(data []byte) (*CurveState, error) {
	if len(data) < curveStateMinLen {
		return nil, fmt.Errorf("parse curve state: %d bytes, want at least %d", len(data), curveStateMinLen)
	}
	for i, b := range bondingCurveDisc {
		if data[i] != b {
			return nil, fmt.Errorf("parse curve state: unexpected discriminator")
		}
	}

	s := &CurveState{}
	off := 8
	u64 := func() uint64 {
		v := binary.LittleEndian.Uint64(data[off:])
		off += 8
		return v
	}
	s.VirtualTokenReserves = u64()
	s.VirtualSolReserves = u64()
	s.RealTokenReserves = u64()
	s.RealSolReserves = u64()
	s.TokenTotalSupply = u64()
	s.Complete = data[off] != 0
	off++
	s.Creator = base58.Encode(data[off : off+32])

	return s, nil
}

// CurveTokenDecimals is the fixed mint decimals on the bonding-curve venue.
const CurveTokenDecimals = 6

// mintAccountMinLen: mintAuthority COption(36) + supply(8) + decimals(1) +
// initialized(1) + freezeAuthority COption(36).
const mintAccountMinLen = 36 + 8 + 1 + 1 + 36

// mintDecimalsOffset is where the decimals byte sits in an SPL mint account.
const mintDecimalsOffset = 36 + 8

// ParseMintDecimals reads the decimals field of an SPL mint account. Pool
// venues carry decimals in their own state; this is for routes that only
// know the mint.
func ParseMintDecimals(data []byte) (uint8, error) {
	if len(data) < mintAccountMinLen {
		return 0, fmt.Errorf("parse mint: %d bytes, want at least %d", len(data), mintAccountMinLen)
	}
	return data[mintDecimalsOffset], nil
}

// Snapshot maps the curve onto a quote-engine snapshot over the virtual
// reserves. The base side is the lamport side.
func (s *CurveState) Snapshot(mint string) *domain.PoolSnapshot {
	return &domain.PoolSnapshot{
		BaseMint:      WSOLMint,
		QuoteMint:     mint,
		BaseReserve:   s.VirtualSolReserves,
		QuoteReserve:  s.VirtualTokenReserves,
		BaseDecimals:  9,
		QuoteDecimals: CurveTokenDecimals,
	}
}

package domain

// Platform identifies the venue hosting liquidity for a token.
type Platform string

const (
	// PlatformLaunchpad is a constant-product launchpad pool.
	PlatformLaunchpad Platform = "LAUNCHPAD"
	// PlatformBondingCurve is a bonding-curve-native venue.
	PlatformBondingCurve Platform = "BONDING_CURVE"
)

// PoolSnapshot is a point-in-time read of pool reserves.
// Immutable once read; fetch a fresh snapshot per quote.
type PoolSnapshot struct {
	BaseMint      string
	QuoteMint     string
	BaseReserve   uint64
	QuoteReserve  uint64
	BaseDecimals  uint8
	QuoteDecimals uint8

	// Fee rates in basis points against gross output.
	PlatformFeeBPS uint16
	ProtocolFeeBPS uint16
}

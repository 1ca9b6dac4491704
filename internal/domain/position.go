package domain

import "time"

// Position is an open holding created by a successful buy.
// Mutated on each tier sell, destroyed when fully exited or when
// monitoring is explicitly stopped.
type Position struct {
	Mint string
	// Platform and Creator identify the entry venue so monitoring can
	// resume from a persisted row after a restart.
	Platform Platform
	Creator  string
	// Decimals is the mint's decimals, captured at entry. Base-unit to
	// whole-token conversion must use this, never a venue-wide constant.
	Decimals        uint8
	EntryPrice      float64 // quote per base, display units
	EntryAmount     uint64  // base units bought
	RemainingAmount uint64  // base units still held
	SoldAmount      uint64  // base units sold so far
	Tier1Sold       bool
	Tier2Sold       bool
	EntryTime       time.Time
	LastPriceCheck  time.Time
}

// TiersComplete reports whether both profit tiers have fired.
func (p *Position) TiersComplete() bool {
	return p.Tier1Sold && p.Tier2Sold
}

// ApplySell reduces the remaining amount by sold base units.
func (p *Position) ApplySell(amount uint64) {
	if amount > p.RemainingAmount {
		amount = p.RemainingAmount
	}
	p.RemainingAmount -= amount
	p.SoldAmount += amount
}

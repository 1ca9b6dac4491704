// Package quote prices swaps against constant-product pool snapshots.
// All functions are pure and safe for concurrent use.
package quote

import (
	"math"
	"math/big"

	"solana-launch-sniper/internal/domain"
)

const bpsDenominator = 10_000

// Result is the outcome of pricing one swap.
type Result struct {
	AmountOut uint64
	// PriceImpact is an advisory score only. It does not feed the
	// authoritative minimum-out computation.
	PriceImpact float64
	// NoLiquidity is set when the pool does not exist yet. Distinct from a
	// transient RPC failure, which surfaces as an error at the fetch site.
	NoLiquidity bool
}

// Quote prices amountIn against the pool under the constant-product
// invariant, net of platform and protocol fees.
//
// A buy adds amountIn to the base reserve and pays out of the quote
// reserve; a sell is the mirror image.
func Quote(pool *domain.PoolSnapshot, side domain.Side, amountIn uint64) (Result, error) {
	if amountIn == 0 {
		return Result{}, domain.ErrInvalidAmount
	}
	if pool == nil || pool.BaseReserve == 0 || pool.QuoteReserve == 0 {
		return Result{NoLiquidity: true}, nil
	}

	reserveIn, reserveOut := pool.BaseReserve, pool.QuoteReserve
	if side == domain.SideSell {
		reserveIn, reserveOut = pool.QuoteReserve, pool.BaseReserve
	}

	gross := constantProductOut(reserveIn, reserveOut, amountIn)
	out := applyFees(gross, pool.PlatformFeeBPS, pool.ProtocolFeeBPS)

	return Result{
		AmountOut:   out,
		PriceImpact: priceImpact(pool),
	}, nil
}

// constantProductOut computes reserveOut - k/(reserveIn+amountIn) with k
// held exactly in a big integer; u64 reserve products overflow 64 bits.
func constantProductOut(reserveIn, reserveOut, amountIn uint64) uint64 {
	k := new(big.Int).Mul(
		new(big.Int).SetUint64(reserveIn),
		new(big.Int).SetUint64(reserveOut),
	)
	newIn := new(big.Int).Add(
		new(big.Int).SetUint64(reserveIn),
		new(big.Int).SetUint64(amountIn),
	)
	newOut := new(big.Int).Quo(k, newIn)
	if newOut.Sign() == 0 {
		// The pool can never be drained below one unit.
		newOut.SetInt64(1)
	}

	out := new(big.Int).Sub(new(big.Int).SetUint64(reserveOut), newOut)
	if out.Sign() <= 0 {
		return 0
	}
	return out.Uint64()
}

// applyFees subtracts each basis-point fee from the gross output,
// clamping at zero.
func applyFees(gross uint64, feeBPS ...uint16) uint64 {
	remaining := new(big.Int).SetUint64(gross)
	grossBig := new(big.Int).SetUint64(gross)
	den := big.NewInt(bpsDenominator)

	for _, bps := range feeBPS {
		fee := new(big.Int).Mul(grossBig, big.NewInt(int64(bps)))
		fee.Quo(fee, den)
		remaining.Sub(remaining, fee)
	}
	if remaining.Sign() <= 0 {
		return 0
	}
	return remaining.Uint64()
}

// MinAmountOut applies the slippage fraction to a quoted output in integer
// arithmetic. This value goes on-chain; no floating point touches it.
func MinAmountOut(amountOut uint64, slippage float64) uint64 {
	if slippage <= 0 {
		return amountOut
	}
	if slippage >= 1 {
		return 0
	}

	slipBPS := int64(math.Round(slippage * bpsDenominator))
	keep := new(big.Int).Mul(
		new(big.Int).SetUint64(amountOut),
		big.NewInt(bpsDenominator-slipBPS),
	)
	keep.Quo(keep, big.NewInt(bpsDenominator))
	return keep.Uint64()
}

// priceImpact is the source heuristic, capped at 5%. Advisory only.
func priceImpact(pool *domain.PoolSnapshot) float64 {
	smaller := float64(min(pool.BaseReserve, pool.QuoteReserve))
	if smaller == 0 {
		return 0.05
	}
	impact := 0.5 * (smaller * 0.1) / smaller
	return math.Min(0.05, impact)
}

// Price returns the display price (quote per base) adjusted for decimals.
// Advisory; on-chain amounts never derive from it.
func Price(pool *domain.PoolSnapshot) float64 {
	if pool == nil || pool.BaseReserve == 0 {
		return 0
	}
	base := float64(pool.BaseReserve) / math.Pow10(int(pool.BaseDecimals))
	quoteRes := float64(pool.QuoteReserve) / math.Pow10(int(pool.QuoteDecimals))
	if base == 0 {
		return 0
	}
	return quoteRes / base
}

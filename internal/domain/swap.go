package domain

// Side distinguishes buy from sell on a pool.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ExecMethod identifies one of the competing execution paths.
type ExecMethod string

const (
	// MethodBondingCurve executes directly against the bonding-curve program.
	MethodBondingCurve ExecMethod = "BONDING_CURVE"
	// MethodJupiter routes through the aggregator swap API.
	MethodJupiter ExecMethod = "JUPITER"
	// MethodLaunchpadDirect builds a constant-product pool instruction directly.
	MethodLaunchpadDirect ExecMethod = "LAUNCHPAD_DIRECT"
)

// SwapRequest describes a single buy or sell to execute.
type SwapRequest struct {
	InputMint  string // mint being spent
	OutputMint string // mint being acquired
	AmountIn   uint64 // smallest unit of the input mint
	Slippage   float64
	Side       Side
	// PreferredMethod, when set, is tried before the default fallback chain.
	PreferredMethod ExecMethod
}

// Validate checks request invariants: amount > 0, slippage in [0, 1].
func (r *SwapRequest) Validate() error {
	if r.AmountIn == 0 {
		return ErrInvalidAmount
	}
	if r.Slippage < 0 || r.Slippage > 1 {
		return ErrInvalidSlippage
	}
	if r.InputMint == "" || r.OutputMint == "" {
		return ErrMissingMint
	}
	return nil
}

package codec

import (
	"encoding/binary"
	"fmt"
)

// LaunchpadProgramID is the constant-product launchpad program.
const LaunchpadProgramID = "LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj"

// Anchor discriminators for the two swap instruction families.
var (
	launchpadBuyExactIn  = [8]byte{0xfa, 0xea, 0x0d, 0x7b, 0xd5, 0x9c, 0x13, 0xec}
	launchpadSellExactIn = [8]byte{0x95, 0x27, 0xde, 0x9b, 0xd3, 0x7c, 0x98, 0x1a}
)

// Launchpad PDA seed strings.
const (
	seedPool           = "pool"
	seedPoolVault      = "pool_vault"
	seedGlobalConfig   = "global_config"
	seedPlatformConfig = "platform_config"
	seedVaultAuthority = "vault_auth_seed"
	seedEventAuthority = "__event_authority"
)

// LaunchpadParams identifies one pool's configuration accounts.
type LaunchpadParams struct {
	BaseMint      string
	QuoteMint     string
	CurveType     uint8
	ConfigIndex   uint16
	PlatformAdmin string

	// Token programs owning the two mints. Defaults to the classic token
	// program when empty.
	BaseTokenProgram  string
	QuoteTokenProgram string
}

func (p *LaunchpadParams) baseProgram() string {
	if p.BaseTokenProgram == "" {
		return TokenProgramID
	}
	return p.BaseTokenProgram
}

func (p *LaunchpadParams) quoteProgram() string {
	if p.QuoteTokenProgram == "" {
		return TokenProgramID
	}
	return p.QuoteTokenProgram
}

// LaunchpadAddresses is the full derived account set for one pool.
type LaunchpadAddresses struct {
	PoolState      DerivedAddress
	BaseVault      DerivedAddress
	QuoteVault     DerivedAddress
	GlobalConfig   DerivedAddress
	PlatformConfig DerivedAddress
	VaultAuthority DerivedAddress
	EventAuthority DerivedAddress
}

// DeriveLaunchpadAddresses derives every account a swap against the pool
// needs. All results are canonical-bump PDAs of the launchpad program.
func DeriveLaunchpadAddresses(d *Deriver, p LaunchpadParams) (*LaunchpadAddresses, error) {
	baseMint, err := decodeAddress(p.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("base mint: %w", err)
	}
	quoteMint, err := decodeAddress(p.QuoteMint)
	if err != nil {
		return nil, fmt.Errorf("quote mint: %w", err)
	}

	var out LaunchpadAddresses

	out.PoolState, err = d.Find([][]byte{[]byte(seedPool), baseMint, quoteMint}, LaunchpadProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive pool state: %w", err)
	}

	poolState := mustDecode58(out.PoolState.Address)

	out.BaseVault, err = d.Find([][]byte{[]byte(seedPoolVault), poolState, baseMint}, LaunchpadProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive base vault: %w", err)
	}

	out.QuoteVault, err = d.Find([][]byte{[]byte(seedPoolVault), poolState, quoteMint}, LaunchpadProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive quote vault: %w", err)
	}

	curveAndIndex := make([]byte, 3)
	curveAndIndex[0] = p.CurveType
	binary.LittleEndian.PutUint16(curveAndIndex[1:], p.ConfigIndex)
	out.GlobalConfig, err = d.Find(
		[][]byte{[]byte(seedGlobalConfig), quoteMint, curveAndIndex[:1], curveAndIndex[1:]},
		LaunchpadProgramID,
	)
	if err != nil {
		return nil, fmt.Errorf("derive global config: %w", err)
	}

	admin, err := decodeAddress(p.PlatformAdmin)
	if err != nil {
		return nil, fmt.Errorf("platform admin: %w", err)
	}
	out.PlatformConfig, err = d.Find([][]byte{[]byte(seedPlatformConfig), admin}, LaunchpadProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive platform config: %w", err)
	}

	out.VaultAuthority, err = d.Find([][]byte{[]byte(seedVaultAuthority)}, LaunchpadProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive vault authority: %w", err)
	}

	out.EventAuthority, err = d.Find([][]byte{[]byte(seedEventAuthority)}, LaunchpadProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive event authority: %w", err)
	}

	return &out, nil
}

// BuildLaunchpadBuy builds a buy-exact-in instruction: spend amountIn quote
// lamports, receive at least minimumAmountOut base units.
func BuildLaunchpadBuy(d *Deriver, payer string, p LaunchpadParams, amountIn, minimumAmountOut uint64) (*Instruction, error) {
	if amountIn == 0 {
		return nil, fmt.Errorf("build launchpad buy: zero amount in")
	}
	return buildLaunchpadSwap(d, payer, p, launchpadBuyExactIn, amountIn, minimumAmountOut, false)
}

// BuildLaunchpadSell builds a sell-exact-in instruction: spend amountIn base
// units, receive at least minimumAmountOut quote lamports.
func BuildLaunchpadSell(d *Deriver, payer string, p LaunchpadParams, amountIn, minimumAmountOut uint64) (*Instruction, error) {
	if amountIn == 0 {
		return nil, fmt.Errorf("build launchpad sell: zero amount in")
	}
	return buildLaunchpadSwap(d, payer, p, launchpadSellExactIn, amountIn, minimumAmountOut, true)
}

func buildLaunchpadSwap(d *Deriver, payer string, p LaunchpadParams, discriminator [8]byte, amountIn, minimumAmountOut uint64, baseMintWritable bool) (*Instruction, error) {
	addrs, err := DeriveLaunchpadAddresses(d, p)
	if err != nil {
		return nil, err
	}

	payerBase, err := AssociatedTokenAddress(payer, p.BaseMint, p.baseProgram())
	if err != nil {
		return nil, fmt.Errorf("derive payer base token account: %w", err)
	}
	payerQuote, err := AssociatedTokenAddress(payer, p.QuoteMint, p.quoteProgram())
	if err != nil {
		return nil, fmt.Errorf("derive payer quote token account: %w", err)
	}

	// The account order below is the wire contract. Reordering produces an
	// on-chain rejection, not a local error.
	accounts := []AccountMeta{
		meta(payer, true, true),
		meta(addrs.VaultAuthority.Address, false, false),
		meta(addrs.GlobalConfig.Address, false, false),
		meta(addrs.PlatformConfig.Address, false, false),
		meta(addrs.PoolState.Address, false, true),
		meta(payerBase.Address, false, true),
		meta(payerQuote.Address, false, true),
		meta(addrs.BaseVault.Address, false, true),
		meta(addrs.QuoteVault.Address, false, true),
		meta(p.BaseMint, false, baseMintWritable),
		meta(p.QuoteMint, false, false),
		meta(p.baseProgram(), false, false),
		meta(p.quoteProgram(), false, false),
		meta(addrs.EventAuthority.Address, false, false),
		meta(LaunchpadProgramID, false, false),
	}

	return &Instruction{
		ProgramID: LaunchpadProgramID,
		Accounts:  accounts,
		Data:      swapData(discriminator, amountIn, minimumAmountOut, 0),
	}, nil
}


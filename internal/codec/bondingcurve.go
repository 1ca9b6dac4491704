package codec

import (
	"encoding/binary"
	"fmt"
)

// BondingCurveProgramID is the bonding-curve launch program.
const BondingCurveProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// BondingCurveFeeRecipient receives the protocol fee on curve swaps.
const BondingCurveFeeRecipient = "CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"

var (
	curveBuy  = [8]byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	curveSell = [8]byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
)

const (
	seedCurveGlobal  = "global"
	seedBondingCurve = "bonding-curve"
	seedCreatorVault = "creator-vault"
)

// CurveParams identifies one token's bonding-curve accounts.
type CurveParams struct {
	Mint    string
	Creator string
}

// CurveAddresses is the derived account set for a bonding-curve swap.
type CurveAddresses struct {
	Global       DerivedAddress
	BondingCurve DerivedAddress
	CurveVault   DerivedAddress // curve's associated token account
	CreatorVault DerivedAddress
	EventAuth    DerivedAddress
}

// DeriveCurveAddresses derives the bonding-curve account set for a mint.
func DeriveCurveAddresses(d *Deriver, p CurveParams) (*CurveAddresses, error) {
	mint, err := decodeAddress(p.Mint)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	creator, err := decodeAddress(p.Creator)
	if err != nil {
		return nil, fmt.Errorf("creator: %w", err)
	}

	var out CurveAddresses

	out.Global, err = d.Find([][]byte{[]byte(seedCurveGlobal)}, BondingCurveProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive global: %w", err)
	}

	out.BondingCurve, err = d.Find([][]byte{[]byte(seedBondingCurve), mint}, BondingCurveProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive bonding curve: %w", err)
	}

	out.CurveVault, err = AssociatedTokenAddress(out.BondingCurve.Address, p.Mint, TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive curve vault: %w", err)
	}

	out.CreatorVault, err = d.Find([][]byte{[]byte(seedCreatorVault), creator}, BondingCurveProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive creator vault: %w", err)
	}

	out.EventAuth, err = d.Find([][]byte{[]byte(seedEventAuthority)}, BondingCurveProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive event authority: %w", err)
	}

	return &out, nil
}

// BuildCurveBuy builds a bonding-curve buy: receive tokenAmount base units,
// spending at most maxSolCost lamports.
func BuildCurveBuy(d *Deriver, payer string, p CurveParams, tokenAmount, maxSolCost uint64) (*Instruction, error) {
	if tokenAmount == 0 {
		return nil, fmt.Errorf("build curve buy: zero token amount")
	}
	return buildCurveSwap(d, payer, p, curveBuy, tokenAmount, maxSolCost)
}

// BuildCurveSell builds a bonding-curve sell: spend tokenAmount base units,
// receiving at least minSolOutput lamports.
func BuildCurveSell(d *Deriver, payer string, p CurveParams, tokenAmount, minSolOutput uint64) (*Instruction, error) {
	if tokenAmount == 0 {
		return nil, fmt.Errorf("build curve sell: zero token amount")
	}
	return buildCurveSwap(d, payer, p, curveSell, tokenAmount, minSolOutput)
}

func buildCurveSwap(d *Deriver, payer string, p CurveParams, discriminator [8]byte, tokenAmount, solLimit uint64) (*Instruction, error) {
	addrs, err := DeriveCurveAddresses(d, p)
	if err != nil {
		return nil, err
	}

	payerToken, err := AssociatedTokenAddress(payer, p.Mint, TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive payer token account: %w", err)
	}

	data := make([]byte, 24)
	copy(data[0:8], discriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], tokenAmount)
	binary.LittleEndian.PutUint64(data[16:24], solLimit)

	accounts := []AccountMeta{
		meta(addrs.Global.Address, false, false),
		meta(BondingCurveFeeRecipient, false, true),
		meta(p.Mint, false, false),
		meta(addrs.BondingCurve.Address, false, true),
		meta(addrs.CurveVault.Address, false, true),
		meta(payerToken.Address, false, true),
		meta(payer, true, true),
		meta(SystemProgramID, false, false),
		meta(TokenProgramID, false, false),
		meta(addrs.CreatorVault.Address, false, true),
		meta(addrs.EventAuth.Address, false, false),
		meta(BondingCurveProgramID, false, false),
	}

	return &Instruction{
		ProgramID: BondingCurveProgramID,
		Accounts:  accounts,
		Data:      data,
	}, nil
}

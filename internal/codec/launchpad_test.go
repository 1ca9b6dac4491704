package codec

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func testLaunchpadParams() LaunchpadParams {
	return LaunchpadParams{
		BaseMint:      testAddress(3),
		QuoteMint:     WSOLMint,
		CurveType:     0,
		ConfigIndex:   0,
		PlatformAdmin: testAddress(4),
	}
}

func TestBuildLaunchpadBuy_Payload(t *testing.T) {
	payer := testAddress(5)
	ins, err := BuildLaunchpadBuy(NewDeriver(), payer, testLaunchpadParams(), 1_000_000_000, 123_456)
	if err != nil {
		t.Fatalf("BuildLaunchpadBuy: %v", err)
	}

	if len(ins.Data) != 32 {
		t.Fatalf("payload length %d, want 32 (discriminator + 3 u64 fields)", len(ins.Data))
	}
	if !bytes.Equal(ins.Data[0:8], launchpadBuyExactIn[:]) {
		t.Errorf("buy discriminator mismatch: %x", ins.Data[0:8])
	}
	if got := binary.LittleEndian.Uint64(ins.Data[8:16]); got != 1_000_000_000 {
		t.Errorf("amount in = %d, want 1000000000", got)
	}
	if got := binary.LittleEndian.Uint64(ins.Data[16:24]); got != 123_456 {
		t.Errorf("minimum amount out = %d, want 123456", got)
	}
	if got := binary.LittleEndian.Uint64(ins.Data[24:32]); got != 0 {
		t.Errorf("share fee rate = %d, want 0", got)
	}
}

func TestBuildLaunchpadSell_Payload(t *testing.T) {
	payer := testAddress(5)
	ins, err := BuildLaunchpadSell(NewDeriver(), payer, testLaunchpadParams(), 777, 42)
	if err != nil {
		t.Fatalf("BuildLaunchpadSell: %v", err)
	}

	if len(ins.Data) != 32 {
		t.Fatalf("payload length %d, want 32", len(ins.Data))
	}
	if !bytes.Equal(ins.Data[0:8], launchpadSellExactIn[:]) {
		t.Errorf("sell discriminator mismatch: %x", ins.Data[0:8])
	}
	if bytes.Equal(ins.Data[0:8], launchpadBuyExactIn[:]) {
		t.Error("sell must not reuse the buy discriminator")
	}
}

func TestBuildLaunchpadBuy_AccountOrder(t *testing.T) {
	payer := testAddress(5)
	params := testLaunchpadParams()
	d := NewDeriver()

	ins, err := BuildLaunchpadBuy(d, payer, params, 100, 1)
	if err != nil {
		t.Fatalf("BuildLaunchpadBuy: %v", err)
	}

	addrs, err := DeriveLaunchpadAddresses(d, params)
	if err != nil {
		t.Fatalf("DeriveLaunchpadAddresses: %v", err)
	}
	payerBase, err := AssociatedTokenAddress(payer, params.BaseMint, TokenProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}
	payerQuote, err := AssociatedTokenAddress(payer, params.QuoteMint, TokenProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}

	want := []AccountMeta{
		{payer, true, true},
		{addrs.VaultAuthority.Address, false, false},
		{addrs.GlobalConfig.Address, false, false},
		{addrs.PlatformConfig.Address, false, false},
		{addrs.PoolState.Address, false, true},
		{payerBase.Address, false, true},
		{payerQuote.Address, false, true},
		{addrs.BaseVault.Address, false, true},
		{addrs.QuoteVault.Address, false, true},
		{params.BaseMint, false, false},
		{params.QuoteMint, false, false},
		{TokenProgramID, false, false},
		{TokenProgramID, false, false},
		{addrs.EventAuthority.Address, false, false},
		{LaunchpadProgramID, false, false},
	}

	if len(ins.Accounts) != len(want) {
		t.Fatalf("account list has %d entries, want %d", len(ins.Accounts), len(want))
	}
	for i, w := range want {
		if ins.Accounts[i] != w {
			t.Errorf("account[%d] = %+v, want %+v", i, ins.Accounts[i], w)
		}
	}
}

func TestBuildLaunchpadSell_BaseMintWritable(t *testing.T) {
	payer := testAddress(5)
	params := testLaunchpadParams()

	ins, err := BuildLaunchpadSell(NewDeriver(), payer, params, 100, 1)
	if err != nil {
		t.Fatalf("BuildLaunchpadSell: %v", err)
	}

	// Index 9 is the base mint in the fixed ordering.
	acc := ins.Accounts[9]
	if acc.Address != params.BaseMint {
		t.Fatalf("account[9] = %s, want base mint", acc.Address)
	}
	if !acc.IsWritable {
		t.Error("sell variant must mark the base mint writable")
	}
}

func TestBuildLaunchpadSwap_ZeroAmount(t *testing.T) {
	payer := testAddress(5)
	if _, err := BuildLaunchpadBuy(NewDeriver(), payer, testLaunchpadParams(), 0, 1); err == nil {
		t.Fatal("expected error for zero buy amount")
	}
	if _, err := BuildLaunchpadSell(NewDeriver(), payer, testLaunchpadParams(), 0, 1); err == nil {
		t.Fatal("expected error for zero sell amount")
	}
}

func TestBuildCurveSwap_Payload(t *testing.T) {
	payer := testAddress(5)
	params := CurveParams{Mint: testAddress(6), Creator: testAddress(7)}

	buy, err := BuildCurveBuy(NewDeriver(), payer, params, 555, 999)
	if err != nil {
		t.Fatalf("BuildCurveBuy: %v", err)
	}
	if len(buy.Data) != 24 {
		t.Fatalf("curve payload length %d, want 24", len(buy.Data))
	}
	if !bytes.Equal(buy.Data[0:8], curveBuy[:]) {
		t.Errorf("curve buy discriminator mismatch: %x", buy.Data[0:8])
	}
	if got := binary.LittleEndian.Uint64(buy.Data[8:16]); got != 555 {
		t.Errorf("token amount = %d, want 555", got)
	}

	sell, err := BuildCurveSell(NewDeriver(), payer, params, 555, 1)
	if err != nil {
		t.Fatalf("BuildCurveSell: %v", err)
	}
	if !bytes.Equal(sell.Data[0:8], curveSell[:]) {
		t.Errorf("curve sell discriminator mismatch: %x", sell.Data[0:8])
	}
}

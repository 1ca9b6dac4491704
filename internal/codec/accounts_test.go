package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
)

func launchpadPoolData() []byte {
	buf := append([]byte{}, launchpadPoolDisc[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, 700) // epoch
	buf = append(buf, 254)                           // auth bump
	buf = append(buf, 0)                             // status: funding
	buf = append(buf, 6)                             // base decimals
	buf = append(buf, 9)                             // quote decimals
	buf = append(buf, 0)                             // migrate type
	for _, v := range []uint64{
		1_000_000_000_000_000, // supply
		793_100_000_000_000,   // total base sell
		1_073_000_000_000_000, // virtual base
		30_000_000_000,        // virtual quote
		200_000_000_000_000,   // real base
		5_000_000_000,         // real quote
		85_000_000_000,        // total quote fund raising
		25,                    // protocol fee
		100,                   // platform fee
		0,                     // migrate fee
	} {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	buf = append(buf, make([]byte, 40)...) // vesting schedule
	for fill := byte(1); fill <= 7; fill++ {
		buf = append(buf, bytes.Repeat([]byte{fill}, 32)...)
	}
	return buf
}

func TestParseLaunchpadPool(t *testing.T) {
	s, err := ParseLaunchpadPool(launchpadPoolData())
	if err != nil {
		t.Fatalf("ParseLaunchpadPool: %v", err)
	}

	if s.Status != 0 || s.BaseDecimals != 6 || s.QuoteDecimals != 9 {
		t.Errorf("header fields = %d/%d/%d", s.Status, s.BaseDecimals, s.QuoteDecimals)
	}
	if s.VirtualBase != 1_073_000_000_000_000 || s.VirtualQuote != 30_000_000_000 {
		t.Errorf("virtual reserves = %d/%d", s.VirtualBase, s.VirtualQuote)
	}
	if s.RealBase != 200_000_000_000_000 || s.RealQuote != 5_000_000_000 {
		t.Errorf("real reserves = %d/%d", s.RealBase, s.RealQuote)
	}
	if s.ProtocolFee != 25 || s.PlatformFee != 100 {
		t.Errorf("fees = %d/%d", s.ProtocolFee, s.PlatformFee)
	}
	if s.BaseMint != base58.Encode(bytes.Repeat([]byte{3}, 32)) {
		t.Errorf("base mint = %s", s.BaseMint)
	}
	if s.QuoteMint != base58.Encode(bytes.Repeat([]byte{4}, 32)) {
		t.Errorf("quote mint = %s", s.QuoteMint)
	}
	if s.Creator != base58.Encode(bytes.Repeat([]byte{7}, 32)) {
		t.Errorf("creator = %s", s.Creator)
	}
}

func TestLaunchpadPoolSnapshot(t *testing.T) {
	s, err := ParseLaunchpadPool(launchpadPoolData())
	if err != nil {
		t.Fatalf("ParseLaunchpadPool: %v", err)
	}
	pool := s.Snapshot()

	// The snapshot's base side is the side a buy deposits into: lamports.
	if pool.BaseMint != s.QuoteMint || pool.QuoteMint != s.BaseMint {
		t.Errorf("snapshot mints not swapped: %s / %s", pool.BaseMint, pool.QuoteMint)
	}
	if want := s.VirtualQuote + s.RealQuote; pool.BaseReserve != want {
		t.Errorf("base reserve = %d, want %d", pool.BaseReserve, want)
	}
	if want := s.VirtualBase - s.RealBase; pool.QuoteReserve != want {
		t.Errorf("quote reserve = %d, want %d", pool.QuoteReserve, want)
	}
	if pool.BaseDecimals != 9 || pool.QuoteDecimals != 6 {
		t.Errorf("decimals = %d/%d, want 9/6", pool.BaseDecimals, pool.QuoteDecimals)
	}
	if pool.PlatformFeeBPS != 100 || pool.ProtocolFeeBPS != 25 {
		t.Errorf("fee bps = %d/%d", pool.PlatformFeeBPS, pool.ProtocolFeeBPS)
	}
}

func TestParseLaunchpadPool_Rejects(t *testing.T) {
	if _, err := ParseLaunchpadPool(launchpadPoolData()[:100]); err == nil {
		t.Error("expected error for truncated account")
	}

	bad := launchpadPoolData()
	bad[0] ^= 0xFF
	if _, err := ParseLaunchpadPool(bad); err == nil {
		t.Error("expected error for wrong discriminator")
	}
}

func curveStateData(complete bool) []byte {
	buf := append([]byte{}, bondingCurveDisc[:]...)
	for _, v := range []uint64{
		1_073_000_000_000_000, // virtual token reserves
		30_000_000_000,        // virtual sol reserves
		793_100_000_000_000,   // real token reserves
		2_000_000_000,         // real sol reserves
		1_000_000_000_000_000, // total supply
	} {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	if complete {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return append(buf, bytes.Repeat([]byte{9}, 32)...)
}

func TestParseCurveState(t *testing.T) {
	s, err := ParseCurveState(curveStateData(false))
	if err != nil {
		t.Fatalf("ParseCurveState: %v", err)
	}

	if s.VirtualTokenReserves != 1_073_000_000_000_000 || s.VirtualSolReserves != 30_000_000_000 {
		t.Errorf("virtual reserves = %d/%d", s.VirtualTokenReserves, s.VirtualSolReserves)
	}
	if s.RealTokenReserves != 793_100_000_000_000 || s.RealSolReserves != 2_000_000_000 {
		t.Errorf("real reserves = %d/%d", s.RealTokenReserves, s.RealSolReserves)
	}
	if s.Complete {
		t.Error("complete = true, want false")
	}
	if s.Creator != base58.Encode(bytes.Repeat([]byte{9}, 32)) {
		t.Errorf("creator = %s", s.Creator)
	}

	s, err = ParseCurveState(curveStateData(true))
	if err != nil {
		t.Fatalf("ParseCurveState: %v", err)
	}
	if !s.Complete {
		t.Error("complete = false, want true")
	}
}

func TestCurveStateSnapshot(t *testing.T) {
	s, err := ParseCurveState(curveStateData(false))
	if err != nil {
		t.Fatalf("ParseCurveState: %v", err)
	}

	mint := testAddress(2)
	pool := s.Snapshot(mint)
	if pool.BaseMint != WSOLMint || pool.QuoteMint != mint {
		t.Errorf("snapshot mints = %s / %s", pool.BaseMint, pool.QuoteMint)
	}
	if pool.BaseReserve != s.VirtualSolReserves || pool.QuoteReserve != s.VirtualTokenReserves {
		t.Errorf("reserves = %d/%d, want virtual sol/token", pool.BaseReserve, pool.QuoteReserve)
	}
	if pool.BaseDecimals != 9 || pool.QuoteDecimals != CurveTokenDecimals {
		t.Errorf("decimals = %d/%d", pool.BaseDecimals, pool.QuoteDecimals)
	}
}

func TestParseCurveState_Rejects(t *testing.T) {
	if _, err := ParseCurveState(curveStateData(false)[:20]); err == nil {
		t.Error("expected error for truncated account")
	}

	bad := curveStateData(false)
	bad[3] ^= 0xFF
	if _, err := ParseCurveState(bad); err == nil {
		t.Error("expected error for wrong discriminator")
	}
}

func TestParseMintDecimals(t *testing.T) {
	data := make([]byte, mintAccountMinLen)
	data[mintDecimalsOffset] = 9

	d, err := ParseMintDecimals(data)
	if err != nil {
		t.Fatalf("ParseMintDecimals: %v", err)
	}
	if d != 9 {
		t.Errorf("decimals = %d, want 9", d)
	}

	if _, err := ParseMintDecimals(data[:40]); err == nil {
		t.Error("expected error for truncated mint account")
	}
}

func TestBuildCreateATAIdempotent(t *testing.T) {
	payer := testAddress(5)
	owner := testAddress(6)
	mint := testAddress(7)

	ins, err := BuildCreateATAIdempotent(payer, owner, mint, "")
	if err != nil {
		t.Fatalf("BuildCreateATAIdempotent: %v", err)
	}
	if ins.ProgramID != AssociatedTokenProgramID {
		t.Errorf("program = %s", ins.ProgramID)
	}
	if !bytes.Equal(ins.Data, []byte{1}) {
		t.Errorf("data = %v, want the idempotent variant tag", ins.Data)
	}

	ata, err := AssociatedTokenAddress(owner, mint, TokenProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}
	wantAccounts := []struct {
		address  string
		signer   bool
		writable bool
	}{
		{payer, true, true},
		{ata.Address, false, true},
		{owner, false, false},
		{mint, false, false},
		{SystemProgramID, false, false},
		{TokenProgramID, false, false},
	}
	if len(ins.Accounts) != len(wantAccounts) {
		t.Fatalf("accounts = %d, want %d", len(ins.Accounts), len(wantAccounts))
	}
	for i, want := range wantAccounts {
		got := ins.Accounts[i]
		if got.Address != want.address || got.IsSigner != want.signer || got.IsWritable != want.writable {
			t.Errorf("account[%d] = %+v, want %+v", i, got, want)
		}
	}
}

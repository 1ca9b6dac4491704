package codec

import (
	"testing"

	"github.com/mr-tron/base58"
)

// testAddress builds a valid 32-byte base58 address from a fill byte.
func testAddress(fill byte) string {
	var b [32]byte
	for i := range b {
		b[i] = fill
	}
	return base58.Encode(b[:])
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("pool"), mustDecode58(testAddress(1)), mustDecode58(testAddress(2))}

	first, err := FindProgramAddress(seeds, LaunchpadProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}

	second, err := FindProgramAddress(seeds, LaunchpadProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress (second call): %v", err)
	}

	if first != second {
		t.Errorf("derivation not deterministic: %+v vs %+v", first, second)
	}

	raw, err := base58.Decode(first.Address)
	if err != nil {
		t.Fatalf("derived address is not base58: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("derived address has %d bytes, want 32", len(raw))
	}

	// The derived address must itself be off-curve.
	if isOnCurve(raw) {
		t.Error("derived address lies on the ed25519 curve")
	}
}

func TestFindProgramAddress_SeedsChangeAddress(t *testing.T) {
	a, err := FindProgramAddress([][]byte{[]byte("pool"), mustDecode58(testAddress(1))}, LaunchpadProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	b, err := FindProgramAddress([][]byte{[]byte("pool"), mustDecode58(testAddress(2))}, LaunchpadProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if a.Address == b.Address {
		t.Error("different seeds produced the same address")
	}
}

func TestFindProgramAddress_ProgramChangesAddress(t *testing.T) {
	seeds := [][]byte{[]byte("global")}

	a, err := FindProgramAddress(seeds, LaunchpadProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	b, err := FindProgramAddress(seeds, BondingCurveProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if a.Address == b.Address {
		t.Error("different programs produced the same address")
	}
}

func TestFindProgramAddress_BadProgramID(t *testing.T) {
	if _, err := FindProgramAddress([][]byte{[]byte("x")}, "not-base58-0OIl"); err == nil {
		t.Fatal("expected error for invalid program id")
	}
}

func TestDeriver_Memoizes(t *testing.T) {
	d := NewDeriver()
	seeds := [][]byte{[]byte("vault_auth_seed")}

	first, err := d.Find(seeds, LaunchpadProgramID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	second, err := d.Find(seeds, LaunchpadProgramID)
	if err != nil {
		t.Fatalf("Find (memoized): %v", err)
	}
	if first != second {
		t.Errorf("memoized result differs: %+v vs %+v", first, second)
	}

	if len(d.memo) != 1 {
		t.Errorf("expected a single memo entry, got %d", len(d.memo))
	}
}

func TestAssociatedTokenAddress_Deterministic(t *testing.T) {
	owner := testAddress(7)
	mint := testAddress(9)

	a, err := AssociatedTokenAddress(owner, mint, TokenProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}
	b, err := AssociatedTokenAddress(owner, mint, TokenProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}
	if a != b {
		t.Errorf("ATA derivation not deterministic: %+v vs %+v", a, b)
	}

	// A different token program owns a different ATA.
	c, err := AssociatedTokenAddress(owner, mint, Token2022ProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress (token-2022): %v", err)
	}
	if c.Address == a.Address {
		t.Error("token-2022 ATA equals classic ATA")
	}
}

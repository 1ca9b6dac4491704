package codec

import "fmt"

// BuildCreateATAIdempotent builds a create-associated-token-account
// instruction with the idempotent variant, a no-op when the account already
// exists. Prepended to swaps so a first buy lands in one transaction.
func BuildCreateATAIdempotent(payer, owner, mint, tokenProgram string) (*Instruction, error) {
	if tokenProgram == "" {
		tokenProgram = TokenProgramID
	}
	ata, err := AssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return nil, fmt.Errorf("build create ata: %w", err)
	}

	return &Instruction{
		ProgramID: AssociatedTokenProgramID,
		Accounts: []AccountMeta{
			meta(payer, true, true),
			meta(ata.Address, false, true),
			meta(owner, false, false),
			meta(mint, false, false),
			meta(SystemProgramID, false, false),
			meta(tokenProgram, false, false),
		},
		Data: []byte{1}, // CreateIdempotent
	}, nil
}

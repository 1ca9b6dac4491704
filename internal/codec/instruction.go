package codec

import "encoding/binary"

// AccountMeta is one entry of an instruction account list. Order within the
// list is part of the wire contract: a misordered list is rejected on-chain,
// not locally.
type AccountMeta struct {
	Address    string
	IsSigner   bool
	IsWritable bool
}

// Instruction is a fully built program instruction, ready to be compiled
// into a transaction message. Built fresh per request, never reused.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// swapData serializes the common swap payload tail:
// discriminator (8) | amountIn u64 LE | minimumAmountOut u64 LE | shareFeeRate u64 LE.
// Total length is always 32 bytes.
func swapData(discriminator [8]byte, amountIn, minimumAmountOut, shareFeeRate uint64) []byte {
	data := make([]byte, 32)
	copy(data[0:8], discriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], amountIn)
	binary.LittleEndian.PutUint64(data[16:24], minimumAmountOut)
	binary.LittleEndian.PutUint64(data[24:32], shareFeeRate)
	return data
}

func meta(address string, signer, writable bool) AccountMeta {
	return AccountMeta{Address: address, IsSigner: signer, IsWritable: writable}
}

package codec

import (
	"fmt"
	"sort"
)

// Message is a compiled legacy transaction message: deduplicated account
// table, header counts and compiled instructions, ready for signing.
type Message struct {
	NumRequiredSignatures uint8
	NumReadonlySigned     uint8
	NumReadonlyUnsigned   uint8
	AccountKeys           []string
	RecentBlockhash       string
	CompiledInstructions  []CompiledInstruction
}

// CompiledInstruction references accounts by index into the message table.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

type accountUse struct {
	address  string
	signer   bool
	writable bool
	order    int // first-seen position, keeps compilation deterministic
}

// CompileMessage builds a legacy message for the given instructions.
// The fee payer is always account zero (signer, writable). Remaining
// accounts are laid out signers-first then writables-first, the ordering
// the runtime header encoding requires.
func CompileMessage(feePayer, recentBlockhash string, instructions []*Instruction) (*Message, error) {
	if feePayer == "" {
		return nil, fmt.Errorf("compile message: missing fee payer")
	}
	if recentBlockhash == "" {
		return nil, fmt.Errorf("compile message: missing recent blockhash")
	}
	if len(instructions) == 0 {
		return nil, fmt.Errorf("compile message: no instructions")
	}

	uses := map[string]*accountUse{
		feePayer: {address: feePayer, signer: true, writable: true, order: 0},
	}
	next := 1

	record := func(address string, signer, writable bool) {
		u, ok := uses[address]
		if !ok {
			uses[address] = &accountUse{address: address, signer: signer, writable: writable, order: next}
			next++
			return
		}
		u.signer = u.signer || signer
		u.writable = u.writable || writable
	}

	for _, ins := range instructions {
		for _, acc := range ins.Accounts {
			record(acc.Address, acc.IsSigner, acc.IsWritable)
		}
		record(ins.ProgramID, false, false)
	}

	all := make([]*accountUse, 0, len(uses))
	for _, u := range uses {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.address == feePayer {
			return true
		}
		if b.address == feePayer {
			return false
		}
		if a.signer != b.signer {
			return a.signer
		}
		if a.writable != b.writable {
			return a.writable
		}
		return a.order < b.order
	})

	if len(all) > 256 {
		return nil, fmt.Errorf("compile message: %d accounts exceeds table limit", len(all))
	}

	msg := &Message{
		RecentBlockhash: recentBlockhash,
		AccountKeys:     make([]string, len(all)),
	}
	index := make(map[string]uint8, len(all))
	for i, u := range all {
		msg.AccountKeys[i] = u.address
		index[u.address] = uint8(i)
		if u.signer {
			msg.NumRequiredSignatures++
			if !u.writable {
				msg.NumReadonlySigned++
			}
		} else if !u.writable {
			msg.NumReadonlyUnsigned++
		}
	}

	for _, ins := range instructions {
		compiled := CompiledInstruction{
			ProgramIDIndex: index[ins.ProgramID],
			AccountIndexes: make([]uint8, len(ins.Accounts)),
			Data:           ins.Data,
		}
		for i, acc := range ins.Accounts {
			compiled.AccountIndexes[i] = index[acc.Address]
		}
		msg.CompiledInstructions = append(msg.CompiledInstructions, compiled)
	}

	return msg, nil
}

// Serialize encodes the message in the legacy wire layout:
// header | compact-u16 key count | keys | blockhash | compact-u16
// instruction count | instructions.
func (m *Message) Serialize() ([]byte, error) {
	out := make([]byte, 0, 256)
	out = append(out, m.NumRequiredSignatures, m.NumReadonlySigned, m.NumReadonlyUnsigned)

	out = appendCompactU16(out, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		raw, err := decodeAddress(key)
		if err != nil {
			return nil, fmt.Errorf("serialize message: %w", err)
		}
		out = append(out, raw...)
	}

	blockhash, err := decodeAddress(m.RecentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("serialize message blockhash: %w", err)
	}
	out = append(out, blockhash...)

	out = appendCompactU16(out, len(m.CompiledInstructions))
	for _, ins := range m.CompiledInstructions {
		out = append(out, ins.ProgramIDIndex)
		out = appendCompactU16(out, len(ins.AccountIndexes))
		out = append(out, ins.AccountIndexes...)
		out = appendCompactU16(out, len(ins.Data))
		out = append(out, ins.Data...)
	}

	return out, nil
}

// SerializeTransaction prepends the compact signature array to the message
// bytes, producing broadcast-ready raw transaction bytes.
func SerializeTransaction(signatures [][]byte, messageBytes []byte) ([]byte, error) {
	out := make([]byte, 0, len(messageBytes)+1+64*len(signatures))
	out = appendCompactU16(out, len(signatures))
	for i, sig := range signatures {
		if len(sig) != 64 {
			return nil, fmt.Errorf("serialize transaction: signature %d has %d bytes, want 64", i, len(sig))
		}
		out = append(out, sig...)
	}
	return append(out, messageBytes...), nil
}

// SplitTransaction separates raw transaction bytes into the signature
// array and the message bytes. Used to re-sign transactions assembled by an
// external aggregator.
func SplitTransaction(tx []byte) (signatures [][]byte, messageBytes []byte, err error) {
	count, n := decodeCompactU16(tx)
	if n == 0 {
		return nil, nil, fmt.Errorf("split transaction: truncated signature count")
	}
	offset := n
	if len(tx) < offset+64*count {
		return nil, nil, fmt.Errorf("split transaction: %d bytes too short for %d signatures", len(tx), count)
	}
	for i := 0; i < count; i++ {
		signatures = append(signatures, tx[offset:offset+64])
		offset += 64
	}
	if offset >= len(tx) {
		return nil, nil, fmt.Errorf("split transaction: empty message")
	}
	return signatures, tx[offset:], nil
}

// decodeCompactU16 reads a shortvec-encoded length, returning the value and
// bytes consumed (0 on truncation).
func decodeCompactU16(data []byte) (int, int) {
	var value, shift uint
	for i := 0; i < len(data) && i < 3; i++ {
		b := data[i]
		value |= uint(b&0x7f) << shift
		if b&0x80 == 0 {
			return int(value), i + 1
		}
		shift += 7
	}
	return 0, 0
}

// appendCompactU16 appends a shortvec-encoded length.
func appendCompactU16(out []byte, n int) []byte {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

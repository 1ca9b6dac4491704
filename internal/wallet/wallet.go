// Package wallet holds the signing keypair. Key material never leaves this
// package: no accessor returns the private key and nothing here logs it.
package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

var ErrInvalidKey = errors.New("wallet: invalid secret key")

// Wallet signs transaction messages with an ed25519 keypair.
type Wallet struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// NewFromBase58 parses a base58-encoded 64-byte secret key (the standard
// Solana keypair export format: 32-byte seed followed by 32-byte public key).
func NewFromBase58(secret string) (*Wallet, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(raw), ed25519.PrivateKeySize)
	}

	priv := ed25519.PrivateKey(raw)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}

	// The trailing 32 bytes must match the derived public key, otherwise the
	// keypair file is corrupt and every signature would be rejected.
	derived := priv[ed25519.SeedSize:]
	for i := range pub {
		if pub[i] != derived[i] {
			return nil, fmt.Errorf("%w: public key mismatch", ErrInvalidKey)
		}
	}

	return &Wallet{
		priv:   priv,
		pubkey: base58.Encode(pub),
	}, nil
}

// NewFromSeed builds a wallet from a raw 32-byte seed. Used in tests.
func NewFromSeed(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: got %d seed bytes, want %d", ErrInvalidKey, len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Wallet{
		priv:   priv,
		pubkey: base58.Encode(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// PublicKey returns the base58-encoded public key.
func (w *Wallet) PublicKey() string {
	return w.pubkey
}

// SignMessage signs serialized transaction message bytes and returns the
// 64-byte signature.
func (w *Wallet) SignMessage(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}

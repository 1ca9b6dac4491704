package solana

import (
	"context"
	"time"
)

// RPCClient defines the Solana RPC surface the execution path needs.
type RPCClient interface {
	// GetAccountInfo retrieves account info by public key.
	// Returns nil (no error) when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetLatestBlockhash retrieves a fresh blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (string, error)

	// SimulateTransaction dry-runs raw signed transaction bytes.
	SimulateTransaction(ctx context.Context, txBase64 string) (*SimulateResult, error)

	// SendTransaction broadcasts raw signed transaction bytes and returns
	// the signature, or a RejectedError on a structured on-chain error.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)

	// ConfirmTransaction polls until the signature commits or timeout expires.
	ConfirmTransaction(ctx context.Context, signature string, timeout time.Duration) error

	// GetTokenAccountBalance retrieves a token account's balance in base units.
	GetTokenAccountBalance(ctx context.Context, account string) (uint64, error)
}

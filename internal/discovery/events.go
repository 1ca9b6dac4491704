package discovery

import "solana-launch-sniper/internal/domain"

// LaunchEvent represents a newly created token pool observed on-chain.
// It is the sole trade trigger consumed by the engine.
type LaunchEvent struct {
	Mint      string
	Platform  domain.Platform
	Developer string
	Signature string
	Slot      int64
}

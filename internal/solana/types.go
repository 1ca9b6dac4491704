package solana

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte // decoded account bytes
	Executable bool
}

// SimulateResult is the outcome of a transaction dry run.
type SimulateResult struct {
	Err           interface{} // non-nil means the transaction would fail
	Logs          []string
	UnitsConsumed uint64
}

// SignatureStatus reports commitment progress for one signature.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int
	ConfirmationStatus string // "processed" | "confirmed" | "finalized"
	Err                interface{}
}

// Package executor turns admitted trades into confirmed transactions. One
// request walks Quoting → Building → Submitting → Confirming; retries are
// per-method, fallback across methods.
package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-launch-sniper/internal/breaker"
	"solana-launch-sniper/internal/codec"
	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/executor/jupiter"
	"solana-launch-sniper/internal/quote"
	"solana-launch-sniper/internal/retry"
	"solana-launch-sniper/internal/solana"
	"solana-launch-sniper/internal/storage"
	"solana-launch-sniper/internal/wallet"
)

// ErrNoLiquidity means no venue currently hosts a pool for the mint. A skip,
// not a failure: it never counts against the circuit breaker.
var ErrNoLiquidity = errors.New("no liquidity for mint")

// Order is one admitted trade to execute.
type Order struct {
	Request  domain.SwapRequest
	Platform domain.Platform
	// Creator is the token creator, required for bonding-curve derivation.
	Creator string
	// CurveEligible marks tokens that can still fall back to the curve.
	CurveEligible bool
	// RealizedPnLSOL is fed to the breaker on success. Zero for buys; tier
	// sells carry the realized profit or loss.
	RealizedPnLSOL float64
}

// Mint returns the token mint being traded.
func (o *Order) Mint() string {
	if o.Request.Side == domain.SideBuy {
		return o.Request.OutputMint
	}
	return o.Request.InputMint
}

// Result is a confirmed execution.
type Result struct {
	Signature string
	Method    domain.ExecMethod
	AmountIn  uint64
	// QuotedOut is the gross quoted output the minimum out derived from.
	QuotedOut uint64
	MinOut    uint64
	// Price is the advisory SOL-per-token price at quote time.
	Price float64
	// Decimals is the traded token's mint decimals, read from the venue
	// that executed the trade.
	Decimals uint8
}

// MethodFailure records one abandoned method.
type MethodFailure struct {
	Method  domain.ExecMethod
	Retries int
	Err     error
}

// DispatchError reports every attempted method with its retry count and
// final cause.
type DispatchError struct {
	Failures []MethodFailure
}

func (e *DispatchError) Error() string {
	var b strings.Builder
	b.WriteString("all execution methods failed:")
	for _, f := range e.Failures {
		fmt.Fprintf(&b, " [%s retries=%d: %v]", f.Method, f.Retries, f.Err)
	}
	return b.String()
}

// Unwrap exposes the per-method causes to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// AllNoLiquidity reports whether every method failed only for lack of a
// pool or route.
func (e *DispatchError) AllNoLiquidity() bool {
	for _, f := range e.Failures {
		if !errors.Is(f.Err, ErrNoLiquidity) && !errors.Is(f.Err, jupiter.ErrNoRoute) {
			return false
		}
	}
	return len(e.Failures) > 0
}

// Config holds dispatcher settings.
type Config struct {
	// Launchpad pool configuration accounts.
	PlatformAdmin string
	CurveType     uint8
	ConfigIndex   uint16

	ConfirmTimeout time.Duration
	// SimulateFirst dry-runs each transaction before broadcast.
	SimulateFirst bool

	// Policies overrides the retry policy per method.
	Policies map[domain.ExecMethod]retry.Policy
}

// Dispatcher executes orders against the venue programs.
type Dispatcher struct {
	rpc      solana.RPCClient
	signer   *wallet.Wallet
	jup      *jupiter.Client
	breaker  *breaker.Breaker
	attempts storage.AttemptStore
	config   Config
	logger   *zap.Logger
	now      func() time.Time

	// polMu guards policies, the only setting that changes at runtime.
	polMu    sync.RWMutex
	policies map[domain.ExecMethod]retry.Policy
}

// NewDispatcher creates a dispatcher. attempts may be nil to skip archiving.
func NewDispatcher(rpc solana.RPCClient, signer *wallet.Wallet, jup *jupiter.Client, brk *breaker.Breaker, attempts storage.AttemptStore, config Config, logger *zap.Logger) *Dispatcher {
	if config.ConfirmTimeout <= 0 {
		config.ConfirmTimeout = solana.DefaultConfirmTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		rpc:      rpc,
		signer:   signer,
		jup:      jup,
		breaker:  brk,
		attempts: attempts,
		config:   config,
		logger:   logger.Named("dispatcher"),
		now:      time.Now,
		policies: config.Policies,
	}
}

// SetPolicies swaps the per-method retry policies; used by config hot
// reload. In-flight retries finish under the policy they started with.
func (d *Dispatcher) SetPolicies(policies map[domain.ExecMethod]retry.Policy) {
	d.polMu.Lock()
	defer d.polMu.Unlock()
	d.policies = policies
}

// Execute runs the order down its method chain. Admission is the risk
// gate's job; the dispatcher only reports the terminal outcome to the
// breaker, exactly once. A no-liquidity outcome is a skip and reports
// nothing.
func (d *Dispatcher) Execute(ctx context.Context, order Order) (*Result, error) {
	if err := order.Request.Validate(); err != nil {
		return nil, err
	}

	chain := MethodChain(order.Platform, order.Request.PreferredMethod, order.CurveEligible)
	var failures []MethodFailure

	for _, method := range chain {
		res, retries, err := d.tryMethod(ctx, method, order)
		if err == nil {
			d.breaker.RecordSuccess(ctx, order.RealizedPnLSOL)
			d.logger.Info("trade executed",
				zap.String("mint", order.Mint()),
				zap.String("method", string(method)),
				zap.String("signature", res.Signature),
				zap.Int("retries", retries))
			return res, nil
		}

		failures = append(failures, MethodFailure{Method: method, Retries: retries, Err: err})
		d.logger.Warn("method abandoned",
			zap.String("mint", order.Mint()),
			zap.String("method", string(method)),
			zap.Int("retries", retries),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	derr := &DispatchError{Failures: failures}
	if derr.AllNoLiquidity() {
		return nil, fmt.Errorf("%w: %v", ErrNoLiquidity, derr)
	}
	d.breaker.RecordFailure(ctx)
	return nil, derr
}

// tryMethod runs one method under its retry policy, recording the attempt
// in the append-only log. Returns the retries consumed.
func (d *Dispatcher) tryMethod(ctx context.Context, method domain.ExecMethod, order Order) (*Result, int, error) {
	startedAt := d.now()
	var res *Result
	tries := 0

	err := retry.Do(ctx, d.policy(method), func(ctx context.Context) error {
		tries++
		r, attemptErr := d.attempt(ctx, method, order)
		if attemptErr != nil {
			return classify(attemptErr)
		}
		res = r
		return nil
	})

	retries := tries - 1
	if retries < 0 {
		retries = 0
	}
	d.recordAttempt(ctx, method, order, startedAt, res, retries, err)
	return res, retries, err
}

func (d *Dispatcher) policy(method domain.ExecMethod) retry.Policy {
	d.polMu.RLock()
	defer d.polMu.RUnlock()
	if p, ok := d.policies[method]; ok {
		return p
	}
	return retry.DefaultPolicy()
}

// classify marks non-retryable errors permanent. Only network failures and
// timeouts are worth retrying with the same method.
func classify(err error) error {
	var netErr *solana.NetworkError
	var timeoutErr *solana.TimeoutError
	if errors.As(err, &netErr) || errors.As(err, &timeoutErr) {
		return err
	}
	return retry.Permanent(err)
}

func (d *Dispatcher) attempt(ctx context.Context, method domain.ExecMethod, order Order) (*Result, error) {
	switch method {
	case domain.MethodBondingCurve:
		return d.attemptCurve(ctx, order)
	case domain.MethodLaunchpadDirect:
		return d.attemptLaunchpad(ctx, order)
	case domain.MethodJupiter:
		return d.attemptJupiter(ctx, order)
	default:
		return nil, fmt.Errorf("unknown execution method %q", method)
	}
}

// attemptCurve executes directly against the bonding-curve program.
func (d *Dispatcher) attemptCurve(ctx context.Context, order Order) (*Result, error) {
	req := order.Request
	mint := order.Mint()
	deriver := codec.NewDeriver()
	params := codec.CurveParams{Mint: mint, Creator: order.Creator}

	// Quoting
	addrs, err := codec.DeriveCurveAddresses(deriver, params)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}
	info, err := d.rpc.GetAccountInfo(ctx, addrs.BondingCurve.Address)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}
	if info == nil {
		return nil, ErrNoLiquidity
	}
	state, err := codec.ParseCurveState(info.Data)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}
	if state.Complete {
		// Migrated off the curve; only the pool venues can trade it now.
		return nil, fmt.Errorf("%w: curve complete", ErrNoLiquidity)
	}

	pool := state.Snapshot(mint)
	q, err := quote.Quote(pool, req.Side, req.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}
	if q.NoLiquidity {
		return nil, ErrNoLiquidity
	}
	minOut := quote.MinAmountOut(q.AmountOut, req.Slippage)

	// Building
	payer := d.signer.PublicKey()
	var instructions []*codec.Instruction
	var swap *codec.Instruction
	if req.Side == domain.SideBuy {
		ata, err := codec.BuildCreateATAIdempotent(payer, payer, mint, codec.TokenProgramID)
		if err != nil {
			return nil, fmt.Errorf("building: %w", err)
		}
		instructions = append(instructions, ata)
		swap, err = codec.BuildCurveBuy(deriver, payer, params, minOut, req.AmountIn)
		if err != nil {
			return nil, fmt.Errorf("building: %w", err)
		}
	} else {
		swap, err = codec.BuildCurveSell(deriver, payer, params, req.AmountIn, minOut)
		if err != nil {
			return nil, fmt.Errorf("building: %w", err)
		}
	}
	instructions = append(instructions, swap)

	signature, err := d.signAndSend(ctx, instructions)
	if err != nil {
		return nil, err
	}
	return &Result{
		Signature: signature,
		Method:    domain.MethodBondingCurve,
		AmountIn:  req.AmountIn,
		QuotedOut: q.AmountOut,
		MinOut:    minOut,
		Price:     solPerToken(pool),
		Decimals:  codec.CurveTokenDecimals,
	}, nil
}

// attemptLaunchpad builds the constant-product pool instruction directly.
func (d *Dispatcher) attemptLaunchpad(ctx context.Context, order Order) (*Result, error) {
	req := order.Request
	mint := order.Mint()
	deriver := codec.NewDeriver()
	params := codec.LaunchpadParams{
		BaseMint:      mint,
		QuoteMint:     codec.WSOLMint,
		CurveType:     d.config.CurveType,
		ConfigIndex:   d.config.ConfigIndex,
		PlatformAdmin: d.config.PlatformAdmin,
	}

	// Quoting
	addrs, err := codec.DeriveLaunchpadAddresses(deriver, params)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}
	info, err := d.rpc.GetAccountInfo(ctx, addrs.PoolState.Address)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}
	if info == nil {
		return nil, ErrNoLiquidity
	}
	state, err := codec.ParseLaunchpadPool(info.Data)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}

	pool := state.Snapshot()
	q, err := quote.Quote(pool, req.Side, req.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}
	if q.NoLiquidity {
		return nil, ErrNoLiquidity
	}
	minOut := quote.MinAmountOut(q.AmountOut, req.Slippage)

	// Building
	payer := d.signer.PublicKey()
	var instructions []*codec.Instruction
	var swap *codec.Instruction
	if req.Side == domain.SideBuy {
		ata, err := codec.BuildCreateATAIdempotent(payer, payer, mint, codec.TokenProgramID)
		if err != nil {
			return nil, fmt.Errorf("building: %w", err)
		}
		instructions = append(instructions, ata)
		swap, err = codec.BuildLaunchpadBuy(deriver, payer, params, req.AmountIn, minOut)
		if err != nil {
			return nil, fmt.Errorf("building: %w", err)
		}
	} else {
		swap, err = codec.BuildLaunchpadSell(deriver, payer, params, req.AmountIn, minOut)
		if err != nil {
			return nil, fmt.Errorf("building: %w", err)
		}
	}
	instructions = append(instructions, swap)

	signature, err := d.signAndSend(ctx, instructions)
	if err != nil {
		return nil, err
	}
	return &Result{
		Signature: signature,
		Method:    domain.MethodLaunchpadDirect,
		AmountIn:  req.AmountIn,
		QuotedOut: q.AmountOut,
		MinOut:    minOut,
		Price:     solPerToken(pool),
		// Launchpad mints choose their own decimals; the pool state is
		// authoritative.
		Decimals: pool.QuoteDecimals,
	}, nil
}

// attemptJupiter routes through the aggregator API, re-signing the returned
// legacy transaction locally.
func (d *Dispatcher) attemptJupiter(ctx context.Context, order Order) (*Result, error) {
	req := order.Request
	mint := order.Mint()

	// Quoting
	slippageBps := int(req.Slippage * 10_000)
	jq, err := d.jup.GetQuote(ctx, req.InputMint, req.OutputMint, req.AmountIn, slippageBps)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}
	decimals, err := d.mintDecimals(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("quoting: %w", err)
	}

	// Building
	payer := d.signer.PublicKey()
	txB64, err := d.jup.GetSwapTransaction(ctx, jq, payer)
	if err != nil {
		return nil, fmt.Errorf("building: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(txB64)
	if err != nil {
		return nil, fmt.Errorf("building: decode swap transaction: %w", err)
	}
	sigs, msgBytes, err := codec.SplitTransaction(raw)
	if err != nil {
		return nil, fmt.Errorf("building: %w", err)
	}
	if len(sigs) != 1 {
		return nil, fmt.Errorf("building: aggregator transaction wants %d signatures, can sign 1", len(sigs))
	}
	sig := d.signer.SignMessage(msgBytes)
	signed, err := codec.SerializeTransaction([][]byte{sig}, msgBytes)
	if err != nil {
		return nil, fmt.Errorf("building: %w", err)
	}

	signature, err := d.broadcast(ctx, signed)
	if err != nil {
		return nil, err
	}
	return &Result{
		Signature: signature,
		Method:    domain.MethodJupiter,
		AmountIn:  jq.InAmount,
		QuotedOut: jq.OutAmount,
		MinOut:    quote.MinAmountOut(jq.OutAmount, req.Slippage),
		Price:     priceFromAmounts(req.Side, jq.InAmount, jq.OutAmount, decimals),
		Decimals:  decimals,
	}, nil
}

// mintDecimals reads the mint account for its decimals. The aggregator
// quotes in base units, so whole-token math needs the real figure.
func (d *Dispatcher) mintDecimals(ctx context.Context, mint string) (uint8, error) {
	info, err := d.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, fmt.Errorf("mint account %s not found", mint)
	}
	return codec.ParseMintDecimals(info.Data)
}

// signAndSend compiles, signs and broadcasts instructions with a fresh
// blockhash. Every attempt is independently signed; nothing is reused.
func (d *Dispatcher) signAndSend(ctx context.Context, instructions []*codec.Instruction) (string, error) {
	blockhash, err := d.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("building: %w", err)
	}
	msg, err := codec.CompileMessage(d.signer.PublicKey(), blockhash, instructions)
	if err != nil {
		return "", fmt.Errorf("building: %w", err)
	}
	msgBytes, err := msg.Serialize()
	if err != nil {
		return "", fmt.Errorf("building: %w", err)
	}
	sig := d.signer.SignMessage(msgBytes)
	raw, err := codec.SerializeTransaction([][]byte{sig}, msgBytes)
	if err != nil {
		return "", fmt.Errorf("building: %w", err)
	}
	return d.broadcast(ctx, raw)
}

// broadcast submits raw signed bytes and waits for confirmation.
func (d *Dispatcher) broadcast(ctx context.Context, raw []byte) (string, error) {
	txB64 := base64.StdEncoding.EncodeToString(raw)

	// Submitting
	if d.config.SimulateFirst {
		sim, err := d.rpc.SimulateTransaction(ctx, txB64)
		if err != nil {
			return "", fmt.Errorf("submitting: %w", err)
		}
		if sim.Err != nil {
			return "", fmt.Errorf("submitting: %w", &solana.RejectedError{
				Op:      "simulateTransaction",
				Message: fmt.Sprintf("simulation failed: %v", sim.Err),
				Logs:    sim.Logs,
			})
		}
	}
	signature, err := d.rpc.SendTransaction(ctx, txB64)
	if err != nil {
		return "", fmt.Errorf("submitting: %w", err)
	}

	// Confirming
	if err := d.rpc.ConfirmTransaction(ctx, signature, d.config.ConfirmTimeout); err != nil {
		return "", fmt.Errorf("confirming: %w", err)
	}
	return signature, nil
}

// recordAttempt appends one method attempt to the archive.
func (d *Dispatcher) recordAttempt(ctx context.Context, method domain.ExecMethod, order Order, startedAt time.Time, res *Result, retries int, err error) {
	if d.attempts == nil {
		return
	}

	attempt := &domain.ExecutionAttempt{
		ID:         uuid.NewString(),
		Mint:       order.Mint(),
		Method:     method,
		Side:       order.Request.Side,
		StartedAt:  startedAt,
		FinishedAt: d.now(),
		Retries:    retries,
	}
	if err == nil {
		attempt.Outcome = domain.AttemptOutcomeSuccess
		attempt.Signature = res.Signature
	} else {
		attempt.Outcome = domain.AttemptOutcomeFailure
		attempt.ErrKind = errKind(err)
		attempt.ErrMessage = err.Error()
	}

	if insertErr := d.attempts.Insert(ctx, attempt); insertErr != nil {
		d.logger.Error("archive attempt", zap.Error(insertErr))
	}
}

// errKind classifies an error for the attempt log.
func errKind(err error) string {
	var rejected *solana.RejectedError
	var timeout *solana.TimeoutError
	var network *solana.NetworkError
	var exhausted *retry.ExhaustedError

	switch {
	case errors.Is(err, ErrNoLiquidity), errors.Is(err, jupiter.ErrNoRoute):
		return "NO_LIQUIDITY"
	case errors.As(err, &rejected):
		return "REJECTED"
	case errors.As(err, &timeout):
		return "TIMEOUT"
	case errors.As(err, &network):
		return "NETWORK"
	case errors.As(err, &exhausted):
		return "EXHAUSTED"
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidSlippage), errors.Is(err, domain.ErrMissingMint):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// CurrentPrice reads the venue pool and returns the SOL-per-token price.
// Returns ErrNoLiquidity when the pool is absent or the curve has migrated.
func (d *Dispatcher) CurrentPrice(ctx context.Context, mint string, platform domain.Platform, creator string) (float64, error) {
	deriver := codec.NewDeriver()

	if platform == domain.PlatformBondingCurve {
		addrs, err := codec.DeriveCurveAddresses(deriver, codec.CurveParams{Mint: mint, Creator: creator})
		if err != nil {
			return 0, err
		}
		info, err := d.rpc.GetAccountInfo(ctx, addrs.BondingCurve.Address)
		if err != nil {
			return 0, err
		}
		if info == nil {
			return 0, ErrNoLiquidity
		}
		state, err := codec.ParseCurveState(info.Data)
		if err != nil {
			return 0, err
		}
		if state.Complete {
			return 0, fmt.Errorf("%w: curve complete", ErrNoLiquidity)
		}
		return solPerToken(state.Snapshot(mint)), nil
	}

	addrs, err := codec.DeriveLaunchpadAddresses(deriver, codec.LaunchpadParams{
		BaseMint:      mint,
		QuoteMint:     codec.WSOLMint,
		CurveType:     d.config.CurveType,
		ConfigIndex:   d.config.ConfigIndex,
		PlatformAdmin: d.config.PlatformAdmin,
	})
	if err != nil {
		return 0, err
	}
	info, err := d.rpc.GetAccountInfo(ctx, addrs.PoolState.Address)
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, ErrNoLiquidity
	}
	state, err := codec.ParseLaunchpadPool(info.Data)
	if err != nil {
		return 0, err
	}
	return solPerToken(state.Snapshot()), nil
}

// solPerToken converts the snapshot price into SOL per whole token.
// Advisory; authoritative amounts come from the quote.
func solPerToken(pool *domain.PoolSnapshot) float64 {
	p := quote.Price(pool)
	if p == 0 {
		return 0
	}
	// Price is tokens per SOL; the entry price is its inverse.
	return 1 / p
}

// priceFromAmounts estimates the trade price from aggregate amounts. The
// SOL leg is always 9 decimals; the token leg uses the mint's.
func priceFromAmounts(side domain.Side, amountIn, amountOut uint64, tokenDecimals uint8) float64 {
	if amountIn == 0 || amountOut == 0 {
		return 0
	}
	unit := math.Pow10(int(tokenDecimals))
	sol := float64(amountIn) / 1e9
	tokens := float64(amountOut) / unit
	if side == domain.SideSell {
		sol = float64(amountOut) / 1e9
		tokens = float64(amountIn) / unit
	}
	if tokens == 0 {
		return 0
	}
	return sol / tokens
}

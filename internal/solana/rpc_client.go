package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"solana-launch-sniper/internal/ratelimit"
)

// Default configuration values.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultConfirmPoll    = 500 * time.Millisecond
	DefaultConfirmTimeout = 60 * time.Second

	rateLimitAPI = "rpc"
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0. Each call is a
// single attempt; retry policy belongs to the caller.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	limiter     *ratelimit.Limiter
	confirmPoll time.Duration
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithRateLimiter gates every call through the sliding-window limiter
// under the (rpc, method) key.
func WithRateLimiter(l *ratelimit.Limiter) ClientOption {
	return func(c *HTTPClient) {
		c.limiter = l
	}
}

// WithConfirmPollInterval sets the signature-status polling interval.
func WithConfirmPollInterval(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.confirmPoll = d
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		confirmPoll: DefaultConfirmPoll,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC call. Transport failures and read-method
// JSON-RPC errors come back as NetworkError/TimeoutError; only
// sendTransaction sees the raw *rpcError.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rateLimitAPI, method); err != nil {
			return err
		}
	}

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyCallErr(method, err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return classifyCallErr(method, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &NetworkError{Op: method, Err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode != http.StatusOK {
		return &NetworkError{Op: method, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return &NetworkError{Op: method, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if rpcResp.Error != nil {
		// sendTransaction keeps the raw code so the caller can surface an
		// on-chain rejection. Errors on read methods come from the node, not
		// the transaction, and are retryable like any other transport fault.
		if method == "sendTransaction" {
			return rpcResp.Error
		}
		return &NetworkError{Op: method, Err: rpcResp.Error}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{"encoding": "base64"},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
	}

	if len(result.Value.Data) >= 1 {
		data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
		if err != nil {
			return nil, fmt.Errorf("decode account data: %w", err)
		}
		info.Data = data
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
}

// GetLatestBlockhash retrieves a fresh blockhash.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	params := []interface{}{
		map[string]interface{}{"commitment": "confirmed"},
	}

	var result getLatestBlockhashResult
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", err
	}
	if result.Value.Blockhash == "" {
		return "", &NetworkError{Op: "getLatestBlockhash", Err: fmt.Errorf("empty blockhash in response")}
	}
	return result.Value.Blockhash, nil
}

type getLatestBlockhashResult struct {
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight int64  `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// SimulateTransaction dry-runs raw signed transaction bytes.
func (c *HTTPClient) SimulateTransaction(ctx context.Context, txBase64 string) (*SimulateResult, error) {
	params := []interface{}{
		txBase64,
		map[string]interface{}{"encoding": "base64", "commitment": "confirmed"},
	}

	var result simulateResult
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, err
	}

	return &SimulateResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: result.Value.UnitsConsumed,
	}, nil
}

type simulateResult struct {
	Value struct {
		Err           interface{} `json:"err"`
		Logs          []string    `json:"logs"`
		UnitsConsumed uint64      `json:"unitsConsumed"`
	} `json:"value"`
}

// SendTransaction broadcasts raw signed transaction bytes. A structured
// JSON-RPC error is surfaced as a RejectedError so callers never retry the
// same instruction against an on-chain refusal.
func (c *HTTPClient) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	params := []interface{}{
		txBase64,
		map[string]interface{}{
			"encoding":      "base64",
			"skipPreflight": true,
			"maxRetries":    0,
		},
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			return "", &RejectedError{
				Op:      "sendTransaction",
				Code:    rpcErr.Code,
				Message: rpcErr.Message,
			}
		}
		return "", err
	}
	return signature, nil
}

// ConfirmTransaction polls signature status until committed, failed, or
// timed out.
func (c *HTTPClient) ConfirmTransaction(ctx context.Context, signature string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.confirmPoll)
	defer ticker.Stop()

	for {
		status, err := c.getSignatureStatus(ctx, signature)
		if err != nil {
			// Transient poll errors are absorbed; the deadline bounds the loop.
			var netErr *NetworkError
			if !errors.As(err, &netErr) {
				return err
			}
		} else if status != nil {
			if status.Err != nil {
				return &RejectedError{
					Op:      "confirmTransaction",
					Message: fmt.Sprintf("transaction failed on-chain: %v", status.Err),
				}
			}
			if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return &TimeoutError{Op: "confirmTransaction", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (c *HTTPClient) getSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	params := []interface{}{
		[]string{signature},
		map[string]interface{}{"searchTransactionHistory": false},
	}

	var result getSignatureStatusesResult
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}

	if len(result.Value) == 0 || result.Value[0] == nil {
		return nil, nil
	}

	v := result.Value[0]
	return &SignatureStatus{
		Slot:               v.Slot,
		Confirmations:      v.Confirmations,
		ConfirmationStatus: v.ConfirmationStatus,
		Err:                v.Err,
	}, nil
}

type getSignatureStatusesResult struct {
	Value []*signatureStatusValue `json:"value"`
}

type signatureStatusValue struct {
	Slot               int64       `json:"slot"`
	Confirmations      *int        `json:"confirmations"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

// GetTokenAccountBalance retrieves a token account's balance in base units.
func (c *HTTPClient) GetTokenAccountBalance(ctx context.Context, account string) (uint64, error) {
	params := []interface{}{
		account,
		map[string]interface{}{"commitment": "confirmed"},
	}

	var result getTokenAccountBalanceResult
	if err := c.call(ctx, "getTokenAccountBalance", params, &result); err != nil {
		return 0, err
	}

	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token balance %q: %w", result.Value.Amount, err)
	}
	return amount, nil
}

type getTokenAccountBalanceResult struct {
	Value struct {
		Amount   string `json:"amount"`
		Decimals uint8  `json:"decimals"`
	} `json:"value"`
}

var _ RPCClient = (*HTTPClient)(nil)

// Package jupiter is a thin client for the aggregator quote and swap API.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public aggregator endpoint.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

// ErrNoRoute means the aggregator has no route for the pair. Fallback to a
// direct venue instruction is the expected response.
var ErrNoRoute = errors.New("jupiter: no route found")

// APIError is a non-2xx response from the aggregator.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jupiter: status %d: %s", e.Status, e.Body)
}

// Client calls the aggregator API with a local token-bucket limiter so a
// burst of launches cannot trip the public endpoint's limits.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithRateLimit sets requests-per-second and burst for the local limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewClient creates an aggregator client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(8), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote is an aggregator route quote. Raw holds the untouched response body
// because the swap endpoint requires it verbatim.
type Quote struct {
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
	Raw        json.RawMessage
}

type quoteResponse struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

// GetQuote fetches a route quote for swapping amount of inputMint into
// outputMint.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "COULD_NOT_FIND_ANY_ROUTE") {
			return nil, ErrNoRoute
		}
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}

	inAmount, err := strconv.ParseUint(parsed.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse inAmount %q: %w", parsed.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", parsed.OutAmount, err)
	}

	return &Quote{
		InputMint:  parsed.InputMint,
		OutputMint: parsed.OutputMint,
		InAmount:   inAmount,
		OutAmount:  outAmount,
		Raw:        body,
	}, nil
}

type swapRequest struct {
	QuoteResponse       json.RawMessage `json:"quoteResponse"`
	UserPublicKey       string          `json:"userPublicKey"`
	AsLegacyTransaction bool            `json:"asLegacyTransaction"`
	WrapAndUnwrapSol    bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// GetSwapTransaction exchanges a quote for an unsigned base64-encoded legacy
// transaction to sign and broadcast locally.
func (c *Client) GetSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqBody, err := json.Marshal(swapRequest{
		QuoteResponse:       quote.Raw,
		UserPublicKey:       userPublicKey,
		AsLegacyTransaction: true,
		WrapAndUnwrapSol:    true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("swap request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("read swap response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed swapResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal swap: %w", err)
	}
	if parsed.SwapTransaction == "" {
		return "", fmt.Errorf("empty swap transaction in response")
	}
	return parsed.SwapTransaction, nil
}

package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const (
	wsol     = "So11111111111111111111111111111111111111112"
	testMint = "5yQMUqPaVLTSuhmLZNYNDyHvG8exguda3NtP2s4YxKt2"
)

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("path = %s, want /quote", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("inputMint") != wsol {
			t.Errorf("inputMint = %s, want %s", q.Get("inputMint"), wsol)
		}
		if q.Get("amount") != "1000000000" {
			t.Errorf("amount = %s, want 1000000000", q.Get("amount"))
		}
		if q.Get("slippageBps") != "300" {
			t.Errorf("slippageBps = %s, want 300", q.Get("slippageBps"))
		}
		fmt.Fprintf(w, `{"inputMint":%q,"outputMint":%q,"inAmount":"1000000000","outAmount":"123456789","routePlan":[]}`, wsol, testMint)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	quote, err := client.GetQuote(context.Background(), wsol, testMint, 1_000_000_000, 300)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.InAmount != 1_000_000_000 {
		t.Errorf("inAmount = %d, want 1000000000", quote.InAmount)
	}
	if quote.OutAmount != 123_456_789 {
		t.Errorf("outAmount = %d, want 123456789", quote.OutAmount)
	}
	if len(quote.Raw) == 0 {
		t.Error("expected raw quote body to be retained")
	}
}

func TestGetQuoteNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorCode":"COULD_NOT_FIND_ANY_ROUTE","error":"no route"}`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetQuote(context.Background(), wsol, testMint, 1, 100)
	if !errors.Is(err, ErrNoRoute) {
		t.Errorf("expected ErrNoRoute, got %v", err)
	}
}

func TestGetQuoteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "maintenance")
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetQuote(context.Background(), wsol, testMint, 1, 100)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", apiErr.Status)
	}
}

func TestGetSwapTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap" {
			t.Errorf("path = %s, want /swap", r.URL.Path)
		}
		var req swapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode swap request: %v", err)
		}
		if req.UserPublicKey != "payerpubkey" {
			t.Errorf("userPublicKey = %s, want payerpubkey", req.UserPublicKey)
		}
		if !req.AsLegacyTransaction {
			t.Error("expected asLegacyTransaction=true")
		}
		if string(req.QuoteResponse) != `{"outAmount":"5"}` {
			t.Errorf("quoteResponse = %s, want original raw quote", req.QuoteResponse)
		}
		fmt.Fprint(w, `{"swapTransaction":"AQIDBA=="}`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	tx, err := client.GetSwapTransaction(context.Background(), &Quote{
		Raw: json.RawMessage(`{"outAmount":"5"}`),
	}, "payerpubkey")
	if err != nil {
		t.Fatalf("GetSwapTransaction: %v", err)
	}
	if tx != "AQIDBA==" {
		t.Errorf("swapTransaction = %s, want AQIDBA==", tx)
	}
}

package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func newWSTestServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClientConnect(t *testing.T) {
	server, wsURL := newWSTestServer(t, holdOpen)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClientSubscribeLogs(t *testing.T) {
	server, wsURL := newWSTestServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "logsSubscribe" {
			t.Errorf("method = %s, want logsSubscribe", req.Method)
		}

		conn.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: 77})

		time.Sleep(50 * time.Millisecond)
		conn.WriteJSON(wsNotification{
			JSONRPC: "2.0",
			Method:  "logsNotification",
			Params: &wsNotificationParams{
				Subscription: 77,
				Result: wsNotificationResult{
					Context: &wsContext{Slot: 31337},
					Value: wsLogsValue{
						Signature: "launchsig",
						Logs:      []string{"Program log: Instruction: InitializeMint"},
					},
				},
			},
		})

		holdOpen(conn)
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{
		Mentions: []string{"LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj"},
	})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "launchsig" {
			t.Errorf("signature = %s, want launchsig", notif.Signature)
		}
		if notif.Slot != 31337 {
			t.Errorf("slot = %d, want 31337", notif.Slot)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("logs = %v, want one entry", notif.Logs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClientClose(t *testing.T) {
	server, wsURL := newWSTestServer(t, holdOpen)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !client.closed.Load() {
		t.Error("client should be closed")
	}
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClientSubscribeAfterClose(t *testing.T) {
	server, wsURL := newWSTestServer(t, holdOpen)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	client.Close()

	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClientCustomConfig(t *testing.T) {
	server, wsURL := newWSTestServer(t, holdOpen)
	defer server.Close()

	config := &WSConfig{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: 1 * time.Second,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		SubscribeTimeout:  5 * time.Second,
	}

	client, err := NewWSClient(context.Background(), wsURL, config, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.config.PingInterval != 5*time.Second {
		t.Errorf("PingInterval = %v, want 5s", client.config.PingInterval)
	}
}

package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHeadTrackerFallsBackToHTTPPollingWithoutWS(t *testing.T) {
	srv := httptest.NewServer(jsonRPCHandler(t, "0x5"))
	defer srv.Close()

	c := NewClient(1, srv.URL, time.Second)
	defer c.Close()

	tracker := NewHeadTracker(c, 1)
	n, err := tracker.BlockNumber(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("got %d, want 5 from http fallback", n)
	}
}

func TestHeadTrackerUsesSubscriptionOnceConnected(t *testing.T) {
	var upgrader websocket.Upgrader
	wsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade failed: %v", err)
		}
		defer conn.Close()

		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": "0xsubid"})

		_ = conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "eth_subscription",
			"params": map[string]interface{}{
				"result": map[string]interface{}{"number": "0x64"},
			},
		})

		time.Sleep(2 * time.Second)
	}))
	defer wsSrv.Close()

	httpSrv := httptest.NewServer(jsonRPCHandler(t, "0x1"))
	defer httpSrv.Close()

	c := NewClient(1, httpSrv.URL, time.Second)
	defer c.Close()

	tracker := NewHeadTracker(c, 1)
	tracker.wsURL = "ws" + wsSrv.URL[len("http"):]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.Start(ctx)
	defer tracker.Stop()

	deadline := time.After(time.Second)
	for {
		n, err := tracker.BlockNumber(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if n == 100 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for subscription-pushed head, last got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

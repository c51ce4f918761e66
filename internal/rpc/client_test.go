package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evmindexer/chainindexer/internal/ingesterr"
)

func jsonRPCHandler(t *testing.T, result interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		payload, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("marshal result: %v", err)
		}
		resp := Response{Jsonrpc: "2.0", ID: req.ID, Result: payload}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestBlockNumber(t *testing.T) {
	srv := httptest.NewServer(jsonRPCHandler(t, "0x10"))
	defer srv.Close()

	c := NewClient(1, srv.URL, time.Second)
	defer c.Close()

	n, err := c.BlockNumber(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 16 {
		t.Fatalf("got %d, want 16", n)
	}
}

func TestGetBlockByNumberNotFound(t *testing.T) {
	srv := httptest.NewServer(jsonRPCHandler(t, nil))
	defer srv.Close()

	c := NewClient(1, srv.URL, time.Second)
	defer c.Close()

	_, err := c.GetBlockByNumber(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error for nil block result")
	}
}

func TestGetLogsReturnsParsedRange(t *testing.T) {
	want := []Log{{Address: "0xabc", Topics: []string{"0x01"}, Data: "0x"}}
	srv := httptest.NewServer(jsonRPCHandler(t, want))
	defer srv.Close()

	c := NewClient(1, srv.URL, time.Second)
	defer c.Close()

	got, err := c.GetLogs(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Address != "0xabc" {
		t.Fatalf("unexpected logs: %+v", got)
	}
}

func TestGetBlocksByNumberIssuesOneBatchRequest(t *testing.T) {
	var batchCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batchCalls++
		var reqs []Request
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			t.Fatalf("decode batch request: %v", err)
		}
		responses := make([]Response, len(reqs))
		for i, req := range reqs {
			block := Block{Number: "0x1", Hash: "0xblock"}
			payload, _ := json.Marshal(block)
			responses[i] = Response{Jsonrpc: "2.0", ID: req.ID, Result: payload}
		}
		_ = json.NewEncoder(w).Encode(responses)
	}))
	defer srv.Close()

	c := NewClient(1, srv.URL, time.Second)
	defer c.Close()

	blocks, err := c.GetBlocksByNumber(context.Background(), []uint64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if batchCalls != 1 {
		t.Fatalf("expected exactly 1 batch HTTP call, got %d", batchCalls)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	for _, b := range blocks {
		if b == nil || b.Hash != "0xblock" {
			t.Fatalf("unexpected block: %+v", b)
		}
	}
}

func TestDoOnceReturnsHTTPErrorForNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c := NewClient(1, srv.URL, time.Second)
	defer c.Close()

	body, _ := json.Marshal(Request{Jsonrpc: "2.0", Method: "eth_blockNumber", ID: 1})
	_, err := c.doOnce(context.Background(), body)
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
	var e *ingesterr.Error
	if !ingesterr.As(err, &e) {
		t.Fatalf("expected an *ingesterr.Error, got %T: %v", err, err)
	}
	if e.Kind != ingesterr.KindHTTPError {
		t.Fatalf("expected KindHTTPError, got %v", e.Kind)
	}
}

func TestRPCErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := Response{Jsonrpc: "2.0", ID: req.ID, Error: &RPCError{Code: -32000, Message: "boom"}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(1, srv.URL, time.Second)
	defer c.Close()

	_, err := c.BlockNumber(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

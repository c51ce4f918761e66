package sourcify

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func metadataServer(t *testing.T, abi string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"files":[{"name":"metadata.json","content":"{\"output\":{\"abi\":` + abi + `}}"}]}`))
	}))
}

func TestGetABICacheHit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"files":[{"name":"metadata.json","content":"{\"output\":{\"abi\":[]}}"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{DirectURL: srv.URL, CacheTTL: time.Hour})
	ctx := context.Background()

	if _, err := c.GetABI(ctx, 1, "0xABC"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetABI(ctx, 1, "0xabc"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call due to cache hit, got %d", calls)
	}
}

func TestGetABINotFoundNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{DirectURL: srv.URL, MaxRetries: 3})
	_, err := c.GetABI(context.Background(), 1, "0xdead")
	if err == nil {
		t.Fatal("expected not_found error")
	}
	if calls != 1 {
		t.Fatalf("expected not_found to be authoritative and spend none of the %d configured retries, got %d calls", 3, calls)
	}
}

func TestGetABIRotatesAcrossProxies(t *testing.T) {
	hitsA, hitsB := 0, 0
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsA++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer a.Close()
	b := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsB++
		w.Write([]byte(`{"files":[{"name":"metadata.json","content":"{\"abi\":[]}"}]}`))
	}))
	defer b.Close()

	c := NewClient(Config{ProxyURLs: []string{a.URL, b.URL}, MaxRetries: 3})
	c.pool.cursor.Store(0) // force first call to land on proxy index 0 (a)

	abi, err := c.GetABI(context.Background(), 1, "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if abi != "[]" {
		t.Fatalf("got %q", abi)
	}
	if hitsA == 0 || hitsB == 0 {
		t.Fatalf("expected both proxies hit, got a=%d b=%d", hitsA, hitsB)
	}
}

func TestExtractABIFallsBackToABIJSONFile(t *testing.T) {
	raw := []byte(`{"files":[{"name":"contracts/Foo.abi.json","content":"[{\"type\":\"event\"}]"}]}`)
	abi, err := extractABI(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if abi != `[{"type":"event"}]` {
		t.Fatalf("got %q", abi)
	}
}

func TestExtractABINoABIFound(t *testing.T) {
	raw := []byte(`{"files":[{"name":"contracts/Foo.sol","content":"pragma solidity;"}]}`)
	if _, err := extractABI(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected no_abi_found error")
	}
}

func TestClearCacheInvalidatesKey(t *testing.T) {
	c := NewClient(Config{CacheTTL: time.Hour})
	c.cache.put(1, "0xabc", "[]", time.Now())
	if _, ok := c.cache.get(1, "0xabc", time.Now()); !ok {
		t.Fatal("expected cache hit before clear")
	}
	c.ClearCache(1, "0xabc")
	if _, ok := c.cache.get(1, "0xabc", time.Now()); ok {
		t.Fatal("expected cache miss after clear")
	}
}

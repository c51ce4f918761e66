// Package sourcify is the ABI resolver's Sourcify half: a rotating-proxy
// HTTP client with retry/backoff in front of a TTL cache, producing
// {ok, abi_json} or {error, reason} for a (chain_id, address) pair.
package sourcify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evmindexer/chainindexer/internal/hexutil"
	"github.com/evmindexer/chainindexer/internal/ingesterr"
	"github.com/evmindexer/chainindexer/internal/logging"
	"github.com/evmindexer/chainindexer/internal/metrics"
	"github.com/rs/zerolog"
)

// Config configures a Client's rotation pool, retry budget, and TTL cache.
type Config struct {
	ProxyURLs  []string
	DirectURL  string
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration
}

// Client is the resolver's Sourcify half.
type Client struct {
	pool       *proxyPool
	cache      *ttlCache
	httpClient *http.Client
	maxRetries int
	log        zerolog.Logger
}

// NewClient builds a Client from cfg, defaulting unset tunables per §6.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	directURL := cfg.DirectURL
	if directURL == "" {
		directURL = "https://sourcify.dev/server"
	}

	return &Client{
		pool:       newProxyPool(cfg.ProxyURLs, directURL),
		cache:      newTTLCache(ttl),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		log:        logging.For("sourcify"),
	}
}

// file is one entry of a Sourcify files response.
type file struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type filesResponse struct {
	Files []file `json:"files"`
}

// GetABI resolves the ABI for (chainID, address), checking the TTL cache
// before issuing any HTTP calls.
func (c *Client) GetABI(ctx context.Context, chainID uint32, address string) (string, error) {
	addr := hexutil.NormalizeAddress(address)

	if abi, ok := c.cache.get(chainID, addr, time.Now()); ok {
		return abi, nil
	}

	abi, err := c.fetchWithRetry(ctx, chainID, addr)
	if err != nil {
		return "", err
	}
	c.cache.put(chainID, addr, abi, time.Now())
	return abi, nil
}

// fetchWithRetry implements the spec's rotation/backoff state machine:
// not_found is an authoritative negative and returns immediately without
// retrying; rate_limited sleeps 2^(attempt-1)s before the next proxy,
// timeout and other errors retry immediately against the next proxy, and
// any success returns without further attempts.
func (c *Client) fetchWithRetry(ctx context.Context, chainID uint32, addr string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		base := c.pool.next()
		abi, outcome, err := c.fetchOnce(ctx, base, chainID, addr)
		switch outcome {
		case outcomeOK:
			metrics.IncSourcifyRequest(label(base), "success")
			return abi, nil
		case outcomeNotFound:
			metrics.IncSourcifyRequest(label(base), "not_found")
			return "", err
		case outcomeRateLimited:
			metrics.IncSourcifyRequest(label(base), "rate_limited")
			lastErr = err
			if attempt < c.maxRetries {
				metrics.IncSourcifyRetry(label(base))
				c.log.Warn().Str("proxy", label(base)).Uint32("chain_id", chainID).Int("attempt", attempt).Msg("sourcify rate limited, retrying on next proxy")
				c.sleep(ctx, time.Duration(1<<uint(attempt-1))*time.Second)
				continue
			}
		case outcomeTimeout:
			metrics.IncSourcifyRequest(label(base), "timeout")
			lastErr = err
			if attempt < c.maxRetries {
				metrics.IncSourcifyRetry(label(base))
				continue
			}
		default:
			metrics.IncSourcifyRequest(label(base), "error")
			lastErr = err
			if attempt < c.maxRetries {
				metrics.IncSourcifyRetry(label(base))
				continue
			}
		}
		break
	}
	return "", lastErr
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeNotFound
	outcomeRateLimited
	outcomeTimeout
	outcomeHTTPError
	outcomeTransportError
)

// fetchOnce issues a single GET against base and maps the result to an
// outcome per the spec's status-mapping table.
func (c *Client) fetchOnce(ctx context.Context, base string, chainID uint32, addr string) (string, outcome, error) {
	url := fmt.Sprintf("%s/files/any/%d/%s", strings.TrimRight(base, "/"), chainID, addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", outcomeTransportError, ingesterr.Wrap(ingesterr.KindInvalidResponse, "sourcify.GetABI", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", outcomeTimeout, ingesterr.Wrap(ingesterr.KindTimeout, "sourcify.GetABI", ctxErr)
		}
		return "", outcomeTimeout, ingesterr.Wrap(ingesterr.KindTimeout, "sourcify.GetABI", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		abi, err := extractABI(resp.Body)
		if err != nil {
			return "", outcomeHTTPError, ingesterr.Wrap(ingesterr.KindInvalidResponse, "sourcify.GetABI", err)
		}
		return abi, outcomeOK, nil
	case http.StatusNotFound:
		return "", outcomeNotFound, ingesterr.Wrap(ingesterr.KindNotFound, "sourcify.GetABI", fmt.Errorf("not found"))
	case http.StatusTooManyRequests:
		return "", outcomeRateLimited, ingesterr.Wrap(ingesterr.KindRateLimited, "sourcify.GetABI", fmt.Errorf("rate limited"))
	default:
		return "", outcomeHTTPError, ingesterr.Wrap(ingesterr.KindInvalidResponse, "sourcify.GetABI", fmt.Errorf("http status %d", resp.StatusCode))
	}
}

// extractABI implements the file-selection order: metadata.json's
// output.abi (or abi), else a *.abi.json file's whole content, else error.
func extractABI(body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	files, err := parseFiles(raw)
	if err != nil {
		return "", err
	}

	for _, f := range files {
		if strings.HasSuffix(f.Name, "metadata.json") {
			var meta struct {
				Output struct {
					ABI json.RawMessage `json:"abi"`
				} `json:"output"`
				ABI json.RawMessage `json:"abi"`
			}
			if err := json.Unmarshal([]byte(f.Content), &meta); err != nil {
				return "", fmt.Errorf("invalid_metadata: %w", err)
			}
			if len(meta.Output.ABI) > 0 {
				return string(meta.Output.ABI), nil
			}
			if len(meta.ABI) > 0 {
				return string(meta.ABI), nil
			}
			return "", fmt.Errorf("invalid_metadata")
		}
	}

	for _, f := range files {
		if strings.HasSuffix(f.Name, ".abi.json") || f.Name == "abi.json" {
			return f.Content, nil
		}
	}

	return "", fmt.Errorf("no_abi_found")
}

// parseFiles accepts either {"files": [...]} or a bare array of files.
func parseFiles(raw []byte) ([]file, error) {
	var wrapped filesResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Files) > 0 {
		return wrapped.Files, nil
	}
	var bare []file
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, nil
	}
	return nil, fmt.Errorf("unrecognized files response shape")
}

// VerifiedStatus is the result of CheckVerified.
type VerifiedStatus string

const (
	StatusFull        VerifiedStatus = "full"
	StatusPartial      VerifiedStatus = "partial"
	StatusNotVerified VerifiedStatus = "not_verified"
)

// CheckVerified calls check-all-by-addresses and reports the verification
// status for a single address on chainID.
func (c *Client) CheckVerified(ctx context.Context, chainID uint32, address string) (VerifiedStatus, error) {
	addr := hexutil.NormalizeAddress(address)
	base := c.pool.next()
	url := fmt.Sprintf("%s/check-all-by-addresses?addresses=%s&chainIds=%d", strings.TrimRight(base, "/"), addr, chainID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusNotVerified, ingesterr.Wrap(ingesterr.KindInvalidResponse, "sourcify.CheckVerified", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StatusNotVerified, ingesterr.Wrap(ingesterr.KindTimeout, "sourcify.CheckVerified", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusNotVerified, nil
	}

	var results []struct {
		ChainIDs []struct {
			ChainID string `json:"chainId"`
			Status  string `json:"status"`
		} `json:"chainIds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return StatusNotVerified, ingesterr.Wrap(ingesterr.KindInvalidResponse, "sourcify.CheckVerified", err)
	}
	for _, r := range results {
		for _, cid := range r.ChainIDs {
			switch cid.Status {
			case "perfect", "full":
				return StatusFull, nil
			case "partial":
				return StatusPartial, nil
			}
		}
	}
	return StatusNotVerified, nil
}

// ClearCache invalidates one cache key, one chain's entries, or everything,
// per the rules in ttlCache.clear.
func (c *Client) ClearCache(chainID uint32, address string) {
	addr := ""
	if address != "" {
		addr = hexutil.NormalizeAddress(address)
	}
	c.cache.clear(chainID, addr)
}

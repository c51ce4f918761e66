// Package rpc is the JSON-RPC 2.0 client the producer and pipeline stages
// use to talk to an EVM node: eth_blockNumber, eth_getBlockByNumber (full
// transactions), and eth_getLogs, batched where the upstream allows it and
// retried with exponential backoff otherwise.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/evmindexer/chainindexer/internal/hexutil"
	"github.com/evmindexer/chainindexer/internal/ingesterr"
	"github.com/evmindexer/chainindexer/internal/logging"
	"github.com/evmindexer/chainindexer/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	maxRetries  = 5
	retryDelay  = 200 * time.Millisecond
	maxBackoff  = 10 * time.Second
)

// Client is one chain's JSON-RPC endpoint, wrapped with an adaptive
// concurrency controller and batching support.
type Client struct {
	url        string
	chainLabel string
	httpClient *http.Client
	controller *Controller
	log        zerolog.Logger
}

// NewClient builds a Client bound to url for the given chain, with its own
// concurrency controller and keep-alive transport.
func NewClient(chainID uint32, url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 64,
		MaxConnsPerHost:     64,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	chainLabel := fmt.Sprintf("%d", chainID)
	return &Client{
		url:        url,
		chainLabel: chainLabel,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		controller: NewController(defaultMaxParallelism),
		log:        logging.ForChain("rpc", chainID),
	}
}

// Close stops the client's adaptive concurrency controller.
func (c *Client) Close() {
	c.controller.Stop()
}

// BlockNumber returns the chain's current head block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", []interface{}{}, &result); err != nil {
		return 0, err
	}
	n, err := hexutil.ParseUint64(result)
	if err != nil {
		return 0, ingesterr.Wrap(ingesterr.KindInvalidResponse, "BlockNumber", err)
	}
	return n, nil
}

// GetBlockByNumber fetches block n with full transaction objects.
func (c *Client) GetBlockByNumber(ctx context.Context, n uint64) (*Block, error) {
	var block Block
	param := hexutil.FormatUint64(n)
	if err := c.call(ctx, "eth_getBlockByNumber", []interface{}{param, true}, &block); err != nil {
		return nil, err
	}
	if block.Hash == "" {
		return nil, ingesterr.Wrap(ingesterr.KindNotFound, "GetBlockByNumber", fmt.Errorf("block %d not found", n))
	}
	return &block, nil
}

// GetLogs fetches the logs emitted in the inclusive [fromBlock, toBlock] range.
func (c *Client) GetLogs(ctx context.Context, fromBlock, toBlock uint64) ([]Log, error) {
	filter := map[string]interface{}{
		"fromBlock": hexutil.FormatUint64(fromBlock),
		"toBlock":   hexutil.FormatUint64(toBlock),
	}
	var logs []Log
	if err := c.call(ctx, "eth_getLogs", []interface{}{filter}, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// GetBlocksByNumber fetches several blocks in one JSON-RPC batch request,
// bounded by the client's adaptive concurrency controller as a single unit
// of work.
func (c *Client) GetBlocksByNumber(ctx context.Context, numbers []uint64) ([]*Block, error) {
	if len(numbers) == 0 {
		return nil, nil
	}

	reqs := make([]Request, len(numbers))
	for i, n := range numbers {
		reqs[i] = Request{
			Jsonrpc: "2.0",
			Method:  "eth_getBlockByNumber",
			Params:  []interface{}{hexutil.FormatUint64(n), true},
			ID:      i,
		}
	}

	blocks := make([]*Block, len(numbers))
	err := c.controller.Execute(ctx, func() error {
		responses, err := c.batchCallWithRetry(ctx, "eth_getBlockByNumber", reqs)
		if err != nil {
			return err
		}
		for i, resp := range responses {
			if resp.Error != nil {
				return ingesterr.Wrap(ingesterr.KindInvalidResponse, "GetBlocksByNumber", fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message))
			}
			var block Block
			if err := json.Unmarshal(resp.Result, &block); err != nil {
				return ingesterr.Wrap(ingesterr.KindInvalidResponse, "GetBlocksByNumber", err)
			}
			if block.Hash == "" {
				return ingesterr.Wrap(ingesterr.KindNotFound, "GetBlocksByNumber", fmt.Errorf("block %d not found", numbers[i]))
			}
			blocks[i] = &block
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// call issues a single JSON-RPC request with retry/backoff and unmarshals
// the result into out.
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	req := Request{Jsonrpc: "2.0", Method: method, Params: params, ID: 1}
	body, err := json.Marshal(req)
	if err != nil {
		return ingesterr.Wrap(ingesterr.KindInvalidResponse, method, err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxBackoff {
				delay = maxBackoff
			}
			c.log.Warn().Str("method", method).Int("attempt", attempt).Err(lastErr).Dur("delay", delay).Msg("rpc retry")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		resp, err := c.doOnce(ctx, body)
		if err != nil {
			lastErr = err
			metrics.IncRPCRequest(c.chainLabel, method, errMetricLabel(err))
			continue
		}
		if resp.Error != nil {
			metrics.IncRPCRequest(c.chainLabel, method, "rpc_error")
			return ingesterr.Wrap(ingesterr.KindInvalidResponse, method, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message))
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			lastErr = err
			metrics.IncRPCRequest(c.chainLabel, method, "error")
			continue
		}
		metrics.IncRPCRequest(c.chainLabel, method, "success")
		return nil
	}

	return ingesterr.Wrap(ingesterr.KindTransient, method, fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr))
}

// errMetricLabel distinguishes an HTTP-status failure from a generic
// transport/decode failure for metrics, so a 502 from a misbehaving load
// balancer doesn't get lumped in with a malformed-JSON response.
func errMetricLabel(err error) string {
	var e *ingesterr.Error
	if ingesterr.As(err, &e) && e.Kind == ingesterr.KindHTTPError {
		return "http_error"
	}
	return "error"
}

func (c *Client) doOnce(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ingesterr.Wrap(ingesterr.KindHTTPError, "rpc.doOnce", fmt.Errorf("http status %d", resp.StatusCode))
	}

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, err
	}
	return &rpcResp, nil
}

// batchCallWithRetry wraps batchCall with the same retry/backoff shape as
// call, retrying the whole batch on transport or decode failure.
func (c *Client) batchCallWithRetry(ctx context.Context, method string, reqs []Request) ([]Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxBackoff {
				delay = maxBackoff
			}
			c.log.Warn().Str("method", method).Int("attempt", attempt).Err(lastErr).Dur("delay", delay).Msg("rpc batch retry")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		responses, err := c.batchCall(ctx, reqs)
		if err != nil {
			lastErr = err
			metrics.IncRPCRequest(c.chainLabel, method, errMetricLabel(err))
			continue
		}
		metrics.IncRPCRequest(c.chainLabel, method, "success")
		return responses, nil
	}
	return nil, ingesterr.Wrap(ingesterr.KindTransient, method, fmt.Errorf("batch failed after %d retries: %w", maxRetries, lastErr))
}

// batchCall issues several requests in one JSON-RPC batch POST, matching
// responses back to requests by ID regardless of server-side reordering.
func (c *Client) batchCall(ctx context.Context, reqs []Request) ([]Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ingesterr.Wrap(ingesterr.KindHTTPError, "rpc.batchCall", fmt.Errorf("http status %d", resp.StatusCode))
	}

	var responses []Response
	if err := json.NewDecoder(resp.Body).Decode(&responses); err != nil {
		return nil, err
	}
	if len(responses) != len(reqs) {
		return nil, fmt.Errorf("batch response count mismatch: sent %d, got %d", len(reqs), len(responses))
	}
	sort.Slice(responses, func(i, j int) bool { return responses[i].ID < responses[j].ID })
	return responses, nil
}

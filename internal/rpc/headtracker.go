package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evmindexer/chainindexer/internal/hexutil"
	"github.com/evmindexer/chainindexer/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// HeadTracker embeds a Client so its GetBlockByNumber/GetLogs pass through
// unchanged, but overrides BlockNumber to serve the chain head from a
// WebSocket eth_subscribe("newHeads") subscription when one is connected,
// falling back to the embedded Client's HTTP eth_blockNumber polling
// otherwise (on dial failure, disconnect, or before the first head
// notification arrives).
type HeadTracker struct {
	*Client

	wsURL       string
	chainLabel  string
	latestBlock atomic.Uint64
	connected   atomic.Bool

	conn   *websocket.Conn
	connMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// NewHeadTracker derives a WebSocket URL from client's HTTP(S) RPC URL
// (http -> ws, https -> wss) and wraps client so callers needing a
// producer.HeadSource get subscription-pushed heads when available.
func NewHeadTracker(client *Client, chainID uint32) *HeadTracker {
	return &HeadTracker{
		Client:     client,
		wsURL:      deriveWSURL(client.url),
		chainLabel: fmt.Sprintf("%d", chainID),
		log:        logging.ForChain("rpc.headtracker", chainID),
	}
}

func deriveWSURL(rpcURL string) string {
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		return "ws://" + strings.TrimPrefix(rpcURL, "http://")
	default:
		return ""
	}
}

// Start begins the background WebSocket subscription loop. It returns
// immediately; until the first newHeads notification arrives (or if the
// URL has no ws/wss equivalent, or every dial attempt fails) BlockNumber
// keeps serving the embedded Client's HTTP poll.
func (h *HeadTracker) Start(ctx context.Context) {
	if h.wsURL == "" {
		h.log.Warn().Str("rpc_url", h.Client.url).Msg("no ws/wss equivalent for rpc url, head tracking stays on http polling")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.wg.Add(1)
	go h.run(runCtx)
}

// Stop tears down the subscription and waits for its goroutine to exit.
func (h *HeadTracker) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.connMu.Lock()
	if h.conn != nil {
		h.conn.Close()
	}
	h.connMu.Unlock()
	h.wg.Wait()
}

// BlockNumber returns the subscription-pushed head if connected, else
// falls back to the embedded Client's HTTP eth_blockNumber call.
func (h *HeadTracker) BlockNumber(ctx context.Context) (uint64, error) {
	if h.connected.Load() {
		return h.latestBlock.Load(), nil
	}
	return h.Client.BlockNumber(ctx)
}

func (h *HeadTracker) run(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := h.connectAndSubscribe(ctx); err != nil {
			h.connected.Store(false)
			h.log.Warn().Err(err).Msg("websocket head subscription error, reconnecting in 5s")
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (h *HeadTracker) connectAndSubscribe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, h.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", h.wsURL, err)
	}
	h.connMu.Lock()
	h.conn = conn
	h.connMu.Unlock()
	defer func() {
		h.connMu.Lock()
		h.conn = nil
		h.connMu.Unlock()
		conn.Close()
	}()

	subReq := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_subscribe",
		"params":  []string{"newHeads"},
	}
	if err := conn.WriteJSON(subReq); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	var subResp struct {
		ID     int             `json:"id"`
		Error  *RPCError       `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := conn.ReadJSON(&subResp); err != nil {
		return fmt.Errorf("read subscribe response: %w", err)
	}
	if subResp.Error != nil {
		return fmt.Errorf("subscribe error %d: %s", subResp.Error.Code, subResp.Error.Message)
	}

	h.log.Info().Str("ws_url", h.wsURL).Msg("subscribed to newHeads")

	for {
		var notification struct {
			Method string `json:"method"`
			Params struct {
				Result struct {
					Number string `json:"number"`
				} `json:"result"`
			} `json:"params"`
		}
		if err := conn.ReadJSON(&notification); err != nil {
			return fmt.Errorf("read newHeads notification: %w", err)
		}
		if notification.Method != "eth_subscription" || notification.Params.Result.Number == "" {
			continue
		}
		n, err := hexutil.ParseUint64(notification.Params.Result.Number)
		if err != nil {
			h.log.Warn().Str("number", notification.Params.Result.Number).Err(err).Msg("failed to parse newHeads block number")
			continue
		}
		if old := h.latestBlock.Load(); n > old {
			h.latestBlock.Store(n)
		}
		h.connected.Store(true)
	}
}

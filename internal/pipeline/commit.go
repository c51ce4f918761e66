package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evmindexer/chainindexer/internal/abi"
	"github.com/evmindexer/chainindexer/internal/decoder"
	"github.com/evmindexer/chainindexer/internal/hexutil"
	"github.com/evmindexer/chainindexer/internal/ingesterr"
	"github.com/evmindexer/chainindexer/internal/logging"
	"github.com/evmindexer/chainindexer/internal/metrics"
	"github.com/evmindexer/chainindexer/internal/sourcify"
	"github.com/evmindexer/chainindexer/internal/storage"
)

// Deps are the collaborators a committer needs, shared across every chain's
// pipeline: the storage gateway, the ABI persistent store, and the
// Sourcify resolver. All three are safe for concurrent use.
type Deps struct {
	Storage     storage.Storage
	ABIStore    *abi.Store
	Sourcify    *sourcify.Client
	AbiFanout   int
}

// committer turns one flushed batch of blockMessages into transaction and
// event rows, resolves ABIs for every address the batch's logs touch, and
// commits the result to storage.
type committer struct {
	chainID uint32
	deps    Deps
}

func newCommitter(chainID uint32, deps Deps) *committer {
	if deps.AbiFanout <= 0 {
		deps.AbiFanout = 1
	}
	return &committer{chainID: chainID, deps: deps}
}

// commit implements the batch commit procedure of §4.7: collect addresses,
// resolve ABIs, build rows, commit, ack. Failed messages are excluded
// without poisoning the rest of the batch.
func (c *committer) commit(ctx context.Context, batch []*blockMessage) error {
	log := logging.ForChain("batcher", c.chainID)

	live := make([]*blockMessage, 0, len(batch))
	for _, m := range batch {
		if m.failed {
			log.Warn().Uint64("block", m.blockNumber).Err(m.failErr).Msg("dropping failed message from batch")
			continue
		}
		live = append(live, m)
	}
	if len(live) == 0 {
		return nil
	}

	addresses := collectAddresses(live)
	abiByAddress := c.resolveABIs(ctx, addresses)

	var txRows []storage.TransactionRow
	var eventRows []storage.EventRow
	for _, m := range live {
		txRows = append(txRows, buildTransactionRows(c.chainID, m)...)
		eventRows = append(eventRows, buildEventRows(c.chainID, m, abiByAddress)...)
	}

	if err := c.deps.Storage.CommitBatch(ctx, &storage.Batch{ChainID: c.chainID, Transactions: txRows, Events: eventRows}); err != nil {
		metrics.IncBatchFailed(chainLabelStr(c.chainID))
		return ingesterr.Wrap(ingesterr.KindStorage, "commit", err)
	}

	metrics.IncBatchCommitted(chainLabelStr(c.chainID))
	metrics.IncBlocksIngested(chainLabelStr(c.chainID), len(live))
	return nil
}

// resolveABIs implements §4.7 step 2: load what's already persisted, then
// fan out to Sourcify (bounded by AbiFanout) for the rest, persisting and
// merging successes into the returned map.
func (c *committer) resolveABIs(ctx context.Context, addresses []string) map[string]string {
	result := make(map[string]string, len(addresses))
	var missing []string

	for _, addr := range addresses {
		if stored, ok, err := c.deps.ABIStore.Load(ctx, c.chainID, addr); err == nil && ok {
			result[addr] = string(stored.Raw)
			continue
		}
		missing = append(missing, addr)
	}

	if len(missing) == 0 || c.deps.Sourcify == nil {
		return result
	}

	sem := make(chan struct{}, c.deps.AbiFanout)
	type fetched struct {
		addr string
		abi  string
	}
	results := make(chan fetched, len(missing))

	var wg sync.WaitGroup
	for _, addr := range missing {
		addr := addr
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			abiJSON, err := c.deps.Sourcify.GetABI(ctx, c.chainID, addr)
			if err != nil {
				return
			}
			_ = c.deps.ABIStore.Save(ctx, &abi.ContractABI{ChainID: c.chainID, Address: addr, Raw: json.RawMessage(abiJSON), Source: "sourcify"}, time.Now().Unix())
			results <- fetched{addr: addr, abi: abiJSON}
		}()
	}
	wg.Wait()
	close(results)
	for f := range results {
		result[f.addr] = f.abi
	}
	return result
}

func collectAddresses(msgs []*blockMessage) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range msgs {
		for _, l := range m.logs {
			addr := hexutil.NormalizeAddress(l.Address)
			if _, ok := seen[addr]; !ok {
				seen[addr] = struct{}{}
				out = append(out, addr)
			}
		}
	}
	return out
}

func buildTransactionRows(chainID uint32, m *blockMessage) []storage.TransactionRow {
	if m.block == nil {
		return nil
	}
	ts, _ := hexutil.ParseUint64(m.block.Timestamp)
	blockTime := time.Unix(int64(ts), 0).UTC()

	rows := make([]storage.TransactionRow, 0, len(m.block.Transactions))
	for _, tx := range m.block.Transactions {
		toAddr := ""
		if tx.To != nil {
			toAddr = hexutil.NormalizeAddress(*tx.To)
		}
		gas, _ := hexutil.ParseUint64(tx.Gas)
		rows = append(rows, storage.TransactionRow{
			ChainID:        chainID,
			BlockNumber:    m.blockNumber,
			BlockTimestamp: blockTime,
			Hash:           tx.Hash,
			FromAddress:    hexutil.NormalizeAddress(tx.From),
			ToAddress:      toAddr,
			Value:          decimalOrZero(tx.Value),
			GasPrice:       decimalOrZero(tx.GasPrice),
			Gas:            gas,
			Input:          tx.Input,
			ReceiptStatus:  0,
		})
	}
	return rows
}

func buildEventRows(chainID uint32, m *blockMessage, abiByAddress map[string]string) []storage.EventRow {
	rows := make([]storage.EventRow, 0, len(m.logs))
	for i, l := range m.logs {
		addr := hexutil.NormalizeAddress(l.Address)
		abiJSON := abiByAddress[addr]

		var result *decoder.Result
		if abiJSON != "" {
			result = decoder.Decode(abiJSON, l.Topics, l.Data)
		}
		if result == nil {
			result = decoder.DecodeWellKnown(l.Topics, l.Data)
		}

		row := storage.EventRow{
			ChainID:         chainID,
			BlockNumber:     m.blockNumber,
			LogIndex:        uint32(i),
			Address:         addr,
			Data:            l.Data,
			TransactionHash: l.TransactionHash,
		}
		if txIdx, err := hexutil.ParseUint64(l.TransactionIndex); err == nil {
			row.TransactionIndex = uint32(txIdx)
		}
		if logIdx, err := hexutil.ParseUint64(l.LogIndex); err == nil {
			row.LogIndex = uint32(logIdx)
		}

		topics := padTopics(l.Topics)
		row.Topic0, row.Topic1, row.Topic2, row.Topic3 = topics[0], topics[1], topics[2], topics[3]

		if result != nil {
			name := result.EventName
			row.EventName = &name
			if paramsJSON, err := json.Marshal(result.Params); err == nil {
				params := string(paramsJSON)
				row.ParamsJSON = &params
			} else {
				row.EventName = nil
			}
		} else {
			metrics.IncDecodeFailure(chainLabelStr(chainID))
		}

		rows = append(rows, row)
	}
	return rows
}

func padTopics(topics []string) [4]*string {
	var out [4]*string
	for i := 0; i < 4 && i < len(topics); i++ {
		t := strings.ToLower(topics[i])
		out[i] = &t
	}
	return out
}

func decimalOrZero(hex string) string {
	z, err := hexutil.ParseU256(hex)
	if err != nil {
		return "0"
	}
	return hexutil.FormatU256Decimal(z)
}

func chainLabelStr(chainID uint32) string {
	return fmt.Sprintf("%d", chainID)
}

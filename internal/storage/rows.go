// Package storage is the columnar storage gateway: typed row shapes for
// transactions, events, and resolved ABIs, and a ClickHouse-backed Storage
// implementation that commits a pipeline batch as a sequence of per-table
// inserts.
package storage

import "time"

// TransactionRow is one committed transaction, chain-scoped; the table is
// ordered by (chain_id, block_number, hash). ReceiptStatus defaults to 0 since
// a full block fetch carries no receipt (see the open question in
// DESIGN.md).
type TransactionRow struct {
	ChainID          uint32    `ch:"chain_id"`
	BlockNumber      uint64    `ch:"block_number"`
	BlockTimestamp   time.Time `ch:"block_timestamp"`
	Hash             string    `ch:"hash"`
	FromAddress      string    `ch:"from_address"`
	ToAddress        string    `ch:"to_address"`
	Value            string    `ch:"value"`
	GasPrice         string    `ch:"gas_price"`
	Gas              uint64    `ch:"gas"`
	Input            string    `ch:"input"`
	ReceiptStatus    uint8     `ch:"receipt_status"`
}

// EventRow is one decoded (or undecoded) log, append-only per P7. Topic0 is
// nil for anonymous events; Topic1..Topic3 are nil when the log carries
// fewer than 4 topics. EventName and ParamsJSON are both nil or both
// non-nil: a log is either fully decoded or stored raw.
type EventRow struct {
	ChainID          uint32    `ch:"chain_id"`
	BlockNumber      uint64    `ch:"block_number"`
	TransactionHash  string    `ch:"transaction_hash"`
	TransactionIndex uint32    `ch:"transaction_index"`
	LogIndex         uint32    `ch:"log_index"`
	Address          string    `ch:"address"`
	Topic0           *string   `ch:"topic0"`
	Topic1           *string   `ch:"topic1"`
	Topic2           *string   `ch:"topic2"`
	Topic3           *string   `ch:"topic3"`
	Data             string    `ch:"data"`
	EventName        *string   `ch:"event_name"`
	ParamsJSON       *string   `ch:"params_json"`
}

// ABIRow is one resolved contract ABI, append-only: a re-fetch produces a
// new row rather than overwriting the old one.
type ABIRow struct {
	ChainID     uint32    `ch:"chain_id"`
	Address     string    `ch:"address"`
	ABIJSON     string    `ch:"abi_json"`
	Source      string    `ch:"source"`
	ResolvedAt  time.Time `ch:"resolved_at"`
}

// Batch is one unit of pipeline work, handed to a single CommitBatch call
// (see Storage.CommitBatch for how far that call is atomic).
type Batch struct {
	ChainID      uint32
	Transactions []TransactionRow
	Events       []EventRow
}

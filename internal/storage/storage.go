package storage

import "context"

// Storage is the pipeline's persistence boundary: batch commit, latest
// committed block per chain (for resume-on-restart), and the ABI store's
// load/save primitives.
type Storage interface {
	// CommitBatch writes a batch's transactions and events. Per P7, either
	// every row in the batch lands or none of it is considered committed;
	// ClickHouse's lack of multi-statement transactions means this is an
	// approximation (see DESIGN.md) rather than a guarantee, so the first
	// table write that fails aborts the commit without attempting the rest.
	CommitBatch(ctx context.Context, batch *Batch) error

	// LatestBlock returns the highest block_number committed for chainID,
	// or (0, false) if nothing has been committed yet.
	LatestBlock(ctx context.Context, chainID uint32) (uint64, bool, error)

	// SaveABI appends a newly-resolved ABI row.
	SaveABI(ctx context.Context, row ABIRow) error

	// LoadABI returns the most recently resolved ABI for (chainID, address),
	// or (nil, false) if none has ever been stored.
	LoadABI(ctx context.Context, chainID uint32, address string) (*ABIRow, bool, error)

	// Close releases the underlying connection pool.
	Close() error
}

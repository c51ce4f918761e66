package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/evmindexer/chainindexer/internal/ingesterr"
	"github.com/evmindexer/chainindexer/internal/logging"
	"github.com/rs/zerolog"
)

// ClickHouseStorage is the production Storage backend.
type ClickHouseStorage struct {
	conn clickhouse.Conn
	log  zerolog.Logger
}

// Options are the wire coordinates used to dial ClickHouse.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// NewClickHouseStorage dials ClickHouse and returns a ready Storage.
func NewClickHouseStorage(opts Options) (*ClickHouseStorage, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.KindStorage, "NewClickHouseStorage", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, ingesterr.Wrap(ingesterr.KindStorage, "NewClickHouseStorage.Ping", err)
	}
	return &ClickHouseStorage{conn: conn, log: logging.For("storage")}, nil
}

// CommitBatch writes transactions then events as two sequential per-table
// batches, the same atomicity-by-ordering approximation the teacher's
// Snowflake writer achieves with a real transaction.
func (s *ClickHouseStorage) CommitBatch(ctx context.Context, batch *Batch) error {
	if err := s.insertTransactions(ctx, batch.Transactions); err != nil {
		return ingesterr.Wrap(ingesterr.KindStorage, "CommitBatch.transactions", err)
	}
	if err := s.insertEvents(ctx, batch.Events); err != nil {
		return ingesterr.Wrap(ingesterr.KindStorage, "CommitBatch.events", err)
	}
	return nil
}

func (s *ClickHouseStorage) insertTransactions(ctx context.Context, rows []TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	b, err := s.conn.PrepareBatch(ctx, "INSERT INTO transactions")
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := b.AppendStruct(&r); err != nil {
			return err
		}
	}
	return b.Send()
}

func (s *ClickHouseStorage) insertEvents(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	b, err := s.conn.PrepareBatch(ctx, "INSERT INTO events")
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := b.AppendStruct(&r); err != nil {
			return err
		}
	}
	return b.Send()
}

// LatestBlock returns the highest block_number committed for chainID.
func (s *ClickHouseStorage) LatestBlock(ctx context.Context, chainID uint32) (uint64, bool, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT max(block_number) FROM transactions WHERE chain_id = ?
	`, chainID)

	var max uint64
	if err := row.Scan(&max); err != nil {
		return 0, false, ingesterr.Wrap(ingesterr.KindStorage, "LatestBlock", err)
	}
	if max == 0 {
		return 0, false, nil
	}
	return max, true, nil
}

// SaveABI appends a newly-resolved ABI row; storage is append-only so the
// ABI store's own logic decides when a re-fetch is warranted.
func (s *ClickHouseStorage) SaveABI(ctx context.Context, row ABIRow) error {
	b, err := s.conn.PrepareBatch(ctx, "INSERT INTO abis")
	if err != nil {
		return ingesterr.Wrap(ingesterr.KindStorage, "SaveABI", err)
	}
	if err := b.AppendStruct(&row); err != nil {
		return ingesterr.Wrap(ingesterr.KindStorage, "SaveABI", err)
	}
	return b.Send()
}

// LoadABI returns the most recently resolved ABI row for (chainID, address).
func (s *ClickHouseStorage) LoadABI(ctx context.Context, chainID uint32, address string) (*ABIRow, bool, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT chain_id, address, abi_json, source, resolved_at
		FROM abis
		WHERE chain_id = ? AND address = ?
		ORDER BY resolved_at DESC
		LIMIT 1
	`, chainID, address)

	var out ABIRow
	if err := row.Scan(&out.ChainID, &out.Address, &out.ABIJSON, &out.Source, &out.ResolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, ingesterr.Wrap(ingesterr.KindStorage, "LoadABI", err)
	}
	return &out, true, nil
}

// Close releases the underlying connection pool.
func (s *ClickHouseStorage) Close() error {
	return s.conn.Close()
}

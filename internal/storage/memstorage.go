package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemStorage is an in-process Storage used by the abi and pipeline tests
// in place of a live ClickHouse connection.
type MemStorage struct {
	mu           sync.Mutex
	transactions []TransactionRow
	events       []EventRow
	abis         map[string]ABIRow
	failNextCommit bool
}

// NewMemStorage returns an empty MemStorage.
func NewMemStorage() *MemStorage {
	return &MemStorage{abis: make(map[string]ABIRow)}
}

// FailNextCommit makes the next CommitBatch call return an error, to
// exercise the pipeline's failure path without a real backend outage.
func (m *MemStorage) FailNextCommit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextCommit = true
}

func (m *MemStorage) CommitBatch(ctx context.Context, batch *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNextCommit {
		m.failNextCommit = false
		return errCommitFailed
	}
	m.transactions = append(m.transactions, batch.Transactions...)
	m.events = append(m.events, batch.Events...)
	return nil
}

func (m *MemStorage) LatestBlock(ctx context.Context, chainID uint32) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max uint64
	found := false
	for _, tx := range m.transactions {
		if tx.ChainID != chainID {
			continue
		}
		if !found || tx.BlockNumber > max {
			max = tx.BlockNumber
			found = true
		}
	}
	return max, found, nil
}

func (m *MemStorage) SaveABI(ctx context.Context, row ABIRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abis[abiKey(row.ChainID, row.Address)] = row
	return nil
}

func (m *MemStorage) LoadABI(ctx context.Context, chainID uint32, address string) (*ABIRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.abis[abiKey(chainID, address)]
	if !ok {
		return nil, false, nil
	}
	return &row, true, nil
}

func (m *MemStorage) Close() error { return nil }

// Transactions returns a snapshot of everything committed so far, for
// assertions in tests.
func (m *MemStorage) Transactions() []TransactionRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TransactionRow, len(m.transactions))
	copy(out, m.transactions)
	return out
}

// Events returns a snapshot of everything committed so far.
func (m *MemStorage) Events() []EventRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventRow, len(m.events))
	copy(out, m.events)
	return out
}

func abiKey(chainID uint32, address string) string {
	return fmt.Sprintf("%d@%s", chainID, address)
}

type commitFailedError struct{}

func (commitFailedError) Error() string { return "mem storage: simulated commit failure" }

var errCommitFailed = commitFailedError{}

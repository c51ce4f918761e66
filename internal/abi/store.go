// Package abi is the persistent half of the ABI resolver: it loads and
// saves resolved contract ABIs through the storage gateway so a re-fetch
// from Sourcify is only needed once per (chain, address) lifetime of the
// process-level cache.
package abi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/evmindexer/chainindexer/internal/hexutil"
	"github.com/evmindexer/chainindexer/internal/storage"
)

// ContractABI is a parsed, ready-to-decode contract interface.
type ContractABI struct {
	ChainID uint32
	Address string
	Raw     json.RawMessage
	Source  string
}

// Store is the durable ABI store backed by storage.Storage.
type Store struct {
	backend storage.Storage
}

// NewStore wraps a storage.Storage as an ABI-specific persistence boundary.
func NewStore(backend storage.Storage) *Store {
	return &Store{backend: backend}
}

// Load returns the most recently resolved ABI for (chainID, address), or
// (nil, false) if none has ever been persisted.
func (s *Store) Load(ctx context.Context, chainID uint32, address string) (*ContractABI, bool, error) {
	addr := hexutil.NormalizeAddress(address)
	row, ok, err := s.backend.LoadABI(ctx, chainID, addr)
	if err != nil || !ok {
		return nil, false, err
	}
	return &ContractABI{
		ChainID: row.ChainID,
		Address: row.Address,
		Raw:     json.RawMessage(row.ABIJSON),
		Source:  row.Source,
	}, true, nil
}

// Save persists a newly-resolved ABI, appending a new row per the
// append-only storage invariant.
func (s *Store) Save(ctx context.Context, abi *ContractABI, resolvedAt int64) error {
	return s.backend.SaveABI(ctx, storage.ABIRow{
		ChainID:    abi.ChainID,
		Address:    hexutil.NormalizeAddress(abi.Address),
		ABIJSON:    string(abi.Raw),
		Source:     abi.Source,
		ResolvedAt: time.Unix(resolvedAt, 0).UTC(),
	})
}

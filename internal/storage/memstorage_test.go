package storage

import (
	"context"
	"testing"
)

func TestMemStorageCommitAndLatestBlock(t *testing.T) {
	m := NewMemStorage()
	ctx := context.Background()

	batch := &Batch{
		ChainID: 1,
		Transactions: []TransactionRow{
			{ChainID: 1, BlockNumber: 10, Hash: "0xa"},
			{ChainID: 1, BlockNumber: 12, Hash: "0xb"},
		},
	}
	if err := m.CommitBatch(ctx, batch); err != nil {
		t.Fatal(err)
	}

	latest, ok, err := m.LatestBlock(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || latest != 12 {
		t.Fatalf("got (%d, %v), want (12, true)", latest, ok)
	}

	if _, ok, _ := m.LatestBlock(ctx, 2); ok {
		t.Fatal("expected no rows for unrelated chain")
	}
}

func TestMemStorageFailNextCommit(t *testing.T) {
	m := NewMemStorage()
	m.FailNextCommit()

	err := m.CommitBatch(context.Background(), &Batch{ChainID: 1})
	if err == nil {
		t.Fatal("expected simulated failure")
	}

	if err := m.CommitBatch(context.Background(), &Batch{ChainID: 1}); err != nil {
		t.Fatalf("second commit should succeed: %v", err)
	}
}

func TestMemStorageABIRoundTrip(t *testing.T) {
	m := NewMemStorage()
	ctx := context.Background()

	row := ABIRow{ChainID: 1, Address: "0xabc", ABIJSON: "[]", Source: "sourcify"}
	if err := m.SaveABI(ctx, row); err != nil {
		t.Fatal(err)
	}

	got, ok, err := m.LoadABI(ctx, 1, "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.Source != "sourcify" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}

	if _, ok, _ := m.LoadABI(ctx, 1, "0xdef"); ok {
		t.Fatal("expected no ABI for unresolved address")
	}
}

package storage

// Schema documents the ClickHouse DDL this gateway assumes already exists.
// Migrations are out of scope per the storage gateway's Non-goals; these
// statements are kept here as the single source of truth for column names
// and ordering keys the row structs above must match.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	chain_id        UInt32,
	block_number    UInt64,
	block_timestamp DateTime,
	hash            FixedString(66),
	from_address    FixedString(42),
	to_address      String,
	value           String,
	gas_price       String,
	gas             UInt64,
	input           String,
	receipt_status  UInt8
) ENGINE = MergeTree
ORDER BY (chain_id, block_number, hash);

CREATE TABLE IF NOT EXISTS events (
	chain_id          UInt32,
	block_number      UInt64,
	transaction_hash  FixedString(66),
	transaction_index UInt32,
	log_index         UInt32,
	address           FixedString(42),
	topic0            Nullable(String),
	topic1            Nullable(String),
	topic2            Nullable(String),
	topic3            Nullable(String),
	data              String,
	event_name        Nullable(String),
	params_json       Nullable(String)
) ENGINE = MergeTree
ORDER BY (chain_id, block_number, transaction_hash, log_index);

CREATE TABLE IF NOT EXISTS abis (
	chain_id    UInt32,
	address     FixedString(42),
	abi_json    String,
	source      String,
	resolved_at DateTime
) ENGINE = MergeTree
ORDER BY (chain_id, address, resolved_at);
`

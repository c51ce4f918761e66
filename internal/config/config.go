// Package config resolves the indexer's environment-variable configuration:
// the chain_id -> rpc_url map, Sourcify client settings, and ClickHouse
// coordinates. Missing required variables fail fast, naming the offending
// variable, per §7's "Configuration" error category.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ChainConfig is one entry of the chain_id -> rpc_url map. Immutable after
// startup per §3.
type ChainConfig struct {
	ChainID uint32
	RPCURL  string
}

// SourcifyConfig holds the resolver's tunables (§4.4, §6).
type SourcifyConfig struct {
	ProxyURLs  []string
	DirectURL  string
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration
}

// ClickHouseConfig holds the storage gateway's wire coordinates.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Config is the fully-resolved process configuration.
type Config struct {
	Chains       []ChainConfig
	StartBlock   uint64
	Sourcify     SourcifyConfig
	ClickHouse   ClickHouseConfig
	RPCTimeout   time.Duration
	LogLevel     string
	MetricsAddr  string
}

// MissingVarError names the environment variable that was required but absent.
type MissingVarError struct {
	Var string
}

func (e *MissingVarError) Error() string {
	return fmt.Sprintf("missing required environment variable %s", e.Var)
}

// Load reads .env (if present) then the process environment, returning a
// Config or an error: a *MissingVarError naming what's absent, or a parse
// error for a malformed chain entry.
func Load() (*Config, error) {
	_ = godotenv.Load()

	chains, err := loadChains()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Chains:     chains,
		StartBlock: getEnvUintOrDefault("START_BLOCK", 0),
		Sourcify: SourcifyConfig{
			ProxyURLs:  splitNonEmpty(os.Getenv("SOURCIFY_PROXY_URLS")),
			DirectURL:  getEnvOrDefault("SOURCIFY_DIRECT_URL", "https://sourcify.dev/server"),
			Timeout:    time.Duration(getEnvIntOrDefault("SOURCIFY_TIMEOUT", 30000)) * time.Millisecond,
			MaxRetries: getEnvIntOrDefault("SOURCIFY_MAX_RETRIES", 3),
			CacheTTL:   time.Duration(getEnvIntOrDefault("SOURCIFY_CACHE_TTL", 86400000)) * time.Millisecond,
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnvOrDefault("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnvOrDefault("CLICKHOUSE_DATABASE", "default"),
			Username: getEnvOrDefault("CLICKHOUSE_USERNAME", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
		RPCTimeout:  time.Duration(getEnvIntOrDefault("RPC_TIMEOUT_MS", 15000)) * time.Millisecond,
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		MetricsAddr: getEnvOrDefault("METRICS_ADDR", ":9091"),
	}

	return cfg, nil
}

// loadChains resolves the chain map from either CHAINS ("1=https://...,137=https://...")
// or SUPPORTED_CHAINS ("1,137") + RPC_URL_<id> per chain, as documented in §6.
func loadChains() ([]ChainConfig, error) {
	if raw := os.Getenv("CHAINS"); raw != "" {
		return parseChainsVar(raw)
	}

	supported := os.Getenv("SUPPORTED_CHAINS")
	if supported == "" {
		return nil, &MissingVarError{Var: "CHAINS or SUPPORTED_CHAINS"}
	}

	var chains []ChainConfig
	for _, idStr := range splitNonEmpty(supported) {
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q in SUPPORTED_CHAINS: %w", idStr, err)
		}
		envVar := fmt.Sprintf("RPC_URL_%s", idStr)
		url := os.Getenv(envVar)
		if url == "" {
			return nil, &MissingVarError{Var: envVar}
		}
		chains = append(chains, ChainConfig{ChainID: uint32(id), RPCURL: url})
	}
	if len(chains) == 0 {
		return nil, &MissingVarError{Var: "SUPPORTED_CHAINS"}
	}
	return chains, nil
}

func parseChainsVar(raw string) ([]ChainConfig, error) {
	var chains []ChainConfig
	for _, entry := range splitNonEmpty(raw) {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid CHAINS entry %q, want chain_id=rpc_url", entry)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in CHAINS entry %q: %w", entry, err)
		}
		url := strings.TrimSpace(parts[1])
		if url == "" {
			return nil, fmt.Errorf("empty rpc_url in CHAINS entry %q", entry)
		}
		chains = append(chains, ChainConfig{ChainID: uint32(id), RPCURL: url})
	}
	if len(chains) == 0 {
		return nil, &MissingVarError{Var: "CHAINS"}
	}
	return chains, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseUint(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

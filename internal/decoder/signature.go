// Package decoder turns raw log topics/data into named, typed parameters
// using the contract's ABI, keccak256 signature matching, and a table of
// well-known event signatures as a last-resort fallback when no resolved
// ABI decodes the log.
package decoder

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// abiEventInput is the subset of an ABI event's input description the
// decoder needs.
type abiEventInput struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Indexed    bool            `json:"indexed"`
	Components []abiEventInput `json:"components,omitempty"`
}

// abiEntry is the subset of an ABI JSON array entry the decoder needs.
type abiEntry struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Inputs []abiEventInput `json:"inputs"`
}

// canonicalSignature builds "Name(type1,type2,...)" with tuple components
// expanded as "(t1,t2,...)" and no spaces anywhere, per the spec's §4.5
// canonical-signature rule.
func canonicalSignature(entry abiEntry) string {
	parts := make([]string, len(entry.Inputs))
	for i, in := range entry.Inputs {
		parts[i] = canonicalType(in)
	}
	return entry.Name + "(" + strings.Join(parts, ",") + ")"
}

func canonicalType(in abiEventInput) string {
	if !strings.HasPrefix(in.Type, "tuple") {
		return in.Type
	}
	// tuple, tuple[], tuple[2], etc: expand components and keep any array suffix.
	suffix := strings.TrimPrefix(in.Type, "tuple")
	inner := make([]string, len(in.Components))
	for i, c := range in.Components {
		inner[i] = canonicalType(c)
	}
	return "(" + strings.Join(inner, ",") + ")" + suffix
}

// topic0For computes "0x" + lower_hex(keccak256(signature)).
func topic0For(signature string) string {
	hash := crypto.Keccak256([]byte(signature))
	return "0x" + hex.EncodeToString(hash)
}

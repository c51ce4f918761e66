// Package hexutil converts between the hex-string encodings used on the
// wire by Ethereum JSON-RPC and the Go integer/byte types the rest of the
// indexer works with.
package hexutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// ParseUint64 parses a "0x"-prefixed (or bare) hex string into a uint64.
// strip optional 0x prefix, parse base-16, per the wire contract in §6.
func ParseUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 16, 64)
}

// FormatUint64 renders n as a "0x"-prefixed hex string with no leading zeros.
func FormatUint64(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

// ParseU256 parses a "0x"-prefixed hex string into a uint256.Int, used for
// value and gas_price which can exceed 64 bits.
func ParseU256(s string) (*uint256.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return uint256.NewInt(0), nil
	}
	z, err := uint256.FromHex("0x" + s)
	if err != nil {
		return nil, fmt.Errorf("parse u256 %q: %w", s, err)
	}
	return z, nil
}

// FormatU256Decimal renders z as a base-10 string, the encoding used when
// writing value/gas_price into JSON so large integers don't lose precision.
func FormatU256Decimal(z *uint256.Int) string {
	if z == nil {
		return "0"
	}
	return z.Dec()
}

// NormalizeAddress lowercases an address and ensures a leading 0x. Applying
// it twice is idempotent (P3).
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return addr
}

// IsValidAddress reports whether addr is a well-formed 20-byte hex address.
func IsValidAddress(addr string) bool {
	addr = strings.TrimPrefix(addr, "0x")
	if len(addr) != 40 {
		return false
	}
	return isHex(addr)
}

// IsValidHash reports whether s is a well-formed 32-byte hex value (66 chars
// including the 0x prefix), the shape used for tx hashes and topics.
func IsValidHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return false
	}
	return isHex(s)
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLower := c >= 'a' && c <= 'f'
		isUpper := c >= 'A' && c <= 'F'
		if !isDigit && !isLower && !isUpper {
			return false
		}
	}
	return true
}

// StripLeadingZeros removes leading zero digits from a hex payload
// (without its 0x prefix), collapsing an all-zero string to "0".
func StripLeadingZeros(hexDigits string) string {
	i := 0
	for i < len(hexDigits)-1 && hexDigits[i] == '0' {
		i++
	}
	return hexDigits[i:]
}

// PadTopicAddress builds the 66-char topic representation of a 20-byte
// address, left-padding it with zero nibbles to fill the 32-byte slot
// addresses occupy when they appear as indexed event parameters.
func PadTopicAddress(addr string) string {
	addr = strings.TrimPrefix(NormalizeAddress(addr), "0x")
	return "0x" + strings.Repeat("0", 24) + addr
}

// AddressFromTopic extracts the low 20 bytes (40 hex chars) of a 32-byte
// topic, the encoding used for an `address` type indexed parameter.
func AddressFromTopic(topic string) string {
	topic = strings.TrimPrefix(topic, "0x")
	if len(topic) < 40 {
		return "0x" + topic
	}
	return "0x" + strings.ToLower(topic[len(topic)-40:])
}

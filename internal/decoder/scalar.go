package decoder

import (
	"encoding/hex"
	"strings"

	"github.com/holiman/uint256"
)

// decodeScalarFromWord applies §4.5's per-type scalar rules to a single
// 32-byte word (a topic, or a 64-hex-char chunk of data), returning a
// JSON-safe value: strings for addresses/hashes/big integers, bool for
// bool. Dynamic types (string, bytes, arrays) aren't decoded here — the
// raw word is returned verbatim, since for an indexed dynamic type that
// word IS the keccak hash of the value, not the value itself.
func decodeScalarFromWord(abiType, word string) interface{} {
	hexDigits := strings.ToLower(strings.TrimPrefix(word, "0x"))
	hexDigits = padTo64(hexDigits)

	switch {
	case abiType == "address":
		return "0x" + hexDigits[24:]
	case abiType == "bool":
		return hasNonZeroNibble(hexDigits)
	case strings.HasPrefix(abiType, "uint"):
		return decodeUint(hexDigits)
	case strings.HasPrefix(abiType, "int"):
		bits := bitsOf(abiType)
		return decodeInt(hexDigits, bits)
	case abiType == "bytes32":
		return "0x" + hexDigits
	default:
		// Dynamic type (string, bytes, T[], tuple) or an unrecognized
		// type: return the raw word, matching the "return the raw topic"
		// rule for indexed dynamic types.
		return "0x" + hexDigits
	}
}

func padTo64(hexDigits string) string {
	if len(hexDigits) >= 64 {
		return hexDigits[len(hexDigits)-64:]
	}
	return strings.Repeat("0", 64-len(hexDigits)) + hexDigits
}

func hasNonZeroNibble(hexDigits string) bool {
	for _, c := range hexDigits {
		if c != '0' {
			return true
		}
	}
	return false
}

// decodeUint parses all 64 hex chars as a big-endian unsigned integer,
// returned as a decimal string to avoid JSON float precision loss.
func decodeUint(hexDigits string) string {
	b, err := hex.DecodeString(hexDigits)
	if err != nil {
		return "0"
	}
	return new(uint256.Int).SetBytes(b).Dec()
}

// decodeInt parses all 64 hex chars as a big-endian integer, keeps the low
// bits of the declared width (the ABI sign-extends narrower ints across the
// whole word), then applies two's-complement sign correction: values
// >= 2^(bits-1) have 2^bits subtracted.
func decodeInt(hexDigits string, bits int) string {
	b, err := hex.DecodeString(hexDigits)
	if err != nil {
		return "0"
	}
	z := new(uint256.Int).SetBytes(b)
	if bits <= 0 || bits > 256 {
		bits = 256
	}
	if bits < 256 {
		mask := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits)), uint256.NewInt(1))
		z.And(z, mask)
	}

	threshold := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits-1))
	if z.Lt(threshold) {
		return z.Dec()
	}

	modulus := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))
	neg := new(uint256.Int).Sub(modulus, z)
	return "-" + neg.Dec()
}

func bitsOf(abiType string) int {
	digits := strings.TrimPrefix(abiType, "int")
	if digits == "" {
		return 256
	}
	bits := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 256
		}
		bits = bits*10 + int(c-'0')
	}
	if bits == 0 {
		return 256
	}
	return bits
}

package decoder

import "testing"

const erc20ABI = `[{"type":"event","name":"Transfer","inputs":[
	{"name":"from","type":"address","indexed":true},
	{"name":"to","type":"address","indexed":true},
	{"name":"value","type":"uint256","indexed":false}
]}]`

func TestDecodeERC20Transfer(t *testing.T) {
	topics := []string{
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		"0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	data := "0x00000000000000000000000000000000000000000000000000000000000003e8"

	result := Decode(erc20ABI, topics, data)
	if result == nil {
		t.Fatal("expected a match")
	}
	if result.EventName != "Transfer" {
		t.Fatalf("got event name %q", result.EventName)
	}
	if result.Params["from"] != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("from = %v", result.Params["from"])
	}
	if result.Params["to"] != "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb" {
		t.Fatalf("to = %v", result.Params["to"])
	}
	if result.Params["value"] != "1000" {
		t.Fatalf("value = %v", result.Params["value"])
	}
}

func TestDecodeUnknownEventReturnsNil(t *testing.T) {
	topics := []string{"0xfeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedface"}
	if got := Decode(erc20ABI, topics, "0x"); got != nil {
		t.Fatalf("expected nil for unmatched topic0, got %+v", got)
	}
}

func TestDecodeInvalidABIReturnsNil(t *testing.T) {
	if got := Decode("not json", []string{"0x00"}, "0x"); got != nil {
		t.Fatalf("expected nil for unparsable ABI, got %+v", got)
	}
}

func TestDecodeWellKnownERC20FallbackByDataLength(t *testing.T) {
	topics := []string{
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		"0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	data := "0x00000000000000000000000000000000000000000000000000000000000003e8"

	result := DecodeWellKnown(topics, data)
	if result == nil || result.EventName != "Transfer" {
		t.Fatalf("got %+v", result)
	}
	if result.Params["value"] != "1000" {
		t.Fatalf("value = %v", result.Params["value"])
	}
	if _, ok := result.Params["tokenId"]; ok {
		t.Fatal("expected ERC20 shape, not ERC721")
	}
}

func TestDecodeWellKnownERC721FallbackByEmptyData(t *testing.T) {
	topics := []string{
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		"0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"0x0000000000000000000000000000000000000000000000000000000000002a",
	}
	result := DecodeWellKnown(topics, "0x")
	if result == nil {
		t.Fatal("expected a match")
	}
	if result.Params["tokenId"] != "42" {
		t.Fatalf("tokenId = %v", result.Params["tokenId"])
	}
}

func TestCanonicalSignatureWithTuple(t *testing.T) {
	entry := abiEntry{
		Name: "Deposit",
		Inputs: []abiEventInput{
			{Type: "address"},
			{Type: "tuple", Components: []abiEventInput{{Type: "uint256"}, {Type: "bool"}}},
		},
	}
	got := canonicalSignature(entry)
	want := "Deposit(address,(uint256,bool))"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDecodeNegativeInt(t *testing.T) {
	// int8(-1) as a 32-byte word is all-Fs.
	word := "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	got := decodeScalarFromWord("int8", word)
	if got != "-1" {
		t.Fatalf("got %v, want -1", got)
	}
}

func TestDecodeBoolScalar(t *testing.T) {
	if decodeScalarFromWord("bool", "0x00") != false {
		t.Fatal("expected false for all-zero word")
	}
	if decodeScalarFromWord("bool", "0x01") != true {
		t.Fatal("expected true for nonzero word")
	}
}

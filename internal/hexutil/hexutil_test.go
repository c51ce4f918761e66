package hexutil

import "testing"

func TestParseUint64RoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 255, 4096, 18446744073709551615}
	for _, n := range cases {
		h := FormatUint64(n)
		got, err := ParseUint64(h)
		if err != nil {
			t.Fatalf("ParseUint64(%q): %v", h, err)
		}
		if got != n {
			t.Fatalf("ParseUint64(FormatUint64(%d)) = %d", n, got)
		}
	}
}

func TestParseUint64StripsPrefix(t *testing.T) {
	n, err := ParseUint64("0x5208")
	if err != nil {
		t.Fatal(err)
	}
	if n != 21000 {
		t.Fatalf("got %d, want 21000", n)
	}
}

func TestNormalizeAddressIdempotent(t *testing.T) {
	inputs := []string{"0xAbCd", "ABCD", "0xabcd"}
	for _, in := range inputs {
		once := NormalizeAddress(in)
		twice := NormalizeAddress(once)
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
		if once[:2] != "0x" {
			t.Fatalf("normalize(%q) = %q, missing 0x prefix", in, once)
		}
	}
}

func TestAddressFromTopic(t *testing.T) {
	topic := "0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	got := AddressFromTopic(topic)
	want := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestStripLeadingZeros(t *testing.T) {
	cases := map[string]string{
		"0003e8": "3e8",
		"000000": "0",
		"abc":    "abc",
	}
	for in, want := range cases {
		if got := StripLeadingZeros(in); got != want {
			t.Fatalf("StripLeadingZeros(%q) = %q, want %q", in, got, want)
		}
	}
}

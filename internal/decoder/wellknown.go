package decoder

import "strings"

// wellKnownEvent is a statically-known event signature the decoder can
// still name even when no ABI was ever resolved for the emitting contract.
type wellKnownEvent struct {
	name   string
	inputs []abiEventInput
}

// wellKnownEvents covers the handful of near-universal ERC20/ERC721/ERC1155
// events seen across virtually every indexed chain, the same signatures
// several of the retrieved indexers hardcode directly against
// crypto.Keccak256Hash rather than waiting on ABI resolution. ERC20's and
// ERC721's Transfer share a canonical signature text
// ("Transfer(address,address,uint256)") and therefore the same topic0 —
// indexed-ness doesn't change the hash — so each topic0 maps to a list of
// candidate shapes, disambiguated at decode time by whether data is empty
// (ERC721, tokenId indexed) or carries one word (ERC20, value in data).
var wellKnownEvents = buildWellKnown([][]wellKnownEvent{
	{
		{
			name: "Transfer",
			inputs: []abiEventInput{
				{Name: "from", Type: "address", Indexed: true},
				{Name: "to", Type: "address", Indexed: true},
				{Name: "value", Type: "uint256"},
			},
		},
		{
			name: "Transfer",
			inputs: []abiEventInput{
				{Name: "from", Type: "address", Indexed: true},
				{Name: "to", Type: "address", Indexed: true},
				{Name: "tokenId", Type: "uint256", Indexed: true},
			},
		},
	},
	{{
		name: "Approval",
		inputs: []abiEventInput{
			{Name: "owner", Type: "address", Indexed: true},
			{Name: "spender", Type: "address", Indexed: true},
			{Name: "value", Type: "uint256"},
		},
	}},
	{{
		name: "ApprovalForAll",
		inputs: []abiEventInput{
			{Name: "owner", Type: "address", Indexed: true},
			{Name: "operator", Type: "address", Indexed: true},
			{Name: "approved", Type: "bool"},
		},
	}},
	{{
		name: "TransferSingle",
		inputs: []abiEventInput{
			{Name: "operator", Type: "address", Indexed: true},
			{Name: "from", Type: "address", Indexed: true},
			{Name: "to", Type: "address", Indexed: true},
			{Name: "id", Type: "uint256"},
			{Name: "value", Type: "uint256"},
		},
	}},
	{{
		name: "OwnershipTransferred",
		inputs: []abiEventInput{
			{Name: "previousOwner", Type: "address", Indexed: true},
			{Name: "newOwner", Type: "address", Indexed: true},
		},
	}},
})

func buildWellKnown(groups [][]wellKnownEvent) map[string][]abiEntry {
	out := make(map[string][]abiEntry)
	for _, group := range groups {
		for _, e := range group {
			entry := abiEntry{Type: "event", Name: e.name, Inputs: e.inputs}
			topic0 := topic0For(canonicalSignature(entry))
			out[topic0] = append(out[topic0], entry)
		}
	}
	return out
}

// pickCandidate resolves an ambiguous well-known topic0 to the shape whose
// non-indexed word count matches what data actually carries.
func pickCandidate(candidates []abiEntry, dataHex string) abiEntry {
	hexDigits := strings.TrimPrefix(dataHex, "0x")
	wordCount := len(hexDigits) / 64
	for _, c := range candidates {
		_, dataInputs := splitInputs(c.Inputs)
		if len(dataInputs) == wordCount {
			return c
		}
	}
	return candidates[0]
}

// DecodeWellKnown matches topic0 against the static well-known-signature
// table. The pipeline calls it whenever Decode yields nil: when no ABI was
// resolved for the emitting contract, or when the resolved ABI has no event
// matching topic0.
func DecodeWellKnown(topics []string, dataHex string) *Result {
	if len(topics) == 0 {
		return nil
	}
	candidates, ok := wellKnownEvents[strings.ToLower(topics[0])]
	if !ok {
		return nil
	}
	entry := pickCandidate(candidates, dataHex)

	indexedInputs, dataInputs := splitInputs(entry.Inputs)
	params := make(map[string]interface{})

	indexedTopics := topics[1:]
	for i, in := range indexedInputs {
		if i >= len(indexedTopics) {
			break
		}
		params[in.Name] = decodeScalarFromWord(in.Type, indexedTopics[i])
	}

	dataParams, ok := decodeData(dataInputs, dataHex)
	if ok {
		for k, v := range dataParams {
			params[k] = v
		}
	}

	return &Result{EventName: entry.Name, Params: params}
}

package decoder

import (
	"encoding/json"
	"strings"
)

// Result is the decoder's public output: a matched event name and its
// params, or both nil on any failure per §4.5.
type Result struct {
	EventName string
	Params    map[string]interface{}
}

// Decode matches topic0 against abiJSON's events and decodes the log's
// topics/data into named parameters. Any failure — unparseable ABI, no
// matching event — returns a nil Result rather than an error, matching the
// spec's "failure is {null, null}, never an exception" contract.
func Decode(abiJSON string, topics []string, dataHex string) *Result {
	if abiJSON == "" || len(topics) == 0 {
		return nil
	}

	var entries []abiEntry
	if err := json.Unmarshal([]byte(abiJSON), &entries); err != nil {
		return nil
	}

	topic0 := strings.ToLower(topics[0])
	entry, ok := matchEvent(entries, topic0)
	if !ok {
		return nil
	}

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
	if !ok && len(dataInputs) > 0 {
		// Non-indexed decode failed outright: per §4.5 step 6, that yields
		// an empty map for the data-derived half, not a full failure.
		dataParams = map[string]interface{}{}
	}
	for k, v := range dataParams {
		params[k] = v
	}

	return &Result{EventName: entry.Name, Params: params}
}

// matchEvent finds the ABI event entry whose canonical signature hashes to
// topic0.
func matchEvent(entries []abiEntry, topic0 string) (abiEntry, bool) {
	for _, e := range entries {
		if e.Type != "event" {
			continue
		}
		sig := canonicalSignature(e)
		if topic0For(sig) == topic0 {
			return e, true
		}
	}
	return abiEntry{}, false
}

// splitInputs separates an event's inputs into indexed and non-indexed
// groups, each preserving the event's declared ABI order.
func splitInputs(inputs []abiEventInput) (indexed, data []abiEventInput) {
	for _, in := range inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		} else {
			data = append(data, in)
		}
	}
	return indexed, data
}

// decodeData decodes the non-indexed inputs from data's 64-hex-char word
// chunks. Dynamic-type full decoding (string/bytes/array contents) is out
// of scope per §9; those words still consume one chunk each so subsequent
// scalars stay aligned where the ABI layout is purely static.
func decodeData(inputs []abiEventInput, dataHex string) (map[string]interface{}, bool) {
	params := make(map[string]interface{})
	if len(inputs) == 0 {
		return params, true
	}

	hexDigits := strings.TrimPrefix(dataHex, "0x")
	if hexDigits == "" {
		return params, false
	}

	for i, in := range inputs {
		start := i * 64
		end := start + 64
		if end > len(hexDigits) {
			return map[string]interface{}{}, false
		}
		word := "0x" + hexDigits[start:end]
		params[in.Name] = decodeScalarFromWord(in.Type, word)
	}
	return params, true
}

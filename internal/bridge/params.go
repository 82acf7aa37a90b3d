package bridge

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/zlc_ai/appevents-bridge/internal/sdk"
)

// DecodeParams converts a JSON object into event parameters.
// Each value is read as a string, else as an integer; anything else is left
// out and its key returned in dropped. Fractional numbers are truncated
// toward zero. Keys are processed in sorted order.
func DecodeParams(obj map[string]json.RawMessage) (params *sdk.Parameters, dropped []string) {
	params = sdk.NewParameters()

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := bytes.TrimSpace(obj[key])

		if s, ok := decodeString(raw); ok {
			params.PutString(key, s)
			continue
		}
		if n, ok := decodeInt(raw); ok {
			params.PutInt(key, n)
			continue
		}
		dropped = append(dropped, key)
	}

	return params, dropped
}

func decodeString(raw []byte) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeInt(raw []byte) (int32, bool) {
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	f = math.Trunc(f)
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int32(f), true
}

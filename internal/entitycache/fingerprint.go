package entitycache

import (
	"crypto/md5" //nolint:gosec // fingerprint identity, not security
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Fingerprint computes the MD5 fingerprint over (toolName, provider,
// normalized filters) used to deduplicate identical follow-up fetches
// (spec §3, §4.6 step 4). Filters are normalized by marshaling their keys
// in sorted order so semantically identical filter maps fingerprint
// identically regardless of construction order.
func Fingerprint(toolName, provider string, filters map[string]any) string {
	normalized := normalizeFilters(filters)
	raw, _ := json.Marshal(struct {
		Tool     string `json:"tool"`
		Provider string `json:"provider"`
		Filters  string `json:"filters"`
	}{Tool: toolName, Provider: provider, Filters: normalized})
	sum := md5.Sum(raw) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// normalizeFilters renders a filter map as a canonical JSON string with
// keys in sorted order, recursively, so map iteration order never affects
// the fingerprint.
func normalizeFilters(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := []byte("{")
	for i, k := range keys {
		if i > 0 {
			b = append(b, ',')
		}
		kb, _ := json.Marshal(k)
		b = append(b, kb...)
		b = append(b, ':')
		b = append(b, normalizeValue(v[k])...)
	}
	b = append(b, '}')
	return string(b)
}

func normalizeValue(v any) []byte {
	switch t := v.(type) {
	case map[string]any:
		return []byte(normalizeFilters(t))
	case []any:
		out := []byte("[")
		for i, item := range t {
			if i > 0 {
				out = append(out, ',')
			}
			out = append(out, normalizeValue(item)...)
		}
		out = append(out, ']')
		return out
	default:
		raw, _ := json.Marshal(v)
		return raw
	}
}

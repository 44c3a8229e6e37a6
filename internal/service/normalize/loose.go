package normalize

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// text renders any JSON scalar, list or object as a display string.
func text(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	if list := textList(raw); len(list) > 0 {
		return strings.Join(list, "; ")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		parts := make([]string, 0, len(obj))
		for _, k := range sortedKeys(obj) {
			if v := text(obj[k]); v != "" {
				parts = append(parts, k+": "+v)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// textList accepts a JSON array of scalars or a single string.
func textList(raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := text(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(obj map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

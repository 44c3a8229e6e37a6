// Package normalize turns raw provider output into canonical metrics.
// Every function here is pure: no I/O and no failure on missing data.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoStructuredData is returned when raw text holds no decodable object.
var ErrNoStructuredData = errors.New("no structured data found")

var (
	fencedJSON    = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON locates the structured block embedded in provider text.
// Fenced json blocks are merged in order (later keys win); without fences
// the span from the first '{' to the last '}' is used. Trailing commas are
// removed before decoding.
func ExtractJSON(raw string) ([]byte, error) {
	if blocks := fencedJSON.FindAllStringSubmatch(raw, -1); len(blocks) > 0 {
		merged := make(map[string]json.RawMessage)
		for _, block := range blocks {
			obj, err := decodeObject(block[1])
			if err != nil {
				continue
			}
			for k, v := range obj {
				merged[k] = v
			}
		}
		if len(merged) > 0 {
			return json.Marshal(merged)
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrNoStructuredData
	}
	candidate := StripTrailingCommas(raw[start : end+1])
	if _, err := decodeObject(candidate); err != nil {
		return nil, ErrNoStructuredData
	}
	return []byte(candidate), nil
}

// ExtractObject is ExtractJSON followed by a decode into top-level fields.
func ExtractObject(raw string) (map[string]json.RawMessage, error) {
	data, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	return decodeObject(string(data))
}

// StripTrailingCommas removes commas directly before a closing brace or bracket.
func StripTrailingCommas(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}

func decodeObject(s string) (map[string]json.RawMessage, error) {
	s = StripTrailingCommas(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "{") {
		return nil, ErrNoStructuredData
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// lookup finds a field by any of keys, ignoring case and surrounding space.
func lookup(obj map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok && !isNull(v) {
			return v, true
		}
	}
	for k, v := range obj {
		nk := strings.ToLower(strings.TrimSpace(k))
		for _, key := range keys {
			if nk == strings.ToLower(key) && !isNull(v) {
				return v, true
			}
		}
	}
	return nil, false
}

// lookupObject is lookup for nested objects.
func lookupObject(obj map[string]json.RawMessage, keys ...string) map[string]json.RawMessage {
	raw, ok := lookup(obj, keys...)
	if !ok {
		return nil
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

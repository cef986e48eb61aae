package payload

import (
	"bytes"
	"encoding/json"
	"strings"
)

// replyFields are checked in order when looking for human-readable reply text
var replyFields = []string{"message", "text", "response", "reply", "content"}

// DecodeBody returns the response body as decoded JSON when it is valid JSON, else as raw text
func DecodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return string(raw)
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(raw)
	}
	return v
}

/* ReplyText extracts the text a chat user should see from a decoded response body
 * Conventional fields are looked up first at the top level and then inside "data";
 * anything else falls back to the JSON encoding of the whole body
 */
func ReplyText(body any) (string, bool) {
	switch v := body.(type) {
	case nil:
		return "", false
	case string:
		text := strings.TrimSpace(v)
		return text, text != ""
	case map[string]any:
		if text, ok := fieldText(v); ok {
			return text, true
		}
		if data, ok := v["data"].(map[string]any); ok {
			if text, ok := fieldText(data); ok {
				return text, true
			}
		}
		if len(v) == 0 {
			return "", false
		}
	case []any:
		if len(v) == 0 {
			return "", false
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return "", false
	}
	return string(encoded), true
}

func fieldText(m map[string]any) (string, bool) {
	for _, field := range replyFields {
		if s, ok := m[field].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

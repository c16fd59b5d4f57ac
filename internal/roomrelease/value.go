package roomrelease

import (
	"bytes"
	"encoding/json"
	"strings"
)

// flexString accepts a JSON string, number or bool and keeps its text
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	*f = flexString(rawText(data))
	return nil
}

// rawText renders a JSON scalar as plain text. null becomes "".
func rawText(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ""
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return s
		}
	}
	return string(data)
}

// decodeStatusValue extracts a status value from a bridge payload, either
// {"value": X} or the bare value.
func decodeStatusValue(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err == nil {
			return rawText(wrapped.Value)
		}
	}
	return strings.TrimSpace(rawText(trimmed))
}

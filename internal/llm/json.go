package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanModelJSON strips Markdown fences and any prose around the first
// JSON object in raw.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// drop the ``` or ```json line
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// DecodeObject parses a model reply into a JSON object.
func DecodeObject(raw string) (map[string]any, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("DecodeObject: empty response")
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("DecodeObject: unmarshal JSON: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("DecodeObject: response is not an object")
	}
	return out, nil
}

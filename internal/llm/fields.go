package llm

import (
	"fmt"
	"strings"
)

// StringField reads a string from a decoded model payload.
func StringField(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if required && strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return s, nil
}

// Float64Field reads a number from a decoded model payload.
func Float64Field(m map[string]any, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

// OptionalFloat64Field returns nil when key is absent or null.
func OptionalFloat64Field(m map[string]any, key string) (*float64, error) {
	if v, ok := m[key]; !ok || v == nil {
		return nil, nil
	}
	f, err := Float64Field(m, key, true)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// StringsField reads a list of non-empty strings. Absent or null is nil.
func StringsField(m map[string]any, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want array", key, v)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("field %q element %d has type %T, want string", key, i, item)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

package datasets

import (
	"fmt"
)

// Kwargs are reader options decoded from TOML.
type Kwargs map[string]any

// String returns a string option.
func (k Kwargs) String(key, def string) (string, error) {
	v, ok := k[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected a string, got %T", key, v)
	}
	return s, nil
}

// Bool returns a boolean option.
func (k Kwargs) Bool(key string, def bool) (bool, error) {
	v, ok := k[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: expected a boolean, got %T", key, v)
	}
	return b, nil
}

// Int returns an integer option.
func (k Kwargs) Int(key string, def int) (int, error) {
	v, ok := k[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("%s: expected an integer, got %v", key, v)
}

// Strings returns a list-of-strings option. A single string is a list of one.
func (k Kwargs) Strings(key string) ([]string, error) {
	v, ok := k[key]
	if !ok {
		return nil, nil
	}
	switch items := v.(type) {
	case string:
		return []string{items}, nil
	case []string:
		return items, nil
	case []any:
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected a list of strings, got %T at position %d", key, item, i)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: expected a list of strings, got %T", key, v)
}

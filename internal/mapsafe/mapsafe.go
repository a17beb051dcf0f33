// Package mapsafe reads typed values out of loosely typed parameter maps,
// such as the ones decoded from JSON request bodies or YAML config.
package mapsafe

import "time"

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	val, ok := m[key]
	if !ok || val == nil {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case int:
		switch x := val.(type) {
		case int:
			return any(x).(T)
		case int64:
			return any(int(x)).(T)
		case float64:
			return any(int(x)).(T)
		}
	case float64:
		switch x := val.(type) {
		case float64:
			return any(x).(T)
		case float32:
			return any(float64(x)).(T)
		case int:
			return any(float64(x)).(T)
		}
	case string:
		if s, ok := val.(string); ok {
			return any(s).(T)
		}
	case bool:
		if b, ok := val.(bool); ok {
			return any(b).(T)
		}
	case time.Duration:
		switch x := val.(type) {
		case time.Duration:
			return any(x).(T)
		case string:
			if d, err := time.ParseDuration(x); err == nil {
				return any(d).(T)
			}
		}
	default:
		if v2, ok := val.(T); ok {
			return v2
		}
	}

	return defaultValue
}

package llm

// Typed accessors for the loosely-typed generation and provider settings
// maps that flow out of YAML configuration. YAML decoding may produce int,
// int64, uint64 or float64 for numbers, so the numeric accessors coerce.

// IntSetting reads an integer setting.
func IntSetting(settings map[string]interface{}, key string) (int, bool) {
	v, ok := settings[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// FloatSetting reads a floating-point setting.
func FloatSetting(settings map[string]interface{}, key string) (float64, bool) {
	v, ok := settings[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// StringSetting reads a string setting.
func StringSetting(settings map[string]interface{}, key string) (string, bool) {
	v, ok := settings[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

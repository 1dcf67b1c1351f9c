package capability

// Arguments is the loosely-typed argument object emitted by the model.
// Accessors drop values of the wrong runtime type instead of failing.
type Arguments map[string]any

// String returns the value under key if it is a string, else "".
func (a Arguments) String(key string) string {
	if s, ok := a[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns the value under key if it is a boolean, else nil.
func (a Arguments) Bool(key string) *bool {
	if b, ok := a[key].(bool); ok {
		return &b
	}
	return nil
}

// Number returns the value under key if it is numeric.
func (a Arguments) Number(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Without returns a copy of a minus the given keys and nil values.
func (a Arguments) Without(keys ...string) map[string]any {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	out := make(map[string]any, len(a))
	for k, v := range a {
		if skip[k] || v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

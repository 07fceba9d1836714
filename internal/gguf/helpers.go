package gguf

import "fmt"

func GetString(kv map[string]Value, key string) (string, bool) {
	v, ok := kv[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

func GetBool(kv map[string]Value, key string) (bool, bool) {
	v, ok := kv[key]
	if !ok {
		return false, false
	}
	b, ok := v.Value.(bool)
	return b, ok
}

// GetUint64 accepts any non-negative integer value.
func GetUint64(kv map[string]Value, key string) (uint64, bool) {
	v, ok := kv[key]
	if !ok {
		return 0, false
	}
	i, ok := asInt64(v.Value)
	if ok && i >= 0 {
		return uint64(i), true
	}
	if u, isU64 := v.Value.(uint64); isU64 {
		return u, true
	}
	return 0, false
}

// GetInt64 accepts any integer value representable as int64.
func GetInt64(kv map[string]Value, key string) (int64, bool) {
	v, ok := kv[key]
	if !ok {
		return 0, false
	}
	return asInt64(v.Value)
}

func GetFloat64(kv map[string]Value, key string) (float64, bool) {
	v, ok := kv[key]
	if !ok {
		return 0, false
	}
	switch t := v.Value.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// GetArray retrieves a slice of type T. It fails if the value is missing,
// is not an array, or holds any element that is not a T.
func GetArray[T any](kv map[string]Value, key string) ([]T, bool) {
	v, ok := kv[key]
	if !ok {
		return nil, false
	}
	arr, ok := v.Value.(ArrayValue)
	if !ok {
		return nil, false
	}
	out := make([]T, 0, len(arr.Values))
	for _, item := range arr.Values {
		tItem, ok := item.(T)
		if !ok {
			return nil, false
		}
		out = append(out, tItem)
	}
	return out, true
}

func MustGetString(kv map[string]Value, key string) (string, error) {
	if s, ok := GetString(kv, key); ok {
		return s, nil
	}
	return "", fmt.Errorf("missing or invalid %s", key)
}

func MustGetUint64(kv map[string]Value, key string) (uint64, error) {
	if v, ok := GetUint64(kv, key); ok {
		return v, nil
	}
	return 0, fmt.Errorf("missing or invalid %s", key)
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > 1<<63-1 {
			return 0, false
		}
		return int64(t), true
	default:
		return 0, false
	}
}

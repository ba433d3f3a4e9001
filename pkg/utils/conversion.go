package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ToBool safely converts various types to boolean
// Handles bool, integers, floats, string ("1", "true", "yes", "on")
func ToBool(val interface{}) bool {
	if val == nil {
		return false
	}

	switch v := val.(type) {
	case bool:
		return v
	case []byte:
		// Handle raw DB bytes often returned for TINYINT
		return parseBoolString(string(v))
	case string:
		return parseBoolString(v)
	}

	if i, ok := ToInt64(val); ok {
		return i != 0
	}
	if f, ok := ToFloat64(val); ok {
		return f != 0
	}
	return parseBoolString(fmt.Sprintf("%v", val))
}

// parseBoolString parses boolean from string representation
func parseBoolString(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "1" || lower == "true" || lower == "yes" || lower == "on" || lower == "t" {
		return true
	}
	if b, err := strconv.ParseBool(lower); err == nil {
		return b
	}
	return false
}

// IsInteger reports whether val holds a Go integer type
func IsInteger(val interface{}) bool {
	switch val.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// IsFloat reports whether val holds a Go floating point type
func IsFloat(val interface{}) bool {
	switch val.(type) {
	case float32, float64:
		return true
	}
	return false
}

// ToInt64 converts integers and raw DB values to int64.
// Floats are only accepted when they carry no fractional part.
func ToInt64(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), v <= math.MaxInt64
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	case float32:
		return int64(v), float32(int64(v)) == v
	case float64:
		return int64(v), float64(int64(v)) == v
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case []byte:
		i, err := strconv.ParseInt(string(v), 10, 64)
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// ToFloat64 converts numbers and raw DB values to float64
func ToFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	if i, ok := ToInt64(val); ok && !IsFloat(val) {
		return float64(i), true
	}
	return 0, false
}

// ToString converts raw DB values to string
func ToString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", val)
}

// ToSlice returns the elements of a slice value as []any.
// The second result is false when val is not a supported slice type.
func ToSlice(val interface{}) ([]interface{}, bool) {
	switch v := val.(type) {
	case []interface{}:
		return v, true
	case []string:
		return convertSlice(v), true
	case []int:
		return convertSlice(v), true
	case []int32:
		return convertSlice(v), true
	case []int64:
		return convertSlice(v), true
	case []float32:
		return convertSlice(v), true
	case []float64:
		return convertSlice(v), true
	case []bool:
		return convertSlice(v), true
	case []time.Time:
		return convertSlice(v), true
	}
	return nil, false
}

func convertSlice[T any](in []T) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

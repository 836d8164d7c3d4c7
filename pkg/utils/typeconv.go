package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ConvertToInt parses integers, truncating floats and float-looking strings toward zero.
func ConvertToInt(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return truncate(float64(v))
	case float64:
		return truncate(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as int", v)
		}
		return truncate(f)
	case []byte:
		return ConvertToInt(string(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", val)
	}
}

func truncate(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v is not a representable int", f)
	}
	return int64(f), nil
}

// ConvertToFloat parses any numeric value or numeric string.
func ConvertToFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as float", v)
		}
		return f, nil
	case []byte:
		return ConvertToFloat(string(v))
	case bool, nil:
		return 0, fmt.Errorf("cannot convert %T to float", val)
	default:
		n, err := ConvertToInt(val)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %T to float", val)
		}
		return float64(n), nil
	}
}

// ConvertDateTime accepts time values, epoch milliseconds and the common SQL/ISO string layouts.
func ConvertDateTime(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case primitive.DateTime:
		return v.Time(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse datetime: %s", v)
	case []byte:
		return ConvertDateTime(string(v))
	case bool, nil:
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", val)
	default:
		ms, err := ConvertToInt(val)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot convert %T to datetime", val)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
}

// ConvertToBool is true only for the boolean true, the string "true" or the number 1.
func ConvertToBool(val interface{}) bool {
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	case int:
		return v == 1
	case int8:
		return v == 1
	case int16:
		return v == 1
	case int32:
		return v == 1
	case int64:
		return v == 1
	case uint:
		return v == 1
	case uint8:
		return v == 1
	case uint16:
		return v == 1
	case uint32:
		return v == 1
	case uint64:
		return v == 1
	case float32:
		return v == 1
	case float64:
		return v == 1
	default:
		return false
	}
}

// IntOrDefault reads optional numeric settings that may be written as numbers or strings.
func IntOrDefault(v interface{}, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return def, nil
	}
	n, err := ConvertToInt(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

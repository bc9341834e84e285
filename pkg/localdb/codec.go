package localdb

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func encodeValue(t ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case Integer:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != float64(int64(n)) {
				return nil, fmt.Errorf("%v is not an integer", n)
			}
			return int64(n), nil
		case json.Number:
			return n.Int64()
		case string:
			return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		}
	case Real:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			return n.Float64()
		case string:
			return strconv.ParseFloat(strings.TrimSpace(n), 64)
		}
	case Boolean:
		switch b := v.(type) {
		case bool:
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return nil, err
			}
			return encodeValue(Boolean, parsed)
		}
	case JSON:
		if s, ok := v.(string); ok && json.Valid([]byte(s)) {
			return s, nil
		}
		if raw, ok := v.(json.RawMessage); ok {
			return string(raw), nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case Timestamp:
		switch ts := v.(type) {
		case time.Time:
			return ts.UTC().Format(time.RFC3339Nano), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(ts))
			if err != nil {
				return nil, fmt.Errorf("timestamp must be RFC 3339: %w", err)
			}
			return parsed.UTC().Format(time.RFC3339Nano), nil
		}
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, t)
}

func decodeValue(t ColumnType, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}
	switch t {
	case Boolean:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case Real:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	case JSON:
		if s, ok := v.(string); ok {
			var out any
			if err := json.Unmarshal([]byte(s), &out); err == nil {
				return out
			}
		}
	case Timestamp:
		if s, ok := v.(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return ts
			}
		}
	}
	return v
}

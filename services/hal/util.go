package hal

import (
	"encoding/json"
	"strings"
)

// Payload decode helpers shared across the service and adaptors.

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		// Accept maps, structs, numbers… by marshaling then decoding to T.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}

func mapFromAny(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// edgeString labels the transition between two logical levels.
func edgeString(prev, cur bool) string {
	switch {
	case !prev && cur:
		return "rising"
	case prev && !cur:
		return "falling"
	default:
		return "level"
	}
}

// wantBool extracts a boolean from either a map payload (by key) or a
// scalar. Recognises true/false, 1/0, on/off, yes/no (case-insensitive).
func wantBool(src any, key string) bool {
	if m, ok := src.(map[string]any); ok {
		if v, ok := m[key]; ok {
			return wantBool(v, "")
		}
		// fall through to return false
	}

	switch v := src.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int8:
		return v != 0
	case int16:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case uint:
		return v != 0
	case uint8:
		return v != 0
	case uint16:
		return v != 0
	case uint32:
		return v != 0
	case uint64:
		return v != 0
	case float32:
		return int(v) != 0
	case float64:
		return int(v) != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "on", "yes":
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// wantUint32 extracts a non-negative integer from a map payload by key.
// Anything else reads as zero.
func wantUint32(src any, key string) uint32 {
	m, ok := src.(map[string]any)
	if !ok {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		if v > 0 {
			return uint32(v)
		}
	case int64:
		if v > 0 {
			return uint32(v)
		}
	case uint:
		return uint32(v)
	case uint32:
		return v
	case uint64:
		return uint32(v)
	case float64:
		if v > 0 {
			return uint32(v)
		}
	}
	return 0
}

func parsePeriodMS(p any) int {
	if m, ok := p.(map[string]any); ok {
		switch v := m["period_ms"].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

package socketio

import (
	"encoding/json"
	"fmt"
)

// Socket.IO payloads arrive JSON-decoded: objects as map[string]any and numbers as
// float64. These helpers read positional event arguments leniently.

func argAt(args []any, i int) any {
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}

func argString(args []any, i int) string {
	s, _ := argAt(args, i).(string)
	return s
}

func argBool(args []any, i int) bool {
	switch v := argAt(args, i).(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "on"
	case float64:
		return v != 0
	}
	return false
}

func argFloat(args []any, i int) float64 {
	switch v := argAt(args, i).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func argMap(args []any, i int) map[string]interface{} {
	m, _ := argAt(args, i).(map[string]interface{})
	return m
}

// decodeArg re-decodes argument i into out.
func decodeArg(args []any, i int, out any) error {
	v := argAt(args, i)
	if v == nil {
		return fmt.Errorf("missing argument %d", i)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode argument %d: %w", i, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode argument %d: %w", i, err)
	}
	return nil
}

func getIntFromMap(m map[string]interface{}, key string, defaultVal int) int {
	if m == nil {
		return defaultVal
	}
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case int64:
		return int(v)
	}
	return defaultVal
}

func getStringFromMap(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

package motion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeRaw decodes a JSON value keeping numbers as json.Number
func decodeRaw(raw json.RawMessage) (any, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// display renders the offending input the way an operator typed it
func display(raw json.RawMessage, v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "None"
	}
	return text
}

// parseInt accepts only integral JSON numbers
func parseInt(raw json.RawMessage) (int, string, bool) {
	v, ok := decodeRaw(raw)
	shown := display(raw, v)
	n, isNum := v.(json.Number)
	if !ok || !isNum {
		return 0, shown, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, shown, false
	}
	return int(i), shown, true
}

// parseFloat accepts any JSON number
func parseFloat(raw json.RawMessage) (float64, string, bool) {
	v, ok := decodeRaw(raw)
	shown := display(raw, v)
	n, isNum := v.(json.Number)
	if !ok || !isNum {
		return 0, shown, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, shown, false
	}
	return f, shown, true
}

func parseString(raw json.RawMessage) (string, bool) {
	v, ok := decodeRaw(raw)
	s, isStr := v.(string)
	return s, ok && isStr
}

func parseBool(raw json.RawMessage) (bool, bool) {
	v, ok := decodeRaw(raw)
	b, isBool := v.(bool)
	return b, ok && isBool
}

// formatValue renders a parameter value for the operator. Whole floats keep
// a trailing ".0" so seconds read as seconds.
func formatValue(v any) string {
	switch t := v.(type) {
	case float64:
		s := fmt.Sprint(t)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case bool:
		if t {
			return "True"
		}
		return "False"
	}
	return fmt.Sprint(v)
}

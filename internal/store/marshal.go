package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PropertyType tags the scalar kind of a property value.
// The numeric values are persisted and must not change.
type PropertyType int

const (
	PropertyText    PropertyType = 0
	PropertyInteger PropertyType = 1
	PropertyReal    PropertyType = 2
)

// String returns the lower-case type name.
func (t PropertyType) String() string {
	switch t {
	case PropertyText:
		return "text"
	case PropertyInteger:
		return "integer"
	case PropertyReal:
		return "real"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// marshalPropertyValue converts a Go scalar to the JSON TEXT stored in the
// value column, checking it against the declared type.
func marshalPropertyValue(typ PropertyType, value any) (string, error) {
	switch typ {
	case PropertyText:
		if _, ok := value.(string); !ok {
			return "", fmt.Errorf("marshal property: text value must be string, got %T", value)
		}
	case PropertyInteger:
		switch v := value.(type) {
		case int:
			value = int64(v)
		case int64:
		default:
			return "", fmt.Errorf("marshal property: integer value must be int64, got %T", value)
		}
	case PropertyReal:
		switch v := value.(type) {
		case float64:
		case float32:
			value = float64(v)
		default:
			return "", fmt.Errorf("marshal property: real value must be float64, got %T", value)
		}
	default:
		return "", fmt.Errorf("marshal property: unknown type %d", int(typ))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", fmt.Errorf("marshal property: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalPropertyValue parses stored JSON TEXT according to typ.
// Integers are decoded via json.Number to avoid float64 precision loss.
func unmarshalPropertyValue(typ PropertyType, data string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal property: %w", err)
	}

	switch typ {
	case PropertyText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("unmarshal property: text value is %T", raw)
		}
		return s, nil
	case PropertyInteger:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("unmarshal property: integer value is %T", raw)
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("unmarshal property: %w", err)
		}
		return i, nil
	case PropertyReal:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("unmarshal property: real value is %T", raw)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("unmarshal property: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unmarshal property: unknown type %d", int(typ))
	}
}

package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one key of an ordered JSON object.
// Value is a string, Fields, []Fields or json.RawMessage.
type Field struct {
	Key   string
	Value any
}

// Fields is a JSON object whose keys are written in slice order.
type Fields []Field

// Get returns the value stored under key.
func (f Fields) Get(key string) (any, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return nil, false
}

// GetString returns the string stored under key, or empty.
func (f Fields) GetString(key string) string {
	value, ok := f.Get(key)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// Set replaces the value of key in place, or appends it.
func (f Fields) Set(key string, value any) Fields {
	for i := range f {
		if f[i].Key == key {
			f[i].Value = value
			return f
		}
	}
	return append(f, Field{Key: key, Value: value})
}

// SetIf appends key only when value is not empty.
func (f Fields) SetIf(key, value string) Fields {
	if value == "" {
		return f
	}
	return f.Set(key, value)
}

// Strings flattens a one-level object into a map for form encoding.
func (f Fields) Strings() (map[string]string, error) {
	flat := make(map[string]string, len(f))
	for _, field := range f {
		s, ok := field.Value.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: nested value in flat form", field.Key)
		}
		flat[field.Key] = s
	}
	return flat, nil
}

// MarshalCanonical writes v as compact JSON with keys in insertion order.
// HTML characters, '/' and non-ASCII text are written as is.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case string:
		return writeString(buf, value)
	case json.RawMessage:
		if !json.Valid(value) {
			return fmt.Errorf("raw value is not valid JSON")
		}
		buf.Write(value)
	case Fields:
		buf.WriteByte('{')
		for i, field := range value {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, field.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, field.Value); err != nil {
				return fmt.Errorf("%s: %w", field.Key, err)
			}
		}
		buf.WriteByte('}')
	case []Fields:
		buf.WriteByte('[')
		for i, item := range value {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var out bytes.Buffer
	encoder := json.NewEncoder(&out)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(out.Bytes(), []byte("\n")))
	return nil
}

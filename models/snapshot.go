package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// ValueKind identifies the JSON type held by a Value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a single typed field value inside a Snapshot
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// Null returns the null value
func Null() Value { return Value{Kind: KindNull} }

// String returns a string value
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number returns a numeric value
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Int returns a numeric value from an integer
func Int(n int64) Value { return Value{Kind: KindNumber, Num: float64(n)} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Equal compares two values strictly: kinds must match and so must the payload
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	default:
		return true
	}
}

// Int64 returns the value as an integer id when it holds a whole number
// or a numeric string
func (v Value) Int64() (int64, bool) {
	switch v.Kind {
	case KindNumber:
		if v.Num != float64(int64(v.Num)) {
			return 0, false
		}
		return int64(v.Num), true
	case KindString:
		n, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Display formats the value for human readers. Null renders as an empty string.
func (v Value) Display() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as its plain JSON form
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return []byte(strconv.FormatFloat(v.Num, 'f', -1, 64)), nil
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// Field is one name/value pair of a Snapshot
type Field struct {
	Name  string `json:"field"`
	Value Value  `json:"value"`
}

// Snapshot is an ordered set of field values for one record, captured
// before or after a mutation. Field order is preserved through JSON round trips.
type Snapshot struct {
	fields []Field
	index  map[string]int
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{index: make(map[string]int)}
}

// Set adds a field or replaces the value of an existing one, keeping its position
func (s *Snapshot) Set(name string, v Value) *Snapshot {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.fields[i].Value = v
		return s
	}
	s.index[name] = len(s.fields)
	s.fields = append(s.fields, Field{Name: name, Value: v})
	return s
}

// Get returns the value for name and whether the field is present
func (s *Snapshot) Get(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Value{}, false
	}
	return s.fields[i].Value, true
}

// Fields returns the fields in insertion order
func (s *Snapshot) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// MarshalJSON encodes the snapshot as a JSON object in field order
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object, keeping key order. Nested
// objects and arrays are kept as their compact JSON text.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	*s = Snapshot{index: make(map[string]int)}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("snapshot must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read snapshot key: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected snapshot key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to read value of %q: %w", name, err)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("invalid value of %q: %w", name, err)
		}
		s.Set(name, v)
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	return nil
}

// ParseSnapshot decodes a JSON object into a Snapshot. Empty input or
// the literal null yields a nil snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	s := NewSnapshot()
	if err := s.UnmarshalJSON(trimmed); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Null(), nil
	}

	switch trimmed[0] {
	case 'n':
		return Null(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return Value{}, err
		}
		return String(str), nil
	case '{', '[':
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return Value{}, err
		}
		return String(compact.String()), nil
	default:
		n, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return Value{}, err
		}
		return Number(n), nil
	}
}

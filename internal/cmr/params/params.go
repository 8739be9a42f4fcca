// Package params models catalog request parameters as an ordered JSON object.
package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

// Value is a JSON value. Numbers keep their literal text.
type Value struct {
	kind Kind
	str  string
	b    bool
	arr  []Value
	obj  *Set
}

func Null() Value { return Value{kind: KindNull} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(n int) Value { return Value{kind: KindNumber, str: strconv.Itoa(n)} }
func Number(lit string) Value { return Value{kind: KindNumber, str: lit} }
func Array(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }
func Object(s *Set) Value { return Value{kind: KindObject, obj: s} }
func Strings(ss []string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = String(s)
	}
	return Array(vs...)
}

func (v Value) Kind() Kind { return v.kind }

// Text returns the scalar text of v as it appears in a query string.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindNumber:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Items() []Value { return v.arr }

func (v Value) Object() *Set { return v.obj }

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, it := range v.arr {
			out[i] = it.Clone()
		}
		return Value{kind: KindArray, arr: out}
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	default:
		return v
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.str), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, it := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := it.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		return v.obj.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

type Member struct {
	Key   string
	Value Value
}

// Set is a JSON object that remembers member insertion order.
type Set struct {
	members []Member
}

func NewSet() *Set { return &Set{} }

// Parse decodes a JSON object into a Set.
func Parse(b []byte) (*Set, error) {
	s := NewSet()
	if err := json.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}

func (s *Set) Members() []Member {
	if s == nil {
		return nil
	}
	return s.members
}

func (s *Set) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.members))
	for i, m := range s.members {
		out[i] = m.Key
	}
	return out
}

func (s *Set) Get(key string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	for _, m := range s.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Put replaces the value of an existing key in place or appends a new member.
func (s *Set) Put(key string, v Value) *Set {
	for i := range s.members {
		if s.members[i].Key == key {
			s.members[i].Value = v
			return s
		}
	}
	s.members = append(s.members, Member{Key: key, Value: v})
	return s
}

func (s *Set) Delete(key string) {
	for i := range s.members {
		if s.members[i].Key == key {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return
		}
	}
}

func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	out := &Set{members: make([]Member, len(s.members))}
	for i, m := range s.members {
		out.members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
	}
	return out
}

func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range s.Members() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		b, err := m.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", m.Key, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Set) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if v.kind == KindNull {
		*s = Set{}
		return nil
	}
	if v.kind != KindObject {
		return errors.New("params: expected JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("params: trailing data after object")
	}
	*s = *v.obj
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("params: %w", err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewSet()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, fmt.Errorf("params: %w", err)
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("params: object key %v is not a string", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Put(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("params: %w", err)
			}
			return Object(obj), nil
		case '[':
			arr := []Value{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("params: %w", err)
			}
			return Array(arr...), nil
		default:
			return Value{}, fmt.Errorf("params: unexpected delimiter %q", t)
		}
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return Value{}, fmt.Errorf("params: unexpected token %T", tok)
	}
}

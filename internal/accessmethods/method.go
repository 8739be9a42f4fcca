// Package accessmethods decides how data for a collection can be obtained
// and how bulk orders are split.
package accessmethods

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/params"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
)

type Kind string

const (
	KindDownload  Kind = "download"
	KindEchoOrder Kind = "echo_order"
	KindESI       Kind = "esi"
	KindOPeNDAP   Kind = "opendap"
	KindUnknown   Kind = "unknown"
)

// IsOrder reports whether the kind is a provider-side bulk order service.
func (k Kind) IsOrder() bool {
	return k == KindEchoOrder || k == KindESI
}

type Download struct {
	IsValid bool
}

// Order is the payload shared by the order and subsetting services.
type Order struct {
	ID               string
	Type             string
	URL              string
	OptionDefinition state.OptionDefinition
	Form             json.RawMessage
}

// Method is a tagged variant: Kind selects which payload is set. Methods
// decoded from the backing API keep their exact JSON.
type Method struct {
	Kind     Kind
	Download *Download
	Order    *Order

	raw *params.Set
}

func NewDownload(valid bool) Method {
	return Method{Kind: KindDownload, Download: &Download{IsValid: valid}}
}

func (m Method) MarshalJSON() ([]byte, error) {
	if m.raw != nil {
		return m.raw.MarshalJSON()
	}
	switch m.Kind {
	case KindDownload:
		valid := m.Download != nil && m.Download.IsValid
		return json.Marshal(struct {
			IsValid bool   `json:"isValid"`
			Type    string `json:"type"`
		}{valid, "download"})
	case KindEchoOrder, KindESI, KindOPeNDAP:
		o := m.Order
		if o == nil {
			o = &Order{}
		}
		return json.Marshal(struct {
			ID               string                 `json:"id,omitempty"`
			Type             string                 `json:"type,omitempty"`
			URL              string                 `json:"url,omitempty"`
			OptionDefinition state.OptionDefinition `json:"option_definition"`
			Form             json.RawMessage        `json:"form,omitempty"`
		}{o.ID, o.Type, o.URL, o.OptionDefinition, o.Form})
	case KindUnknown:
		return []byte("{}"), nil
	default:
		return nil, fmt.Errorf("marshal access method: unhandled kind %q", m.Kind)
	}
}

// markValid returns a copy of a download method flagged valid.
func (m Method) markValid() Method {
	if m.Kind != KindDownload {
		return m
	}
	out := m
	out.Download = &Download{IsValid: true}
	if m.raw != nil {
		out.raw = m.raw.Clone().Put("isValid", params.Bool(true))
	}
	return out
}

type Named struct {
	Name   string
	Method Method
}

// Methods is keyed by method identifier and keeps the upstream order.
type Methods []Named

func (ms Methods) Get(name string) (Method, bool) {
	for _, n := range ms {
		if n.Name == name {
			return n.Method, true
		}
	}
	return Method{}, false
}

func (ms Methods) Orders() Methods {
	var out Methods
	for _, n := range ms {
		if n.Method.Kind.IsOrder() {
			out = append(out, n)
		}
	}
	return out
}

func (ms Methods) MarshalJSON() ([]byte, error) {
	s := params.NewSet()
	for _, n := range ms {
		b, err := n.Method.MarshalJSON()
		if err != nil {
			return nil, err
		}
		var v params.Value
		if err := v.UnmarshalJSON(b); err != nil {
			return nil, fmt.Errorf("access method %s: %w", n.Name, err)
		}
		s.Put(n.Name, v)
	}
	return s.MarshalJSON()
}

func (ms *Methods) UnmarshalJSON(b []byte) error {
	var s params.Set
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	got, err := Decode(&s)
	if err != nil {
		return err
	}
	*ms = got
	return nil
}

// Decode turns the backing API's accessMethods object into Methods.
func Decode(s *params.Set) (Methods, error) {
	if s == nil {
		return nil, nil
	}
	out := make(Methods, 0, s.Len())
	for _, mem := range s.Members() {
		if mem.Value.Kind() != params.KindObject {
			return nil, fmt.Errorf("access method %q is not an object", mem.Key)
		}
		obj := mem.Value.Object()
		m := Method{Kind: kindOf(mem.Key, text(obj, "type")), raw: obj.Clone()}

		switch m.Kind {
		case KindDownload:
			valid := false
			if v, ok := obj.Get("isValid"); ok {
				valid, _ = v.Bool()
			}
			m.Download = &Download{IsValid: valid}
		case KindEchoOrder, KindESI, KindOPeNDAP:
			o := &Order{
				ID:   text(obj, "id"),
				Type: text(obj, "type"),
				URL:  text(obj, "url"),
			}
			if od, ok := obj.Get("option_definition"); ok && od.Kind() == params.KindObject {
				o.OptionDefinition = state.OptionDefinition{
					ID:   text(od.Object(), "id"),
					Name: text(od.Object(), "name"),
				}
			}
			if f, ok := obj.Get("form"); ok {
				raw, err := f.MarshalJSON()
				if err != nil {
					return nil, fmt.Errorf("access method %q form: %w", mem.Key, err)
				}
				o.Form = raw
			}
			m.Order = o
		case KindUnknown:
		}
		out = append(out, Named{Name: mem.Key, Method: m})
	}
	return out, nil
}

func text(s *params.Set, key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	return v.Text()
}

func kindOf(name, typ string) Kind {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "download":
		return KindDownload
	case "echo orders", "echo_orders", "echo_order":
		return KindEchoOrder
	case "esi":
		return KindESI
	case "opendap":
		return KindOPeNDAP
	}
	n := strings.ToLower(name)
	switch {
	case n == "download":
		return KindDownload
	case strings.HasPrefix(n, "echoorder"), strings.HasPrefix(n, "echo_order"):
		return KindEchoOrder
	case strings.HasPrefix(n, "esi"):
		return KindESI
	case strings.HasPrefix(n, "opendap"):
		return KindOPeNDAP
	}
	return KindUnknown
}

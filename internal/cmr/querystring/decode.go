package querystring

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/params"
)

// ErrIndexOutOfOrder rejects an indexed array element that skips ahead of
// the elements seen so far. Encode never writes gaps, and refusing them keeps
// a short query from allocating an arbitrarily long array.
var ErrIndexOutOfOrder = errors.New("array index out of order")

// Decode parses a query string written in either array style back into a
// parameter set. Scalars come back as strings; top-level key order follows
// first appearance. Indexed elements must appear in ascending order.
func Decode(raw string) (*params.Set, error) {
	root := &node{}
	for pair := range strings.SplitSeq(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("unescape key %q: %w", k, err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("unescape value for %q: %w", key, err)
		}
		name, path, err := splitKey(key)
		if err != nil {
			return nil, err
		}
		if err := root.field(name).insert(path, val); err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
	}
	return root.set(), nil
}

// "a[b][]" -> "a", ["b", ""]
func splitKey(key string) (string, []string, error) {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return key, nil, nil
	}
	name := key[:open]
	rest := key[open:]
	var path []string
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("malformed key %q", key)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, fmt.Errorf("unterminated bracket in key %q", key)
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return name, path, nil
}

type node struct {
	leaf   *string
	order  []string
	fields map[string]*node
	items  []*node
	list   bool
}

func (n *node) field(name string) *node {
	if n.fields == nil {
		n.fields = map[string]*node{}
	}
	c, ok := n.fields[name]
	if !ok {
		c = &node{}
		n.fields[name] = c
		n.order = append(n.order, name)
	}
	return c
}

func (n *node) insert(path []string, val string) error {
	if len(path) == 0 {
		n.leaf = &val
		return nil
	}
	seg := path[0]
	if seg == "" {
		n.list = true
		c := &node{}
		n.items = append(n.items, c)
		return c.insert(path[1:], val)
	}
	if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 && n.fields == nil {
		if idx > len(n.items) {
			return fmt.Errorf("%w: %d after %d elements", ErrIndexOutOfOrder, idx, len(n.items))
		}
		n.list = true
		if idx == len(n.items) {
			n.items = append(n.items, &node{})
		}
		return n.items[idx].insert(path[1:], val)
	}
	return n.field(seg).insert(path[1:], val)
}

func (n *node) set() *params.Set {
	s := params.NewSet()
	for _, k := range n.order {
		s.Put(k, n.fields[k].value())
	}
	return s
}

func (n *node) value() params.Value {
	switch {
	case n.list:
		vs := make([]params.Value, len(n.items))
		for i, it := range n.items {
			vs[i] = it.value()
		}
		return params.Array(vs...)
	case n.fields != nil:
		return params.Object(n.set())
	case n.leaf != nil:
		return params.String(*n.leaf)
	default:
		return params.Null()
	}
}

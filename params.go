package inproc

import (
	"iter"
	"net/url"
	"strings"
)

// Param is one key/value pair from a query string.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered multi-map of query parameters. Pairs keep the order in
// which they appeared on the wire.
type Params []Param

// ParseParams parses a raw query string. Malformed escapes are kept verbatim
// rather than rejected.
func ParseParams(rawQuery string) Params {
	if rawQuery == "" {
		return nil
	}
	var ps Params
	for part := range strings.SplitSeq(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		ps = append(ps, Param{Key: unescapeQuery(key), Value: unescapeQuery(value)})
	}
	return ps
}

func unescapeQuery(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// Get returns the first value for key, or "".
func (ps Params) Get(key string) string {
	for _, p := range ps {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Has reports whether key appears at least once.
func (ps Params) Has(key string) bool {
	for _, p := range ps {
		if p.Key == key {
			return true
		}
	}
	return false
}

// All returns every value for key in wire order.
func (ps Params) All(key string) []string {
	var out []string
	for _, p := range ps {
		if p.Key == key {
			out = append(out, p.Value)
		}
	}
	return out
}

// Pairs iterates the parameters in wire order.
func (ps Params) Pairs() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, p := range ps {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Values converts to url.Values. Order between distinct keys is lost.
func (ps Params) Values() url.Values {
	v := make(url.Values, len(ps))
	for _, p := range ps {
		v[p.Key] = append(v[p.Key], p.Value)
	}
	return v
}

// Len returns the number of pairs.
func (ps Params) Len() int { return len(ps) }

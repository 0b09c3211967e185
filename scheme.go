package inproc

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DefaultScheme is the virtual scheme Config registers when none is set.
const DefaultScheme = "app"

// schemeSet holds the URL schemes the host intercepts.
type schemeSet struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

func newSchemeSet() *schemeSet {
	return &schemeSet{names: make(map[string]struct{})}
}

// RegisterScheme declares a virtual URL scheme (such as "app") whose
// requests the Transport serves. Names are case-insensitive. Registering a
// name twice, an invalid name, or one of the network schemes is a
// *ConfigError, as is registering after Close or once interception started.
func (r *Router) RegisterScheme(name string) error {
	name = strings.ToLower(name)
	if !validScheme(name) {
		return &ConfigError{Op: "register scheme", Detail: fmt.Sprintf("invalid scheme name %q", name)}
	}
	if name == "http" || name == "https" {
		return &ConfigError{Op: "register scheme", Detail: name + " is a network scheme"}
	}
	if r.closed.Load() {
		return &ConfigError{Op: "register scheme", Detail: "router closed"}
	}
	if r.sealed.Load() {
		return &ConfigError{Op: "register scheme", Detail: "interception already active"}
	}

	r.schemes.mu.Lock()
	defer r.schemes.mu.Unlock()
	if _, dup := r.schemes.names[name]; dup {
		return &ConfigError{Op: "register scheme", Detail: "duplicate scheme " + name}
	}
	r.schemes.names[name] = struct{}{}
	return nil
}

// Schemes lists the registered schemes, sorted.
func (r *Router) Schemes() []string {
	r.schemes.mu.RLock()
	defer r.schemes.mu.RUnlock()
	out := make([]string, 0, len(r.schemes.names))
	for name := range r.schemes.names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (s *schemeSet) has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[strings.ToLower(name)]
	return ok
}

func (s *schemeSet) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.names)
}

// validScheme follows RFC 3986: ALPHA *( ALPHA / DIGIT / "+" / "-" / "." ).
func validScheme(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

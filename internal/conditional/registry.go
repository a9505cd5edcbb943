package conditional

import (
	"reflect"
	"sort"
	"sync"
)

// Registry holds the defined condition names and the release flag.
//
// A Registry is shared by every artifact processed in one run and is safe
// for concurrent use. Names are only ever added.
type Registry struct {
	mu      sync.RWMutex
	names   map[string]struct{}
	release bool
}

// NewRegistry creates an empty registry. In release mode nothing is allowed.
func NewRegistry(release bool) *Registry {
	return &Registry{names: make(map[string]struct{}), release: release}
}

// Release reports whether the registry is in release mode.
func (r *Registry) Release() bool {
	return r.release
}

// Define adds names unconditionally.
func (r *Registry) Define(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.names[n] = struct{}{}
	}
}

// DefineStates adds every name whose state is truthy.
// nil, false, zero numbers, "" and "0" are falsy.
func (r *Registry) DefineStates(states map[string]any) {
	var names []string
	for name, state := range states {
		if Truthy(state) {
			names = append(names, name)
		}
	}
	r.Define(names...)
}

// Has reports whether name is defined.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Names returns the defined names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Truthy applies the condition state rules used by DefineStates. Numbers of
// any width are falsy at zero; strings are falsy when empty or "0".
func Truthy(state any) bool {
	switch v := state.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && v != "0"
	}

	rv := reflect.ValueOf(state)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String() != "" && rv.String() != "0"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return !rv.IsZero()
	default:
		return true
	}
}

// scope is the view of one scan: the registry plus names defined by
// directives seen so far in this scan.
type scope struct {
	reg     *Registry
	pending map[string]struct{}
	order   []string
}

func newScope(reg *Registry) *scope {
	return &scope{reg: reg, pending: make(map[string]struct{})}
}

func (s *scope) define(names []string) {
	for _, n := range names {
		if _, ok := s.pending[n]; ok {
			continue
		}
		s.pending[n] = struct{}{}
		s.order = append(s.order, n)
	}
}

func (s *scope) has(name string) bool {
	if _, ok := s.pending[name]; ok {
		return true
	}
	return s.reg.Has(name)
}

// allowed reports whether code guarded by names stays active.
func (s *scope) allowed(names []string) bool {
	if s.reg.Release() {
		return false
	}
	for _, n := range names {
		if !s.has(n) {
			return false
		}
	}
	return true
}

// commit publishes the scan's definitions to the registry.
func (s *scope) commit() []string {
	s.reg.Define(s.order...)
	return s.order
}

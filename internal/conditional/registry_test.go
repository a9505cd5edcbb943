package conditional

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryDefine(t *testing.T) {
	r := NewRegistry(false)
	r.Define("b", "a", "b")

	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("c"))
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.False(t, r.Release())
}

func TestRegistryDefineStates(t *testing.T) {
	r := NewRegistry(false)
	r.DefineStates(map[string]any{
		"a": true,
		"b": "0",
		"c": 1,
		"d": "",
		"e": int64(0),
		"f": "yes",
		"g": nil,
		"h": false,
		"i": 0.5,
	})
	assert.Equal(t, []string{"a", "c", "f", "i"}, r.Names())
}

type flag bool

func TestTruthy(t *testing.T) {
	tests := []struct {
		name  string
		state any
		want  bool
	}{
		{"nil", nil, false},
		{"false string", "false", true}, // only "0" and "" are falsy strings
		{"zero string", "0", false},
		{"empty slice", []string{}, true},
		{"float64 zero", 0.0, false},
		{"float32 zero", float32(0), false},
		{"float32 nonzero", float32(0.25), true},
		{"uint zero", uint(0), false},
		{"uint nonzero", uint(3), true},
		{"int32 zero", int32(0), false},
		{"int8 negative", int8(-1), true},
		{"uint64 zero", uint64(0), false},
		{"named bool", flag(false), false},
		{"named bool true", flag(true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.state))
		})
	}
}

func TestRegistryConcurrentDefine(t *testing.T) {
	r := NewRegistry(false)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Define("shared")
			_ = r.Has("shared")
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"shared"}, r.Names())
}

func TestScopeAllowed(t *testing.T) {
	r := NewRegistry(false)
	r.Define("a")
	s := newScope(r)

	assert.True(t, s.allowed(nil))
	assert.True(t, s.allowed([]string{"a"}))
	assert.False(t, s.allowed([]string{"a", "b"}))

	s.define([]string{"b"})
	assert.True(t, s.allowed([]string{"a", "b"}))
	assert.False(t, r.Has("b"))

	assert.Equal(t, []string{"b"}, s.commit())
	assert.True(t, r.Has("b"))
}

func TestScopeReleaseDisallowsEverything(t *testing.T) {
	r := NewRegistry(true)
	r.Define("a")
	s := newScope(r)
	assert.False(t, s.allowed(nil))
	assert.False(t, s.allowed([]string{"a"}))
}

package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilter(t *testing.T) {
	f, err := NewFilter([]string{"src/**/*.js"}, []string{"src/vendor/**"})
	require.NoError(t, err)

	tests := []struct {
		id   string
		want bool
	}{
		{"src/app.js", true},
		{"./src/deep/nested/app.js", true},
		{"src/vendor/lib.js", false},
		{"src/app.ts", false},
		{"lib/app.js", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f(tt.id), tt.id)
	}
}

func TestNewFilterExcludeOnly(t *testing.T) {
	f, err := NewFilter(nil, []string{"**/*.min.js"})
	require.NoError(t, err)
	assert.True(t, f("src/app.js"))
	assert.False(t, f("dist/app.min.js"))
}

func TestNewFilterNone(t *testing.T) {
	f, err := NewFilter(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestNewFilterInvalidGlob(t *testing.T) {
	_, err := NewFilter([]string{"src/[a"}, nil)
	assert.Error(t, err)
}

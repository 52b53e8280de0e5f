package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectHashFromPath(t *testing.T) {
	hash := strings.Repeat("ab", 32)

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "hash component taken verbatim",
			path:     "/home/u/.gemini-tmp/" + hash + "/chats/s.json",
			expected: hash,
		},
		{
			name:     "uppercase hex accepted",
			path:     "/data/" + strings.ToUpper(hash) + "/logs.json",
			expected: strings.ToUpper(hash),
		},
		{
			name:     "no hash component falls back to parent dir",
			path:     "/home/u/projects/demo/logs.json",
			expected: HashProjectDir("/home/u/projects/demo"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProjectHashFromPath(tt.path))
		})
	}
}

func TestHashProjectDirStable(t *testing.T) {
	a := HashProjectDir("/home/u/projects/demo")
	b := HashProjectDir("/home/u/projects/demo")
	c := HashProjectDir("/home/u/projects/other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestIsHexHash(t *testing.T) {
	assert.True(t, isHexHash(strings.Repeat("0", 64)))
	assert.True(t, isHexHash(strings.Repeat("F", 64)))
	assert.False(t, isHexHash(strings.Repeat("0", 63)))
	assert.False(t, isHexHash(strings.Repeat("g", 64)))
	assert.False(t, isHexHash(""))
}

package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{
			name:     "zero",
			input:    0,
			expected: "0",
		},
		{
			name:     "hundreds",
			input:    999,
			expected: "999",
		},
		{
			name:     "thousands",
			input:    1234,
			expected: "1,234",
		},
		{
			name:     "millions",
			input:    1234567,
			expected: "1,234,567",
		},
		{
			name:     "negative",
			input:    -1234,
			expected: "-1,234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatNumber(tt.input))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Duration
		expected string
	}{
		{
			name:     "minutes only",
			input:    45 * time.Minute,
			expected: "45m",
		},
		{
			name:     "hours and minutes",
			input:    90 * time.Minute,
			expected: "1h 30m",
		},
		{
			name:     "zero",
			input:    0,
			expected: "0m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "fits",
			input:    "hello",
			width:    10,
			expected: "hello",
		},
		{
			name:     "truncated with ellipsis",
			input:    "hello world",
			width:    8,
			expected: "hello...",
		},
		{
			name:     "newlines collapsed",
			input:    "line one\nline two",
			width:    40,
			expected: "line one line two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.width))
		})
	}
}

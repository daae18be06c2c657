package hex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "prefixed short value",
			input:    "0x1",
			expected: strings.Repeat("0", 63) + "1",
		},
		{
			name:     "already canonical",
			input:    strings.Repeat("0", 62) + "ff",
			expected: strings.Repeat("0", 62) + "ff",
		},
		{
			name:     "prefixed full width",
			input:    "0x" + strings.Repeat("a", 64),
			expected: strings.Repeat("a", 64),
		},
		{
			name:     "empty",
			input:    "",
			expected: strings.Repeat("0", 64),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := NormalizeWord(tt.input)
			assert.Len(t, res, WordLength)
			assert.Equal(t, tt.expected, res)
		})
	}
}

func TestDecodeSignedBig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{name: "positive", input: "0x5208", expected: 21000},
		{name: "negative single byte", input: "0xfb", expected: -5},
		{name: "negative word", input: "0xffffffffffffc568", expected: -15000},
		{name: "zero", input: "0x0", expected: 0},
		{name: "empty", input: "", expected: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, DecodeSignedBig(tt.input).Int64())
		})
	}
}

func TestDecodeHexOddLength(t *testing.T) {
	t.Parallel()

	buf, err := DecodeHex("0x123")
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x1, 0x23}, buf)
}

package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbracle/ethgo"
)

func precompileAddr(last byte) ethgo.Address {
	return ethgo.Address{19: last}
}

func TestIsPrecompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		addr     ethgo.Address
		expected bool
	}{
		{name: "ecrecover", addr: precompileAddr(0x01), expected: true},
		{name: "blake2f", addr: precompileAddr(0x09), expected: true},
		{name: "unassigned 0x0a", addr: precompileAddr(0x0a), expected: false},
		{name: "unassigned 0x0f", addr: precompileAddr(0x0f), expected: false},
		{name: "extended range start", addr: precompileAddr(0x10), expected: true},
		{name: "extended range end", addr: precompileAddr(0x18), expected: true},
		{name: "past the range", addr: precompileAddr(0x19), expected: false},
		{name: "zero address", addr: ethgo.Address{}, expected: false},
		{name: "non-zero prefix", addr: ethgo.Address{0x01, 19: 0x01}, expected: false},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, test.expected, IsPrecompile(test.addr))
		})
	}
}

func TestFilterPrecompiled(t *testing.T) {
	t.Parallel()

	subcalls := []*Subcall{
		{To: testAddrB, Op: "CALL"},
		{To: precompileAddr(0x01), Op: "STATICCALL"},
		{To: precompileAddr(0x0b), Op: "STATICCALL"},
		{To: precompileAddr(0x18), Op: "CALL"},
	}

	filtered := FilterPrecompiled(subcalls)
	require.Len(t, filtered, 2)
	assert.Equal(t, testAddrB, filtered[0].To)
	assert.Equal(t, precompileAddr(0x0b), filtered[1].To)
}

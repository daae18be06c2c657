package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/txtrace/registry"
	"github.com/umbracle/ethgo"
)

func strVal(t *testing.T, s *string) string {
	t.Helper()
	require.NotNil(t, s)

	return *s
}

func TestResolveRevertErrorString(t *testing.T) {
	t.Parallel()

	payload := encodeTypedError(t, errorSelector, stringType, "insufficient balance")

	steps := []*Step{
		{Pc: 0, Op: "PUSH1", Depth: 0},
		{
			Pc: 8, Op: "REVERT", Depth: 0,
			// bottom first: length, offset
			Stack:  []string{word(uint64(len(payload))), word(0)},
			Memory: payload,
		},
	}

	info := ResolveRevert(steps, &stubRegistry{}, false)
	assert.Equal(t, "insufficient balance", strVal(t, info.Msg))
	assert.Equal(t, "", strVal(t, info.Dev))
}

func TestResolveRevertNoReason(t *testing.T) {
	t.Parallel()

	steps := []*Step{
		{Pc: 0, Op: "PUSH1", Depth: 0},
		{Pc: 4, Op: "REVERT", Depth: 0, Stack: []string{word(0), word(0)}},
	}

	info := ResolveRevert(steps, &stubRegistry{}, false)
	assert.Equal(t, "", strVal(t, info.Msg))
	assert.Nil(t, info.Dev)
}

func TestResolveRevertInvalidOpcode(t *testing.T) {
	t.Parallel()

	steps := []*Step{
		{Pc: 0, Op: "PUSH1", Depth: 0},
		{Pc: 4, Op: "INVALID", Depth: 0},
	}

	info := ResolveRevert(steps, &stubRegistry{}, false)
	assert.Equal(t, "invalid opcode", strVal(t, info.Msg))
	assert.Nil(t, info.Dev)
}

func TestResolveRevertRegistryDev(t *testing.T) {
	t.Parallel()

	reg := &stubRegistry{dev: map[uint64]string{
		7: "dev: bad input",
	}}

	steps := []*Step{
		{Pc: 0, Op: "PUSH1", Depth: 0},
		{Pc: 7, Op: "REVERT", Depth: 0, Stack: []string{word(0), word(0)}},
	}

	info := ResolveRevert(steps, reg, false)
	assert.Equal(t, "dev: bad input", strVal(t, info.Msg))
	assert.Equal(t, "dev: bad input", strVal(t, info.Dev))
}

func TestResolveRevertSourceComment(t *testing.T) {
	t.Parallel()

	contract := testContract(t, "Token", "function burn(uint256 v)")
	contract.SourcePaths = map[string]string{"0": "contracts/Token.sol"}
	contract.Sources = map[string]string{
		"contracts/Token.sol": strings.Repeat(" ", 25) + "// dev: should never happen\nrest of file",
	}
	contract.PcMap = map[uint64]*registry.PCEntry{
		12: {Op: "REVERT", Path: "0", Offset: [2]int{10, 25}},
	}

	reg := &stubRegistry{contracts: map[ethgo.Address]*registry.Contract{
		testAddrA: contract,
	}}

	steps := []*Step{
		{Pc: 0, Op: "PUSH1", Depth: 0, Address: testAddrA},
		{
			Pc: 12, Op: "REVERT", Depth: 0, Address: testAddrA,
			Stack:  []string{word(0), word(0)},
			Source: &SourceLoc{Filename: "contracts/Token.sol", Offset: [2]int{10, 25}},
		},
	}

	info := ResolveRevert(steps, reg, false)
	assert.Equal(t, "dev: should never happen", strVal(t, info.Msg))
	assert.Equal(t, "dev: should never happen", strVal(t, info.Dev))
}

func TestResolveRevertFirstRevertRewind(t *testing.T) {
	t.Parallel()

	contract := testContract(t, "Token", "function burn(uint256 v)")
	contract.PcMap = map[uint64]*registry.PCEntry{
		40:  {Op: "REVERT", Path: "0", Dev: "dev: rewound"},
		100: {Op: "REVERT", Path: "0", FirstRevert: true},
	}

	reg := &stubRegistry{contracts: map[ethgo.Address]*registry.Contract{
		testAddrA: contract,
	}}

	// the shared selector revert at pc 100 executed four steps after the
	// revert that routed there
	steps := []*Step{
		{Pc: 40, Op: "REVERT", Depth: 0, Address: testAddrA, Stack: []string{word(0), word(0)}},
		{Pc: 41, Op: "PUSH1", Depth: 0, Address: testAddrA},
		{Pc: 43, Op: "PUSH1", Depth: 0, Address: testAddrA},
		{Pc: 45, Op: "JUMP", Depth: 0, Address: testAddrA},
		{Pc: 100, Op: "REVERT", Depth: 0, Address: testAddrA, Stack: []string{word(0), word(0)}},
	}

	info := ResolveRevert(steps, reg, false)
	assert.Equal(t, "dev: rewound", strVal(t, info.Msg))
	assert.Equal(t, "dev: rewound", strVal(t, info.Dev))
}

func TestResolveRevertOptimizerRewind(t *testing.T) {
	t.Parallel()

	contract := testContract(t, "Token", "function burn(uint256 v)")
	contract.PcMap = map[uint64]*registry.PCEntry{
		10: {Op: "PUSH1", Path: "0", Dev: "dev: optimized"},
		30: {Op: "REVERT", Path: "0", OptimizerRevert: true},
	}

	reg := &stubRegistry{contracts: map[ethgo.Address]*registry.Contract{
		testAddrA: contract,
	}}

	entrySource := &SourceLoc{Filename: "contracts/Token.sol", Offset: [2]int{0, 5}}
	sharedSource := &SourceLoc{Filename: "contracts/Token.sol", Offset: [2]int{50, 60}}

	steps := []*Step{
		{Pc: 10, Op: "PUSH1", Depth: 0, Address: testAddrA, Source: entrySource},
		{Pc: 20, Op: "JUMPDEST", Depth: 0, Address: testAddrA, Source: sharedSource},
		{
			Pc: 30, Op: "REVERT", Depth: 0, Address: testAddrA,
			Stack:  []string{word(0), word(0)},
			Source: sharedSource,
		},
	}

	info := ResolveRevert(steps, reg, false)
	assert.Equal(t, "dev: optimized", strVal(t, info.Msg))
	assert.Equal(t, "dev: optimized", strVal(t, info.Dev))
}

func TestResolveRevertDeploy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		steps       []*Step
		expectedMsg string
	}{
		{
			name: "runtime code over size limit",
			steps: []*Step{
				{
					Pc: 0, Op: "CODECOPY", Depth: 0,
					// bottom first: length, offset, destOffset
					Stack: []string{word(30000), word(0), word(0)},
				},
				{Pc: 2, Op: "REVERT", Depth: 0, Stack: []string{word(0), word(0)}},
			},
			expectedMsg: "exceeds EIP-170 size limit",
		},
		{
			name: "constructor revert without reason",
			steps: []*Step{
				{Pc: 0, Op: "PUSH1", Depth: 0},
				{Pc: 4, Op: "REVERT", Depth: 0, Stack: []string{word(0), word(0)}},
			},
			expectedMsg: "",
		},
		{
			name: "constructor assertion failure",
			steps: []*Step{
				{Pc: 0, Op: "PUSH1", Depth: 0},
				{Pc: 4, Op: "INVALID", Depth: 0},
			},
			expectedMsg: "invalid opcode",
		},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			info := ResolveRevert(test.steps, &stubRegistry{}, true)
			assert.Equal(t, test.expectedMsg, strVal(t, info.Msg))
			assert.Equal(t, "", strVal(t, info.Dev))
		})
	}
}

package trace

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/txtrace/registry"
	"github.com/umbracle/ethgo"
)

func init() {
	// escape sequences would make the substring assertions below depend on
	// the terminal the tests run in
	color.NoColor = true
}

func TestRenderCallTree(t *testing.T) {
	contractA := testContract(t, "Caller", "function run()")
	contractB := testContract(t, "Target", "function ping()")

	reg := &stubRegistry{contracts: map[ethgo.Address]*registry.Contract{
		testAddrA: contractA,
		testAddrB: contractB,
	}}

	pingSelector := contractB.Abi.Methods["ping"].ID()

	callMemory := make([]byte, 32)
	copy(callMemory, pingSelector)

	steps := []*Step{
		{Pc: 0, Op: "PUSH1", Depth: 0, Gas: 50000, GasCost: 3},
		{
			Pc: 2, Op: "CALL", Depth: 0, Gas: 49000, GasCost: 700,
			Stack: []string{
				word(0), word(0), word(4), word(0), word(0),
				addrWord(testAddrB), word(40000),
			},
			Memory: callMemory,
		},
		{Pc: 0, Op: "PUSH1", Depth: 1, Gas: 40000, GasCost: 3},
		{Pc: 5, Op: "STOP", Depth: 1, Gas: 39000, GasCost: 0},
		{Pc: 3, Op: "STOP", Depth: 0, Gas: 38000, GasCost: 0},
	}

	res, err := Expand(Input{
		Steps:    steps,
		Receiver: testAddrA,
		Calldata: contractA.Abi.Methods["run"].ID(),
		GasUsed:  33000,
	}, reg)
	require.NoError(t, err)

	rendered := RenderCallTree(ethgo.Hash{0x01}, res.Steps, res.Subcalls, res.CallCost, false)

	assert.Contains(t, rendered, "Call trace for")
	assert.Contains(t, rendered, "Initial call cost")
	assert.Contains(t, rendered, "Caller.run")
	assert.Contains(t, rendered, "Target.ping")
	assert.Contains(t, rendered, "[CALL]")
	assert.Contains(t, rendered, "2:4")
}

func TestRenderCallTreeEmpty(t *testing.T) {
	assert.Empty(t, RenderCallTree(ethgo.Hash{}, nil, nil, 0, false))
}

func TestSourceExcerpt(t *testing.T) {
	src := "line one\nline two\nline three\nline four\nline five"

	// "line three" spans offsets 18..28
	excerpt, linenos := sourceExcerpt(src, [2]int{18, 28}, 1)
	assert.Equal(t, [2]int{3, 3}, linenos)
	assert.Contains(t, excerpt, "line two")
	assert.Contains(t, excerpt, "line three")
	assert.Contains(t, excerpt, "line four")
	assert.NotContains(t, excerpt, "line one")
	assert.NotContains(t, excerpt, "line five")

	excerpt, _ = sourceExcerpt(src, [2]int{18, 28}, 0)
	assert.NotContains(t, excerpt, "line two")

	// invalid ranges produce nothing
	excerpt, _ = sourceExcerpt(src, [2]int{30, 20}, 0)
	assert.Empty(t, excerpt)
}

func TestTracebackString(t *testing.T) {
	contract := testContract(t, "Token", "function burn(uint256 v)")
	contract.Sources = map[string]string{
		"contracts/Token.sol": "contract Token {\n  revert here\n}",
	}

	reg := &stubRegistry{contracts: map[ethgo.Address]*registry.Contract{
		testAddrA: contract,
	}}

	steps := []*Step{
		{Pc: 0, Op: "PUSH1", Depth: 0, Address: testAddrA, Fn: "Token.burn"},
		{
			Pc: 4, Op: "REVERT", Depth: 0, Address: testAddrA, Fn: "Token.burn",
			Stack:  []string{word(0), word(0)},
			Source: &SourceLoc{Filename: "contracts/Token.sol", Offset: [2]int{19, 30}},
		},
	}

	out := TracebackString(ethgo.Hash{0x01}, steps, reg)
	assert.Contains(t, out, "Traceback for")
	assert.Contains(t, out, "Token.burn")
	assert.Contains(t, out, "revert here")

	// a trace without a revert site has no traceback
	assert.Empty(t, TracebackString(ethgo.Hash{0x01}, steps[:1], reg))
}

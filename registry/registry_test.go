package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
)

const tokenArtifact = `{
	"contractName": "Token",
	"deployments": ["0x1010101010101010101010101010101010101010"],
	"abi": [
		{
			"type": "function",
			"name": "transfer",
			"inputs": [
				{"name": "to", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	],
	"pcMap": {
		"120": {"op": "REVERT", "path": "0", "offset": [15, 40], "fn": "Token.transfer", "dev": "dev: no balance"}
	},
	"allSourcePaths": {"0": "contracts/Token.sol"},
	"sources": {"contracts/Token.sol": "contract Token {}"},
	"language": "Solidity",
	"coverage": true,
	"devRevert": {"120": "dev: no balance"}
}`

func TestLoadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Token.json"), []byte(tokenArtifact), 0o644))
	// non-artifact files are skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("build output"), 0o644))

	reg, err := LoadDir(dir)
	require.NoError(t, err)

	contract, err := reg.GetContract(ethgo.HexToAddress("0x1010101010101010101010101010101010101010"))
	require.NoError(t, err)
	require.NotNil(t, contract)

	assert.Equal(t, "Token", contract.Name)
	assert.Equal(t, LanguageSolidity, contract.Language)
	assert.True(t, contract.Coverage)
	assert.Equal(t, "contracts/Token.sol", contract.SourcePaths["0"])

	entry := contract.PcMap[120]
	require.NotNil(t, entry)
	assert.Equal(t, "dev: no balance", entry.Dev)
	assert.Equal(t, [2]int{15, 40}, entry.Offset)

	dev, ok := reg.DevRevert(120)
	require.True(t, ok)
	assert.Equal(t, "dev: no balance", dev)

	// unknown addresses resolve to nil without error
	unknown, err := reg.GetContract(ethgo.Address{0xff})
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestLoadDirMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestMethodBySelector(t *testing.T) {
	t.Parallel()

	contractAbi, err := abi.NewABIFromList([]string{
		"function transfer(address to, uint256 amount) returns (bool)",
		"function balanceOf(address owner) returns (uint256)",
	})
	require.NoError(t, err)

	contract := &Contract{Name: "Token", Abi: contractAbi}

	transfer := contractAbi.Methods["transfer"]

	method := contract.MethodBySelector(transfer.ID())
	require.NotNil(t, method)
	assert.Equal(t, "transfer", method.Name)

	assert.Equal(t, "Token.transfer", contract.FullMethodName(transfer.ID()))

	// unresolvable selectors fall back to the bare contract name
	assert.Equal(t, "Token", contract.FullMethodName([]byte{0xde, 0xad, 0xbe, 0xef}))
	assert.Nil(t, contract.MethodBySelector(nil))
}

func TestMethodBySelectorConcurrent(t *testing.T) {
	t.Parallel()

	contractAbi, err := abi.NewABIFromList([]string{
		"function transfer(address to, uint256 amount) returns (bool)",
		"function balanceOf(address owner) returns (uint256)",
		"function approve(address spender, uint256 amount) returns (bool)",
	})
	require.NoError(t, err)

	contract := &Contract{Name: "Token", Abi: contractAbi}

	selectors := [][]byte{
		contractAbi.Methods["transfer"].ID(),
		contractAbi.Methods["balanceOf"].ID(),
		contractAbi.Methods["approve"].ID(),
	}

	// a single contract is resolved from multiple watcher goroutines at once
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				selector := selectors[(n+j)%len(selectors)]

				method := contract.MethodBySelector(selector)
				assert.NotNil(t, method)
			}
		}(i)
	}

	wg.Wait()
}

func TestCommentMarker(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "//", CommentMarker(LanguageSolidity))
	assert.Equal(t, "#", CommentMarker(LanguageVyper))
	assert.Equal(t, "//", CommentMarker(""))
}

func TestCachedRegistry(t *testing.T) {
	t.Parallel()

	inner := &countingRegistry{inner: NewMapRegistry()}

	addr := ethgo.Address{0x01}
	inner.inner.Register(addr, &Contract{Name: "Token"})

	cached, err := NewCached(inner, 16)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		contract, err := cached.GetContract(addr)
		require.NoError(t, err)
		require.NotNil(t, contract)
		assert.Equal(t, "Token", contract.Name)
	}

	assert.Equal(t, 1, inner.lookups)

	// negative results are cached too
	for i := 0; i < 3; i++ {
		contract, err := cached.GetContract(ethgo.Address{0x02})
		require.NoError(t, err)
		assert.Nil(t, contract)
	}

	assert.Equal(t, 2, inner.lookups)

	cached.Purge()

	_, err = cached.GetContract(addr)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.lookups)
}

type countingRegistry struct {
	inner   *MapRegistry
	lookups int
}

func (c *countingRegistry) GetContract(addr ethgo.Address) (*Contract, error) {
	c.lookups++

	return c.inner.GetContract(addr)
}

func (c *countingRegistry) DevRevert(pc uint64) (string, bool) {
	return c.inner.DevRevert(pc)
}

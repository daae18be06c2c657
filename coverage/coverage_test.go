package coverage

import (
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbracle/ethgo"
)

func sampleMap() Map {
	m := NewMap()
	m.AddStatement("Token", "0", 1)
	m.AddStatement("Token", "0", 3)
	m.AddBranch("Token", "0", 7, true)
	m.AddBranch("Token", "1", 7, false)

	return m
}

func TestMapRoundTrip(t *testing.T) {
	t.Parallel()

	m := sampleMap()

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	decoded := NewMap()
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, m, decoded)
	assert.True(t, decoded["Token"]["0"].Statements.Has(3))
	assert.True(t, decoded["Token"]["0"].TrueBranches.Has(7))
	assert.True(t, decoded["Token"]["1"].FalseBranches.Has(7))
}

func TestMapMerge(t *testing.T) {
	t.Parallel()

	m := sampleMap()

	other := NewMap()
	other.AddStatement("Token", "0", 9)
	other.AddStatement("Vault", "0", 1)
	other.AddBranch("Token", "0", 7, false)

	m.Merge(other)

	assert.True(t, m["Token"]["0"].Statements.Has(1))
	assert.True(t, m["Token"]["0"].Statements.Has(9))
	assert.True(t, m["Token"]["0"].TrueBranches.Has(7))
	assert.True(t, m["Token"]["0"].FalseBranches.Has(7))
	assert.True(t, m["Vault"]["0"].Statements.Has(1))
}

func TestMapCompact(t *testing.T) {
	t.Parallel()

	m := NewMap()
	m.Ensure("Empty")
	m.AddStatement("Token", "0", 1)

	compacted := m.Compact()

	assert.Contains(t, compacted, "Token")
	assert.NotContains(t, compacted, "Empty")
}

func TestHashStable(t *testing.T) {
	t.Parallel()

	receiver := ethgo.Address{0x02}

	in := HashInput{
		Nonce:       3,
		BlockNumber: 10,
		Sender:      ethgo.Address{0x01},
		Receiver:    &receiver,
		Value:       big.NewInt(100),
		Input:       []byte{0xde, 0xad},
		Status:      1,
		GasUsed:     21000,
		TxIndex:     2,
	}

	first := Hash(in)
	assert.Equal(t, first, Hash(in))
	assert.Len(t, first, 40)

	// any field change produces a different key
	in.GasUsed++
	assert.NotEqual(t, first, Hash(in))

	// deployments hash with no receiver
	in.Receiver = nil
	assert.NotEqual(t, first, Hash(in))
}

func TestMemStore(t *testing.T) {
	t.Parallel()

	store := NewMemStore()

	assert.False(t, store.Has("a"))
	require.NoError(t, store.Add("a", sampleMap()))
	assert.True(t, store.Has("a"))

	m, ok := store.Get("a")
	require.True(t, ok)
	assert.True(t, m["Token"]["0"].Statements.Has(1))

	require.NoError(t, store.Add("b", sampleMap()))

	merged := store.Merged()
	assert.True(t, merged["Token"]["0"].Statements.Has(1))

	require.NoError(t, store.Flush())
	require.NoError(t, store.Close())
}

func TestBoltStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "coverage.db")

	store, err := NewBoltStore(path, hclog.NewNullLogger())
	require.NoError(t, err)

	require.NoError(t, store.Add("a", sampleMap()))
	assert.True(t, store.Has("a"))
	assert.False(t, store.Has("b"))

	// Close flushes pending entries
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(path, hclog.NewNullLogger())
	require.NoError(t, err)

	defer func() {
		assert.NoError(t, reopened.Close())
	}()

	assert.True(t, reopened.Has("a"))

	m, ok, err := reopened.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleMap(), m)

	// adding a known hash again is a no-op
	require.NoError(t, reopened.Add("a", NewMap()))
	require.NoError(t, reopened.Flush())

	m, ok, err = reopened.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, m["Token"]["0"].Statements.Has(1))
}

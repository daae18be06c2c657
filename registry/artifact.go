package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
)

// Artifact is the on-disk build record of one deployed contract, produced by
// the compilation pipeline. The pcMap keys are program counters of the
// deployed bytecode.
type Artifact struct {
	ContractName   string              `json:"contractName"`
	Deployments    []string            `json:"deployments"`
	Abi            json.RawMessage     `json:"abi"`
	PcMap          map[string]*PCEntry `json:"pcMap"`
	AllSourcePaths map[string]string   `json:"allSourcePaths"`
	Sources        map[string]string   `json:"sources"`
	Language       string              `json:"language"`
	Coverage       bool                `json:"coverage"`
	DevRevert      map[string]string   `json:"devRevert"`
}

// MapRegistry is an in-memory Registry backed by explicit registration.
// It is safe for concurrent use.
type MapRegistry struct {
	lock      sync.RWMutex
	contracts map[ethgo.Address]*Contract
	devRevert map[uint64]string
}

func NewMapRegistry() *MapRegistry {
	return &MapRegistry{
		contracts: make(map[ethgo.Address]*Contract),
		devRevert: make(map[uint64]string),
	}
}

func (m *MapRegistry) Register(addr ethgo.Address, contract *Contract) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.contracts[addr] = contract
}

func (m *MapRegistry) AddDevRevert(pc uint64, msg string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.devRevert[pc] = msg
}

func (m *MapRegistry) GetContract(addr ethgo.Address) (*Contract, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.contracts[addr], nil
}

func (m *MapRegistry) DevRevert(pc uint64) (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	msg, ok := m.devRevert[pc]

	return msg, ok
}

// LoadDir builds a MapRegistry from a directory of artifact JSON files
func LoadDir(dir string) (*MapRegistry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	registry := NewMapRegistry()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact %s: %w", entry.Name(), err)
		}

		var artifact Artifact
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return nil, fmt.Errorf("failed to parse artifact %s: %w", entry.Name(), err)
		}

		if err := registry.AddArtifact(&artifact); err != nil {
			return nil, fmt.Errorf("invalid artifact %s: %w", entry.Name(), err)
		}
	}

	return registry, nil
}

// AddArtifact registers every deployment of a build artifact
func (m *MapRegistry) AddArtifact(artifact *Artifact) error {
	contract, err := artifact.toContract()
	if err != nil {
		return err
	}

	for _, deployment := range artifact.Deployments {
		m.Register(ethgo.HexToAddress(deployment), contract)
	}

	for key, msg := range artifact.DevRevert {
		pc, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return fmt.Errorf("bad devRevert key %q: %w", key, err)
		}

		m.AddDevRevert(pc, msg)
	}

	return nil
}

func (a *Artifact) toContract() (*Contract, error) {
	contract := &Contract{
		Name:        a.ContractName,
		SourcePaths: a.AllSourcePaths,
		Sources:     a.Sources,
		Language:    a.Language,
		Coverage:    a.Coverage,
	}

	if len(a.Abi) > 0 {
		parsed, err := abi.NewABI(string(a.Abi))
		if err != nil {
			return nil, fmt.Errorf("bad abi: %w", err)
		}

		contract.Abi = parsed
	}

	if len(a.PcMap) > 0 {
		contract.PcMap = make(map[uint64]*PCEntry, len(a.PcMap))

		for key, entry := range a.PcMap {
			pc, err := strconv.ParseUint(key, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad pcMap key %q: %w", key, err)
			}

			contract.PcMap[pc] = entry
		}
	}

	return contract, nil
}

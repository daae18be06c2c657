package registry

import (
	"sync"

	"github.com/0xPolygon/txtrace/helper/hex"
	"github.com/umbracle/ethgo/abi"
)

// PCEntry is the source-map record for one program counter of a contract's
// deployed bytecode
type PCEntry struct {
	Op     string `json:"op"`
	Path   string `json:"path,omitempty"`
	Offset [2]int `json:"offset,omitempty"`
	Fn     string `json:"fn,omitempty"`

	// Jump is "i" when the instruction enters an internal function and "o"
	// when it returns from one
	Jump string `json:"jump,omitempty"`

	Statement *int   `json:"statement,omitempty"`
	Branch    *int   `json:"branch,omitempty"`
	Dev       string `json:"dev,omitempty"`

	// compiler-emitted revert patterns that obscure the true revert site
	FirstRevert     bool `json:"first_revert,omitempty"`
	OptimizerRevert bool `json:"optimizer_revert,omitempty"`
}

// HasSource reports whether the entry maps back to a source range
func (e *PCEntry) HasSource() bool {
	return e.Path != ""
}

// Contract is the resolved metadata of one deployed contract
type Contract struct {
	Name string
	Abi  *abi.ABI

	// PcMap maps program counters of the deployed bytecode to source records
	PcMap map[uint64]*PCEntry

	// SourcePaths maps source-map path ids to file names
	SourcePaths map[string]string

	// Sources maps file names to raw source text
	Sources map[string]string

	Language string

	// Coverage marks the contract as eligible for coverage collection
	// (contracts that belong to the local project, not chain dependencies)
	Coverage bool

	// the selector index is built on first use; contracts are shared across
	// concurrent trace expansions
	selectorsOnce sync.Once
	selectors     map[string]*abi.Method
}

// MethodBySelector returns the ABI method matching a 4-byte calldata selector
func (c *Contract) MethodBySelector(selector []byte) *abi.Method {
	if c.Abi == nil || len(selector) < 4 {
		return nil
	}

	c.selectorsOnce.Do(func() {
		c.selectors = make(map[string]*abi.Method, len(c.Abi.Methods))
		for _, method := range c.Abi.Methods {
			c.selectors[hex.EncodeToString(method.ID())] = method
		}
	})

	return c.selectors[hex.EncodeToString(selector[:4])]
}

// FullMethodName returns "Contract.method" for a known selector, or just the
// contract name when the selector cannot be resolved
func (c *Contract) FullMethodName(selector []byte) string {
	if method := c.MethodBySelector(selector); method != nil {
		return c.Name + "." + method.Name
	}

	return c.Name
}

// Source returns the raw source text for a path id from the contract's
// source map
func (c *Contract) Source(pathID string) (string, bool) {
	filename, ok := c.SourcePaths[pathID]
	if !ok {
		return "", false
	}

	src, ok := c.Sources[filename]

	return src, ok
}

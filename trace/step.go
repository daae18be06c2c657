package trace

import (
	"math/big"
	"strings"

	"github.com/0xPolygon/txtrace/helper/hex"
	"github.com/umbracle/ethgo"
)

// SourceLoc points a trace step back at a byte range of a source file
type SourceLoc struct {
	Filename string `json:"filename"`
	Offset   [2]int `json:"offset"`
}

// Step is one executed EVM instruction in client-independent form. The
// normalizer fills the execution fields; the expander adds the context
// fields (executing address, contract, function and jump depth).
type Step struct {
	Pc      uint64
	Op      string
	Depth   int
	Gas     uint64
	GasCost int64

	// Stack entries are canonical words: 64 unprefixed hex characters,
	// bottom first
	Stack []string

	// Memory is the flat memory buffer at this step
	Memory []byte

	// expansion fields
	Address      ethgo.Address
	ContractName string
	Fn           string
	JumpDepth    int
	Source       *SourceLoc
}

var zeroWord = strings.Repeat("0", hex.WordLength)

// peek returns the n-th stack entry counted from the top (0 is the top)
func (s *Step) peek(n int) string {
	if n >= len(s.Stack) {
		return zeroWord
	}

	return s.Stack[len(s.Stack)-1-n]
}

// peekBig decodes the n-th stack entry from the top as an unsigned integer
func (s *Step) peekBig(n int) *big.Int {
	return hex.DecodeHexToBig(s.peek(n))
}

// peekAddr decodes the low 20 bytes of the n-th stack entry as an address
func (s *Step) peekAddr(n int) ethgo.Address {
	word := s.peek(n)

	return ethgo.BytesToAddress(hex.MustDecodeHex(word[len(word)-40:]))
}

// memorySlice returns length bytes of memory starting at offset, padded with
// zero bytes where allocated memory ends before the requested range
func (s *Step) memorySlice(offset, length uint64) []byte {
	data := make([]byte, length)

	if offset < uint64(len(s.Memory)) {
		copy(data, s.Memory[offset:])
	}

	return data
}

// returnData slices the buffer referenced by the two topmost stack entries
// (offset, length), the operand layout of RETURN, REVERT and the LOG family
func (s *Step) returnData() []byte {
	offset := s.peekBig(0).Uint64()
	length := s.peekBig(1).Uint64()

	return s.memorySlice(offset, length)
}

// sameContext reports whether two steps share call depth and jump depth
func sameContext(a, b *Step) bool {
	return a.Depth == b.Depth && a.JumpDepth == b.JumpDepth
}

// Subcall is one external call or create instruction encountered in the
// trace, in execution order
type Subcall struct {
	From ethgo.Address `json:"from"`
	To   ethgo.Address `json:"to"`
	Op   string        `json:"op"`

	// Value is set for value-carrying opcodes (CALL, CALLCODE)
	Value *big.Int `json:"value,omitempty"`

	// Function and Inputs are set when the callee ABI resolved the selector;
	// Calldata holds the raw bytes otherwise
	Function string                 `json:"function,omitempty"`
	Inputs   map[string]interface{} `json:"inputs,omitempty"`
	Calldata []byte                 `json:"calldata,omitempty"`

	// ReturnValue is set when the return buffer decoded against the ABI;
	// ReturnData holds the raw bytes otherwise
	ReturnValue  interface{} `json:"returnValue,omitempty"`
	ReturnData   []byte      `json:"returnData,omitempty"`
	RevertMsg    *string     `json:"revertMsg,omitempty"`
	SelfDestruct bool        `json:"selfdestruct,omitempty"`
}

// Transfer is a value movement caused by a call or create instruction
type Transfer struct {
	From  ethgo.Address `json:"from"`
	To    ethgo.Address `json:"to"`
	Value *big.Int      `json:"value"`
}

// RawLog is a LOG instruction collected during expansion. Unlike receipt
// logs these are available for reverted transactions too.
type RawLog struct {
	Address ethgo.Address
	Topics  []ethgo.Hash
	Data    []byte
}

// IsPrecompile reports whether the address is one of the fixed precompiled
// contracts: 0x01 through 0x09 and 0x10 through 0x18. The 0x0a-0x0f band is
// unassigned and treated as ordinary contract space.
func IsPrecompile(addr ethgo.Address) bool {
	for _, b := range addr[:19] {
		if b != 0 {
			return false
		}
	}

	return (addr[19] >= 0x01 && addr[19] <= 0x09) ||
		(addr[19] >= 0x10 && addr[19] <= 0x18)
}

// FilterPrecompiled removes subcalls whose target is a precompiled contract
func FilterPrecompiled(subcalls []*Subcall) []*Subcall {
	out := make([]*Subcall, 0, len(subcalls))

	for _, sub := range subcalls {
		if !IsPrecompile(sub.To) {
			out = append(out, sub)
		}
	}

	return out
}

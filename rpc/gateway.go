package rpc

import (
	"github.com/umbracle/ethgo"
)

// Gateway is the node-facing boundary of the tracer. The core depends on it
// abstractly; the concrete transport is assembled and injected by the
// surrounding application.
type Gateway interface {
	// GetTransactionByHash returns the transaction, pending or mined.
	// Returns a NotFoundError if the node does not know the hash.
	GetTransactionByHash(hash ethgo.Hash) (*ethgo.Transaction, error)

	// GetTransactionReceipt returns the inclusion receipt.
	// Returns a NotFoundError while the transaction is unmined.
	GetTransactionReceipt(hash ethgo.Hash) (*ethgo.Receipt, error)

	// GetNonce returns the current (latest block) transaction count of an account
	GetNonce(addr ethgo.Address) (uint64, error)

	// GetBlockByNumber returns block data for the given height
	GetBlockByNumber(number ethgo.BlockNumber, full bool) (*ethgo.Block, error)

	// BlockNumber returns the current chain height
	BlockNumber() (uint64, error)

	// TraceTransaction requests the raw per-opcode trace with storage capture
	// disabled and memory capture enabled. Returns an UnsupportedError if the
	// node lacks the debug endpoint.
	TraceTransaction(hash ethgo.Hash) (*RawTrace, error)
}

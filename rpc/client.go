package rpc

import (
	"strings"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/jsonrpc"
)

const defaultAddr = "http://localhost:8545"

type ClientOption func(*Client)

// WithAddr sets the JSON-RPC endpoint address
func WithAddr(addr string) ClientOption {
	return func(c *Client) {
		c.addr = addr
	}
}

// WithClient sets a preassembled ethgo client
func WithClient(client *jsonrpc.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// Client is the ethgo-backed Gateway implementation
type Client struct {
	addr   string
	client *jsonrpc.Client
}

func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		addr: defaultAddr,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		client, err := jsonrpc.NewClient(c.addr)
		if err != nil {
			return nil, &RequestError{Method: "connect", Err: err}
		}

		c.client = client
	}

	return c, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) GetTransactionByHash(hash ethgo.Hash) (*ethgo.Transaction, error) {
	txn, err := c.client.Eth().GetTransactionByHash(hash)
	if err != nil {
		return nil, &RequestError{Method: "eth_getTransactionByHash", Err: err}
	}

	if txn == nil {
		return nil, &NotFoundError{What: "transaction", Key: hash.String()}
	}

	return txn, nil
}

func (c *Client) GetTransactionReceipt(hash ethgo.Hash) (*ethgo.Receipt, error) {
	receipt, err := c.client.Eth().GetTransactionReceipt(hash)
	if err != nil {
		// some clients report missing receipts as an error instead of null
		if isNotFoundMessage(err) {
			return nil, &NotFoundError{What: "receipt", Key: hash.String()}
		}

		return nil, &RequestError{Method: "eth_getTransactionReceipt", Err: err}
	}

	if receipt == nil {
		return nil, &NotFoundError{What: "receipt", Key: hash.String()}
	}

	return receipt, nil
}

func (c *Client) GetNonce(addr ethgo.Address) (uint64, error) {
	nonce, err := c.client.Eth().GetNonce(addr, ethgo.Latest)
	if err != nil {
		return 0, &RequestError{Method: "eth_getTransactionCount", Err: err}
	}

	return nonce, nil
}

func (c *Client) GetBlockByNumber(number ethgo.BlockNumber, full bool) (*ethgo.Block, error) {
	block, err := c.client.Eth().GetBlockByNumber(number, full)
	if err != nil {
		return nil, &RequestError{Method: "eth_getBlockByNumber", Err: err}
	}

	if block == nil {
		return nil, &NotFoundError{What: "block", Key: number.String()}
	}

	return block, nil
}

func (c *Client) BlockNumber() (uint64, error) {
	number, err := c.client.Eth().BlockNumber()
	if err != nil {
		return 0, &RequestError{Method: "eth_blockNumber", Err: err}
	}

	return number, nil
}

type traceConfig struct {
	DisableStorage bool `json:"disableStorage"`
	EnableMemory   bool `json:"enableMemory"`
}

func (c *Client) TraceTransaction(hash ethgo.Hash) (*RawTrace, error) {
	var trace *RawTrace

	// anvil returns the memory key unconditionally, so always request it
	err := c.client.Call(
		"debug_traceTransaction",
		&trace,
		hash,
		&traceConfig{DisableStorage: true, EnableMemory: true},
	)
	if err != nil {
		if isUnsupportedMessage(err) {
			return nil, &UnsupportedError{Method: "debug_traceTransaction"}
		}

		return nil, &RequestError{Method: "debug_traceTransaction", Err: err}
	}

	if trace == nil {
		return nil, &NotFoundError{What: "trace", Key: hash.String()}
	}

	return trace, nil
}

func isNotFoundMessage(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "not found") || strings.Contains(msg, "not be found")
}

func isUnsupportedMessage(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "method not found") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "method not available")
}

package tracker

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/0xPolygon/txtrace/coverage"
	"github.com/0xPolygon/txtrace/registry"
	"github.com/0xPolygon/txtrace/rpc"
	"github.com/0xPolygon/txtrace/trace"
	"github.com/hashicorp/go-hclog"
	"github.com/ryanuber/columnize"
	"github.com/umbracle/ethgo"
)

const baseTxGas = 21000

// Record tracks one broadcast transaction through confirmation and exposes
// its decoded trace. The identity fields are immutable from creation; the
// outcome fields are written once by the watcher before the completion
// channel closes; everything derived from the trace is computed lazily and
// cached, including a failed computation.
type Record struct {
	logger   hclog.Logger
	gateway  rpc.Gateway
	registry registry.Registry

	Hash     ethgo.Hash
	Sender   ethgo.Address
	Receiver *ethgo.Address
	Value    *big.Int
	Input    []byte
	Nonce    uint64
	GasLimit uint64
	GasPrice uint64

	lock   sync.Mutex
	status Status

	blockNumber     uint64
	txIndex         uint64
	gasUsed         uint64
	contractAddress *ethgo.Address
	receiptLogs     []*ethgo.Log
	coverageHash    string

	expanded   *trace.Result
	revertInfo *trace.RevertInfo
	traceErr   error

	returnValue interface{}
	returnData  []byte
	events      []*Event

	confirmed chan struct{}
	closeOnce sync.Once
}

func newRecord(logger hclog.Logger, gateway rpc.Gateway, reg registry.Registry, txn *ethgo.Transaction) *Record {
	return &Record{
		logger:    logger.Named("record"),
		gateway:   gateway,
		registry:  reg,
		Hash:      txn.Hash,
		Sender:    txn.From,
		Receiver:  txn.To,
		Value:     txn.Value,
		Input:     txn.Input,
		Nonce:     txn.Nonce,
		GasLimit:  txn.Gas,
		GasPrice:  txn.GasPrice,
		status:    StatusPending,
		confirmed: make(chan struct{}),
	}
}

// IsDeploy reports whether this is a contract creation transaction
func (r *Record) IsDeploy() bool {
	return r.Receiver == nil
}

func (r *Record) Status() Status {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.status
}

// Confirmed returns the channel closed when the record reaches a terminal
// status
func (r *Record) Confirmed() <-chan struct{} {
	return r.confirmed
}

// Wait blocks until the record reaches a terminal status or the context is
// cancelled
func (r *Record) Wait(ctx context.Context) error {
	select {
	case <-r.confirmed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BlockNumber returns the inclusion height, zero while pending
func (r *Record) BlockNumber() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.blockNumber
}

// GasUsed returns the gas consumed by the mined transaction
func (r *Record) GasUsed() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.gasUsed
}

// ContractAddress returns the created contract for deployments, nil otherwise
func (r *Record) ContractAddress() *ethgo.Address {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.contractAddress
}

// Timestamp returns the timestamp of the inclusion block
func (r *Record) Timestamp() (uint64, error) {
	if err := r.guard(); err != nil {
		return 0, err
	}

	block := r.BlockNumber()
	if block == 0 {
		return 0, ErrPending
	}

	header, err := r.gateway.GetBlockByNumber(ethgo.BlockNumber(block), false)
	if err != nil {
		return 0, err
	}

	return header.Timestamp, nil
}

// Confirmations returns the number of blocks mined on top of the inclusion
// block, inclusive. Zero while the transaction is pending.
func (r *Record) Confirmations() (uint64, error) {
	block := r.BlockNumber()
	if block == 0 {
		return 0, nil
	}

	head, err := r.gateway.BlockNumber()
	if err != nil {
		return 0, err
	}

	if head < block {
		return 0, nil
	}

	return head - block + 1, nil
}

// CoverageHash returns the content hash identifying this mined transaction
// for coverage deduplication
func (r *Record) CoverageHash() (string, error) {
	if err := r.guard(); err != nil {
		return "", err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	return r.coverageHash, nil
}

// markMined records the receipt outcome. Called once by the watcher.
func (r *Record) markMined(receipt *ethgo.Receipt) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.status = StatusReverted
	if receipt.Status == 1 {
		r.status = StatusConfirmed
	}

	r.blockNumber = receipt.BlockNumber
	r.txIndex = receipt.TransactionIndex
	r.gasUsed = receipt.GasUsed
	r.receiptLogs = receipt.Logs

	if r.IsDeploy() {
		addr := receipt.ContractAddress
		r.contractAddress = &addr
	}

	r.coverageHash = coverage.Hash(coverage.HashInput{
		Nonce:       r.Nonce,
		BlockNumber: r.blockNumber,
		Sender:      r.Sender,
		Receiver:    r.Receiver,
		Value:       r.Value,
		Input:       r.Input,
		Status:      int(r.status),
		GasUsed:     r.gasUsed,
		TxIndex:     r.txIndex,
	})
}

// markDropped moves the record to the dropped state. Safe to call more than
// once; a record that already reached a terminal state is left alone.
func (r *Record) markDropped() {
	r.lock.Lock()

	if r.status != StatusPending {
		r.lock.Unlock()

		return
	}

	r.status = StatusDropped
	r.lock.Unlock()

	r.signal()
}

func (r *Record) signal() {
	r.closeOnce.Do(func() {
		close(r.confirmed)
	})
}

// guard rejects trace access while the transaction has no outcome
func (r *Record) guard() error {
	switch r.Status() {
	case StatusPending:
		return ErrPending
	case StatusDropped:
		return ErrDropped
	}

	return nil
}

// ensureTrace fetches, normalizes and expands the trace exactly once. A
// failure is cached and replayed so a broken debug endpoint is only hit once.
func (r *Record) ensureTrace() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.traceErr != nil {
		return r.traceErr
	}

	if r.expanded != nil {
		return nil
	}

	if err := r.computeTrace(); err != nil {
		r.traceErr = err

		return err
	}

	return nil
}

// computeTrace runs under the record lock
func (r *Record) computeTrace() error {
	// a plain value transfer executed no code
	if len(r.Input) == 0 && r.gasUsed == baseTxGas {
		r.expanded = &trace.Result{
			Steps:             []*trace.Step{},
			Subcalls:          []*trace.Subcall{},
			InternalTransfers: []*trace.Transfer{},
			NewContracts:      []ethgo.Address{},
			Coverage:          coverage.NewMap(),
		}

		return nil
	}

	raw, err := r.gateway.TraceTransaction(r.Hash)
	if err != nil {
		return err
	}

	steps, err := trace.Normalize(raw)
	if err != nil {
		return err
	}

	var receiver ethgo.Address
	if r.Receiver != nil {
		receiver = *r.Receiver
	}

	expanded, err := trace.Expand(trace.Input{
		Steps:    steps,
		Receiver: receiver,
		Calldata: r.Input,
		GasUsed:  r.gasUsed,
		IsDeploy: r.IsDeploy(),
	}, r.registry)
	if err != nil {
		return err
	}

	r.expanded = expanded

	switch r.status {
	case StatusReverted:
		info := trace.ResolveRevert(expanded.Steps, r.registry, r.IsDeploy())
		r.revertInfo = &info
	case StatusConfirmed:
		if !r.IsDeploy() {
			contract, err := r.registry.GetContract(*r.Receiver)
			if err == nil && contract != nil {
				r.returnValue, r.returnData = trace.DecodeReturnValue(expanded.Steps, contract, r.Input)
			}
		}
	}

	return nil
}

// Trace returns the expanded per-instruction trace
func (r *Record) Trace() ([]*trace.Step, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}

	if err := r.ensureTrace(); err != nil {
		return nil, err
	}

	return r.expanded.Steps, nil
}

// Subcalls returns the external calls made during execution, with calls into
// precompiled contracts filtered out
func (r *Record) Subcalls() ([]*trace.Subcall, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}

	if err := r.ensureTrace(); err != nil {
		return nil, err
	}

	return trace.FilterPrecompiled(r.expanded.Subcalls), nil
}

// ReturnValue returns the decoded outermost return value of a confirmed call
// transaction, or the raw return buffer when the ABI could not decode it
func (r *Record) ReturnValue() (interface{}, []byte, error) {
	if err := r.guard(); err != nil {
		return nil, nil, err
	}

	if r.Status() != StatusConfirmed {
		return nil, nil, nil
	}

	if err := r.ensureTrace(); err != nil {
		return nil, nil, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	return r.returnValue, r.returnData, nil
}

// RevertMsg returns the revert reason of a failed transaction, empty when
// execution reverted without one. Confirmed transactions have no reason.
func (r *Record) RevertMsg() (string, error) {
	if err := r.guard(); err != nil {
		return "", err
	}

	if r.Status() == StatusConfirmed {
		return "", nil
	}

	if err := r.ensureTrace(); err != nil {
		return "", err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.revertInfo == nil || r.revertInfo.Msg == nil {
		return "", nil
	}

	return *r.revertInfo.Msg, nil
}

// DevRevertMsg returns the developer revert annotation of a failed
// transaction, empty when none was found
func (r *Record) DevRevertMsg() (string, error) {
	if err := r.guard(); err != nil {
		return "", err
	}

	if r.Status() == StatusConfirmed {
		return "", nil
	}

	if err := r.ensureTrace(); err != nil {
		return "", err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.revertInfo == nil || r.revertInfo.Dev == nil {
		return "", nil
	}

	return *r.revertInfo.Dev, nil
}

// ModifiedState reports whether execution wrote to contract storage.
// Reverted transactions never count as modifying state.
func (r *Record) ModifiedState() (bool, error) {
	if err := r.guard(); err != nil {
		return false, err
	}

	if r.Status() != StatusConfirmed {
		return false, nil
	}

	if err := r.ensureTrace(); err != nil {
		return false, err
	}

	return trace.ModifiedState(r.expanded.Steps), nil
}

// InternalTransfers returns the value movements caused by calls and creates
// during execution. Empty for anything but confirmed transactions.
func (r *Record) InternalTransfers() ([]*trace.Transfer, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}

	if r.Status() != StatusConfirmed {
		return []*trace.Transfer{}, nil
	}

	if err := r.ensureTrace(); err != nil {
		return nil, err
	}

	return r.expanded.InternalTransfers, nil
}

// NewContracts returns the addresses created during execution. Empty for
// anything but confirmed transactions.
func (r *Record) NewContracts() ([]ethgo.Address, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}

	if r.Status() != StatusConfirmed {
		return []ethgo.Address{}, nil
	}

	if err := r.ensureTrace(); err != nil {
		return nil, err
	}

	return r.expanded.NewContracts, nil
}

// Events returns the decoded logs of the transaction. For confirmed
// transactions they come from the receipt; for reverted ones they are
// recovered from LOG instructions in the trace.
func (r *Record) Events() ([]*Event, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}

	r.lock.Lock()
	cached := r.events
	r.lock.Unlock()

	if cached != nil {
		return cached, nil
	}

	var events []*Event

	if r.Status() == StatusConfirmed {
		r.lock.Lock()
		logs := r.receiptLogs
		r.lock.Unlock()

		events = decodeLogs(r.registry, logs)
	} else {
		if err := r.ensureTrace(); err != nil {
			return nil, err
		}

		events = decodeLogs(r.registry, traceLogs(r.expanded.Logs))
	}

	r.lock.Lock()
	r.events = events
	r.lock.Unlock()

	return events, nil
}

// CoverageMap returns the coverage recorded while expanding the trace
func (r *Record) CoverageMap() (coverage.Map, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}

	if err := r.ensureTrace(); err != nil {
		return nil, err
	}

	return r.expanded.Coverage, nil
}

// CallTrace renders the call tree of the transaction. With expand set, the
// decoded inputs and outputs of each external call are included.
func (r *Record) CallTrace(expand bool) (string, error) {
	if err := r.guard(); err != nil {
		return "", err
	}

	if err := r.ensureTrace(); err != nil {
		return "", err
	}

	return trace.RenderCallTree(
		r.Hash,
		r.expanded.Steps,
		trace.FilterPrecompiled(r.expanded.Subcalls),
		r.expanded.CallCost,
		expand,
	), nil
}

// Traceback renders the chain of source locations that led to the revert.
// Empty for confirmed transactions.
func (r *Record) Traceback() (string, error) {
	if err := r.guard(); err != nil {
		return "", err
	}

	if r.Status() == StatusConfirmed {
		return "", nil
	}

	if err := r.ensureTrace(); err != nil {
		return "", err
	}

	return trace.TracebackString(r.Hash, r.expanded.Steps, r.registry), nil
}

// ErrorSource renders the source code around the final revert site with pad
// lines of context. Empty for confirmed transactions.
func (r *Record) ErrorSource(pad int) (string, error) {
	if err := r.guard(); err != nil {
		return "", err
	}

	if r.Status() == StatusConfirmed {
		return "", nil
	}

	if err := r.ensureTrace(); err != nil {
		return "", err
	}

	return trace.ErrorString(r.expanded.Steps, r.registry, pad), nil
}

// Info formats a key/value summary of the record
func (r *Record) Info() string {
	r.lock.Lock()
	defer r.lock.Unlock()

	receiver := "none (deployment)"
	if r.Receiver != nil {
		receiver = r.Receiver.String()
	}

	value := "0"
	if r.Value != nil {
		value = r.Value.String()
	}

	rows := []string{
		fmt.Sprintf("Transaction|%s", r.Hash),
		fmt.Sprintf("Status|%s", r.status),
		fmt.Sprintf("From|%s", r.Sender),
		fmt.Sprintf("To|%s", receiver),
		fmt.Sprintf("Value|%s", value),
		fmt.Sprintf("Nonce|%d", r.Nonce),
		fmt.Sprintf("Gas limit|%d", r.GasLimit),
	}

	if r.status == StatusConfirmed || r.status == StatusReverted {
		rows = append(rows,
			fmt.Sprintf("Block|%d", r.blockNumber),
			fmt.Sprintf("Gas used|%d", r.gasUsed),
		)
	}

	if r.contractAddress != nil {
		rows = append(rows, fmt.Sprintf("Deployed at|%s", r.contractAddress))
	}

	config := columnize.DefaultConfig()
	config.Glue = "  "
	config.Delim = "|"

	return columnize.Format(rows, config)
}

package trace

import (
	"fmt"

	"github.com/0xPolygon/txtrace/coverage"
	"github.com/0xPolygon/txtrace/helper/hex"
	"github.com/0xPolygon/txtrace/registry"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
)

// base cost of a plain transaction
const baseTxGas = 21000

// EVM opcodes the expander cares about
const (
	OpCall         = "CALL"
	OpCallCode     = "CALLCODE"
	OpStaticCall   = "STATICCALL"
	OpDelegateCall = "DELEGATECALL"
	OpCreate       = "CREATE"
	OpCreate2      = "CREATE2"
	OpReturn       = "RETURN"
	OpRevert       = "REVERT"
	OpInvalid      = "INVALID"
	OpSelfDestruct = "SELFDESTRUCT"
	OpSStore       = "SSTORE"
	OpJumpi        = "JUMPI"
	OpJumpDest     = "JUMPDEST"
	OpCodeCopy     = "CODECOPY"
)

// call opcodes that reenter the interpreter without necessarily increasing
// the depth (precompiles, accounts without code)
func isCallOp(op string) bool {
	return op == OpCall || op == OpStaticCall || op == OpDelegateCall
}

func isCreateOp(op string) bool {
	return op == OpCreate || op == OpCreate2
}

var logTopicCount = map[string]int{
	"LOG0": 0, "LOG1": 1, "LOG2": 2, "LOG3": 3, "LOG4": 4,
}

// Input is everything the expander needs to know about the transaction
// whose trace it is walking
type Input struct {
	Steps    []*Step
	Receiver ethgo.Address
	Calldata []byte
	GasUsed  uint64

	// IsDeploy marks contract-creation transactions, whose frames are not
	// addressable through the registry
	IsDeploy bool
}

// Result is the product of one expansion pass
type Result struct {
	Steps             []*Step
	Subcalls          []*Subcall
	InternalTransfers []*Transfer
	NewContracts      []ethgo.Address
	Logs              []*RawLog

	// CallCost is the transaction overhead charged before the first
	// instruction executed
	CallCost int64

	Coverage coverage.Map
}

// callContext tracks the resolution state of one active call depth
type callContext struct {
	address  ethgo.Address
	contract *registry.Contract
	method   *abi.Method
	name     string

	// internalCalls is the stack of inlined function names; the last entry
	// is the innermost active function
	internalCalls []string
	jumpDepth     int

	// activeBranches is non-nil only for solidity contracts under coverage
	activeBranches coverage.IDSet
	coverage       bool
}

func (c *callContext) currentFn() string {
	return c.internalCalls[len(c.internalCalls)-1]
}

func newCallContext(reg registry.Registry, addr ethgo.Address, selector []byte, label string) (*callContext, error) {
	contract, err := reg.GetContract(addr)
	if err != nil {
		return nil, err
	}

	ctx := &callContext{address: addr}

	if contract == nil {
		ctx.internalCalls = []string{"<UnknownContract>." + label}

		return ctx, nil
	}

	ctx.contract = contract
	ctx.name = contract.Name
	ctx.method = contract.MethodBySelector(selector)
	ctx.internalCalls = []string{contract.FullMethodName(selector)}

	if contract.Coverage {
		ctx.coverage = true
		if contract.Language == registry.LanguageSolidity {
			ctx.activeBranches = make(coverage.IDSet)
		}
	}

	return ctx, nil
}

type expander struct {
	reg      registry.Registry
	steps    []*Step
	res      *Result
	contexts map[int]*callContext
}

// Expand walks a normalized trace once, annotating every step with its call
// context and collecting subcalls, transfers, created contracts, logs and
// coverage along the way.
func Expand(in Input, reg registry.Registry) (*Result, error) {
	res := &Result{
		Steps:             in.Steps,
		Subcalls:          []*Subcall{},
		InternalTransfers: []*Transfer{},
		NewContracts:      []ethgo.Address{},
		Coverage:          coverage.NewMap(),
	}

	// deployment frames cannot be resolved through the registry; the trivial
	// coverage record is still emitted
	if in.IsDeploy || len(in.Steps) == 0 {
		return res, nil
	}

	steps := in.Steps
	first, last := steps[0], steps[len(steps)-1]

	switch {
	case first.Depth == 1:
		// geth-family traces use 1-based depths
		res.CallCost = int64(in.GasUsed) - int64(first.Gas) + int64(last.Gas)

		for _, step := range steps {
			step.Depth--
		}
	case first.GasCost >= baseTxGas:
		// ganache <6.10 shifts gas costs by one position; detectable because
		// the first step then carries the whole base transaction cost
		res.CallCost = first.GasCost

		for i := 0; i < len(steps)-1; i++ {
			steps[i].GasCost = steps[i+1].GasCost
		}

		last.GasCost = 0
	default:
		res.CallCost = int64(in.GasUsed) - int64(first.Gas) + int64(last.Gas)
	}

	var selector []byte
	if len(in.Calldata) >= 4 {
		selector = in.Calldata[:4]
	}

	root, err := newCallContext(reg, in.Receiver, selector, sigLabel(selector))
	if err != nil {
		return nil, err
	}

	e := &expander{
		reg:      reg,
		steps:    steps,
		res:      res,
		contexts: map[int]*callContext{0: root},
	}

	if root.coverage {
		res.Coverage.Ensure(root.name)
	}

	for i := range steps {
		if i > 0 {
			prev := steps[i-1]

			isDepthIncrease := steps[i].Depth > prev.Depth
			isSubcall := isCallOp(prev.Op)

			if isDepthIncrease || isSubcall {
				if err := e.enterSubcall(i, isDepthIncrease, isSubcall); err != nil {
					return nil, err
				}
			}
		}

		if err := e.annotate(i); err != nil {
			return nil, err
		}
	}

	res.Coverage = res.Coverage.Compact()

	return res, nil
}

// enterSubcall handles the transition at step i caused by the call or create
// instruction at step i-1
func (e *expander) enterSubcall(i int, isDepthIncrease, isSubcall bool) error {
	step := e.steps[i-1]

	var (
		callee   ethgo.Address
		selector []byte
		calldata []byte
		label    string
	)

	if isCreateOp(step.Op) {
		// the created address only becomes visible on the stack once
		// execution returns to the creating frame
		if out := findReturnStep(e.steps, i, step.Depth); out != nil {
			callee = out.peekAddr(0)
		}

		label = "<" + step.Op + ">"

		e.res.NewContracts = append(e.res.NewContracts, callee)

		if value := step.peekBig(0); value.Sign() > 0 {
			e.res.InternalTransfers = append(e.res.InternalTransfers, &Transfer{
				From:  step.Address,
				To:    callee,
				Value: value,
			})
		}
	} else {
		// calldata offset/length position depends on whether the opcode
		// carries a value argument
		offsetIdx := 2
		if step.Op == OpCall || step.Op == OpCallCode {
			offsetIdx = 3
		}

		offset := step.peekBig(offsetIdx).Uint64()
		length := step.peekBig(offsetIdx + 1).Uint64()
		calldata = step.memorySlice(offset, length)

		if len(calldata) >= 4 {
			selector = calldata[:4]
		}

		label = sigLabel(selector)
		callee = step.peekAddr(1)
	}

	if isDepthIncrease {
		ctx, err := newCallContext(e.reg, callee, selector, label)
		if err != nil {
			return err
		}

		e.contexts[e.steps[i].Depth] = ctx

		if ctx.coverage {
			e.res.Coverage.Ensure(ctx.name)
		}
	}

	sub := &Subcall{From: step.Address, To: callee, Op: step.Op}

	if step.Op == OpCall || step.Op == OpCallCode {
		sub.Value = step.peekBig(2)
	}

	ctx := e.contexts[e.steps[i].Depth]

	if isDepthIncrease && len(calldata) > 0 && ctx != nil && ctx.method != nil {
		sub.Function = ctx.method.Sig()

		if inputs, ok := decodeMethodInputs(ctx.method, calldata); ok {
			sub.Inputs = inputs
		} else {
			sub.Calldata = calldata
		}
	} else if len(calldata) > 0 || isSubcall {
		sub.Calldata = calldata
	}

	e.res.Subcalls = append(e.res.Subcalls, sub)

	// calls reported from inside a precompile frame are an artifact of some
	// clients; reattribute them to the real caller
	if n := len(e.res.Subcalls); n >= 2 && IsPrecompile(sub.From) {
		caller := e.res.Subcalls[n-2].From
		e.res.Subcalls = append(e.res.Subcalls[:n-2], sub)
		sub.From = caller
	}

	return nil
}

// annotate expands step i with its call context and processes its opcode
func (e *expander) annotate(i int) error {
	step := e.steps[i]

	ctx := e.contexts[step.Depth]
	if ctx == nil {
		return fmt.Errorf("no call context at depth %d (step %d)", step.Depth, i)
	}

	step.Address = ctx.address
	step.ContractName = ctx.name
	step.Fn = ctx.currentFn()
	step.JumpDepth = ctx.jumpDepth
	step.Source = nil

	if step.Op == OpCall {
		if value := step.peekBig(2); value.Sign() > 0 {
			e.res.InternalTransfers = append(e.res.InternalTransfers, &Transfer{
				From:  ctx.address,
				To:    step.peekAddr(1),
				Value: value,
			})
		}
	}

	if topics, ok := logTopicCount[step.Op]; ok {
		e.collectLog(step, ctx, topics)
	}

	// attach the raw return buffer even when the contract is unknown; a
	// resolved ABI below replaces it with the decoded value
	if step.Depth > 0 && step.Op == OpReturn {
		if sub := e.lastSubcallTo(ctx.address); sub != nil {
			if data := step.returnData(); len(data) > 0 {
				sub.ReturnData = data
			}
		}
	}

	if ctx.contract == nil {
		return nil
	}

	entry := ctx.contract.PcMap[step.Pc]
	if entry == nil {
		return nil
	}

	if step.Depth > 0 {
		e.closeSubcall(step, ctx, entry)
	}

	if !entry.HasSource() {
		return nil
	}

	filename := ctx.contract.SourcePaths[entry.Path]
	step.Source = &SourceLoc{Filename: filename, Offset: entry.Offset}

	if entry.Fn == "" {
		// jumps with no function are compiler optimizations
		return nil
	}

	if ctx.coverage {
		e.collectCoverage(i, ctx, entry)
	}

	e.trackJump(i, ctx, entry)

	return nil
}

// closeSubcall processes terminating opcodes of a nested frame
func (e *expander) closeSubcall(step *Step, ctx *callContext, entry *registry.PCEntry) {
	switch step.Op {
	case OpReturn, OpRevert, OpInvalid, OpSelfDestruct:
	default:
		return
	}

	sub := e.lastSubcallTo(ctx.address)
	if sub == nil {
		return
	}

	switch step.Op {
	case OpReturn:
		if data := step.returnData(); len(data) > 0 {
			if vals, ok := decodeMethodOutputs(ctx.method, data); ok {
				sub.ReturnValue = vals
				sub.ReturnData = nil
			} else {
				sub.ReturnData = data
			}
		}
	case OpSelfDestruct:
		sub.SelfDestruct = true
	default:
		if step.Op == OpRevert {
			if data := step.returnData(); len(data) > 4 {
				msg := decodeTypedError(data)
				sub.RevertMsg = &msg
			}
		}

		if sub.RevertMsg == nil && entry.Dev != "" {
			dev := entry.Dev
			sub.RevertMsg = &dev
		}
	}
}

func (e *expander) collectLog(step *Step, ctx *callContext, topicCount int) {
	offset := step.peekBig(0).Uint64()
	length := step.peekBig(1).Uint64()

	log := &RawLog{
		Address: ctx.address,
		Data:    step.memorySlice(offset, length),
	}

	for t := 0; t < topicCount; t++ {
		word := step.peek(2 + t)
		log.Topics = append(log.Topics, ethgo.BytesToHash(hex.MustDecodeHex(word)))
	}

	e.res.Logs = append(e.res.Logs, log)
}

func (e *expander) collectCoverage(i int, ctx *callContext, entry *registry.PCEntry) {
	if entry.Statement != nil {
		e.res.Coverage.AddStatement(ctx.name, entry.Path, *entry.Statement)
	}

	if entry.Branch == nil {
		return
	}

	if entry.Op != OpJumpi {
		if ctx.activeBranches != nil {
			ctx.activeBranches.Add(*entry.Branch)
		}

		return
	}

	if ctx.activeBranches == nil || ctx.activeBranches.Has(*entry.Branch) {
		// the branch was taken when the next instruction does not continue
		// linearly after the JUMPI
		taken := true
		if i+1 < len(e.steps) && e.steps[i+1].Pc == e.steps[i].Pc+1 {
			taken = false
		}

		e.res.Coverage.AddBranch(ctx.name, entry.Path, *entry.Branch, taken)

		if ctx.activeBranches != nil {
			ctx.activeBranches.Remove(*entry.Branch)
		}
	}
}

// trackJump maintains the inlined-function stack from compiler jump tags
func (e *expander) trackJump(i int, ctx *callContext, entry *registry.PCEntry) {
	switch entry.Jump {
	case "i":
		if i+1 >= len(e.steps) {
			return
		}

		next := ctx.contract.PcMap[e.steps[i+1].Pc]
		if next == nil || next.Fn == "" {
			return
		}

		if next.Fn != ctx.currentFn() {
			ctx.internalCalls = append(ctx.internalCalls, next.Fn)
			ctx.jumpDepth++
		}
	case "o":
		// only while jump depth is positive: compiler-level jumps that are
		// not real function returns must not underflow the stack
		if ctx.jumpDepth > 0 {
			ctx.internalCalls = ctx.internalCalls[:len(ctx.internalCalls)-1]
			ctx.jumpDepth--
		}
	}
}

func (e *expander) lastSubcallTo(addr ethgo.Address) *Subcall {
	for i := len(e.res.Subcalls) - 1; i >= 0; i-- {
		if e.res.Subcalls[i].To == addr {
			return e.res.Subcalls[i]
		}
	}

	return nil
}

// findReturnStep returns the first step at or after index i back at the
// given depth
func findReturnStep(steps []*Step, i, depth int) *Step {
	for ; i < len(steps); i++ {
		if steps[i].Depth == depth {
			return steps[i]
		}
	}

	return nil
}

func sigLabel(selector []byte) string {
	if len(selector) == 0 {
		return "0x"
	}

	return hex.EncodeToHex(selector)
}

// ModifiedState reports whether the trace contains at least one storage write
func ModifiedState(steps []*Step) bool {
	for _, step := range steps {
		if step.Op == OpSStore {
			return true
		}
	}

	return false
}

// DecodeReturnValue decodes the outermost return buffer of a successful
// call transaction. The raw buffer is returned when the ABI cannot decode it.
func DecodeReturnValue(steps []*Step, contract *registry.Contract, calldata []byte) (interface{}, []byte) {
	if len(steps) == 0 || contract == nil {
		return nil, nil
	}

	last := steps[len(steps)-1]
	if last.Op != OpReturn {
		return nil, nil
	}

	data := last.returnData()
	if len(data) == 0 {
		return nil, nil
	}

	var selector []byte
	if len(calldata) >= 4 {
		selector = calldata[:4]
	}

	if vals, ok := decodeMethodOutputs(contract.MethodBySelector(selector), data); ok {
		return vals, nil
	}

	return nil, data
}

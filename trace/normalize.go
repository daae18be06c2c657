package trace

import (
	"fmt"
	"strings"

	"github.com/0xPolygon/txtrace/helper/hex"
	"github.com/0xPolygon/txtrace/rpc"
)

// Normalize converts a raw debug_traceTransaction payload into canonical
// steps. Different node clients return slightly different formats: geth and
// nethermind return unprefixed zero-padded stack words, erigon returns
// 0x-prefixed words without padding, and nethermind additionally reports the
// numeric fields (pc, gas, gasCost) as hex strings instead of numbers.
func Normalize(raw *rpc.RawTrace) ([]*Step, error) {
	if raw == nil || len(raw.StructLogs) == 0 {
		return nil, nil
	}

	// sample the first step with a non-empty stack to detect the word format
	fixStack := false

	for _, step := range raw.StructLogs {
		if len(step.Stack) == 0 {
			continue
		}

		fixStack = strings.HasPrefix(step.Stack[0], "0x")

		break
	}

	steps := make([]*Step, len(raw.StructLogs))

	for i, rawStep := range raw.StructLogs {
		step := &Step{
			Op:    rawStep.Op,
			Depth: rawStep.Depth,
		}

		pc, err := decodeUint(rawStep.Pc)
		if err != nil {
			return nil, fmt.Errorf("step %d: bad pc: %w", i, err)
		}

		gas, err := decodeUint(rawStep.Gas)
		if err != nil {
			return nil, fmt.Errorf("step %d: bad gas: %w", i, err)
		}

		gasCost, err := decodeSignedInt(rawStep.GasCost)
		if err != nil {
			return nil, fmt.Errorf("step %d: bad gasCost: %w", i, err)
		}

		step.Pc = pc
		step.Gas = gas
		step.GasCost = gasCost

		if len(rawStep.Stack) > 0 {
			step.Stack = make([]string, len(rawStep.Stack))

			for j, word := range rawStep.Stack {
				if fixStack {
					word = hex.NormalizeWord(word)
				}

				step.Stack[j] = word
			}
		}

		if len(rawStep.Memory) > 0 {
			joined := strings.Join(rawStep.Memory, "")

			buf, err := hex.DecodeHex(joined)
			if err != nil {
				return nil, fmt.Errorf("step %d: bad memory: %w", i, err)
			}

			step.Memory = buf
		}

		steps[i] = step
	}

	return steps, nil
}

// decodeUint accepts both JSON numbers and hex strings
func decodeUint(val interface{}) (uint64, error) {
	switch v := val.(type) {
	case nil:
		return 0, nil
	case float64:
		return uint64(v), nil
	case string:
		return hex.DecodeUint64(v)
	default:
		return 0, fmt.Errorf("unexpected numeric encoding %T", val)
	}
}

// decodeSignedInt accepts JSON numbers and hex strings; hex strings are
// interpreted as signed big-endian quantities since some clients report
// negative gas costs on refund-only steps
func decodeSignedInt(val interface{}) (int64, error) {
	switch v := val.(type) {
	case nil:
		return 0, nil
	case float64:
		return int64(v), nil
	case string:
		return hex.DecodeSignedBig(v).Int64(), nil
	default:
		return 0, fmt.Errorf("unexpected numeric encoding %T", val)
	}
}

package trace

import (
	"math/big"
	"strings"

	"github.com/0xPolygon/txtrace/registry"
)

// copy length above which a deployment CODECOPY exceeds the EIP-170 limit
const maxCodeSize = 24577

var bigMaxCodeSize = big.NewInt(maxCodeSize)

// RevertInfo is the resolved reason of a failed transaction. A nil field
// means resolution could not determine it; a pointer to the empty string
// means it was resolved to nothing.
type RevertInfo struct {
	Msg *string
	Dev *string
}

// ResolveRevert walks an expanded trace backwards over its revert sites and
// recovers the revert reason and any developer revert annotation
func ResolveRevert(steps []*Step, reg registry.Registry, isDeploy bool) RevertInfo {
	var info RevertInfo

	if isDeploy {
		// an oversized runtime blob shows up as a CODECOPY of more than the
		// EIP-170 limit before the failing RETURN
		for _, step := range steps {
			if step.Op != OpCodeCopy {
				continue
			}

			if step.peekBig(2).Cmp(bigMaxCodeSize) > 0 {
				msg := "exceeds EIP-170 size limit"
				dev := ""
				info.Msg, info.Dev = &msg, &dev
			}

			break
		}

		if info.Dev != nil {
			return info
		}
	}

	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Op != OpRevert && step.Op != OpInvalid {
			continue
		}

		if step.Op == OpRevert && step.peekBig(1).Sign() > 0 {
			msg := decodeTypedError(step.returnData())
			info.Msg = &msg
		} else if isDeploy {
			msg := ""
			if step.Op == OpInvalid {
				msg = "invalid opcode"
			}

			dev := ""
			info.Msg, info.Dev = &msg, &dev

			return info
		}

		if dev, ok := reg.DevRevert(step.Pc); ok && dev != "" {
			devCopy := dev
			info.Dev = &devCopy

			if info.Msg == nil {
				msgCopy := dev
				info.Msg = &msgCopy
			}
		} else if resolveDevFromSource(steps, i, reg, &info) {
			return info
		}

		if info.Msg != nil {
			if info.Dev == nil {
				empty := ""
				info.Dev = &empty
			}

			return info
		}
	}

	// no revert site produced a reason; fall back to classifying the
	// outermost failing opcode
	msg := ""

	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Op == OpRevert {
			break
		}

		if steps[i].Op == OpInvalid {
			msg = "invalid opcode"

			break
		}
	}

	info.Msg = &msg

	return info
}

// resolveDevFromSource recovers the developer revert annotation from the
// source map of the reverting contract. Returns false when any lookup along
// the way fails, in which case the caller moves on to the next revert site.
func resolveDevFromSource(steps []*Step, idx int, reg registry.Registry, info *RevertInfo) bool {
	step := steps[idx]

	contract, err := reg.GetContract(step.Address)
	if err != nil || contract == nil {
		return false
	}

	entry := contract.PcMap[step.Pc]
	if entry == nil {
		return false
	}

	// the shared function selector revert executes at a fixed pc; the revert
	// that routed there sits four instructions earlier
	if entry.FirstRevert {
		if j := idx - 4; j >= 0 && steps[j].Pc != step.Pc-4 {
			idx, step = j, steps[j]
		}

		if entry = contract.PcMap[step.Pc]; entry == nil {
			return false
		}
	}

	// the optimizer deduplicates revert blocks; rewind past the jump that
	// entered the shared block to find the real source location
	if entry.OptimizerRevert {
		j := idx - 1

		for j >= 0 && steps[j+1].Op != OpJumpDest {
			if !sameSourceLoc(steps[j].Source, step.Source) {
				// a differing source offset before any JUMPDEST means the
				// optimizer revert is also the actual revert
				j = idx

				break
			}

			j--
		}

		for j >= 0 && steps[j].Source == nil {
			j--
		}

		if j < 0 {
			return false
		}

		step.Source = steps[j].Source
		idx, step = j, steps[j]

		if entry = contract.PcMap[step.Pc]; entry == nil {
			return false
		}
	}

	if entry.Dev != "" {
		dev := entry.Dev
		info.Dev = &dev
	} else if !scanDevComment(contract, step.Source, info) {
		return false
	}

	if info.Msg == nil {
		msg := ""
		if info.Dev != nil {
			msg = *info.Dev
		}

		info.Msg = &msg
	}

	return true
}

// scanDevComment reads the "dev:" annotation from the trailing comment of
// the source line a step maps to
func scanDevComment(contract *registry.Contract, loc *SourceLoc, info *RevertInfo) bool {
	if loc == nil {
		return false
	}

	src, ok := contract.Sources[loc.Filename]
	if !ok || loc.Offset[1] > len(src) {
		return false
	}

	line := src[loc.Offset[1]:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}

	marker := registry.CommentMarker(contract.Language)

	mi := strings.Index(line, marker)
	if mi < 0 {
		return false
	}

	revertStr := strings.TrimSpace(line[mi+len(marker):])
	if strings.HasPrefix(revertStr, "dev:") {
		info.Dev = &revertStr
	}

	return true
}

func sameSourceLoc(a, b *SourceLoc) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

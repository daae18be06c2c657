package trace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/0xPolygon/txtrace/registry"
	"github.com/fatih/color"
	"github.com/umbracle/ethgo"
)

var (
	hiRed    = color.New(color.FgHiRed).SprintFunc()
	hiCyan   = color.New(color.FgHiCyan).SprintFunc()
	hiYellow = color.New(color.FgHiYellow).SprintFunc()
	hiBlue   = color.New(color.FgHiBlue).SprintFunc()
)

type treeNode struct {
	label    string
	detail   []string
	children []*treeNode
}

// RenderCallTree formats the sequence of external calls and internal jumps of
// an expanded trace as a tree. Each frame is shown as
//
//	Contract.functionName  [instruction]  start:stop  [gas / total gas]
//
// where start:stop index into the trace and frames that ended in a revert are
// highlighted. With expand set, decoded inputs and return values of external
// calls are included.
func RenderCallTree(txHash ethgo.Hash, steps []*Step, subcalls []*Subcall, callCost int64, expand bool) string {
	if len(steps) == 0 {
		return ""
	}

	internal, total := GasRange(steps, 0, len(steps))
	root := &treeNode{
		label: frameLabel(steps[0], steps[len(steps)-1], 0, len(steps), internal, total, nil),
	}

	active := []*treeNode{root}

	// indexes where the executing frame or jump depth changes
	type framePoint struct {
		idx, depth, jumpDepth int
	}

	points := []framePoint{{0, 0, 0}}

	for i := 1; i < len(steps); i++ {
		if !sameContext(steps[i], steps[i-1]) {
			points = append(points, framePoint{i, steps[i].Depth, steps[i].JumpDepth})
		}
	}

	nextSubcall := 0

	for i := 1; i < len(points); i++ {
		p, last := points[i], points[i-1]

		switch {
		case p.depth == last.depth && p.jumpDepth < last.jumpDepth:
			// returned from an internal function
			active = active[:len(active)-1]

			continue
		case p.depth < last.depth:
			// returned from an external call, unwind the jumps of the
			// abandoned depth as well
			active = active[:len(active)-(last.jumpDepth+1)]

			continue
		}

		var node *treeNode

		if p.depth > last.depth {
			end := len(steps)

			for _, later := range points[i+1:] {
				if later.depth < p.depth {
					end = later.idx

					break
				}
			}

			var sub *Subcall
			if nextSubcall < len(subcalls) {
				sub = subcalls[nextSubcall]
				nextSubcall++
			}

			internal, total := GasRange(steps, p.idx, end)
			node = &treeNode{
				label: frameLabel(steps[p.idx], steps[end-1], p.idx, end, internal, total, sub),
			}

			if expand && sub != nil {
				node.detail = subcallDetail(steps[p.idx], sub)
			}
		} else if p.jumpDepth > last.jumpDepth {
			end := len(steps)

			for _, later := range points[i+1:] {
				if later.depth < p.depth || (later.depth == p.depth && later.jumpDepth < p.jumpDepth) {
					end = later.idx

					break
				}
			}

			internal, total := GasRange(steps, p.idx, end)
			node = &treeNode{
				label: frameLabel(steps[p.idx], steps[end-1], p.idx, end, internal, total, nil),
			}
		} else {
			continue
		}

		parent := active[len(active)-1]
		parent.children = append(parent.children, node)
		active = append(active, node)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Call trace for '%s':\n", hiBlue(txHash.String()))
	fmt.Fprintf(&sb, "Initial call cost  [%s]\n", hiYellow(fmt.Sprintf("%d gas", callCost)))
	renderNode(&sb, root, "", "")

	return strings.TrimRight(sb.String(), "\n")
}

func renderNode(sb *strings.Builder, node *treeNode, prefix, childPrefix string) {
	sb.WriteString(prefix + node.label + "\n")

	for _, line := range node.detail {
		sb.WriteString(childPrefix + "│ " + line + "\n")
	}

	for i, child := range node.children {
		if i == len(node.children)-1 {
			renderNode(sb, child, childPrefix+"└─ ", childPrefix+"   ")
		} else {
			renderNode(sb, child, childPrefix+"├─ ", childPrefix+"│  ")
		}
	}
}

func frameLabel(step, lastStep *Step, start, stop int, internalGas, totalGas int64, sub *Subcall) string {
	var fn string

	switch {
	case (lastStep.Op == OpRevert || lastStep.Op == OpInvalid) && sameContext(step, lastStep):
		fn = hiRed(step.Fn)
	case step.JumpDepth > 0:
		fn = step.Fn
	default:
		fn = hiCyan(step.Fn)
	}

	label := fn + "  "

	if sub != nil {
		label += "[" + sub.Op + "]  "
	}

	label += fmt.Sprintf("%d:%d", start, stop)

	gasStr := fmt.Sprintf("%d gas", internalGas)
	if internalGas != totalGas {
		gasStr = fmt.Sprintf("%d / %d gas", internalGas, totalGas)
	}

	label += "  [" + hiYellow(gasStr) + "]"

	if lastStep.Op == OpSelfDestruct {
		label += "  [" + hiRed("SELFDESTRUCT") + "]"
	}

	return label
}

func subcallDetail(step *Step, sub *Subcall) []string {
	detail := []string{fmt.Sprintf("address: %s", step.Address)}

	if sub.Value != nil {
		detail = append(detail, fmt.Sprintf("value: %s", sub.Value))
	}

	switch {
	case sub.Inputs == nil:
		detail = append(detail, fmt.Sprintf("calldata: 0x%x", sub.Calldata))
	case len(sub.Inputs) == 0:
		detail = append(detail, "input arguments: None")
	default:
		detail = append(detail, "input arguments:")

		names := make([]string, 0, len(sub.Inputs))
		for name := range sub.Inputs {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			detail = append(detail, fmt.Sprintf("  %s: %v", name, sub.Inputs[name]))
		}
	}

	switch {
	case sub.ReturnValue != nil:
		detail = append(detail, fmt.Sprintf("return value: %v", sub.ReturnValue))
	case sub.ReturnData != nil:
		detail = append(detail, fmt.Sprintf("returndata: 0x%x", sub.ReturnData))
	}

	if sub.RevertMsg != nil {
		detail = append(detail, "revert reason: "+hiRed(*sub.RevertMsg))
	}

	return detail
}

// TracebackString renders the chain of source locations leading to the first
// revert site of a failed transaction, outermost frame first
func TracebackString(txHash ethgo.Hash, steps []*Step, reg registry.Registry) string {
	idx := -1

	for i, step := range steps {
		if step.Op == OpRevert || step.Op == OpInvalid {
			idx = i

			break
		}
	}

	if idx < 0 {
		return ""
	}

	first := -1

	for i := idx; i >= 0; i-- {
		if steps[i].Source != nil {
			first = i

			break
		}
	}

	if first < 0 {
		return ""
	}

	result := []int{first}
	depth, jumpDepth := steps[idx].Depth, steps[idx].JumpDepth

	for i := result[len(result)-1] - 1; i >= 0; i-- {
		if steps[i].Depth < depth || (steps[i].Depth == depth && steps[i].JumpDepth < jumpDepth) {
			result = append(result, i)
			depth, jumpDepth = steps[i].Depth, steps[i].JumpDepth
		}
	}

	parts := make([]string, 0, len(result))
	for i := len(result) - 1; i >= 0; i-- {
		parts = append(parts, SourceString(steps, reg, result[i], 0))
	}

	return fmt.Sprintf("Traceback for '%s':\n", hiBlue(txHash.String())) + strings.Join(parts, "\n")
}

// ErrorString renders the source code around the site of the final revert,
// with pad lines of surrounding context
func ErrorString(steps []*Step, reg registry.Registry, pad int) string {
	idx := -1

	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Op == OpRevert || steps[i].Op == OpInvalid {
			idx = i

			break
		}
	}

	for i := idx; i >= 0; i-- {
		if steps[i].Source != nil {
			return SourceString(steps, reg, i, pad)
		}
	}

	return ""
}

// SourceString renders the source code excerpt an expanded trace step maps to
func SourceString(steps []*Step, reg registry.Registry, idx, pad int) string {
	step := steps[idx]
	if step.Source == nil {
		return ""
	}

	contract, err := reg.GetContract(step.Address)
	if err != nil || contract == nil {
		return ""
	}

	src, ok := contract.Sources[step.Source.Filename]
	if !ok {
		return ""
	}

	excerpt, linenos := sourceExcerpt(src, step.Source.Offset, pad)
	if excerpt == "" {
		return ""
	}

	ln := fmt.Sprintf(" %s", hiBlue(fmt.Sprint(linenos[0])))
	if linenos[1] > linenos[0] {
		ln = fmt.Sprintf("s %s-%s", hiBlue(fmt.Sprint(linenos[0])), hiBlue(fmt.Sprint(linenos[1])))
	}

	return fmt.Sprintf(
		"Trace step %s, program counter %s:\n  File %s, line%s, in %s:\n%s",
		hiBlue(fmt.Sprint(idx)),
		hiBlue(fmt.Sprint(step.Pc)),
		fmt.Sprintf("%q", step.Source.Filename),
		ln,
		hiCyan(step.Fn),
		excerpt,
	)
}

// sourceExcerpt extracts the lines covering a character offset range plus pad
// surrounding lines, and reports the 1-based line range the offsets span
func sourceExcerpt(src string, offset [2]int, pad int) (string, [2]int) {
	if offset[0] < 0 || offset[1] > len(src) || offset[0] >= offset[1] {
		return "", [2]int{}
	}

	lines := strings.Split(src, "\n")

	firstLine := strings.Count(src[:offset[0]], "\n")
	lastLine := strings.Count(src[:offset[1]], "\n")

	start := firstLine - pad
	if start < 0 {
		start = 0
	}

	stop := lastLine + pad
	if stop >= len(lines) {
		stop = len(lines) - 1
	}

	var sb strings.Builder

	for i := start; i <= stop; i++ {
		text := lines[i]
		if i >= firstLine && i <= lastLine {
			text = hiCyan(text)
		}

		fmt.Fprintf(&sb, "%5d: %s\n", i+1, text)
	}

	return strings.TrimRight(sb.String(), "\n"), [2]int{firstLine + 1, lastLine + 1}
}

package trace

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/txtrace/command/helper"
	"github.com/0xPolygon/txtrace/tracker"
)

type traceResult struct {
	record *tracker.Record

	status    string
	gasUsed   uint64
	block     uint64
	revertMsg string
	devRevert string
	events    []*tracker.Event
	callTree  string
	traceback string
}

func newTraceResult(rec *tracker.Record, expand bool) (*traceResult, error) {
	result := &traceResult{
		record:  rec,
		status:  rec.Status().String(),
		gasUsed: rec.GasUsed(),
		block:   rec.BlockNumber(),
	}

	if rec.Status() == tracker.StatusDropped {
		return result, nil
	}

	callTree, err := rec.CallTrace(expand)
	if err != nil {
		return nil, err
	}

	result.callTree = callTree

	events, err := rec.Events()
	if err != nil {
		return nil, err
	}

	result.events = events

	if rec.Status() == tracker.StatusReverted {
		if result.revertMsg, err = rec.RevertMsg(); err != nil {
			return nil, err
		}

		if result.devRevert, err = rec.DevRevertMsg(); err != nil {
			return nil, err
		}

		if result.traceback, err = rec.Traceback(); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *traceResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[TRANSACTION]\n")
	buffer.WriteString(r.record.Info())
	buffer.WriteString("\n")

	if r.revertMsg != "" || r.devRevert != "" {
		buffer.WriteString("\n[REVERT REASON]\n")
		buffer.WriteString(helper.FormatKV([]string{
			fmt.Sprintf("Message|%s", r.revertMsg),
			fmt.Sprintf("Dev|%s", r.devRevert),
		}))
		buffer.WriteString("\n")
	}

	if len(r.events) > 0 {
		buffer.WriteString("\n[EVENTS]\n")

		for _, event := range r.events {
			name := event.Name
			if name == "" {
				name = "<undecoded>"
			}

			buffer.WriteString(fmt.Sprintf("%s  %s", name, event.Address))

			for key, value := range event.Args {
				buffer.WriteString(fmt.Sprintf("\n  %s: %v", key, value))
			}

			buffer.WriteString("\n")
		}
	}

	if r.callTree != "" {
		buffer.WriteString("\n[CALL TRACE]\n")
		buffer.WriteString(r.callTree)
		buffer.WriteString("\n")
	}

	if r.traceback != "" {
		buffer.WriteString("\n")
		buffer.WriteString(r.traceback)
		buffer.WriteString("\n")
	}

	return buffer.String()
}

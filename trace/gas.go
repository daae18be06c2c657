package trace

// refunds granted by the EVM that structured traces do not report
const (
	sstoreClearRefund  = 15000
	selfDestructRefund = 24000
)

// GasRange sums the gas charged by the steps in [start, stop). The first
// value only counts steps executing in the same frame and jump depth as the
// starting step, the second counts everything including nested calls.
func GasRange(steps []*Step, start, stop int) (internal, total int64) {
	isInternal := true

	for i := start; i < stop; i++ {
		step := steps[i]

		if isInternal && !sameContext(step, steps[start]) {
			isInternal = false

			// gas handed to an external call is not spent here
			if step.Depth > steps[start].Depth {
				internal -= steps[i-1].GasCost
			}
		} else if !isInternal && sameContext(step, steps[start]) {
			isInternal = true
		}

		total += step.GasCost

		if isInternal {
			internal += step.GasCost
		}

		// refunds are invisible in the trace and have to be added by hand.
		// an SSTORE of zero over an already-zero slot is indistinguishable
		// from a real clear, so the refund can overshoot.
		var refund int64

		switch {
		case step.Op == OpSStore && step.peekBig(1).Sign() == 0:
			refund = sstoreClearRefund
		case step.Op == OpSelfDestruct:
			refund = selfDestructRefund
		}

		total -= refund

		if isInternal {
			internal -= refund
		}
	}

	// the unspent gas of an external call flows back to the caller and was
	// already charged there as part of the call cost
	if start > 0 && steps[start].Depth > steps[start-1].Depth {
		total += steps[start-1].GasCost
		internal += steps[start-1].GasCost
	}

	return internal, total
}

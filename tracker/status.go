package tracker

import "errors"

// Status is the lifecycle state of a tracked transaction
type Status int

const (
	// StatusDropped marks a transaction replaced or evicted from the mempool
	StatusDropped Status = -2

	// StatusPending marks a transaction broadcast but not yet mined
	StatusPending Status = -1

	// StatusReverted marks a mined transaction whose execution failed
	StatusReverted Status = 0

	// StatusConfirmed marks a mined transaction whose execution succeeded
	StatusConfirmed Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusDropped:
		return "dropped"
	case StatusPending:
		return "pending"
	case StatusReverted:
		return "reverted"
	case StatusConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can no longer change
func (s Status) Terminal() bool {
	return s != StatusPending
}

var (
	// ErrPending is returned by accessors that need a mined transaction
	ErrPending = errors.New("transaction has not been mined yet")

	// ErrDropped is returned once a transaction was dropped without a
	// known replacement
	ErrDropped = errors.New("transaction was dropped")
)

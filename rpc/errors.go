package rpc

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when the node has no record of the requested
// transaction or receipt. It is usually transient while a transaction is
// still propagating, so callers are expected to retry.
type NotFoundError struct {
	What string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.What, e.Key)
}

// UnsupportedError is returned when the node does not expose a required
// endpoint (most commonly debug_traceTransaction). It is fatal for
// trace-dependent operations and is cached by the caller.
type UnsupportedError struct {
	Method string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("the node client does not support the `%s` endpoint or has not made it available", e.Method)
}

// RequestError wraps a transport-level failure with a remediation hint
type RequestError struct {
	Method string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request `%s` failed: %v (check that the RPC endpoint is reachable and healthy)", e.Method, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsNotFound checks whether err represents a missing transaction or receipt
func IsNotFound(err error) bool {
	var target *NotFoundError

	return errors.As(err, &target)
}

// IsUnsupported checks whether err represents a missing node capability
func IsUnsupported(err error) bool {
	var target *UnsupportedError

	return errors.As(err, &target)
}

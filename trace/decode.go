package trace

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/0xPolygon/txtrace/helper/hex"
	"github.com/umbracle/ethgo/abi"
)

var (
	// Error(string)
	errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}
	// Panic(uint256)
	panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71}

	stringType  = abi.MustNewType("tuple(string)")
	uint256Type = abi.MustNewType("tuple(uint256)")
)

// solidity panic codes, per the 0.8.x documentation
var panicReasons = map[uint64]string{
	0x01: "Failed assertion",
	0x11: "Integer overflow",
	0x12: "Division or modulo by zero",
	0x21: "Conversion to enum out of bounds",
	0x22: "Incorrectly encoded storage byte array",
	0x31: "Pop on empty array",
	0x32: "Index out of range",
	0x41: "Memory allocation overflow",
	0x51: "Zero-initialized variable of internal function type",
}

// decodeTypedError decodes a revert payload: Error(string) yields the raw
// string, Panic(uint256) yields a named reason, anything else falls back to
// the hex representation of the payload. Never fails.
func decodeTypedError(data []byte) string {
	if len(data) < 4 {
		return hex.EncodeToHex(data)
	}

	switch {
	case bytes.Equal(data[:4], errorSelector):
		if decoded, err := stringType.Decode(data[4:]); err == nil {
			if vals, ok := decoded.(map[string]interface{}); ok {
				if msg, ok := vals["0"].(string); ok {
					return msg
				}
			}
		}
	case bytes.Equal(data[:4], panicSelector):
		if decoded, err := uint256Type.Decode(data[4:]); err == nil {
			if vals, ok := decoded.(map[string]interface{}); ok {
				if code, ok := vals["0"].(*big.Int); ok {
					if reason, ok := panicReasons[code.Uint64()]; ok {
						return reason
					}

					return fmt.Sprintf("Panic (0x%02x)", code.Uint64())
				}
			}
		}
	}

	return hex.EncodeToHex(data)
}

// decodeMethodInputs decodes calldata (minus the selector) against a resolved
// method. A nil map and false are returned when decoding is not possible;
// the error never propagates.
func decodeMethodInputs(method *abi.Method, calldata []byte) (map[string]interface{}, bool) {
	if method == nil || len(calldata) < 4 {
		return nil, false
	}

	decoded, err := method.Inputs.Decode(calldata[4:])
	if err != nil {
		return nil, false
	}

	vals, ok := decoded.(map[string]interface{})

	return vals, ok
}

// decodeMethodOutputs decodes a return buffer against a resolved method
func decodeMethodOutputs(method *abi.Method, data []byte) (interface{}, bool) {
	if method == nil || len(data) == 0 {
		return nil, false
	}

	decoded, err := method.Outputs.Decode(data)
	if err != nil {
		return nil, false
	}

	return decoded, true
}

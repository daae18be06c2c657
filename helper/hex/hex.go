package hex

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// word size of an EVM stack entry, in hex characters
const WordLength = 64

// EncodeToHex generates a hex string based on the byte representation, with the '0x' prefix
func EncodeToHex(str []byte) string {
	return "0x" + hex.EncodeToString(str)
}

// EncodeToString is a wrapper method for hex.EncodeToString
func EncodeToString(str []byte) string {
	return hex.EncodeToString(str)
}

// DecodeHex converts a hex string to a byte array
func DecodeHex(str string) ([]byte, error) {
	str = strings.TrimPrefix(str, "0x")

	// pad to an even length so quantities with a dropped leading zero still decode
	if len(str)%2 == 1 {
		str = "0" + str
	}

	return hex.DecodeString(str)
}

// MustDecodeHex type-checks and converts a hex string to a byte array
func MustDecodeHex(str string) []byte {
	buf, err := DecodeHex(str)
	if err != nil {
		panic(fmt.Errorf("could not decode hex: %w", err))
	}

	return buf
}

// EncodeUint64 encodes a number as a hex string with 0x prefix.
func EncodeUint64(i uint64) string {
	enc := make([]byte, 2, 10)
	copy(enc, "0x")

	return string(strconv.AppendUint(enc, i, 16))
}

// DecodeUint64 decodes a hex string with 0x prefix to uint64
func DecodeUint64(hexStr string) (uint64, error) {
	// remove 0x suffix if found in the input string
	cleaned := strings.TrimPrefix(hexStr, "0x")

	return strconv.ParseUint(cleaned, 16, 64)
}

// DecodeHexToBig converts a hex number to a big.Int value
func DecodeHexToBig(hexNum string) *big.Int {
	createdNum := new(big.Int)
	createdNum.SetString(strings.TrimPrefix(hexNum, "0x"), 16)

	return createdNum
}

// NormalizeWord canonicalizes a stack entry to 64 unprefixed hex characters.
// Node clients disagree here: geth and nethermind return unprefixed zero-padded
// words, while erigon returns 0x-prefixed values with leading zeros stripped.
func NormalizeWord(str string) string {
	str = strings.TrimPrefix(str, "0x")
	if len(str) >= WordLength {
		return str[len(str)-WordLength:]
	}

	return strings.Repeat("0", WordLength-len(str)) + str
}

// DecodeSignedBig interprets a hex quantity as a signed big-endian integer.
// Required for clients that report negative gas costs (refund-only steps)
// as two's complement hex strings.
func DecodeSignedBig(hexStr string) *big.Int {
	buf, err := DecodeHex(hexStr)
	if err != nil || len(buf) == 0 {
		return new(big.Int)
	}

	num := new(big.Int).SetBytes(buf)
	if buf[0]&0x80 != 0 {
		num.Sub(num, new(big.Int).Lsh(big.NewInt(1), uint(len(buf))*8))
	}

	return num
}

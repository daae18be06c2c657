package coverage

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/umbracle/ethgo"
)

// HashInput carries the identifying fields of a mined transaction that make
// up its coverage deduplication key
type HashInput struct {
	Nonce       uint64
	BlockNumber uint64
	Sender      ethgo.Address
	Receiver    *ethgo.Address
	Value       *big.Int
	Input       []byte
	Status      int
	GasUsed     uint64
	TxIndex     uint64
}

// Hash computes the content hash used by external coverage tooling to
// deduplicate evaluated transactions
func Hash(in HashInput) string {
	receiver := "None"
	if in.Receiver != nil {
		receiver = in.Receiver.String()
	}

	value := "0"
	if in.Value != nil {
		value = in.Value.String()
	}

	base := fmt.Sprintf(
		"%d%d%s%s%s0x%x%d%d%d",
		in.Nonce, in.BlockNumber, in.Sender.String(), receiver,
		value, in.Input, in.Status, in.GasUsed, in.TxIndex,
	)

	sum := sha1.Sum([]byte(base))

	return hex.EncodeToString(sum[:])
}

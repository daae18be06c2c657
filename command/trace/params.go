package trace

import (
	"github.com/0xPolygon/txtrace/command/helper"
	"github.com/umbracle/ethgo"
)

const (
	artifactsFlag     = "artifacts"
	confirmationsFlag = "confirmations"
	coverageDBFlag    = "coverage-db"
	expandFlag        = "expand"
)

type traceParams struct {
	jsonRPCAddress string
	artifactsDir   string
	confirmations  uint64
	coverageDB     string
	expand         bool

	txHash ethgo.Hash
}

func (p *traceParams) validateFlags(args []string) error {
	hash, err := helper.ParseHash(args[0])
	if err != nil {
		return err
	}

	p.txHash = hash

	return nil
}

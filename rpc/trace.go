package rpc

// RawTrace is the unprocessed result of a debug_traceTransaction request.
//
// Numeric step fields are deliberately left untyped: depending on the node
// client they arrive either as JSON numbers (geth, erigon) or as hex strings
// (nethermind), and the normalizer needs to see which form was used.
type RawTrace struct {
	Gas         uint64     `json:"gas"`
	Failed      bool       `json:"failed"`
	ReturnValue string     `json:"returnValue"`
	StructLogs  []*RawStep `json:"structLogs"`
}

// RawStep is one EVM instruction as reported by the node
type RawStep struct {
	Pc      interface{} `json:"pc"`
	Op      string      `json:"op"`
	Gas     interface{} `json:"gas"`
	GasCost interface{} `json:"gasCost"`
	Depth   int         `json:"depth"`
	Stack   []string    `json:"stack"`
	Memory  []string    `json:"memory"`
}

package helper

import (
	"fmt"

	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"
	"github.com/umbracle/ethgo"
)

const (
	JSONRPCFlag           = "rpc"
	DefaultJSONRPCAddress = "http://localhost:8545"
)

// RegisterJSONRPCFlag registers the base JSON-RPC address flag on the command
func RegisterJSONRPCFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String(
		JSONRPCFlag,
		DefaultJSONRPCAddress,
		"the JSON-RPC interface of the node",
	)
}

// GetJSONRPCAddress extracts the JSON-RPC address from the flag set
func GetJSONRPCAddress(cmd *cobra.Command) string {
	addr, _ := cmd.Flags().GetString(JSONRPCFlag)

	return addr
}

// ParseHash parses a 0x-prefixed 32-byte transaction hash argument
func ParseHash(raw string) (ethgo.Hash, error) {
	var hash ethgo.Hash

	if err := hash.UnmarshalText([]byte(raw)); err != nil {
		return ethgo.Hash{}, fmt.Errorf("invalid transaction hash %q: %w", raw, err)
	}

	return hash, nil
}

// FormatKV formats key value pairs:
//
// Key = Value
//
// Key = <none>
func FormatKV(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"
	columnConf.Glue = " = "

	return columnize.Format(in, columnConf)
}

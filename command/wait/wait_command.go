package wait

import (
	"context"
	"fmt"
	"os"

	"github.com/0xPolygon/txtrace/command/helper"
	"github.com/spf13/cobra"
	"github.com/umbracle/ethgo"
)

const confirmationsFlag = "confirmations"

var params waitParams

type waitParams struct {
	jsonRPCAddress string
	confirmations  uint64

	txHash ethgo.Hash
}

// GetCommand returns the confirmation waiting command
func GetCommand() *cobra.Command {
	waitCmd := &cobra.Command{
		Use:     "wait <tx-hash>",
		Short:   "Waits until a transaction reaches the requested number of confirmations",
		Args:    cobra.ExactArgs(1),
		PreRunE: preRunCommand,
		RunE:    runCommand,
	}

	waitCmd.Flags().Uint64Var(
		&params.confirmations,
		confirmationsFlag,
		1,
		"number of confirmations to wait for",
	)

	return waitCmd
}

func preRunCommand(cmd *cobra.Command, args []string) error {
	params.jsonRPCAddress = helper.GetJSONRPCAddress(cmd)

	hash, err := helper.ParseHash(args[0])
	if err != nil {
		return err
	}

	params.txHash = hash

	return nil
}

func runCommand(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	stack, err := helper.NewStack(params.jsonRPCAddress, "", "")
	if err != nil {
		return err
	}

	defer func() {
		if err := stack.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()

	rec, err := stack.Tracker.Track(
		context.Background(),
		params.txHash,
		params.confirmations,
		true,
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, rec.Info())

	return nil
}

package trace

import (
	"context"
	"fmt"
	"os"

	"github.com/0xPolygon/txtrace/command/helper"
	"github.com/spf13/cobra"
)

var params traceParams

// GetCommand returns the transaction trace command
func GetCommand() *cobra.Command {
	traceCmd := &cobra.Command{
		Use:     "trace <tx-hash>",
		Short:   "Waits for a transaction and prints its decoded execution trace",
		Args:    cobra.ExactArgs(1),
		PreRunE: preRunCommand,
		RunE:    runCommand,
	}

	setFlags(traceCmd)

	return traceCmd
}

func preRunCommand(cmd *cobra.Command, args []string) error {
	params.jsonRPCAddress = helper.GetJSONRPCAddress(cmd)

	return params.validateFlags(args)
}

func setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&params.artifactsDir,
		artifactsFlag,
		"",
		"directory with contract build artifacts used to resolve traces",
	)

	cmd.Flags().Uint64Var(
		&params.confirmations,
		confirmationsFlag,
		1,
		"number of confirmations to wait for before tracing",
	)

	cmd.Flags().StringVar(
		&params.coverageDB,
		coverageDBFlag,
		"",
		"path of the coverage database, coverage is recorded when set",
	)

	cmd.Flags().BoolVar(
		&params.expand,
		expandFlag,
		false,
		"include decoded call inputs and return values in the call tree",
	)
}

func runCommand(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	stack, err := helper.NewStack(params.jsonRPCAddress, params.artifactsDir, params.coverageDB)
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

	result, err := newTraceResult(rec, params.expand)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, result.GetOutput())

	return nil
}

package root

import (
	"fmt"
	"os"

	"github.com/0xPolygon/txtrace/command/helper"
	"github.com/0xPolygon/txtrace/command/trace"
	"github.com/0xPolygon/txtrace/command/wait"
	"github.com/spf13/cobra"
)

type RootCommand struct {
	baseCmd *cobra.Command
}

func NewRootCommand() *RootCommand {
	rootCommand := &RootCommand{
		baseCmd: &cobra.Command{
			Use:   "txtrace",
			Short: "txtrace follows Ethereum transactions to confirmation and decodes their execution traces",
		},
	}

	helper.RegisterJSONRPCFlag(rootCommand.baseCmd)

	rootCommand.registerSubCommands()

	return rootCommand
}

func (rc *RootCommand) registerSubCommands() {
	rc.baseCmd.AddCommand(
		trace.GetCommand(),
		wait.GetCommand(),
	)
}

func (rc *RootCommand) Execute() {
	if err := rc.baseCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}

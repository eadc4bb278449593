package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type zkbridgeApp struct {
	baseCmd    *cobra.Command
	baseConfig *baseConfiguration
}

// New creates a new zkbridge application
func New() *zkbridgeApp {
	baseCmd, baseConfig := newBaseCmd()
	return &zkbridgeApp{baseCmd, baseConfig}
}

// Execute adds all child commands and runs the application
func (a *zkbridgeApp) Execute(ctx context.Context) error {
	a.baseCmd.AddCommand(newNodeCmd(a.baseConfig))
	a.baseCmd.AddCommand(newKeysCmd(a.baseConfig))
	a.baseCmd.AddCommand(newPlatformCmd(a.baseConfig))
	a.baseCmd.AddCommand(newRampCmd(a.baseConfig))
	a.baseCmd.AddCommand(newProofCmd(a.baseConfig))
	a.baseCmd.AddCommand(newProveCmd(a.baseConfig))
	a.baseCmd.AddCommand(newWithdrawCmd(a.baseConfig))
	a.baseCmd.AddCommand(newBalanceCmd(a.baseConfig))
	return a.baseCmd.ExecuteContext(ctx)
}

func newBaseCmd() (*cobra.Command, *baseConfiguration) {
	config := &baseConfiguration{}
	// baseCmd represents the base command when called without any subcommands
	var baseCmd = &cobra.Command{
		Use:           "zkbridge",
		Short:         "The zkbridge CLI",
		Long:          `The zkbridge CLI runs the bridge node and includes client commands for sequencers, rampers and provers.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// If subcommand does not define PersistentPreRunE, the one from base cmd is used.
			if err := initializeConfig(cmd, config); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	config.addConfigurationFlags(baseCmd)
	return baseCmd, config
}

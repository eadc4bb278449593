package cmd

import (
	"github.com/spf13/cobra"
)

const initialStateCmdName = "initial-state"

func newPlatformCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := newClientConfig(baseConfig)
	var platformCmd = &cobra.Command{
		Use:   "platform",
		Short: "creates and queries rollup platforms",
	}
	config.addClientFlags(platformCmd)
	platformCmd.AddCommand(createPlatformCmd(config))
	platformCmd.AddCommand(showPlatformCmd(config))
	platformCmd.AddCommand(listPlatformsCmd(config))
	return platformCmd
}

func createPlatformCmd(config *clientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "registers a new platform, the key of the caller becomes the sequencer",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			initialStateHash, err := getHash(cmd, initialStateCmdName)
			if err != nil {
				return err
			}
			c, err := config.newClient(cmd, true)
			if err != nil {
				return err
			}
			p, err := c.CreatePlatform(cmd.Context(), id, initialStateHash)
			if err != nil {
				return err
			}
			return printJson(cmd, p)
		},
	}
	addPlatformIDFlag(cmd)
	cmd.Flags().String(initialStateCmdName, "", "initial state hash of the rollup (32 bytes, hex)")
	_ = cmd.MarkFlagRequired(initialStateCmdName)
	return cmd
}

func showPlatformCmd(config *clientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "prints the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			c, err := config.newClient(cmd, false)
			if err != nil {
				return err
			}
			p, err := c.Platform(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJson(cmd, p)
		},
	}
	addPlatformIDFlag(cmd)
	return cmd
}

func listPlatformsCmd(config *clientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "prints all platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.newClient(cmd, false)
			if err != nil {
				return err
			}
			platforms, err := c.Platforms(cmd.Context())
			if err != nil {
				return err
			}
			return printJson(cmd, platforms)
		},
	}
}

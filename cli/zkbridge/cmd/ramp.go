package cmd

import (
	"github.com/spf13/cobra"
)

const (
	offrampCmdName = "offramp"
	ramperCmdName  = "ramper"
)

func newRampCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := newClientConfig(baseConfig)
	var rampCmd = &cobra.Command{
		Use:   "ramp",
		Short: "queues ramp transactions and queries ramp ledgers",
	}
	config.addClientFlags(rampCmd)
	rampCmd.AddCommand(addRampTxCmd(config))
	rampCmd.AddCommand(showRampLedgerCmd(config))
	return rampCmd
}

func addRampTxCmd(config *clientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "queues an onramp (deposit) or offramp (withdraw) transaction of the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			amount, err := cmd.Flags().GetUint64(amountCmdName)
			if err != nil {
				return err
			}
			offramp, err := cmd.Flags().GetBool(offrampCmdName)
			if err != nil {
				return err
			}
			c, err := config.newClient(cmd, true)
			if err != nil {
				return err
			}
			p, err := c.AddRampTx(cmd.Context(), id, !offramp, amount)
			if err != nil {
				return err
			}
			return printJson(cmd, p)
		},
	}
	addPlatformIDFlag(cmd)
	cmd.Flags().Uint64(amountCmdName, 0, "amount of the transaction")
	cmd.Flags().Bool(offrampCmdName, false, "queue a withdraw request instead of a deposit")
	_ = cmd.MarkFlagRequired(amountCmdName)
	return cmd
}

func showRampLedgerCmd(config *clientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "prints the ramp ledger of the ramper",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			ramper, err := config.identityOrSelf(cmd, ramperCmdName)
			if err != nil {
				return err
			}
			c, err := config.newClient(cmd, false)
			if err != nil {
				return err
			}
			l, err := c.RampLedger(cmd.Context(), id, ramper)
			if err != nil {
				return err
			}
			return printJson(cmd, l)
		},
	}
	addPlatformIDFlag(cmd)
	cmd.Flags().String(ramperCmdName, "", "public key of the ramper (default: own key)")
	return cmd
}

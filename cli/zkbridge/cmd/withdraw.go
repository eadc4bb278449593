package cmd

import (
	"github.com/spf13/cobra"
)

const identityCmdName = "identity"

func newWithdrawCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := newClientConfig(baseConfig)
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "pays out proven withdrawals of the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			amount, err := cmd.Flags().GetUint64(amountCmdName)
			if err != nil {
				return err
			}
			c, err := config.newClient(cmd, true)
			if err != nil {
				return err
			}
			l, err := c.Withdraw(cmd.Context(), id, amount)
			if err != nil {
				return err
			}
			return printJson(cmd, l)
		},
	}
	config.addClientFlags(cmd)
	addPlatformIDFlag(cmd)
	cmd.Flags().Uint64(amountCmdName, 0, "amount to withdraw")
	_ = cmd.MarkFlagRequired(amountCmdName)
	return cmd
}

func newBalanceCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := newClientConfig(baseConfig)
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "prints the balance withdrawals have been paid to",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := config.identityOrSelf(cmd, identityCmdName)
			if err != nil {
				return err
			}
			c, err := config.newClient(cmd, false)
			if err != nil {
				return err
			}
			b, err := c.Balance(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printJson(cmd, b)
		},
	}
	config.addClientFlags(cmd)
	cmd.Flags().String(identityCmdName, "", "public key of the owner (default: own key)")
	return cmd
}

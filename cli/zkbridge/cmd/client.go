package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/zkbridge/internal/client"
	"github.com/alphabill-org/zkbridge/internal/types"
)

const (
	rpcUrlCmdName     = "rpc-url"
	platformIDCmdName = "platform-id"
	amountCmdName     = "amount"
)

// clientConfig is the configuration of the commands calling the REST API of
// the bridge node.
type clientConfig struct {
	keysConfig
	RpcUrl string
}

func newClientConfig(baseConfig *baseConfiguration) *clientConfig {
	return &clientConfig{keysConfig: keysConfig{Base: baseConfig}}
}

func (c *clientConfig) addClientFlags(cmd *cobra.Command) {
	c.addKeyFileFlags(cmd)
	cmd.PersistentFlags().StringVarP(&c.RpcUrl, rpcUrlCmdName, "r", defaultServerAddr, "bridge node REST API URL")
}

// newClient creates the REST client, loading the signing key when "signed"
// is true.
func (c *clientConfig) newClient(cmd *cobra.Command, signed bool) (*client.BridgeClient, error) {
	if !signed {
		return client.New(c.RpcUrl, nil)
	}
	keys, err := c.loadKeys(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(c.RpcUrl, keys.Signer)
}

// identityOrSelf returns the identity given with the flag, or the public key
// of the key file when the flag is not set.
func (c *clientConfig) identityOrSelf(cmd *cobra.Command, flagName string) (types.Identity, error) {
	s, err := cmd.Flags().GetString(flagName)
	if err != nil {
		return nil, err
	}
	if s != "" {
		return types.IdentityFromHex(s)
	}
	keys, err := c.loadKeys(cmd)
	if err != nil {
		return nil, fmt.Errorf("--%s not set, using own key: %w", flagName, err)
	}
	return keys.PubKey(), nil
}

func addPlatformIDFlag(cmd *cobra.Command) {
	cmd.Flags().StringP(platformIDCmdName, "i", "", "platform identifier (32 bytes, hex)")
	_ = cmd.MarkFlagRequired(platformIDCmdName)
}

func getPlatformID(cmd *cobra.Command) (types.PlatformID, error) {
	s, err := cmd.Flags().GetString(platformIDCmdName)
	if err != nil {
		return types.PlatformID{}, err
	}
	return types.PlatformIDFromHex(s)
}

func getHash(cmd *cobra.Command, flagName string) (types.Hash, error) {
	s, err := cmd.Flags().GetString(flagName)
	if err != nil {
		return types.Hash{}, err
	}
	h, err := types.HashFromHex(s)
	if err != nil {
		return types.Hash{}, fmt.Errorf("invalid --%s: %w", flagName, err)
	}
	return h, nil
}

func readFile(name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return b, nil
}

func printJson(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

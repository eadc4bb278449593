package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alphabill-org/zkbridge/internal/crypto"
	"github.com/alphabill-org/zkbridge/internal/util"
)

const (
	defaultKeysFileName = "keys.json"

	keyFileCmdName        = "key-file"
	passwordPromptCmdName = "password"
	passwordArgCmdName    = "pn"
	mnemonicCmdName       = "mnemonic"
	accountCmdName        = "account"
	forceCmdName          = "force"
	showMnemonicCmdName   = "show-mnemonic"

	passwordPromptUsage = "password (interactive from prompt)"
	passwordArgUsage    = "password (non-interactive from args)"
)

type keysConfig struct {
	Base        *baseConfiguration
	KeyFilePath string
}

func (c *keysConfig) addKeyFileFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&c.KeyFilePath, keyFileCmdName, "k", "", fmt.Sprintf("path to the key file (default: $ZKB_HOME/%s)", defaultKeysFileName))
	cmd.PersistentFlags().BoolP(passwordPromptCmdName, "p", false, passwordPromptUsage)
	cmd.PersistentFlags().String(passwordArgCmdName, "", passwordArgUsage)
}

func (c *keysConfig) GetKeyFileLocation() string {
	if c.KeyFilePath != "" {
		return c.KeyFilePath
	}
	return filepath.Join(c.Base.HomeDir, defaultKeysFileName)
}

func (c *keysConfig) loadKeys(cmd *cobra.Command) (*crypto.Keys, error) {
	passphrase, err := getPassphrase(cmd, "Enter passphrase: ")
	if err != nil {
		return nil, err
	}
	keys, err := crypto.LoadKeys(c.GetKeyFileLocation(), passphrase)
	if errors.Is(err, crypto.ErrWrongPassphrase) && passphrase == "" {
		return nil, fmt.Errorf("key file is encrypted, use --%s or --%s", passwordPromptCmdName, passwordArgCmdName)
	}
	return keys, err
}

func newKeysCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &keysConfig{Base: baseConfig}
	var keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "manages the signing key of the participant",
		Long:  "manages the secp256k1 signing key, its public key is the identity of the sequencer, ramper or prover",
	}
	config.addKeyFileFlags(keysCmd)
	keysCmd.AddCommand(generateKeysCmd(config))
	keysCmd.AddCommand(showKeysCmd(config))
	return keysCmd
}

func generateKeysCmd(config *keysConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "creates a new key file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execGenerateKeysCmd(cmd, config)
		},
	}
	cmd.Flags().StringP(mnemonicCmdName, "s", "", "mnemonic to restore the key from, new mnemonic is generated when not set")
	cmd.Flags().Uint64(accountCmdName, 0, "account index of the derivation path")
	cmd.Flags().BoolP(forceCmdName, "f", false, "overwrite existing key file")
	return cmd
}

func execGenerateKeysCmd(cmd *cobra.Command, config *keysConfig) error {
	mnemonic, err := cmd.Flags().GetString(mnemonicCmdName)
	if err != nil {
		return err
	}
	account, err := cmd.Flags().GetUint64(accountCmdName)
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool(forceCmdName)
	if err != nil {
		return err
	}
	keyFile := config.GetKeyFileLocation()
	if util.FileExists(keyFile) && !force {
		return fmt.Errorf("key file %s already exists, use --%s to overwrite", keyFile, forceCmdName)
	}
	passphrase, err := createPassphrase(cmd)
	if err != nil {
		return err
	}
	keys, err := crypto.NewKeys(mnemonic, account)
	if err != nil {
		return fmt.Errorf("creating keys: %w", err)
	}
	if err := keys.Save(keyFile, passphrase); err != nil {
		return fmt.Errorf("saving key file: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Key file created: %s\n", keyFile)
	fmt.Fprintf(out, "Public key: %s\n", hexutil.Encode(keys.PubKey()))
	if mnemonic == "" {
		fmt.Fprintf(out, "Mnemonic: %s\n", keys.Mnemonic)
	}
	return nil
}

func showKeysCmd(config *keysConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "prints the public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := config.loadKeys(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Public key: %s\n", hexutil.Encode(keys.PubKey()))
			fmt.Fprintf(out, "Derivation path: %s\n", keys.DerivationPath)
			if show, _ := cmd.Flags().GetBool(showMnemonicCmdName); show {
				fmt.Fprintf(out, "Mnemonic: %s\n", keys.Mnemonic)
			}
			return nil
		},
	}
	cmd.Flags().Bool(showMnemonicCmdName, false, "prints also the mnemonic")
	return cmd
}

func createPassphrase(cmd *cobra.Command) (string, error) {
	passwordFromArg, err := cmd.Flags().GetString(passwordArgCmdName)
	if err != nil {
		return "", err
	}
	if passwordFromArg != "" {
		return passwordFromArg, nil
	}
	passwordFlag, err := cmd.Flags().GetBool(passwordPromptCmdName)
	if err != nil {
		return "", err
	}
	if !passwordFlag {
		return "", nil
	}
	p1, err := readPassword(cmd, "Create new passphrase: ")
	if err != nil {
		return "", err
	}
	p2, err := readPassword(cmd, "Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if p1 != p2 {
		return "", errors.New("passphrases do not match")
	}
	return p1, nil
}

func getPassphrase(cmd *cobra.Command, promptMessage string) (string, error) {
	passwordFromArg, err := cmd.Flags().GetString(passwordArgCmdName)
	if err != nil {
		return "", err
	}
	if passwordFromArg != "" {
		return passwordFromArg, nil
	}
	passwordFlag, err := cmd.Flags().GetBool(passwordPromptCmdName)
	if err != nil || !passwordFlag {
		return "", err
	}
	return readPassword(cmd, promptMessage)
}

func readPassword(cmd *cobra.Command, promptMessage string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), promptMessage)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(cmd.ErrOrStderr()) // line break after reading password
	return string(passwordBytes), nil
}

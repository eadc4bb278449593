package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/zkbridge/internal/client"
	"github.com/alphabill-org/zkbridge/internal/types"
	"github.com/alphabill-org/zkbridge/internal/verifier"
)

const (
	fileCmdName      = "file"
	chunkSizeCmdName = "chunk-size"
	proverCmdName    = "prover"
	postStateCmdName = "post-state"
	outputCmdName    = "output"
	inlineCmdName    = "inline"
)

func newProofCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := newClientConfig(baseConfig)
	var proofCmd = &cobra.Command{
		Use:   "proof",
		Short: "uploads proofs to the proof buffer of the caller",
	}
	config.addClientFlags(proofCmd)
	proofCmd.AddCommand(uploadProofCmd(config))
	proofCmd.AddCommand(abandonProofCmd(config))
	proofCmd.AddCommand(proofStatusCmd(config))
	proofCmd.AddCommand(digestProofCmd(config))
	return proofCmd
}

func uploadProofCmd(config *clientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "uploads the proof payload in chunks, an interrupted upload is resumed",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			fileName, err := cmd.Flags().GetString(fileCmdName)
			if err != nil {
				return err
			}
			chunkSize, err := cmd.Flags().GetInt(chunkSizeCmdName)
			if err != nil {
				return err
			}
			payload, err := readFile(fileName)
			if err != nil {
				return err
			}
			c, err := config.newClient(cmd, true)
			if err != nil {
				return err
			}
			status, err := c.UploadProof(cmd.Context(), id, payload, chunkSize)
			if err != nil {
				return err
			}
			return printJson(cmd, status)
		},
	}
	addPlatformIDFlag(cmd)
	cmd.Flags().String(fileCmdName, "", "proof payload file")
	cmd.Flags().Int(chunkSizeCmdName, client.DefaultChunkSize, "upload chunk size in bytes")
	_ = cmd.MarkFlagRequired(fileCmdName)
	return cmd
}

func abandonProofCmd(config *clientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abandon",
		Short: "discards the proof buffer of the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			c, err := config.newClient(cmd, true)
			if err != nil {
				return err
			}
			if err := c.AbandonProof(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Proof buffer discarded")
			return nil
		},
	}
	addPlatformIDFlag(cmd)
	return cmd
}

func proofStatusCmd(config *clientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "prints the upload status of the proof buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			prover, err := config.identityOrSelf(cmd, proverCmdName)
			if err != nil {
				return err
			}
			c, err := config.newClient(cmd, false)
			if err != nil {
				return err
			}
			status, err := c.ProofStatus(cmd.Context(), id, prover)
			if err != nil {
				return err
			}
			return printJson(cmd, status)
		},
	}
	addPlatformIDFlag(cmd)
	cmd.Flags().String(proverCmdName, "", "public key of the prover (default: own key)")
	return cmd
}

func digestProofCmd(config *clientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "creates a proof payload of the pending batch for nodes running the digest verifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			post, err := getHash(cmd, postStateCmdName)
			if err != nil {
				return err
			}
			output, err := cmd.Flags().GetString(outputCmdName)
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
			pi := types.ExpectedPublicInput(p, post)
			proof, err := verifier.DigestProof(pi)
			if err != nil {
				return err
			}
			payload, err := (&types.ProofPayload{Proof: proof, PublicInput: pi}).Bytes()
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, payload, 0600); err != nil {
				return fmt.Errorf("writing proof payload: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Proof payload of %d ramp transactions written to %s\n", len(pi.RampTxs), output)
			return nil
		},
	}
	addPlatformIDFlag(cmd)
	cmd.Flags().String(postStateCmdName, "", "state hash after applying the pending batch (32 bytes, hex)")
	cmd.Flags().StringP(outputCmdName, "o", "", "proof payload output file")
	_ = cmd.MarkFlagRequired(postStateCmdName)
	_ = cmd.MarkFlagRequired(outputCmdName)
	return cmd
}

func newProveCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := newClientConfig(baseConfig)
	cmd := &cobra.Command{
		Use:   "prove",
		Short: "settles the pending batch with the uploaded proof of the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := getPlatformID(cmd)
			if err != nil {
				return err
			}
			inlineFile, err := cmd.Flags().GetString(inlineCmdName)
			if err != nil {
				return err
			}
			var inline []byte
			if inlineFile != "" {
				if inline, err = readFile(inlineFile); err != nil {
					return err
				}
			}
			c, err := config.newClient(cmd, true)
			if err != nil {
				return err
			}
			res, err := c.Prove(cmd.Context(), id, inline)
			if err != nil {
				return err
			}
			return printJson(cmd, res)
		},
	}
	config.addClientFlags(cmd)
	addPlatformIDFlag(cmd)
	cmd.Flags().String(inlineCmdName, "", "send the proof payload from the file with the request instead of using the proof buffer")
	return cmd
}

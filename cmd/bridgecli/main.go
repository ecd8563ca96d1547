// Copyright (C) 2025, Tempo Foundation. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	bridge "github.com/tempoxyz/bridge"
	"github.com/tempoxyz/bridge/bls"
	"github.com/tempoxyz/bridge/tokens"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bridgecli",
	Short: "Tempo bridge protocol CLI",
	Long: `Tools for the Tempo cross-chain bridge: compute the hashes and payloads
the protocol signs, and manage the BLS keys that sign them.`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	hashCmd.AddCommand(hashTransferCmd)
	hashCmd.AddCommand(hashAssetCmd)
	hashCmd.AddCommand(hashRotationCmd)

	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(payloadCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(aggregateCmd)
}

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Compute protocol hashes",
}

var hashTransferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Compute the message hash of a token transfer",
	Long: `Compute the hash a coordinator sends through the ledger for a token
transfer. Claiming on the destination chain reconstructs this hash from the
same fields, so any mismatch means the claim will not be honored.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		origin, _ := flags.GetUint64("origin-chain-id")
		destination, _ := flags.GetUint64("destination-chain-id")
		homeChain, _ := flags.GetUint64("home-chain-id")
		nonce, _ := flags.GetUint64("nonce")

		homeToken, err := addressFlag(flags, "home-token")
		if err != nil {
			return err
		}
		recipient, err := addressFlag(flags, "recipient")
		if err != nil {
			return err
		}
		amountStr, _ := flags.GetString("amount")
		amount, err := uint256.FromDecimal(amountStr)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}

		msg := &bridge.TransferMessage{
			OriginChainID:      origin,
			DestinationChainID: destination,
			HomeChainID:        homeChain,
			HomeToken:          homeToken,
			Recipient:          recipient,
			Amount:             amount,
			Nonce:              nonce,
		}
		fmt.Println(msg.Hash().Hex())
		return nil
	},
}

var hashAssetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Compute the asset ID of a bridged token",
	Long: `Compute the asset ID derived from a token's home chain and home address.
Every chain registers the same asset under this one ID.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		homeChain, _ := flags.GetUint64("home-chain-id")
		homeToken, err := addressFlag(flags, "home-token")
		if err != nil {
			return err
		}
		fmt.Println(tokens.ComputeAssetID(homeChain, homeToken).Hex())
		return nil
	},
}

var hashRotationCmd = &cobra.Command{
	Use:   "rotation",
	Short: "Compute the message a retiring group key signs to rotate",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		oldEpoch, _ := flags.GetUint64("old-epoch")
		newEpoch, _ := flags.GetUint64("new-epoch")

		newKeyBytes, err := hexFlag(flags, "new-key")
		if err != nil {
			return err
		}
		if _, err := bls.PublicKeyFromBytes(newKeyBytes); err != nil {
			return fmt.Errorf("invalid new group key: %w", err)
		}

		fmt.Println(bridge.RotationMessageHash(oldEpoch, newEpoch, newKeyBytes).Hex())
		return nil
	},
}

var payloadCmd = &cobra.Command{
	Use:   "payload",
	Short: "Print the attestation payload validators sign for a message",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		origin, _ := flags.GetUint64("origin-chain-id")
		destination, _ := flags.GetUint64("destination-chain-id")
		epoch, _ := flags.GetUint64("epoch")

		sender, err := addressFlag(flags, "sender")
		if err != nil {
			return err
		}
		messageHash, err := hashFlag(flags, "message-hash")
		if err != nil {
			return err
		}

		payload := bridge.AttestationPayload(origin, sender, messageHash, destination, epoch)
		fmt.Printf("0x%x\n", payload)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a BLS signing key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("out")

		sk, pk, err := bls.GenerateKey()
		if err != nil {
			return err
		}

		if out != "" {
			encoded := hex.EncodeToString(sk.Bytes()) + "\n"
			if err := os.WriteFile(out, []byte(encoded), 0o600); err != nil {
				return fmt.Errorf("writing key file: %w", err)
			}
			fmt.Printf("secret key written to %s\n", out)
		} else {
			fmt.Printf("secret key: 0x%x\n", sk.Bytes())
		}
		fmt.Printf("public key: 0x%x\n", pk.Bytes())
		return nil
	},
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a payload with a BLS secret key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		keyFile, _ := flags.GetString("key-file")

		payload, err := hexFlag(flags, "payload")
		if err != nil {
			return err
		}
		sk, err := readSecretKey(keyFile)
		if err != nil {
			return err
		}

		sig, err := sk.Sign(payload)
		if err != nil {
			return err
		}
		fmt.Printf("0x%x\n", sig.Bytes())
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a BLS signature over a payload",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()

		pkBytes, err := hexFlag(flags, "public-key")
		if err != nil {
			return err
		}
		payload, err := hexFlag(flags, "payload")
		if err != nil {
			return err
		}
		sigBytes, err := hexFlag(flags, "signature")
		if err != nil {
			return err
		}

		pk, err := bls.PublicKeyFromBytes(pkBytes)
		if err != nil {
			return fmt.Errorf("invalid public key: %w", err)
		}
		sig, err := bls.SignatureFromBytes(sigBytes)
		if err != nil {
			return fmt.Errorf("invalid signature: %w", err)
		}

		if !bls.Verify(pk, payload, sig) {
			return fmt.Errorf("signature does not verify")
		}
		fmt.Println("signature valid")
		return nil
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate BLS signatures and public keys",
	Long: `Aggregate partial signatures into one group signature, and the matching
public keys into the group key that verifies it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		sigHexes, _ := flags.GetStringSlice("signatures")
		pkHexes, _ := flags.GetStringSlice("public-keys")
		if len(sigHexes) == 0 && len(pkHexes) == 0 {
			return fmt.Errorf("nothing to aggregate")
		}

		if len(sigHexes) > 0 {
			sigs := make([]*bls.Signature, len(sigHexes))
			for i, raw := range sigHexes {
				b, err := decodeHex(raw)
				if err != nil {
					return fmt.Errorf("signature %d: %w", i, err)
				}
				if sigs[i], err = bls.SignatureFromBytes(b); err != nil {
					return fmt.Errorf("signature %d: %w", i, err)
				}
			}
			aggregate, err := bls.AggregateSignatures(sigs)
			if err != nil {
				return err
			}
			fmt.Printf("aggregate signature: 0x%x\n", aggregate.Bytes())
		}

		if len(pkHexes) > 0 {
			pks := make([]*bls.PublicKey, len(pkHexes))
			for i, raw := range pkHexes {
				b, err := decodeHex(raw)
				if err != nil {
					return fmt.Errorf("public key %d: %w", i, err)
				}
				if pks[i], err = bls.PublicKeyFromBytes(b); err != nil {
					return fmt.Errorf("public key %d: %w", i, err)
				}
			}
			aggregate, err := bls.AggregatePublicKeys(pks)
			if err != nil {
				return err
			}
			fmt.Printf("aggregate public key: 0x%x\n", aggregate.Bytes())
		}
		return nil
	},
}

func init() {
	hashTransferCmd.Flags().Uint64("origin-chain-id", 0, "chain the transfer leaves from")
	hashTransferCmd.Flags().Uint64("destination-chain-id", 0, "chain the transfer arrives on")
	hashTransferCmd.Flags().Uint64("home-chain-id", 0, "asset's home chain")
	hashTransferCmd.Flags().String("home-token", "", "asset's home token address")
	hashTransferCmd.Flags().String("recipient", "", "recipient address on the destination chain")
	hashTransferCmd.Flags().String("amount", "", "amount in base units (decimal)")
	hashTransferCmd.Flags().Uint64("nonce", 0, "per-coordinator transfer nonce")
	markRequired(hashTransferCmd,
		"origin-chain-id", "destination-chain-id", "home-chain-id",
		"home-token", "recipient", "amount")

	hashAssetCmd.Flags().Uint64("home-chain-id", 0, "asset's home chain")
	hashAssetCmd.Flags().String("home-token", "", "asset's home token address")
	markRequired(hashAssetCmd, "home-chain-id", "home-token")

	hashRotationCmd.Flags().Uint64("old-epoch", 0, "epoch of the retiring key")
	hashRotationCmd.Flags().Uint64("new-epoch", 0, "epoch the new key takes effect")
	hashRotationCmd.Flags().String("new-key", "", "new group public key (hex)")
	markRequired(hashRotationCmd, "old-epoch", "new-epoch", "new-key")

	payloadCmd.Flags().Uint64("origin-chain-id", 0, "chain the message was sent on")
	payloadCmd.Flags().String("sender", "", "sender recorded on the origin chain")
	payloadCmd.Flags().String("message-hash", "", "message hash (hex)")
	payloadCmd.Flags().Uint64("destination-chain-id", 0, "chain the attestation is delivered to")
	payloadCmd.Flags().Uint64("epoch", 0, "group key epoch the attestation targets")
	markRequired(payloadCmd,
		"origin-chain-id", "sender", "message-hash", "destination-chain-id", "epoch")

	keygenCmd.Flags().String("out", "", "write the secret key to this file instead of stdout")

	signCmd.Flags().String("key-file", "", "file holding a hex-encoded secret key")
	signCmd.Flags().String("payload", "", "payload to sign (hex)")
	markRequired(signCmd, "key-file", "payload")

	verifyCmd.Flags().String("public-key", "", "public key (hex)")
	verifyCmd.Flags().String("payload", "", "signed payload (hex)")
	verifyCmd.Flags().String("signature", "", "signature (hex)")
	markRequired(verifyCmd, "public-key", "payload", "signature")

	aggregateCmd.Flags().StringSlice("signatures", nil, "partial signatures (hex, comma separated)")
	aggregateCmd.Flags().StringSlice("public-keys", nil, "signer public keys (hex, comma separated)")
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func addressFlag(flags *pflag.FlagSet, name string) (common.Address, error) {
	raw, err := flags.GetString(name)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("--%s: %q is not a hex address", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func hashFlag(flags *pflag.FlagSet, name string) (common.Hash, error) {
	raw, err := flags.GetString(name)
	if err != nil {
		return common.Hash{}, err
	}
	b, err := decodeHex(raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("--%s: %w", name, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("--%s: want %d bytes, got %d", name, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

func hexFlag(flags *pflag.FlagSet, name string) ([]byte, error) {
	raw, err := flags.GetString(name)
	if err != nil {
		return nil, err
	}
	b, err := decodeHex(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return b, nil
}

func decodeHex(raw string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
}

func readSecretKey(path string) (*bls.SecretKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	b, err := decodeHex(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding key file: %w", err)
	}
	return bls.SecretKeyFromBytes(b)
}

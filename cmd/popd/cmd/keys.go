package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/go-bip39"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/proofofpost/pop/app"
	"github.com/proofofpost/pop/x/postproof/types"
)

const (
	flagMnemonic = "mnemonic"
	flagAccount  = "account-index"
	flagIndex    = "address-index"
	flagWords    = "words"
)

// KeysCmd prints derived identities and devnet accounts.
func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Derive account identities",
	}
	cmd.AddCommand(keysDeriveCmd(), keysMnemonicCmd(), keysSignChallengeCmd())
	return cmd
}

func keysDeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the deterministic address of a campaign, log, tracker or job",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "config [owner] [label]",
			Short: "Campaign address for an owner and label",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				owner, err := sdk.AccAddressFromBech32(args[0])
				if err != nil {
					return fmt.Errorf("owner: %w", err)
				}
				if err := types.ValidateLabel(args[1]); err != nil {
					return err
				}
				return printAddress(cmd.OutOrStdout(), types.ConfigAddress(owner, args[1]))
			},
		},
		&cobra.Command{
			Use:   "log [claimant] [config]",
			Short: "Verification log address for a claimant and campaign",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				claimant, err := sdk.AccAddressFromBech32(args[0])
				if err != nil {
					return fmt.Errorf("claimant: %w", err)
				}
				config, err := sdk.AccAddressFromBech32(args[1])
				if err != nil {
					return fmt.Errorf("config: %w", err)
				}
				return printAddress(cmd.OutOrStdout(), types.LogAddress(claimant, config))
			},
		},
		&cobra.Command{
			Use:   "tracker [request-id]",
			Short: "Execution tracker address for a request id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if args[0] == "" || len(args[0]) > types.MaxRequestIDLen {
					return fmt.Errorf("request id must be 1-%d bytes", types.MaxRequestIDLen)
				}
				return printAddress(cmd.OutOrStdout(), types.TrackerAddress(args[0]))
			},
		},
		&cobra.Command{
			Use:   "execution [tracker] [claimant] [nonce]",
			Short: "Job reference for a tracker, claimant and nonce",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				tracker, err := sdk.AccAddressFromBech32(args[0])
				if err != nil {
					return fmt.Errorf("tracker: %w", err)
				}
				claimant, err := sdk.AccAddressFromBech32(args[1])
				if err != nil {
					return fmt.Errorf("claimant: %w", err)
				}
				nonce, err := cast.ToUint64E(args[2])
				if err != nil {
					return fmt.Errorf("nonce: %w", err)
				}
				return printAddress(cmd.OutOrStdout(), types.ExecutionAddress(tracker, claimant, nonce))
			},
		},
	)
	return cmd
}

func printAddress(w io.Writer, addr sdk.AccAddress) error {
	_, err := fmt.Fprintln(w, addr.String())
	return err
}

type mnemonicAccount struct {
	Mnemonic string `json:"mnemonic,omitempty"`
	HDPath   string `json:"hd_path"`
	Address  string `json:"address"`
	PubKey   string `json:"pub_key"`
}

func keysMnemonicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mnemonic",
		Short: "Create or recover a devnet account from a BIP39 mnemonic",
		Long: `Print the secp256k1 account for --mnemonic, or for a freshly generated
mnemonic when none is given. The address can be funded at genesis with
--account <address>=<amount>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mnemonic, err := cmd.Flags().GetString(flagMnemonic)
			if err != nil {
				return err
			}
			words, err := cmd.Flags().GetInt(flagWords)
			if err != nil {
				return err
			}
			account, err := cmd.Flags().GetUint32(flagAccount)
			if err != nil {
				return err
			}
			index, err := cmd.Flags().GetUint32(flagIndex)
			if err != nil {
				return err
			}

			generated := mnemonic == ""
			if generated {
				if mnemonic, err = newMnemonic(words); err != nil {
					return err
				}
			}
			acc, err := accountFromMnemonic(mnemonic, account, index)
			if err != nil {
				return err
			}
			if generated {
				acc.Mnemonic = mnemonic
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(acc)
		},
	}
	cmd.Flags().String(flagMnemonic, "", "recover from this mnemonic instead of generating one")
	cmd.Flags().Int(flagWords, 24, "words in a generated mnemonic (12 or 24)")
	cmd.Flags().Uint32(flagAccount, 0, "BIP44 account")
	cmd.Flags().Uint32(flagIndex, 0, "BIP44 address index")
	return cmd
}

func newMnemonic(words int) (string, error) {
	var bits int
	switch words {
	case 12:
		bits = 128
	case 24:
		bits = 256
	default:
		return "", fmt.Errorf("mnemonic must have 12 or 24 words, got %d", words)
	}
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func accountFromMnemonic(mnemonic string, account, index uint32) (mnemonicAccount, error) {
	priv, path, err := keyFromMnemonic(mnemonic, account, index)
	if err != nil {
		return mnemonicAccount{}, err
	}
	pub := priv.PubKey()
	return mnemonicAccount{
		HDPath:  path,
		Address: sdk.AccAddress(pub.Address()).String(),
		PubKey:  fmt.Sprintf("%X", pub.Bytes()),
	}, nil
}

func keyFromMnemonic(mnemonic string, account, index uint32) (cryptotypes.PrivKey, string, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, "", fmt.Errorf("invalid mnemonic")
	}
	path := hd.CreateHDPath(app.CoinType, account, index).String()
	derived, err := hd.Secp256k1.Derive()(mnemonic, "", path)
	if err != nil {
		return nil, "", err
	}
	return hd.Secp256k1.Generate()(derived), path, nil
}

type signedChallenge struct {
	Address   string `json:"address"`
	PubKey    string `json:"pub_key"`
	Signature string `json:"signature"`
}

func keysSignChallengeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign-challenge [message]",
		Short: "Sign an API login challenge with a mnemonic account",
		Long: `Sign the message returned by POST /api/auth/challenge. The message is read
from stdin when not given as an argument. The output fields go into the
token request together with the challenge nonce.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mnemonic, err := cmd.Flags().GetString(flagMnemonic)
			if err != nil {
				return err
			}
			if mnemonic == "" {
				return fmt.Errorf("--%s is required", flagMnemonic)
			}
			account, err := cmd.Flags().GetUint32(flagAccount)
			if err != nil {
				return err
			}
			index, err := cmd.Flags().GetUint32(flagIndex)
			if err != nil {
				return err
			}

			var message string
			if len(args) == 1 {
				message = args[0]
			} else {
				bz, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				message = strings.TrimSuffix(string(bz), "\n")
			}
			if message == "" {
				return fmt.Errorf("empty challenge message")
			}

			priv, _, err := keyFromMnemonic(mnemonic, account, index)
			if err != nil {
				return err
			}
			sig, err := priv.Sign([]byte(message))
			if err != nil {
				return err
			}
			pub := priv.PubKey()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(signedChallenge{
				Address:   sdk.AccAddress(pub.Address()).String(),
				PubKey:    hex.EncodeToString(pub.Bytes()),
				Signature: hex.EncodeToString(sig),
			})
		},
	}
	cmd.Flags().String(flagMnemonic, "", "mnemonic of the signing account")
	cmd.Flags().Uint32(flagAccount, 0, "BIP44 account")
	cmd.Flags().Uint32(flagIndex, 0, "BIP44 address index")
	return cmd
}

package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/proofofpost/pop/x/postproof/coprocessor"
	"github.com/proofofpost/pop/x/postproof/guest"
	"github.com/proofofpost/pop/x/postproof/types"
)

const (
	flagKeywords = "keywords"
	flagSize     = "size"
)

// GuestCmd runs the verification program locally.
func GuestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Run the post verification program locally",
	}
	cmd.AddCommand(guestVerifyCmd(), guestEncodeInputCmd(), guestImageIDCmd())
	return cmd
}

type verifyResult struct {
	ImageID   string `json:"image_id"`
	Verdict   byte   `json:"verdict"`
	Verified  bool   `json:"verified"`
	Digest    string `json:"digest"`
	InputHash string `json:"input_hash"`
}

func guestVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [file]",
		Short: "Verify a getPosts response against keywords",
		Long: `Run the verification program on a getPosts JSON response read from file,
or stdin when file is "-" or omitted. --size defaults to the content length.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, args)
			if err != nil {
				return err
			}
			keywords, err := cmd.Flags().GetStringSlice(flagKeywords)
			if err != nil {
				return err
			}
			size, err := cmd.Flags().GetUint64(flagSize)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed(flagSize) {
				size = uint64(len(content))
			}

			input := types.EncodePublicInput(size, keywords)
			out := guest.Verify(input, content)
			hash := coprocessor.InputHash(input, content)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(verifyResult{
				ImageID:   guest.ImageID,
				Verdict:   out.Verdict,
				Verified:  out.Verdict != 0,
				Digest:    hex.EncodeToString(out.Digest[:]),
				InputHash: hex.EncodeToString(hash[:]),
			})
		},
	}
	cmd.Flags().StringSlice(flagKeywords, nil, "comma separated keywords, any of which must appear")
	cmd.Flags().Uint64(flagSize, 0, "declared content size in bytes")
	return cmd
}

func guestEncodeInputCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode-input",
		Short: "Print the hex encoded public input for keywords and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keywords, err := cmd.Flags().GetStringSlice(flagKeywords)
			if err != nil {
				return err
			}
			if err := types.ValidateKeywords(keywords); err != nil {
				return err
			}
			size, err := cmd.Flags().GetUint64(flagSize)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(types.EncodePublicInput(size, keywords)))
			return nil
		},
	}
	cmd.Flags().StringSlice(flagKeywords, nil, "comma separated keywords")
	cmd.Flags().Uint64(flagSize, 0, "declared content size in bytes")
	return cmd
}

func guestImageIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "image-id",
		Short: "Print the program image id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), guest.ImageID)
			return nil
		},
	}
}

func readContent(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return content, nil
}

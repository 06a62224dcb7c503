package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const flagOverwrite = "overwrite"

// InitCmd writes a default popd.toml under the home directory.
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := cmd.Flags().GetString(flagHome)
			if err != nil {
				return err
			}
			overwrite, err := cmd.Flags().GetBool(flagOverwrite)
			if err != nil {
				return err
			}

			path := configPath(home)
			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("%s already exists; use --%s to replace it", path, flagOverwrite)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}

			v, err := viperFrom(cmd)
			if err != nil {
				return err
			}
			if err := v.WriteConfigAs(path); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool(flagOverwrite, false, "replace an existing configuration file")
	return cmd
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/proofofpost/pop/app"
)

const (
	flagHome      = "home"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
)

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	flagLogLevel:         "log_level",
	flagLogFormat:        "log_format",
	flagChainID:          "ledger.chain_id",
	flagDBBackend:        "ledger.db_backend",
	flagBlockTime:        "ledger.block_time",
	flagAPIAddress:       "api.address",
	flagOpsAddress:       "ops.address",
	flagWorkers:          "coprocessor.workers",
	flagAccounts:         "genesis.accounts",
	flagCoprocessorKey:   "api.coprocessor_key",
	flagTelemetryEnabled: "telemetry.enabled",
}

type viperKey struct{}

// DefaultHome is $POPD_HOME, or ~/.popd.
func DefaultHome() string {
	if home := os.Getenv("POPD_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".popd"
	}
	return filepath.Join(userHome, ".popd")
}

// NewRootCmd creates the popd root command.
func NewRootCmd() *cobra.Command {
	app.SetConfig()

	rootCmd := &cobra.Command{
		Use:   "popd",
		Short: "Proof-of-Post devnet daemon",
		Long: `popd runs a single node Proof-of-Post devnet: campaigns escrow rewards,
claimants submit posts, and a verification coprocessor settles them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())

			home, err := cmd.Flags().GetString(flagHome)
			if err != nil {
				return err
			}
			v, err := newViper(home)
			if err != nil {
				return err
			}
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, viperKey{}, v))
			return nil
		},
	}

	rootCmd.PersistentFlags().String(flagHome, DefaultHome(), "directory for config and data")
	rootCmd.PersistentFlags().String(flagLogLevel, "info", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().String(flagLogFormat, "plain", "log format (plain|json)")

	rootCmd.AddCommand(
		InitCmd(),
		DevnetCmd(),
		GuestCmd(),
		KeysCmd(),
	)
	return rootCmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// viperFrom returns the layered config bound by the root command.
func viperFrom(cmd *cobra.Command) (*viper.Viper, error) {
	if ctx := cmd.Context(); ctx != nil {
		if v, ok := ctx.Value(viperKey{}).(*viper.Viper); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("config not loaded")
}

// newLogger builds the process logger for cfg.
func newLogger(cfg Config, w io.Writer) (log.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	opts := []log.Option{log.LevelOption(level)}
	switch cfg.LogFormat {
	case "json":
		opts = append(opts, log.OutputJSONOption())
	case "plain", "":
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	return log.NewLogger(w, opts...), nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/proofofpost/pop/api"
	"github.com/proofofpost/pop/app"
	"github.com/proofofpost/pop/app/health"
	"github.com/proofofpost/pop/x/postproof/coprocessor"
)

const (
	flagChainID          = "chain-id"
	flagDBBackend        = "db-backend"
	flagBlockTime        = "block-time"
	flagAPIAddress       = "api-address"
	flagOpsAddress       = "ops-address"
	flagWorkers          = "workers"
	flagAccounts         = "account"
	flagCoprocessorKey   = "coprocessor-key"
	flagTelemetryEnabled = "telemetry"
)

// DevnetCmd groups the devnet commands.
func DevnetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devnet",
		Short: "Run a single node devnet",
	}
	cmd.AddCommand(devnetStartCmd())
	return cmd
}

func devnetStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the ledger, coprocessor, API and ops servers",
		Long: `Start a devnet that produces a block every --block-time, runs the
verification coprocessor in process and serves the HTTP API. Metrics and health
checks are served on --ops-address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := viperFrom(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			home, err := cmd.Flags().GetString(flagHome)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDevnet(ctx, cfg, home, logger)
		},
	}

	cmd.Flags().String(flagChainID, "", "chain id of the devnet")
	cmd.Flags().String(flagDBBackend, "", "state database backend (goleveldb|memdb)")
	cmd.Flags().Duration(flagBlockTime, 0, "interval between blocks")
	cmd.Flags().String(flagAPIAddress, "", "HTTP API listen address")
	cmd.Flags().String(flagOpsAddress, "", "metrics and health listen address")
	cmd.Flags().Int(flagWorkers, 0, "coprocessor workers")
	cmd.Flags().StringSlice(flagAccounts, nil, "genesis account as address=amount (repeatable)")
	cmd.Flags().String(flagCoprocessorKey, "", "shared key for external coprocessor callbacks")
	cmd.Flags().Bool(flagTelemetryEnabled, true, "enable OpenTelemetry metrics and tracing")
	return cmd
}

func runDevnet(ctx context.Context, cfg Config, home string, logger log.Logger) (err error) {
	tel, err := app.InitTelemetry(cfg.TelemetryConfig())
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := tel.Shutdown(shutdownCtx); serr != nil {
			logger.Error("telemetry shutdown failed", "error", serr)
		}
	}()

	copCfg, err := cfg.CoprocessorConfig()
	if err != nil {
		return err
	}
	cop, err := coprocessor.New(copCfg, logger)
	if err != nil {
		return err
	}

	gcfg, err := cfg.GenesisConfig()
	if err != nil {
		return err
	}
	genesis, err := app.NewGenesisStateFromConfig(gcfg)
	if err != nil {
		return err
	}
	ledger, err := app.NewLedger(cfg.LedgerConfig(home), logger, cop, genesis)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ledger.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	cop.Attach(ledger, ledger.Capability())

	var server *api.Server
	if cfg.API.Enabled {
		apiCfg, err := cfg.APIConfig()
		if err != nil {
			return err
		}
		if server, err = api.NewServer(ledger, apiCfg, logger); err != nil {
			return err
		}
	}
	var checker *health.Checker
	if cfg.Ops.Enabled {
		hcfg := health.DefaultConfig()
		hcfg.MaxBlockAge = cfg.Ops.MaxBlockAge
		hcfg.Version = Version
		if checker, err = health.NewChecker(logger, hcfg, ledger, cop); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := cop.Start(gctx); err != nil {
		return err
	}
	defer cop.Stop()

	logger.Info("devnet started",
		"chain_id", cfg.Ledger.ChainID,
		"height", ledger.CurrentHeight(),
		"block_time", cfg.Ledger.BlockTime,
		"authority", ledger.Authority(),
	)

	g.Go(func() error {
		return produceBlocks(gctx, ledger, cfg.Ledger.BlockTime, logger)
	})
	if server != nil {
		g.Go(func() error { return server.Start(gctx) })
	}
	if checker != nil {
		g.Go(func() error {
			return serveOps(gctx, cfg.Ops.Address, newOpsHandler(checker, logger), logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("devnet stopped", "height", ledger.CurrentHeight())
	return nil
}

type blockProducer interface {
	ProduceBlock(ctx context.Context) (int64, error)
}

// produceBlocks commits a block every interval until ctx ends. A failed
// block halts the devnet.
func produceBlocks(ctx context.Context, ledger blockProducer, interval time.Duration, logger log.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			height, err := ledger.ProduceBlock(ctx)
			if err != nil {
				if errors.Is(err, app.ErrLedgerClosed) {
					return nil
				}
				return fmt.Errorf("block production halted: %w", err)
			}
			logger.Debug("committed block", "height", height)
		}
	}
}

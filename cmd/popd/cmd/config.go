package cmd

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/proofofpost/pop/api"
	"github.com/proofofpost/pop/app"
	"github.com/proofofpost/pop/app/health"
	"github.com/proofofpost/pop/x/postproof/coprocessor"
)

const (
	envPrefix      = "POPD"
	configFileName = "popd.toml"
)

// Config is the full popd configuration as read from popd.toml, POPD_*
// environment variables and flags, in increasing precedence.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Genesis     GenesisConfig     `mapstructure:"genesis"`
	Coprocessor CoprocessorConfig `mapstructure:"coprocessor"`
	API         APIConfig         `mapstructure:"api"`
	Ops         OpsConfig         `mapstructure:"ops"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

type LedgerConfig struct {
	ChainID         string        `mapstructure:"chain_id"`
	DBBackend       string        `mapstructure:"db_backend"`
	BlockTime       time.Duration `mapstructure:"block_time"`
	FaucetLimit     uint64        `mapstructure:"faucet_limit"`
	CheckInvariants bool          `mapstructure:"check_invariants"`
}

type GenesisConfig struct {
	VerificationCooldown int64  `mapstructure:"verification_cooldown"`
	JobDeadlineHorizon   int64  `mapstructure:"job_deadline_horizon"`
	StorageFloor         uint64 `mapstructure:"storage_floor"`
	PendingJobTimeout    int64  `mapstructure:"pending_job_timeout"`
	// Accounts are "address=amount" pairs funded at genesis.
	Accounts []string `mapstructure:"accounts"`
}

type CoprocessorConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	MaxContentBytes int64         `mapstructure:"max_content_bytes"`
	FetchRate       float64       `mapstructure:"fetch_rate"`
	FetchBurst      int           `mapstructure:"fetch_burst"`
	AllowedSchemes  []string      `mapstructure:"allowed_schemes"`
	AllowedHosts    []string      `mapstructure:"allowed_hosts"`
	FeeAddress      string        `mapstructure:"fee_address"`
}

type APIConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Address        string        `mapstructure:"address"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	ChallengeTTL   time.Duration `mapstructure:"challenge_ttl"`
	CoprocessorKey string        `mapstructure:"coprocessor_key"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	AuditLogDir    string        `mapstructure:"audit_log_dir"`
}

type OpsConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Address     string        `mapstructure:"address"`
	MaxBlockAge time.Duration `mapstructure:"max_block_age"`
}

type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	OTLPEndpoint      string  `mapstructure:"otlp_endpoint"`
	PrometheusEnabled bool    `mapstructure:"prometheus_enabled"`
	SampleRate        float64 `mapstructure:"sample_rate"`
}

// setDefaults registers every key so that environment variables bind even
// when no config file is present.
func setDefaults(v *viper.Viper) {
	ledger := app.DefaultLedgerConfig()
	genesis := app.DefaultGenesisConfig()
	cop := coprocessor.DefaultConfig()
	apiCfg := api.DefaultConfig()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "plain")

	v.SetDefault("ledger.chain_id", ledger.ChainID)
	v.SetDefault("ledger.db_backend", string(dbm.GoLevelDBBackend))
	v.SetDefault("ledger.block_time", ledger.BlockTime.String())
	v.SetDefault("ledger.faucet_limit", ledger.FaucetLimit)
	v.SetDefault("ledger.check_invariants", ledger.CheckInvariants)

	v.SetDefault("genesis.verification_cooldown", genesis.VerificationCooldown)
	v.SetDefault("genesis.job_deadline_horizon", genesis.JobDeadlineHorizon)
	v.SetDefault("genesis.storage_floor", genesis.StorageFloor)
	v.SetDefault("genesis.pending_job_timeout", genesis.PendingJobTimeout)
	v.SetDefault("genesis.accounts", []string{})

	v.SetDefault("coprocessor.workers", cop.Workers)
	v.SetDefault("coprocessor.queue_size", cop.QueueSize)
	v.SetDefault("coprocessor.fetch_timeout", cop.FetchTimeout.String())
	v.SetDefault("coprocessor.max_content_bytes", cop.MaxContentBytes)
	v.SetDefault("coprocessor.fetch_rate", cop.FetchRate)
	v.SetDefault("coprocessor.fetch_burst", cop.FetchBurst)
	v.SetDefault("coprocessor.allowed_schemes", cop.AllowedSchemes)
	v.SetDefault("coprocessor.allowed_hosts", cop.AllowedHosts)
	v.SetDefault("coprocessor.fee_address", "")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.address", net.JoinHostPort(apiCfg.Host, apiCfg.Port))
	v.SetDefault("api.jwt_secret", "")
	v.SetDefault("api.challenge_ttl", apiCfg.ChallengeTTL.String())
	v.SetDefault("api.coprocessor_key", "")
	v.SetDefault("api.cors_origins", apiCfg.CORSOrigins)
	v.SetDefault("api.rate_limit_rps", apiCfg.RateLimitRPS)
	v.SetDefault("api.rate_limit_burst", apiCfg.RateLimitBurst)
	v.SetDefault("api.audit_log_dir", "")

	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.address", "127.0.0.1:26660")
	v.SetDefault("ops.max_block_age", health.DefaultConfig().MaxBlockAge.String())

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.prometheus_enabled", true)
	v.SetDefault("telemetry.sample_rate", 1.0)
}

// newViper builds the layered configuration for home.
func newViper(home string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path := configPath(home)
	if _, err := os.Stat(path); err != nil {
		// no file: defaults, env and flags only
		return v, nil
	}
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return v, nil
}

func configPath(home string) string {
	return filepath.Join(home, "config", configFileName)
}

// loadConfig decodes v into a Config and checks it.
func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	// env overrides arrive as a single comma separated string
	cfg.Genesis.Accounts = splitList(v.Get("genesis.accounts"))
	cfg.API.CORSOrigins = splitList(v.Get("api.cors_origins"))
	cfg.Coprocessor.AllowedSchemes = splitList(v.Get("coprocessor.allowed_schemes"))
	cfg.Coprocessor.AllowedHosts = splitList(v.Get("coprocessor.allowed_hosts"))

	if cfg.Ledger.BlockTime <= 0 {
		return cfg, fmt.Errorf("ledger.block_time must be positive")
	}
	if _, _, err := net.SplitHostPort(cfg.API.Address); cfg.API.Enabled && err != nil {
		return cfg, fmt.Errorf("api.address: %w", err)
	}
	if _, _, err := net.SplitHostPort(cfg.Ops.Address); cfg.Ops.Enabled && err != nil {
		return cfg, fmt.Errorf("ops.address: %w", err)
	}
	return cfg, nil
}

func splitList(raw interface{}) []string {
	var items []string
	if s, ok := raw.(string); ok {
		items = strings.Split(s, ",")
	} else {
		items = cast.ToStringSlice(raw)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseAccounts turns "address=amount" pairs into genesis accounts.
func parseAccounts(pairs []string) ([]app.GenesisAccount, error) {
	accounts := make([]app.GenesisAccount, 0, len(pairs))
	for _, pair := range pairs {
		addr, amount, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("genesis account %q: expected address=amount", pair)
		}
		amount = strings.TrimSpace(amount)
		if amount == "" {
			return nil, fmt.Errorf("genesis account %q: missing amount", pair)
		}
		n, err := cast.ToUint64E(amount)
		if err != nil {
			return nil, fmt.Errorf("genesis account %q: %w", pair, err)
		}
		accounts = append(accounts, app.GenesisAccount{Address: strings.TrimSpace(addr), Amount: n})
	}
	return accounts, nil
}

// GenesisConfig converts the genesis section for the ledger.
func (c Config) GenesisConfig() (app.GenesisConfig, error) {
	accounts, err := parseAccounts(c.Genesis.Accounts)
	if err != nil {
		return app.GenesisConfig{}, err
	}
	return app.GenesisConfig{
		ChainID:              c.Ledger.ChainID,
		VerificationCooldown: c.Genesis.VerificationCooldown,
		JobDeadlineHorizon:   c.Genesis.JobDeadlineHorizon,
		StorageFloor:         c.Genesis.StorageFloor,
		PendingJobTimeout:    c.Genesis.PendingJobTimeout,
		Accounts:             accounts,
	}, nil
}

// LedgerConfig converts the ledger section; data lives under home.
func (c Config) LedgerConfig(home string) app.LedgerConfig {
	return app.LedgerConfig{
		ChainID:         c.Ledger.ChainID,
		DBBackend:       c.Ledger.DBBackend,
		DBDir:           filepath.Join(home, "data"),
		BlockTime:       c.Ledger.BlockTime,
		FaucetLimit:     c.Ledger.FaucetLimit,
		CheckInvariants: c.Ledger.CheckInvariants,
	}
}

func (c Config) CoprocessorConfig() (coprocessor.Config, error) {
	cfg := coprocessor.DefaultConfig()
	cfg.Workers = c.Coprocessor.Workers
	cfg.QueueSize = c.Coprocessor.QueueSize
	cfg.FetchTimeout = c.Coprocessor.FetchTimeout
	cfg.MaxContentBytes = c.Coprocessor.MaxContentBytes
	cfg.FetchRate = c.Coprocessor.FetchRate
	cfg.FetchBurst = c.Coprocessor.FetchBurst
	cfg.AllowedSchemes = c.Coprocessor.AllowedSchemes
	cfg.AllowedHosts = c.Coprocessor.AllowedHosts
	if c.Coprocessor.FeeAddress != "" {
		fee, err := sdk.AccAddressFromBech32(c.Coprocessor.FeeAddress)
		if err != nil {
			return cfg, fmt.Errorf("coprocessor.fee_address: %w", err)
		}
		cfg.FeeAddress = fee
	}
	return cfg, cfg.Validate()
}

func (c Config) APIConfig() (*api.Config, error) {
	host, port, err := net.SplitHostPort(c.API.Address)
	if err != nil {
		return nil, err
	}
	cfg := api.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.JWTSecret = []byte(c.API.JWTSecret)
	cfg.ChallengeTTL = c.API.ChallengeTTL
	cfg.CoprocessorKey = c.API.CoprocessorKey
	cfg.CORSOrigins = c.API.CORSOrigins
	cfg.RateLimitRPS = c.API.RateLimitRPS
	cfg.RateLimitBurst = c.API.RateLimitBurst
	cfg.AuditLogDir = c.API.AuditLogDir
	return cfg, nil
}

func (c Config) TelemetryConfig() app.TelemetryConfig {
	return app.TelemetryConfig{
		Enabled:           c.Telemetry.Enabled,
		OTLPEndpoint:      c.Telemetry.OTLPEndpoint,
		PrometheusEnabled: c.Telemetry.PrometheusEnabled,
		SampleRate:        c.Telemetry.SampleRate,
		ChainID:           c.Ledger.ChainID,
	}
}

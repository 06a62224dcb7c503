package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	storemetrics "cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authkeeper "github.com/cosmos/cosmos-sdk/x/auth/keeper"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	bankkeeper "github.com/cosmos/cosmos-sdk/x/bank/keeper"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/proofofpost/pop/x/postproof/keeper"
	"github.com/proofofpost/pop/x/postproof/types"
)

// FaucetModuleName is the module account devnet funds are minted from
const FaucetModuleName = "faucet"

var (
	ErrLedgerClosed = errors.New("ledger is closed")
	ErrFaucetLimit  = errors.New("faucet amount exceeds limit")
)

// LedgerConfig configures the devnet ledger
type LedgerConfig struct {
	ChainID   string
	DBBackend string
	DBDir     string
	// BlockTime is added to the header time for every produced block
	BlockTime time.Duration
	// FaucetLimit caps a single Fund call
	FaucetLimit uint64
	// CheckInvariants runs the module invariants after every block
	CheckInvariants bool
}

// DefaultLedgerConfig returns an in-memory devnet configuration
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		ChainID:         DefaultGenesisConfig().ChainID,
		DBBackend:       string(dbm.MemDBBackend),
		BlockTime:       5 * time.Second,
		FaucetLimit:     100_000_000,
		CheckInvariants: true,
	}
}

// Ledger is a single-node devnet that applies postproof operations one at a
// time. Every state transition holds mu, so keeper code never runs
// concurrently.
type Ledger struct {
	mu     sync.Mutex
	config LedgerConfig
	logger log.Logger
	closed bool

	db     dbm.DB
	cms    storetypes.CommitMultiStore
	header cmtproto.Header
	height atomic.Int64

	AccountKeeper authkeeper.AccountKeeper
	BankKeeper    bankkeeper.BaseKeeper
	Keeper        *keeper.Keeper

	msgServer      types.MsgServer
	queryServer    types.QueryServer
	callbackServer types.CallbackServer
	capability     *types.CallbackCapability
	authority      string

	metrics *LedgerMetrics
}

// NewLedger opens the store, binds coprocessor to the postproof keeper and,
// on a fresh database, initializes state from genesis.
func NewLedger(cfg LedgerConfig, logger log.Logger, coprocessor types.Coprocessor, genesis GenesisState) (*Ledger, error) {
	SetConfig()

	db, err := dbm.NewDB("popd", dbm.BackendType(cfg.DBBackend), cfg.DBDir)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.DBBackend, err)
	}

	keys := storetypes.NewKVStoreKeys(authtypes.StoreKey, banktypes.StoreKey, types.StoreKey)
	cms := store.NewCommitMultiStore(db, logger, storemetrics.NewNoOpMetrics())
	for _, key := range keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := cms.LoadLatestVersion(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load store: %w", err)
	}

	registry := codectypes.NewInterfaceRegistry()
	authtypes.RegisterInterfaces(registry)
	banktypes.RegisterInterfaces(registry)
	cdc := codec.NewProtoCodec(registry)
	authority := authtypes.NewModuleAddress(govtypes.ModuleName).String()

	accountKeeper := authkeeper.NewAccountKeeper(
		cdc,
		runtime.NewKVStoreService(keys[authtypes.StoreKey]),
		authtypes.ProtoBaseAccount,
		map[string][]string{FaucetModuleName: {authtypes.Minter}},
		address.NewBech32Codec(Bech32PrefixAccAddr),
		Bech32PrefixAccAddr,
		authority,
	)
	bankKeeper := bankkeeper.NewBaseKeeper(
		cdc,
		runtime.NewKVStoreService(keys[banktypes.StoreKey]),
		accountKeeper,
		map[string]bool{},
		authority,
		logger,
	)

	k := keeper.NewKeeper(keys[types.StoreKey], bankKeeper, authority)
	capability, err := k.BindCoprocessor(coprocessor)
	if err != nil {
		db.Close()
		return nil, err
	}

	metrics, err := NewLedgerMetrics(otel.Meter(serviceName))
	if err != nil {
		db.Close()
		return nil, err
	}

	l := &Ledger{
		config:         cfg,
		logger:         logger.With("module", "ledger"),
		db:             db,
		cms:            cms,
		AccountKeeper:  accountKeeper,
		BankKeeper:     bankKeeper,
		Keeper:         k,
		msgServer:      keeper.NewMsgServerImpl(k),
		queryServer:    keeper.NewQueryServerImpl(k),
		callbackServer: keeper.NewCallbackServerImpl(k, capability),
		capability:     capability,
		authority:      authority,
		metrics:        metrics,
	}

	version := cms.LastCommitID().Version
	l.header = cmtproto.Header{ChainID: cfg.ChainID, Height: version + 1, Time: time.Now().UTC()}
	l.height.Store(l.header.Height)

	if version == 0 {
		if err := l.initChain(genesis); err != nil {
			db.Close()
			return nil, err
		}
	}
	l.logger.Info("ledger opened", "chain_id", cfg.ChainID, "height", l.header.Height, "backend", cfg.DBBackend)
	return l, nil
}

// Capability returns the callback capability minted for the bound coprocessor.
func (l *Ledger) Capability() *types.CallbackCapability {
	return l.capability
}

// Authority returns the address allowed to update params.
func (l *Ledger) Authority() string {
	return l.authority
}

// initChain writes genesis into the first block; it is committed with it.
func (l *Ledger) initChain(genesis GenesisState) error {
	if genesis == nil {
		genesis = NewDefaultGenesisState()
	}
	if err := genesis.Validate(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}
	bankGenesis, err := genesis.BankGenesis()
	if err != nil {
		return err
	}
	postproofGenesis, err := genesis.PostproofGenesis()
	if err != nil {
		return err
	}

	ctx := l.context()
	l.BankKeeper.InitGenesis(ctx, bankGenesis)
	if err := l.Keeper.InitGenesis(ctx, *postproofGenesis); err != nil {
		return fmt.Errorf("init %s genesis: %w", types.ModuleName, err)
	}
	l.logger.Info("genesis applied", "configs", len(postproofGenesis.Configs), "balances", len(bankGenesis.Balances))
	return nil
}

// context builds the state context for the block being produced
func (l *Ledger) context() sdk.Context {
	return sdk.NewContext(l.cms, l.header, false, l.logger)
}

// apply runs fn as one transaction: its writes and events are kept only if
// it succeeds.
func (l *Ledger) apply(parent context.Context, op string, fn func(ctx sdk.Context) error) (sdk.Events, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLedgerClosed
	}
	// the caller may have given up while waiting for the lock
	if err := parent.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	spanCtx, span := TraceOperation(parent, op, l.header.Height)
	defer span.End()

	ctx := l.context().WithContext(spanCtx)
	cacheCtx, write := ctx.CacheContext()
	err := fn(cacheCtx)
	if err == nil {
		write()
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	l.metrics.RecordOperation(spanCtx, op, time.Since(start), err)
	return ctx.EventManager().Events(), err
}

// query runs fn against the current state without committing anything
func (l *Ledger) query(fn func(ctx sdk.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLedgerClosed
	}
	ctx, _ := l.context().CacheContext()
	return fn(ctx)
}

// CurrentHeight returns the height of the block being produced. It does not
// take the state lock.
func (l *Ledger) CurrentHeight() int64 {
	return l.height.Load()
}

// ProduceBlock ends the current block: pending jobs past their timeout are
// expired, invariants are checked and state is committed.
func (l *Ledger) ProduceBlock(parent context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrLedgerClosed
	}

	spanCtx, span := TraceOperation(parent, "end_block", l.header.Height)
	defer span.End()
	ctx := l.context().WithContext(spanCtx)

	expired, err := l.Keeper.ExpirePendingJobs(ctx)
	if err != nil {
		l.logger.Error("pending job expiry failed", "height", l.header.Height, "error", err)
	}
	if l.config.CheckInvariants {
		if msg, broken := keeper.AllInvariants(*l.Keeper)(ctx); broken {
			span.SetStatus(codes.Error, "invariant broken")
			return l.header.Height, fmt.Errorf("invariant broken at height %d: %s", l.header.Height, msg)
		}
	}

	commit := l.cms.Commit()
	l.metrics.RecordBlock(spanCtx, commit.Version, expired)

	l.header.Height = commit.Version + 1
	l.header.Time = l.header.Time.Add(l.config.BlockTime)
	l.height.Store(l.header.Height)
	return commit.Version, nil
}

// Fund mints amount of the bond denom to addr from the faucet.
func (l *Ledger) Fund(ctx context.Context, addr sdk.AccAddress, amount uint64) error {
	if amount == 0 || amount > l.config.FaucetLimit {
		return fmt.Errorf("%w: %d (limit %d)", ErrFaucetLimit, amount, l.config.FaucetLimit)
	}
	_, err := l.apply(ctx, "fund", func(sdkCtx sdk.Context) error {
		coins := sdk.NewCoins(sdk.NewCoin(BondDenom, math.NewIntFromUint64(amount)))
		if err := l.BankKeeper.MintCoins(sdkCtx, FaucetModuleName, coins); err != nil {
			return err
		}
		return l.BankKeeper.SendCoinsFromModuleToAccount(sdkCtx, FaucetModuleName, addr, coins)
	})
	return err
}

// CreateConfig applies a MsgCreateConfig
func (l *Ledger) CreateConfig(ctx context.Context, msg *types.MsgCreateConfig) (resp *types.MsgCreateConfigResponse, err error) {
	_, err = l.apply(ctx, "create_config", func(sdkCtx sdk.Context) error {
		resp, err = l.msgServer.CreateConfig(sdkCtx, msg)
		return err
	})
	return resp, err
}

// UpdateConfig applies a MsgUpdateConfig
func (l *Ledger) UpdateConfig(ctx context.Context, msg *types.MsgUpdateConfig) (resp *types.MsgUpdateConfigResponse, err error) {
	_, err = l.apply(ctx, "update_config", func(sdkCtx sdk.Context) error {
		resp, err = l.msgServer.UpdateConfig(sdkCtx, msg)
		return err
	})
	return resp, err
}

// SubmitVerification applies a MsgSubmitVerification
func (l *Ledger) SubmitVerification(ctx context.Context, msg *types.MsgSubmitVerification) (resp *types.MsgSubmitVerificationResponse, err error) {
	_, err = l.apply(ctx, "submit_verification", func(sdkCtx sdk.Context) error {
		resp, err = l.msgServer.SubmitVerification(sdkCtx, msg)
		return err
	})
	return resp, err
}

// UpdateParams applies a MsgUpdateParams
func (l *Ledger) UpdateParams(ctx context.Context, msg *types.MsgUpdateParams) (resp *types.MsgUpdateParamsResponse, err error) {
	_, err = l.apply(ctx, "update_params", func(sdkCtx sdk.Context) error {
		resp, err = l.msgServer.UpdateParams(sdkCtx, msg)
		return err
	})
	return resp, err
}

// DeliverCallback settles a result received from an external coprocessor
// with the ledger's own capability. Callers authenticate the sender.
func (l *Ledger) DeliverCallback(ctx context.Context, msg *types.MsgDeliverCallback) (resp *types.MsgDeliverCallbackResponse, err error) {
	_, err = l.apply(ctx, "deliver_callback", func(sdkCtx sdk.Context) error {
		resp, err = l.callbackServer.DeliverCallback(sdkCtx, msg)
		return err
	})
	return resp, err
}

// DeliverJobResult implements the coprocessor callback sink.
func (l *Ledger) DeliverJobResult(ctx context.Context, capability *types.CallbackCapability, res types.JobResult) (out types.JobOutput, err error) {
	_, err = l.apply(ctx, "job_result", func(sdkCtx sdk.Context) error {
		out, err = l.Keeper.OnJobResult(sdkCtx, capability, res)
		return err
	})
	return out, err
}

// Params queries the module params
func (l *Ledger) Params(ctx context.Context) (resp *types.QueryParamsResponse, err error) {
	err = l.query(func(sdkCtx sdk.Context) error {
		resp, err = l.queryServer.Params(sdkCtx, &types.QueryParamsRequest{})
		return err
	})
	return resp, err
}

// Config queries one campaign
func (l *Ledger) Config(ctx context.Context, req *types.QueryConfigRequest) (resp *types.QueryConfigResponse, err error) {
	err = l.query(func(sdkCtx sdk.Context) error {
		resp, err = l.queryServer.Config(sdkCtx, req)
		return err
	})
	return resp, err
}

// Configs lists campaigns
func (l *Ledger) Configs(ctx context.Context, req *types.QueryConfigsRequest) (resp *types.QueryConfigsResponse, err error) {
	err = l.query(func(sdkCtx sdk.Context) error {
		resp, err = l.queryServer.Configs(sdkCtx, req)
		return err
	})
	return resp, err
}

// VerificationLog queries one log
func (l *Ledger) VerificationLog(ctx context.Context, req *types.QueryVerificationLogRequest) (resp *types.QueryVerificationLogResponse, err error) {
	err = l.query(func(sdkCtx sdk.Context) error {
		resp, err = l.queryServer.VerificationLog(sdkCtx, req)
		return err
	})
	return resp, err
}

// LogsByConfig lists the logs of a campaign
func (l *Ledger) LogsByConfig(ctx context.Context, req *types.QueryLogsByConfigRequest) (resp *types.QueryLogsByConfigResponse, err error) {
	err = l.query(func(sdkCtx sdk.Context) error {
		resp, err = l.queryServer.LogsByConfig(sdkCtx, req)
		return err
	})
	return resp, err
}

// Tracker queries the tracker of a request id
func (l *Ledger) Tracker(ctx context.Context, req *types.QueryTrackerRequest) (resp *types.QueryTrackerResponse, err error) {
	err = l.query(func(sdkCtx sdk.Context) error {
		resp, err = l.queryServer.Tracker(sdkCtx, req)
		return err
	})
	return resp, err
}

// Balance returns the bond denom balance of addr
func (l *Ledger) Balance(addr sdk.AccAddress) (coin sdk.Coin, err error) {
	err = l.query(func(sdkCtx sdk.Context) error {
		coin = l.BankKeeper.GetBalance(sdkCtx, addr, BondDenom)
		return nil
	})
	return coin, err
}

// ExportGenesis exports bank and postproof state
func (l *Ledger) ExportGenesis() (GenesisState, error) {
	genesis := make(GenesisState)
	err := l.query(func(sdkCtx sdk.Context) error {
		genesis[banktypes.ModuleName] = mustMarshalJSON(l.BankKeeper.ExportGenesis(sdkCtx))
		pg, err := l.Keeper.ExportGenesis(sdkCtx)
		if err != nil {
			return err
		}
		genesis[types.ModuleName] = mustMarshalJSON(pg)
		return nil
	})
	return genesis, err
}

// Close releases the database. Uncommitted state of the current block is
// lost.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

// Ping reads the module params under the state lock.
func (l *Ledger) Ping(ctx context.Context) error {
	_, err := l.Params(ctx)
	return err
}

package keeper

import (
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
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
	"github.com/stretchr/testify/require"

	"github.com/proofofpost/pop/x/postproof/keeper"
	"github.com/proofofpost/pop/x/postproof/types"
)

// MinterModuleName is the module account tests mint funding from.
const MinterModuleName = "testminter"

// PostproofFixture bundles a postproof keeper with the real auth and bank
// keepers it settles through.
type PostproofFixture struct {
	Keeper        *keeper.Keeper
	Ctx           sdk.Context
	AccountKeeper authkeeper.AccountKeeper
	BankKeeper    bankkeeper.BaseKeeper
	Coprocessor   *MockCoprocessor
	Capability    *types.CallbackCapability
	Authority     string
}

// PostproofKeeper creates a test keeper for the postproof module with a bound
// mock coprocessor.
func PostproofKeeper(t testing.TB) (*keeper.Keeper, sdk.Context) {
	f := NewPostproofFixture(t)
	return f.Keeper, f.Ctx
}

// NewPostproofFixture mounts the module, auth and bank stores on an
// in-memory database.
func NewPostproofFixture(t testing.TB) *PostproofFixture {
	storeKey := storetypes.NewKVStoreKey(types.StoreKey)
	authStoreKey := storetypes.NewKVStoreKey(authtypes.StoreKey)
	bankStoreKey := storetypes.NewKVStoreKey(banktypes.StoreKey)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(authStoreKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(bankStoreKey, storetypes.StoreTypeIAVL, db)
	require.NoError(t, stateStore.LoadLatestVersion())

	registry := codectypes.NewInterfaceRegistry()
	authtypes.RegisterInterfaces(registry)
	banktypes.RegisterInterfaces(registry)
	cdc := codec.NewProtoCodec(registry)
	authority := authtypes.NewModuleAddress(govtypes.ModuleName)

	maccPerms := map[string][]string{
		MinterModuleName: {authtypes.Minter},
	}

	accountKeeper := authkeeper.NewAccountKeeper(
		cdc,
		runtime.NewKVStoreService(authStoreKey),
		authtypes.ProtoBaseAccount,
		maccPerms,
		address.NewBech32Codec(sdk.GetConfig().GetBech32AccountAddrPrefix()),
		sdk.GetConfig().GetBech32AccountAddrPrefix(),
		authority.String(),
	)

	bankKeeper := bankkeeper.NewBaseKeeper(
		cdc,
		runtime.NewKVStoreService(bankStoreKey),
		accountKeeper,
		map[string]bool{},
		authority.String(),
		log.NewNopLogger(),
	)

	k := keeper.NewKeeper(storeKey, bankKeeper, authority.String())
	coprocessor := NewMockCoprocessor()
	capability, err := k.BindCoprocessor(coprocessor)
	require.NoError(t, err)

	header := cmtproto.Header{
		ChainID: "pop-test-1",
		Height:  1,
		Time:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	ctx := sdk.NewContext(stateStore, header, false, log.NewNopLogger())
	require.NoError(t, bankKeeper.SetParams(ctx, banktypes.DefaultParams()))
	require.NoError(t, k.SetParams(ctx, types.DefaultParams()))

	return &PostproofFixture{
		Keeper:        k,
		Ctx:           ctx,
		AccountKeeper: accountKeeper,
		BankKeeper:    bankKeeper,
		Coprocessor:   coprocessor,
		Capability:    capability,
		Authority:     authority.String(),
	}
}

// Fund mints amount of the module denom to addr.
func (f *PostproofFixture) Fund(t testing.TB, addr sdk.AccAddress, amount uint64) {
	params, err := f.Keeper.GetParams(f.Ctx)
	require.NoError(t, err)
	coins := sdk.NewCoins(sdk.NewCoin(params.Denom, math.NewIntFromUint64(amount)))
	require.NoError(t, f.BankKeeper.MintCoins(f.Ctx, MinterModuleName, coins))
	require.NoError(t, f.BankKeeper.SendCoinsFromModuleToAccount(f.Ctx, MinterModuleName, addr, coins))
}

// Balance returns the module denom balance of addr.
func (f *PostproofFixture) Balance(addr sdk.AccAddress) math.Int {
	params, _ := f.Keeper.GetParams(f.Ctx)
	return f.BankKeeper.GetBalance(f.Ctx, addr, params.Denom).Amount
}

// AdvanceBlocks moves the context forward n blocks.
func (f *PostproofFixture) AdvanceBlocks(n int64) {
	f.Ctx = f.Ctx.WithBlockHeight(f.Ctx.BlockHeight() + n).
		WithBlockTime(f.Ctx.BlockTime().Add(time.Duration(n) * 5 * time.Second))
}

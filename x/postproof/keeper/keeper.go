package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

// Keeper of the postproof store
type Keeper struct {
	storeKey   storetypes.StoreKey
	bankKeeper types.BankKeeper
	authority  string

	coprocessor types.Coprocessor
	callbackCap *types.CallbackCapability

	metrics *PostproofMetrics
}

type kvStoreProvider interface {
	KVStore(key storetypes.StoreKey) storetypes.KVStore
}

// NewKeeper creates a new postproof Keeper instance
func NewKeeper(
	key storetypes.StoreKey,
	bankKeeper types.BankKeeper,
	authority string,
) *Keeper {
	return &Keeper{
		storeKey:   key,
		bankKeeper: bankKeeper,
		authority:  authority,
		metrics:    NewPostproofMetrics(),
	}
}

// getStore returns the KVStore for the postproof module
func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	if provider, ok := ctx.(kvStoreProvider); ok {
		return provider.KVStore(k.storeKey)
	}

	unwrapped := sdk.UnwrapSDKContext(ctx)
	return unwrapped.KVStore(k.storeKey)
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", fmt.Sprintf("x/%s", types.ModuleName))
}

// GetAuthority returns the module's authority.
func (k Keeper) GetAuthority() string {
	return k.authority
}

// BindCoprocessor attaches the verifiable-computation service and returns the
// only capability that OnJobResult accepts. It can be called once.
func (k *Keeper) BindCoprocessor(c types.Coprocessor) (*types.CallbackCapability, error) {
	if c == nil {
		return nil, fmt.Errorf("coprocessor cannot be nil")
	}
	if k.coprocessor != nil {
		return nil, fmt.Errorf("coprocessor already bound")
	}
	k.coprocessor = c
	k.callbackCap = types.NewCallbackCapability(fmt.Sprintf("%s/callback", types.ModuleName))
	return k.callbackCap, nil
}

// escrowBalance returns the funds held at a config identity.
func (k Keeper) escrowBalance(ctx context.Context, config sdk.AccAddress, denom string) math.Int {
	return k.bankKeeper.GetBalance(ctx, config, denom).Amount
}

// requiredEscrow is what an active config must hold to pay every remaining
// claim.
func requiredEscrow(c types.CampaignConfig) math.Int {
	return math.NewIntFromUint64(c.RewardAmount).Mul(math.NewIntFromUint64(c.RemainingClaims()))
}

// owedEscrow is what c must hold: every remaining claim while active, and in
// any state the rewards of the jobs already in flight.
func (k Keeper) owedEscrow(ctx context.Context, c types.CampaignConfig) (math.Int, error) {
	if c.Active {
		return requiredEscrow(c), nil
	}
	pending, err := k.pendingClaims(ctx, c.Address())
	if err != nil {
		return math.Int{}, err
	}
	claims := min(pending, c.RemainingClaims())
	return math.NewIntFromUint64(c.RewardAmount).Mul(math.NewIntFromUint64(claims)), nil
}

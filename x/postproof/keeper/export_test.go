package keeper

import (
	"context"

	"github.com/proofofpost/pop/x/postproof/types"
)

// Hooks for corrupting state the public API keeps consistent.

func (k Keeper) SetConfigUnchecked(ctx context.Context, c types.CampaignConfig) {
	k.setConfig(ctx, c)
}

func (k Keeper) DeleteKey(ctx context.Context, key []byte) {
	k.getStore(ctx).Delete(key)
}

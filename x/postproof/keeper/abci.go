package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// EndBlocker is called at the end of every block. It expires pending jobs
// past their deadline when a timeout policy is configured.
func (k Keeper) EndBlocker(ctx context.Context) error {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	n, err := k.ExpirePendingJobs(ctx)
	if err != nil {
		// Don't return error - log and continue
		sdkCtx.Logger().Error("failed to expire pending jobs", "error", err)
		return nil
	}
	if n > 0 {
		k.Logger(ctx).Info("expired pending jobs", "count", n, "height", sdkCtx.BlockHeight())
	}
	return nil
}

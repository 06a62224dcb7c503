package keeper

import (
	"context"
	"strconv"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

// ExpirePendingJobs clears the pending job of every log whose deadline plus
// the configured timeout lies before the current height, at most
// MaxExpirationsPerBlock per call. No funds move; a late result for an
// expired job fails the log cross-check.
func (k Keeper) ExpirePendingJobs(ctx context.Context) (int, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	if !params.ExpiryEnabled() {
		return 0, nil
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	cutoff := sdkCtx.BlockHeight() - params.PendingJobTimeout
	if cutoff <= 0 {
		return 0, nil
	}

	store := k.getStore(ctx)
	end := append(append([]byte{}, PendingByDeadlinePrefix...), deadlineBytes(cutoff)...)
	iterator := store.Iterator(PendingByDeadlinePrefix, end)

	var keys [][]byte
	for ; iterator.Valid() && len(keys) < int(params.MaxExpirationsPerBlock); iterator.Next() {
		keys = append(keys, append([]byte{}, iterator.Key()...))
	}
	iterator.Close()

	expired := 0
	for _, key := range keys {
		deadline, logAddr := splitPendingDeadlineKey(key)
		log, found, err := k.GetVerificationLog(ctx, logAddr)
		if err != nil {
			return expired, err
		}
		if !found || !log.IsPending() || log.PendingDeadline != deadline {
			// stale index entry
			store.Delete(key)
			continue
		}

		prev := log
		job := log.CurrentExecution
		log.CurrentExecution = nil
		log.PendingDeadline = 0
		k.setVerificationLog(ctx, log, &prev)

		sdkCtx.EventManager().EmitEvent(
			sdk.NewEvent(types.EventTypeVerificationExpired,
				sdk.NewAttribute(types.AttributeKeyLog, logAddr.String()),
				sdk.NewAttribute(types.AttributeKeyConfig, log.Config.String()),
				sdk.NewAttribute(types.AttributeKeyClaimant, log.Verifier.String()),
				sdk.NewAttribute(types.AttributeKeyJobRef, job.String()),
				sdk.NewAttribute(types.AttributeKeyDeadline, strconv.FormatInt(prev.PendingDeadline, 10)),
			),
		)
		k.metrics.PendingJobsExpired.Inc()
		expired++
	}
	return expired, nil
}

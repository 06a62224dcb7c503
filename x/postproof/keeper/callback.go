package keeper

import (
	"context"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/telemetry"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/hashicorp/go-metrics"

	"github.com/proofofpost/pop/x/postproof/types"
)

// OnJobResult settles a job. It is the only path that moves escrow, and it
// only accepts results presented with the bound capability for the job that
// both the log and the tracker still reference. A matching verdict pays the
// reward and bumps the claim counter together, or not at all.
func (k Keeper) OnJobResult(ctx context.Context, capability *types.CallbackCapability, res types.JobResult) (out types.JobOutput, err error) {
	defer func() {
		result := "rejected"
		switch {
		case err != nil:
			result = outcomeLabel(err)
		case out.Verified():
			result = "verified"
		}
		k.metrics.Callbacks.WithLabelValues(result).Inc()
	}()

	if capability == nil || k.callbackCap == nil || capability != k.callbackCap {
		return out, errorsmod.Wrap(types.ErrUnauthorized, "job results must be delivered by the bound coprocessor")
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)

	logAddr := types.LogAddress(res.Claimant, res.Config)
	if !logAddr.Equals(res.Log) {
		return out, errorsmod.Wrapf(types.ErrInvalidCallback, "log %s does not belong to claimant %s and config %s", res.Log, res.Claimant, res.Config)
	}
	log, found, err := k.GetVerificationLog(ctx, logAddr)
	if err != nil {
		return out, err
	}
	if !found || !log.IsPending() {
		return out, errorsmod.Wrapf(types.ErrInvalidCallback, "log %s has no pending job", logAddr)
	}
	if !log.CurrentExecution.Equals(res.JobRef) {
		return out, errorsmod.Wrapf(types.ErrInvalidCallback, "job %s is not the pending job %s", res.JobRef, log.CurrentExecution)
	}

	if !res.Tracker.Equals(types.TrackerAddress(log.RequestID)) {
		return out, errorsmod.Wrapf(types.ErrInvalidCallback, "tracker %s does not match request %q", res.Tracker, log.RequestID)
	}
	tracker, found, err := k.GetTracker(ctx, res.Tracker)
	if err != nil {
		return out, err
	}
	if !found || !tracker.ExecutionAccount.Equals(res.JobRef) {
		return out, errorsmod.Wrapf(types.ErrInvalidCallback, "tracker %s does not reference job %s", res.Tracker, res.JobRef)
	}

	out, err = types.ParseJobOutput(res.Output)
	if err != nil {
		return out, err
	}
	if !out.MatchesDigest(log.ContentDigest) {
		return types.JobOutput{}, errorsmod.Wrapf(types.ErrInvalidOutput, "committed digest %s differs from expected content", out.DigestHex())
	}

	cacheCtx, write := sdkCtx.CacheContext()

	prev := log
	log.Slot = sdkCtx.BlockHeight()
	log.IsVerified = out.Verified()
	log.CurrentExecution = nil
	log.PendingDeadline = 0
	k.setVerificationLog(cacheCtx, log, &prev)

	paid := false
	if out.Verified() {
		paid, err = k.payReward(cacheCtx, res.Config, res.Claimant)
		if err != nil {
			return types.JobOutput{}, err
		}
	}

	write()

	eventType := types.EventTypePostRejected
	if out.Verified() {
		eventType = types.EventTypePostVerified
	}
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(eventType,
			sdk.NewAttribute(types.AttributeKeyConfig, res.Config.String()),
			sdk.NewAttribute(types.AttributeKeyClaimant, res.Claimant.String()),
			sdk.NewAttribute(types.AttributeKeyJobRef, res.JobRef.String()),
			sdk.NewAttribute(types.AttributeKeyDigest, out.DigestHex()),
			sdk.NewAttribute(types.AttributeKeyBlockHeight, strconv.FormatInt(log.Slot, 10)),
		),
	)
	k.Logger(ctx).Info("job settled",
		"config", res.Config.String(), "claimant", res.Claimant.String(), "verified", out.Verified(), "paid", paid)

	return out, nil
}

// payReward moves one reward from the config to the claimant and counts the
// claim, closing the campaign when the cap is reached. A campaign that is
// already full records the verdict without paying.
func (k Keeper) payReward(ctx sdk.Context, config, claimant sdk.AccAddress) (bool, error) {
	c, err := k.GetConfig(ctx, config)
	if err != nil {
		return false, err
	}
	if c.ClaimersCount >= c.MaxClaimers {
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(types.EventTypeRewardSkipped,
				sdk.NewAttribute(types.AttributeKeyConfig, config.String()),
				sdk.NewAttribute(types.AttributeKeyClaimant, claimant.String()),
			),
		)
		return false, nil
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return false, err
	}

	if c.RewardAmount > 0 {
		reward := sdk.NewCoins(sdk.NewCoin(params.Denom, math.NewIntFromUint64(c.RewardAmount)))
		if err := k.bankKeeper.SendCoins(ctx, config, claimant, reward); err != nil {
			return false, errorsmod.Wrapf(types.ErrInsufficientFunds, "reward: %s", err)
		}
	}

	c.ClaimersCount++
	if c.ClaimersCount >= c.MaxClaimers {
		c.Active = false
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(types.EventTypeConfigExhausted,
				sdk.NewAttribute(types.AttributeKeyConfig, config.String()),
				sdk.NewAttribute(types.AttributeKeyClaimersCount, strconv.FormatUint(c.ClaimersCount, 10)),
			),
		)
	}
	k.setConfig(ctx, c)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(types.EventTypeRewardPaid,
			sdk.NewAttribute(types.AttributeKeyConfig, config.String()),
			sdk.NewAttribute(types.AttributeKeyClaimant, claimant.String()),
			sdk.NewAttribute(types.AttributeKeyAmount, strconv.FormatUint(c.RewardAmount, 10)),
			sdk.NewAttribute(types.AttributeKeyClaimersCount, strconv.FormatUint(c.ClaimersCount, 10)),
		),
	)
	k.metrics.RewardsPaid.Inc()
	k.metrics.RewardAmountPaid.Add(float64(c.RewardAmount))
	telemetry.IncrCounterWithLabels(
		[]string{types.ModuleName, "reward_paid"},
		1,
		[]metrics.Label{
			telemetry.NewLabel("denom", params.Denom),
		},
	)
	return true, nil
}

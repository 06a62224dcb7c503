package keeper

import (
	"context"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

// SubmitVerification checks a claimant's request against the campaign and
// hands a job to the coprocessor. Checks run in this order: campaign active,
// capacity left, escrow covers one reward, tracker derived from the request
// id, cooldown since the last decision and no live job for the log. State
// changes are committed only once the coprocessor has accepted the job.
func (k Keeper) SubmitVerification(ctx context.Context, req types.VerificationRequest) (sj types.SubmittedJob, err error) {
	defer func() {
		k.metrics.VerificationRequests.WithLabelValues(outcomeLabel(err)).Inc()
	}()

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if k.coprocessor == nil {
		return sj, errorsmod.Wrap(types.ErrCoprocessorUnavailable, "no coprocessor bound")
	}
	if err := validateRequest(req); err != nil {
		return sj, err
	}

	c, err := k.GetConfig(ctx, req.Config)
	if err != nil {
		return sj, err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return sj, err
	}

	if !c.Active {
		return sj, errorsmod.Wrapf(types.ErrConfigNotActive, "config %s", req.Config)
	}
	if c.ClaimersCount >= c.MaxClaimers {
		return sj, errorsmod.Wrapf(types.ErrMaxClaimersReached, "%d of %d claims paid", c.ClaimersCount, c.MaxClaimers)
	}
	if balance := k.escrowBalance(ctx, req.Config, params.Denom); balance.LT(math.NewIntFromUint64(c.RewardAmount)) {
		return sj, errorsmod.Wrapf(types.ErrInsufficientFunds, "escrow %s%s below reward %d%s", balance, params.Denom, c.RewardAmount, params.Denom)
	}

	tracker := types.TrackerAddress(req.RequestID)
	if !req.Tracker.Equals(tracker) {
		return sj, errorsmod.Wrapf(types.ErrPostVerificationRequestFailed, "tracker %s is not derived from request id %q", req.Tracker, req.RequestID)
	}

	height := sdkCtx.BlockHeight()
	logAddr := types.LogAddress(req.Claimant, req.Config)
	prev, found, err := k.GetVerificationLog(ctx, logAddr)
	if err != nil {
		return sj, err
	}
	if found {
		if prev.Slot > 0 && height-prev.Slot < params.VerificationCooldown {
			return sj, errorsmod.Wrapf(types.ErrVerificationTooFast, "last decision at %d, cooldown %d, now %d", prev.Slot, params.VerificationCooldown, height)
		}
		if prev.IsPending() && height <= prev.PendingDeadline {
			return sj, errorsmod.Wrapf(types.ErrVerificationTooFast, "job %s pending until %d", prev.CurrentExecution, prev.PendingDeadline)
		}
	}

	cacheCtx, write := sdkCtx.CacheContext()

	if _, exists, err := k.GetTracker(cacheCtx, tracker); err != nil {
		return sj, err
	} else if !exists {
		k.setTracker(cacheCtx, req.RequestID, types.ExecutionTracker{})
		cacheCtx.EventManager().EmitEvent(
			sdk.NewEvent(types.EventTypeTrackerInitialized,
				sdk.NewAttribute(types.AttributeKeyTracker, tracker.String()),
				sdk.NewAttribute(types.AttributeKeyRequestID, req.RequestID),
			),
		)
	}

	nonce := k.GetNextJobNonce(cacheCtx)
	k.setNextJobNonce(cacheCtx, nonce+1)

	job := types.Job{
		Ref:         types.ExecutionAddress(tracker, req.Claimant, nonce),
		RequestID:   req.RequestID,
		ImageID:     params.GuestImageID,
		PublicInput: types.EncodePublicInput(req.PostSize, c.Keywords),
		ContentURL:  req.PostURL,
		Tip:         req.Tip,
		Deadline:    height + params.JobDeadlineHorizon,
		Callback: types.CallbackDescriptor{
			Tracker:  tracker,
			Config:   req.Config,
			Log:      logAddr,
			Claimant: req.Claimant,
		},
	}

	if req.Tip > 0 {
		tip := sdk.NewCoins(sdk.NewCoin(params.Denom, math.NewIntFromUint64(req.Tip)))
		if err := k.bankKeeper.SendCoins(cacheCtx, req.Claimant, k.coprocessor.FeeAddress(), tip); err != nil {
			return sj, errorsmod.Wrapf(types.ErrInsufficientFunds, "tip: %s", err)
		}
	}

	k.setTracker(cacheCtx, req.RequestID, types.ExecutionTracker{ExecutionAccount: job.Ref})

	next := types.VerificationLog{Verifier: req.Claimant, Config: req.Config}
	var prevPtr *types.VerificationLog
	if found {
		next = prev
		prevPtr = &prev
	}
	next.Verifier = req.Claimant
	next.Config = req.Config
	next.PostURL = req.PostURL
	next.CurrentExecution = job.Ref
	next.RequestID = req.RequestID
	next.PendingDeadline = job.Deadline
	next.ContentDigest = req.ContentDigest
	next.Attempts++
	k.setVerificationLog(cacheCtx, next, prevPtr)

	if err := k.coprocessor.SubmitJob(ctx, job); err != nil {
		return sj, errorsmod.Wrap(types.ErrCoprocessorUnavailable, err.Error())
	}
	write()

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(types.EventTypeVerificationRequested,
			sdk.NewAttribute(types.AttributeKeyConfig, req.Config.String()),
			sdk.NewAttribute(types.AttributeKeyClaimant, req.Claimant.String()),
			sdk.NewAttribute(types.AttributeKeyLog, logAddr.String()),
			sdk.NewAttribute(types.AttributeKeyRequestID, req.RequestID),
			sdk.NewAttribute(types.AttributeKeyJobRef, job.Ref.String()),
			sdk.NewAttribute(types.AttributeKeyPostURL, req.PostURL),
			sdk.NewAttribute(types.AttributeKeyDeadline, strconv.FormatInt(job.Deadline, 10)),
		),
	)
	k.Logger(ctx).Info("verification requested",
		"config", req.Config.String(), "claimant", req.Claimant.String(), "job", job.Ref.String(), "deadline", job.Deadline)

	return types.SubmittedJob{JobRef: job.Ref, Log: logAddr, Tracker: tracker, Deadline: job.Deadline}, nil
}

func validateRequest(req types.VerificationRequest) error {
	if len(req.Claimant) == 0 || len(req.Config) == 0 {
		return errorsmod.Wrap(types.ErrInvalidRequest, "claimant and config are required")
	}
	if req.RequestID == "" || len(req.RequestID) > types.MaxRequestIDLen {
		return errorsmod.Wrapf(types.ErrInvalidRequest, "request id must be 1-%d bytes", types.MaxRequestIDLen)
	}
	if err := types.ValidatePostURL(req.PostURL); err != nil {
		return err
	}
	if len(req.ContentDigest) != 0 && len(req.ContentDigest) != types.DigestSize {
		return errorsmod.Wrapf(types.ErrInvalidRequest, "content digest must be %d bytes", types.DigestSize)
	}
	return nil
}

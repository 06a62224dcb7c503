package keeper

import (
	"context"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

// CreateConfig opens a campaign at the identity derived from (owner, label)
// and moves storage_floor + reward*max_claimers from the owner into it.
func (k Keeper) CreateConfig(
	ctx context.Context,
	owner sdk.AccAddress,
	label string,
	keywords []string,
	rewardAmount, maxClaimers uint64,
) (sdk.AccAddress, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	c := types.CampaignConfig{
		Owner:        owner,
		Label:        label,
		Keywords:     keywords,
		RewardAmount: rewardAmount,
		MaxClaimers:  maxClaimers,
		Active:       true,
		CreatedAt:    sdkCtx.BlockHeight(),
	}
	if maxClaimers == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidConfig, "max claimers must be positive")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	addr := c.Address()
	if k.HasConfig(ctx, addr) {
		return nil, errorsmod.Wrapf(types.ErrConfigExists, "%s/%s", owner, label)
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, err
	}

	escrow := math.NewIntFromUint64(params.StorageFloor).Add(
		math.NewIntFromUint64(rewardAmount).Mul(math.NewIntFromUint64(maxClaimers)),
	)
	if escrow.IsPositive() {
		spendable := k.bankKeeper.SpendableCoins(ctx, owner).AmountOf(params.Denom)
		if spendable.LT(escrow) {
			return nil, errorsmod.Wrapf(types.ErrInsufficientFunds, "escrow requires %s%s, owner has %s%s",
				escrow, params.Denom, spendable, params.Denom)
		}
		if err := k.bankKeeper.SendCoins(ctx, owner, addr, sdk.NewCoins(sdk.NewCoin(params.Denom, escrow))); err != nil {
			return nil, errorsmod.Wrap(types.ErrInsufficientFunds, err.Error())
		}
		if escrow.IsUint64() {
			k.metrics.EscrowLocked.Add(float64(escrow.Uint64()))
		}
	}

	k.setConfig(ctx, c)

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(types.EventTypeConfigCreated,
			sdk.NewAttribute(types.AttributeKeyConfig, addr.String()),
			sdk.NewAttribute(types.AttributeKeyOwner, owner.String()),
			sdk.NewAttribute(types.AttributeKeyLabel, label),
			sdk.NewAttribute(types.AttributeKeyEscrow, escrow.String()),
		),
	)
	k.metrics.ConfigsCreated.Inc()
	k.Logger(ctx).Info("campaign created", "config", addr.String(), "owner", owner.String(), "escrow", escrow.String())

	return addr, nil
}

// UpdateConfig applies the fields set in upd. Only the owner may update, and
// the result must still satisfy the config invariants: the cap cannot drop
// below the claims already paid, a full campaign stays closed, an active
// campaign must hold enough escrow for its remaining claims, and a paused one
// enough for the jobs still in flight at the new reward.
func (k Keeper) UpdateConfig(ctx context.Context, caller, config sdk.AccAddress, upd types.ConfigUpdate) error {
	c, err := k.GetConfig(ctx, config)
	if err != nil {
		return err
	}
	if !c.Owner.Equals(caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the owner of %s", caller, config)
	}

	next := c
	if upd.RewardAmount != nil {
		next.RewardAmount = *upd.RewardAmount
	}
	if upd.MaxClaimers != nil {
		if *upd.MaxClaimers < c.ClaimersCount {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "max claimers %d below claims already paid %d", *upd.MaxClaimers, c.ClaimersCount)
		}
		next.MaxClaimers = *upd.MaxClaimers
	}
	if upd.Active != nil {
		next.Active = *upd.Active
	}
	if next.ClaimersCount >= next.MaxClaimers {
		if upd.Active != nil && *upd.Active {
			return errorsmod.Wrapf(types.ErrMaxClaimersReached, "%d of %d claims paid", next.ClaimersCount, next.MaxClaimers)
		}
		next.Active = false
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return err
	}
	required, err := k.owedEscrow(ctx, next)
	if err != nil {
		return err
	}
	if balance := k.escrowBalance(ctx, config, params.Denom); balance.LT(required) {
		what := "remaining claims"
		if !next.Active {
			what = "pending claims"
		}
		return errorsmod.Wrapf(types.ErrInsufficientFunds, "%s need %s%s, escrow holds %s%s",
			what, required, params.Denom, balance, params.Denom)
	}

	k.setConfig(ctx, next)

	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(types.EventTypeConfigUpdated,
			sdk.NewAttribute(types.AttributeKeyConfig, config.String()),
			sdk.NewAttribute(types.AttributeKeyActive, strconv.FormatBool(next.Active)),
			sdk.NewAttribute(types.AttributeKeyAmount, strconv.FormatUint(next.RewardAmount, 10)),
			sdk.NewAttribute(types.AttributeKeyClaimersCount, strconv.FormatUint(next.ClaimersCount, 10)),
		),
	)
	k.metrics.ConfigsUpdated.Inc()
	return nil
}

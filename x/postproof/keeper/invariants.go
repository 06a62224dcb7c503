package keeper

import (
	"fmt"
	"strings"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

// RegisterInvariants registers all postproof module invariants
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "escrow-conservation",
		EscrowConservationInvariant(k))
	ir.RegisterRoute(types.ModuleName, "claimers-cap",
		ClaimersCapInvariant(k))
	ir.RegisterRoute(types.ModuleName, "pending-index",
		PendingIndexInvariant(k))
}

// AllInvariants runs all invariants of the postproof module
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		res, stop := EscrowConservationInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		res, stop = ClaimersCapInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		return PendingIndexInvariant(k)(ctx)
	}
}

// EscrowConservationInvariant checks that every active config holds enough
// escrow to pay all of its remaining claims, and every paused one enough for
// its pending claims
func EscrowConservationInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var issues []string

		params, err := k.GetParams(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "escrow-conservation",
				fmt.Sprintf("error getting params: %v", err)), true
		}

		err = k.IterateConfigs(ctx, func(c types.CampaignConfig) (bool, error) {
			required, err := k.owedEscrow(ctx, c)
			if err != nil {
				return true, err
			}
			balance := k.escrowBalance(ctx, c.Address(), params.Denom)
			if balance.LT(required) {
				issues = append(issues, fmt.Sprintf(
					"config %s (active=%t) holds %s%s but owes %s%s",
					c.Address(), c.Active, balance, params.Denom, required, params.Denom,
				))
			}
			return false, nil
		})
		if err != nil {
			issues = append(issues, fmt.Sprintf("error iterating configs: %v", err))
		}

		return sdk.FormatInvariant(types.ModuleName, "escrow-conservation",
			strings.Join(issues, "\n")), len(issues) > 0
	}
}

// ClaimersCapInvariant checks that no config paid more claims than its cap
// and that full configs are closed
func ClaimersCapInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var issues []string

		err := k.IterateConfigs(ctx, func(c types.CampaignConfig) (bool, error) {
			if c.ClaimersCount > c.MaxClaimers {
				issues = append(issues, fmt.Sprintf("config %s paid %d claims over cap %d", c.Address(), c.ClaimersCount, c.MaxClaimers))
			}
			if c.Active && c.ClaimersCount >= c.MaxClaimers {
				issues = append(issues, fmt.Sprintf("config %s is active with no claims remaining", c.Address()))
			}
			return false, nil
		})
		if err != nil {
			issues = append(issues, fmt.Sprintf("error iterating configs: %v", err))
		}

		return sdk.FormatInvariant(types.ModuleName, "claimers-cap",
			strings.Join(issues, "\n")), len(issues) > 0
	}
}

// PendingIndexInvariant checks that every pending log has exactly its
// deadline entry and that no entry points at an idle log
func PendingIndexInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var issues []string
		store := k.getStore(ctx)

		pending := 0
		err := k.IterateVerificationLogs(ctx, func(l types.VerificationLog) (bool, error) {
			if !l.IsPending() {
				return false, nil
			}
			pending++
			if !store.Has(PendingDeadlineKey(l.PendingDeadline, l.Address())) {
				issues = append(issues, fmt.Sprintf("pending log %s has no deadline entry at %d", l.Address(), l.PendingDeadline))
			}
			return false, nil
		})
		if err != nil {
			issues = append(issues, fmt.Sprintf("error iterating logs: %v", err))
		}

		entries := 0
		iterator := storetypes.KVStorePrefixIterator(store, PendingByDeadlinePrefix)
		for ; iterator.Valid(); iterator.Next() {
			entries++
		}
		iterator.Close()

		if entries != pending {
			issues = append(issues, fmt.Sprintf("%d deadline entries for %d pending logs", entries, pending))
		}

		return sdk.FormatInvariant(types.ModuleName, "pending-index",
			strings.Join(issues, "\n")), len(issues) > 0
	}
}

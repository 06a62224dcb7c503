package keeper

import (
	"context"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

// GetConfig returns the config stored at a config identity.
func (k Keeper) GetConfig(ctx context.Context, config sdk.AccAddress) (types.CampaignConfig, error) {
	bz := k.getStore(ctx).Get(ConfigKey(config))
	if bz == nil {
		return types.CampaignConfig{}, errorsmod.Wrapf(types.ErrConfigNotFound, "config %s", config)
	}
	return types.UnmarshalCampaignConfig(bz)
}

// HasConfig reports whether a config exists.
func (k Keeper) HasConfig(ctx context.Context, config sdk.AccAddress) bool {
	return k.getStore(ctx).Has(ConfigKey(config))
}

// setConfig writes a config and its owner index entry.
func (k Keeper) setConfig(ctx context.Context, c types.CampaignConfig) {
	store := k.getStore(ctx)
	addr := c.Address()
	store.Set(ConfigKey(addr), c.Marshal())
	store.Set(ConfigByOwnerKey(c.Owner, addr), []byte{})
}

// IterateConfigs walks every config in key order.
func (k Keeper) IterateConfigs(ctx context.Context, cb func(types.CampaignConfig) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), ConfigKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		c, err := types.UnmarshalCampaignConfig(iterator.Value())
		if err != nil {
			return err
		}
		stop, err := cb(c)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// ConfigsByOwner returns every config created by owner.
func (k Keeper) ConfigsByOwner(ctx context.Context, owner sdk.AccAddress) ([]types.CampaignConfig, error) {
	prefix := ConfigsByOwnerPrefixKey(owner)
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), prefix)
	defer iterator.Close()

	var configs []types.CampaignConfig
	for ; iterator.Valid(); iterator.Next() {
		c, err := k.GetConfig(ctx, sdk.AccAddress(iterator.Key()[len(prefix):]))
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// EscrowBalance returns the escrow held by a config in the module denom.
func (k Keeper) EscrowBalance(ctx context.Context, config sdk.AccAddress) (sdk.Coin, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return sdk.Coin{}, err
	}
	return k.bankKeeper.GetBalance(ctx, config, params.Denom), nil
}

// GetVerificationLog returns the log stored at a log identity.
func (k Keeper) GetVerificationLog(ctx context.Context, log sdk.AccAddress) (types.VerificationLog, bool, error) {
	bz := k.getStore(ctx).Get(LogKey(log))
	if bz == nil {
		return types.VerificationLog{}, false, nil
	}
	l, err := types.UnmarshalVerificationLog(bz)
	if err != nil {
		return types.VerificationLog{}, false, err
	}
	return l, true, nil
}

// setVerificationLog writes a log together with its config index entry and
// keeps the deadline index in step with the pending state. prev is the
// stored version, if any.
func (k Keeper) setVerificationLog(ctx context.Context, l types.VerificationLog, prev *types.VerificationLog) {
	store := k.getStore(ctx)
	addr := l.Address()
	if prev != nil && prev.IsPending() {
		store.Delete(PendingDeadlineKey(prev.PendingDeadline, addr))
	}
	if l.IsPending() {
		store.Set(PendingDeadlineKey(l.PendingDeadline, addr), []byte{})
	}
	store.Set(LogKey(addr), l.Marshal())
	store.Set(LogByConfigKey(l.Config, addr), []byte{})
}

// pendingClaims counts the logs of config waiting on a job result.
func (k Keeper) pendingClaims(ctx context.Context, config sdk.AccAddress) (uint64, error) {
	prefix := LogsByConfigPrefixKey(config)
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), prefix)
	defer iterator.Close()

	var n uint64
	for ; iterator.Valid(); iterator.Next() {
		l, found, err := k.GetVerificationLog(ctx, sdk.AccAddress(iterator.Key()[len(prefix):]))
		if err != nil {
			return 0, err
		}
		if found && l.IsPending() {
			n++
		}
	}
	return n, nil
}

// IterateVerificationLogs walks every log in key order.
func (k Keeper) IterateVerificationLogs(ctx context.Context, cb func(types.VerificationLog) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), LogKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		l, err := types.UnmarshalVerificationLog(iterator.Value())
		if err != nil {
			return err
		}
		stop, err := cb(l)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// GetTracker returns the tracker stored at a tracker identity.
func (k Keeper) GetTracker(ctx context.Context, tracker sdk.AccAddress) (types.ExecutionTracker, bool, error) {
	bz := k.getStore(ctx).Get(TrackerKey(tracker))
	if bz == nil {
		return types.ExecutionTracker{}, false, nil
	}
	t, err := types.UnmarshalExecutionTracker(bz)
	if err != nil {
		return types.ExecutionTracker{}, false, err
	}
	return t, true, nil
}

func (k Keeper) setTracker(ctx context.Context, requestID string, t types.ExecutionTracker) {
	store := k.getStore(ctx)
	addr := types.TrackerAddress(requestID)
	store.Set(TrackerKey(addr), t.Marshal())
	store.Set(TrackerRequestIDKey(addr), []byte(requestID))
}

// IterateTrackers walks every tracker with its request id.
func (k Keeper) IterateTrackers(ctx context.Context, cb func(requestID string, t types.ExecutionTracker) (stop bool, err error)) error {
	store := k.getStore(ctx)
	iterator := storetypes.KVStorePrefixIterator(store, TrackerKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		addr := sdk.AccAddress(iterator.Key()[len(TrackerKeyPrefix):])
		t, err := types.UnmarshalExecutionTracker(iterator.Value())
		if err != nil {
			return err
		}
		requestID := store.Get(TrackerRequestIDKey(addr))
		if requestID == nil {
			return errorsmod.Wrapf(types.ErrCorruptRecord, "tracker %s has no request id", addr)
		}
		stop, err := cb(string(requestID), t)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// GetNextJobNonce returns the nonce the next job will use.
func (k Keeper) GetNextJobNonce(ctx context.Context) uint64 {
	bz := k.getStore(ctx).Get(NextJobNonceKey)
	if bz == nil {
		return 1
	}
	return binary.BigEndian.Uint64(bz)
}

func (k Keeper) setNextJobNonce(ctx context.Context, nonce uint64) {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, nonce)
	k.getStore(ctx).Set(NextJobNonceKey, bz)
}

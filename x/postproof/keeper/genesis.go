package keeper

import (
	"context"
	"fmt"

	"github.com/proofofpost/pop/x/postproof/types"
)

// InitGenesis initializes the postproof module's state from a genesis state.
// Escrow balances live in the bank genesis.
func (k Keeper) InitGenesis(ctx context.Context, gs types.GenesisState) error {
	if err := gs.Validate(); err != nil {
		return fmt.Errorf("invalid genesis state: %w", err)
	}
	if err := k.SetParams(ctx, gs.Params); err != nil {
		return err
	}
	for _, c := range gs.Configs {
		k.setConfig(ctx, c)
	}
	for _, l := range gs.Logs {
		k.setVerificationLog(ctx, l, nil)
	}
	for _, t := range gs.Trackers {
		k.setTracker(ctx, t.RequestID, t.Tracker)
	}
	k.setNextJobNonce(ctx, gs.NextJobNonce)
	return nil
}

// ExportGenesis returns the postproof module's exported genesis.
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, err
	}
	gs := &types.GenesisState{
		Params:       params,
		Configs:      []types.CampaignConfig{},
		Logs:         []types.VerificationLog{},
		Trackers:     []types.GenesisTracker{},
		NextJobNonce: k.GetNextJobNonce(ctx),
	}

	if err := k.IterateConfigs(ctx, func(c types.CampaignConfig) (bool, error) {
		gs.Configs = append(gs.Configs, c)
		return false, nil
	}); err != nil {
		return nil, err
	}
	if err := k.IterateVerificationLogs(ctx, func(l types.VerificationLog) (bool, error) {
		gs.Logs = append(gs.Logs, l)
		return false, nil
	}); err != nil {
		return nil, err
	}
	if err := k.IterateTrackers(ctx, func(requestID string, t types.ExecutionTracker) (bool, error) {
		gs.Trackers = append(gs.Trackers, types.GenesisTracker{RequestID: requestID, Tracker: t})
		return false, nil
	}); err != nil {
		return nil, err
	}
	return gs, nil
}

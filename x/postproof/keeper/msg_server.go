package keeper

import (
	"context"
	"encoding/hex"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

var (
	_ types.MsgServer      = msgServer{}
	_ types.CallbackServer = callbackServer{}
)

type msgServer struct {
	*Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper *Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// CreateConfig handles campaign creation
func (ms msgServer) CreateConfig(goCtx context.Context, msg *types.MsgCreateConfig) (*types.MsgCreateConfigResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	owner, _ := sdk.AccAddressFromBech32(msg.Owner)

	addr, err := ms.Keeper.CreateConfig(goCtx, owner, msg.Label, msg.Keywords, msg.RewardAmount, msg.MaxClaimers)
	if err != nil {
		return nil, err
	}
	escrow, err := ms.Keeper.EscrowBalance(goCtx, addr)
	if err != nil {
		return nil, err
	}

	return &types.MsgCreateConfigResponse{Config: addr.String(), Escrow: escrow.String()}, nil
}

// UpdateConfig handles a partial update of campaign policy by its owner
func (ms msgServer) UpdateConfig(goCtx context.Context, msg *types.MsgUpdateConfig) (*types.MsgUpdateConfigResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	owner, _ := sdk.AccAddressFromBech32(msg.Owner)

	upd := types.ConfigUpdate{
		Active:       msg.Active,
		MaxClaimers:  msg.MaxClaimers,
		RewardAmount: msg.RewardAmount,
	}
	if err := ms.Keeper.UpdateConfig(goCtx, owner, types.ConfigAddress(owner, msg.Label), upd); err != nil {
		return nil, err
	}
	return &types.MsgUpdateConfigResponse{}, nil
}

// SubmitVerification handles a claimant's verification request
func (ms msgServer) SubmitVerification(goCtx context.Context, msg *types.MsgSubmitVerification) (*types.MsgSubmitVerificationResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	claimant, _ := sdk.AccAddressFromBech32(msg.Claimant)
	config, _ := sdk.AccAddressFromBech32(msg.Config)
	tracker, _ := sdk.AccAddressFromBech32(msg.Tracker)

	var digest []byte
	if msg.ContentDigest != "" {
		digest, _ = hex.DecodeString(msg.ContentDigest)
	}

	sj, err := ms.Keeper.SubmitVerification(goCtx, types.VerificationRequest{
		Config:        config,
		Claimant:      claimant,
		RequestID:     msg.RequestID,
		Tracker:       tracker,
		PostURL:       msg.PostURL,
		PostSize:      msg.PostSize,
		Tip:           msg.Tip,
		ContentDigest: digest,
	})
	if err != nil {
		return nil, err
	}
	return &types.MsgSubmitVerificationResponse{
		JobRef:   sj.JobRef.String(),
		Log:      sj.Log.String(),
		Deadline: sj.Deadline,
	}, nil
}

// UpdateParams updates the module parameters via governance
func (ms msgServer) UpdateParams(goCtx context.Context, msg *types.MsgUpdateParams) (*types.MsgUpdateParamsResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := ms.Keeper.UpdateParams(goCtx, msg.Authority, msg.Params); err != nil {
		return nil, err
	}
	return &types.MsgUpdateParamsResponse{}, nil
}

type callbackServer struct {
	*Keeper
	capability *types.CallbackCapability
}

// NewCallbackServerImpl returns a CallbackServer that presents capability on
// every delivery.
func NewCallbackServerImpl(keeper *Keeper, capability *types.CallbackCapability) types.CallbackServer {
	return &callbackServer{Keeper: keeper, capability: capability}
}

// DeliverCallback settles a job result
func (cs callbackServer) DeliverCallback(goCtx context.Context, msg *types.MsgDeliverCallback) (*types.MsgDeliverCallbackResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	parse := func(bech string) sdk.AccAddress {
		addr, _ := sdk.AccAddressFromBech32(bech)
		return addr
	}

	out, err := cs.Keeper.OnJobResult(goCtx, cs.capability, types.JobResult{
		Log:      parse(msg.Log),
		Tracker:  parse(msg.Tracker),
		Config:   parse(msg.Config),
		Claimant: parse(msg.Claimant),
		JobRef:   parse(msg.JobRef),
		Output:   msg.Payload,
	})
	if err != nil {
		return nil, errorsmod.Wrap(err, "deliver callback")
	}
	return &types.MsgDeliverCallbackResponse{Verified: out.Verified()}, nil
}

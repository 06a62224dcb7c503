package keeper

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	storeprefix "cosmossdk.io/store/prefix"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/query"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/proofofpost/pop/x/postproof/types"
)

var _ types.QueryServer = queryServer{}

const (
	defaultPaginationLimit = 100
	maxPaginationLimit     = 1000
)

type queryServer struct {
	*Keeper
}

// NewQueryServerImpl returns an implementation of the QueryServer interface
func NewQueryServerImpl(keeper *Keeper) types.QueryServer {
	return &queryServer{Keeper: keeper}
}

// sanitizePagination enforces default and max limits to prevent unbounded queries.
func sanitizePagination(p *query.PageRequest) *query.PageRequest {
	if p == nil {
		return &query.PageRequest{Limit: defaultPaginationLimit}
	}

	if p.Limit == 0 {
		p.Limit = defaultPaginationLimit
	}

	if p.Limit > maxPaginationLimit {
		p.Limit = maxPaginationLimit
	}

	return p
}

func parseAddress(field, bech string) (sdk.AccAddress, error) {
	addr, err := sdk.AccAddressFromBech32(bech)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid %s address: %v", field, err)
	}
	return addr, nil
}

// Params returns the module parameters
func (qs queryServer) Params(goCtx context.Context, req *types.QueryParamsRequest) (*types.QueryParamsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}

	params, err := qs.Keeper.GetParams(goCtx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &types.QueryParamsResponse{Params: params}, nil
}

// Config returns one campaign with its escrow balance
func (qs queryServer) Config(goCtx context.Context, req *types.QueryConfigRequest) (*types.QueryConfigResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	addr, err := parseAddress("config", req.Address)
	if err != nil {
		return nil, err
	}

	c, err := qs.Keeper.GetConfig(goCtx, addr)
	if err != nil {
		// the module error keeps its ABCI code and maps to codes.NotFound
		if types.CategoryOf(err) == types.CategoryNotFound {
			return nil, err
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	escrow, err := qs.Keeper.EscrowBalance(goCtx, addr)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &types.QueryConfigResponse{Address: addr.String(), Config: c, Escrow: escrow.String()}, nil
}

// Configs lists campaigns, optionally for one owner
func (qs queryServer) Configs(goCtx context.Context, req *types.QueryConfigsRequest) (*types.QueryConfigsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	pagination := sanitizePagination(req.Pagination)
	store := qs.getStore(goCtx)

	var configs []types.CampaignConfig
	var pageRes *query.PageResponse
	var err error

	if req.Owner != "" {
		owner, perr := parseAddress("owner", req.Owner)
		if perr != nil {
			return nil, perr
		}
		index := storeprefix.NewStore(store, ConfigsByOwnerPrefixKey(owner))
		pageRes, err = query.Paginate(index, pagination, func(key, _ []byte) error {
			c, err := qs.Keeper.GetConfig(goCtx, sdk.AccAddress(key))
			if err != nil {
				return err
			}
			configs = append(configs, c)
			return nil
		})
	} else {
		configStore := storeprefix.NewStore(store, ConfigKeyPrefix)
		pageRes, err = query.Paginate(configStore, pagination, func(_, value []byte) error {
			c, err := types.UnmarshalCampaignConfig(value)
			if err != nil {
				return err
			}
			configs = append(configs, c)
			return nil
		})
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &types.QueryConfigsResponse{Configs: configs, Pagination: pageRes}, nil
}

// VerificationLog returns the log of one claimant/campaign pair
func (qs queryServer) VerificationLog(goCtx context.Context, req *types.QueryVerificationLogRequest) (*types.QueryVerificationLogResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	claimant, err := parseAddress("claimant", req.Claimant)
	if err != nil {
		return nil, err
	}
	config, err := parseAddress("config", req.Config)
	if err != nil {
		return nil, err
	}

	addr := types.LogAddress(claimant, config)
	l, found, err := qs.Keeper.GetVerificationLog(goCtx, addr)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if !found {
		return nil, errorsmod.Wrap(types.ErrLogNotFound, addr.String())
	}
	return &types.QueryVerificationLogResponse{Address: addr.String(), Log: l}, nil
}

// LogsByConfig lists the logs of one campaign
func (qs queryServer) LogsByConfig(goCtx context.Context, req *types.QueryLogsByConfigRequest) (*types.QueryLogsByConfigResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	config, err := parseAddress("config", req.Config)
	if err != nil {
		return nil, err
	}

	var logs []types.VerificationLog
	index := storeprefix.NewStore(qs.getStore(goCtx), LogsByConfigPrefixKey(config))
	pageRes, err := query.Paginate(index, sanitizePagination(req.Pagination), func(key, _ []byte) error {
		l, found, err := qs.Keeper.GetVerificationLog(goCtx, sdk.AccAddress(key))
		if err != nil {
			return err
		}
		if found {
			logs = append(logs, l)
		}
		return nil
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &types.QueryLogsByConfigResponse{Logs: logs, Pagination: pageRes}, nil
}

// Tracker returns the execution tracker of a request id
func (qs queryServer) Tracker(goCtx context.Context, req *types.QueryTrackerRequest) (*types.QueryTrackerResponse, error) {
	if req == nil || req.RequestID == "" {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}

	addr := types.TrackerAddress(req.RequestID)
	t, found, err := qs.Keeper.GetTracker(goCtx, addr)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if !found {
		return nil, errorsmod.Wrap(types.ErrTrackerNotFound, addr.String())
	}
	return &types.QueryTrackerResponse{Address: addr.String(), Tracker: t}, nil
}

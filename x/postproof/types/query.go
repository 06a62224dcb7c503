package types

import (
	"github.com/cosmos/cosmos-sdk/types/query"
)

type QueryParamsRequest struct{}

type QueryParamsResponse struct {
	Params Params `json:"params"`
}

type QueryConfigRequest struct {
	Address string `json:"address"`
}

type QueryConfigResponse struct {
	Address string         `json:"address"`
	Config  CampaignConfig `json:"config"`
	Escrow  string         `json:"escrow"`
}

// QueryConfigsRequest lists campaigns, optionally restricted to one owner.
type QueryConfigsRequest struct {
	Owner      string             `json:"owner,omitempty"`
	Pagination *query.PageRequest `json:"pagination,omitempty"`
}

type QueryConfigsResponse struct {
	Configs    []CampaignConfig    `json:"configs"`
	Pagination *query.PageResponse `json:"pagination,omitempty"`
}

type QueryVerificationLogRequest struct {
	Claimant string `json:"claimant"`
	Config   string `json:"config"`
}

type QueryVerificationLogResponse struct {
	Address string          `json:"address"`
	Log     VerificationLog `json:"log"`
}

type QueryLogsByConfigRequest struct {
	Config     string             `json:"config"`
	Pagination *query.PageRequest `json:"pagination,omitempty"`
}

type QueryLogsByConfigResponse struct {
	Logs       []VerificationLog   `json:"logs"`
	Pagination *query.PageResponse `json:"pagination,omitempty"`
}

type QueryTrackerRequest struct {
	RequestID string `json:"request_id"`
}

type QueryTrackerResponse struct {
	Address string           `json:"address"`
	Tracker ExecutionTracker `json:"tracker"`
}

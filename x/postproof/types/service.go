package types

import "context"

// MsgServer handles the state-changing operations of the module.
type MsgServer interface {
	CreateConfig(context.Context, *MsgCreateConfig) (*MsgCreateConfigResponse, error)
	UpdateConfig(context.Context, *MsgUpdateConfig) (*MsgUpdateConfigResponse, error)
	SubmitVerification(context.Context, *MsgSubmitVerification) (*MsgSubmitVerificationResponse, error)
	UpdateParams(context.Context, *MsgUpdateParams) (*MsgUpdateParamsResponse, error)
}

// CallbackServer accepts job results from the bound coprocessor.
type CallbackServer interface {
	DeliverCallback(context.Context, *MsgDeliverCallback) (*MsgDeliverCallbackResponse, error)
}

// QueryServer serves read-only queries.
type QueryServer interface {
	Params(context.Context, *QueryParamsRequest) (*QueryParamsResponse, error)
	Config(context.Context, *QueryConfigRequest) (*QueryConfigResponse, error)
	Configs(context.Context, *QueryConfigsRequest) (*QueryConfigsResponse, error)
	VerificationLog(context.Context, *QueryVerificationLogRequest) (*QueryVerificationLogResponse, error)
	LogsByConfig(context.Context, *QueryLogsByConfigRequest) (*QueryLogsByConfigResponse, error)
	Tracker(context.Context, *QueryTrackerRequest) (*QueryTrackerResponse, error)
}

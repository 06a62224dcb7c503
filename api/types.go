package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/query"

	"github.com/proofofpost/pop/x/postproof/types"
)

// Ledger is the state machine the server drives. *app.Ledger implements it.
type Ledger interface {
	CurrentHeight() int64
	Fund(ctx context.Context, addr sdk.AccAddress, amount uint64) error
	Balance(addr sdk.AccAddress) (sdk.Coin, error)

	CreateConfig(ctx context.Context, msg *types.MsgCreateConfig) (*types.MsgCreateConfigResponse, error)
	UpdateConfig(ctx context.Context, msg *types.MsgUpdateConfig) (*types.MsgUpdateConfigResponse, error)
	SubmitVerification(ctx context.Context, msg *types.MsgSubmitVerification) (*types.MsgSubmitVerificationResponse, error)
	DeliverCallback(ctx context.Context, msg *types.MsgDeliverCallback) (*types.MsgDeliverCallbackResponse, error)

	Params(ctx context.Context) (*types.QueryParamsResponse, error)
	Config(ctx context.Context, req *types.QueryConfigRequest) (*types.QueryConfigResponse, error)
	Configs(ctx context.Context, req *types.QueryConfigsRequest) (*types.QueryConfigsResponse, error)
	VerificationLog(ctx context.Context, req *types.QueryVerificationLogRequest) (*types.QueryVerificationLogResponse, error)
	LogsByConfig(ctx context.Context, req *types.QueryLogsByConfigRequest) (*types.QueryLogsByConfigResponse, error)
	Tracker(ctx context.Context, req *types.QueryTrackerRequest) (*types.QueryTrackerResponse, error)
}

// ==================== Authentication Types ====================

// ChallengeRequest asks for a login nonce for an address.
type ChallengeRequest struct {
	Address string `json:"address" binding:"required"`
}

// ChallengeResponse carries the message to sign; it is valid once, until
// ExpiresAt.
type ChallengeResponse struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenRequest asks for a bearer token bound to an address. A user token
// needs Nonce from a challenge, the hex compressed secp256k1 PubKey of the
// address and the hex Signature of the challenge message.
type TokenRequest struct {
	Address        string `json:"address" binding:"required"`
	Role           Role   `json:"role,omitempty"`
	Nonce          string `json:"nonce,omitempty"`
	PubKey         string `json:"pub_key,omitempty"`
	Signature      string `json:"signature,omitempty"`
	CoprocessorKey string `json:"coprocessor_key,omitempty"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	Address   string `json:"address"`
	Role      Role   `json:"role"`
}

// ==================== Campaign Types ====================

// CreateConfigRequest opens a campaign owned by the token holder.
type CreateConfigRequest struct {
	Label        string   `json:"label" binding:"required"`
	Keywords     []string `json:"keywords"`
	RewardAmount uint64   `json:"reward_amount"`
	MaxClaimers  uint64   `json:"max_claimers"`
}

type UpdateConfigRequest struct {
	Active       *bool   `json:"active,omitempty"`
	MaxClaimers  *uint64 `json:"max_claimers,omitempty"`
	RewardAmount *uint64 `json:"reward_amount,omitempty"`
}

// ==================== Verification Types ====================

// SubmitVerificationRequest asks for a post to be verified for the token
// holder.
type SubmitVerificationRequest struct {
	Config        string `json:"config" binding:"required"`
	RequestID     string `json:"request_id" binding:"required"`
	Tracker       string `json:"tracker" binding:"required"`
	PostURL       string `json:"post_url" binding:"required"`
	PostSize      uint64 `json:"post_size"`
	Tip           uint64 `json:"tip"`
	ContentDigest string `json:"content_digest,omitempty"`
}

// CallbackRequest carries a job result from an external coprocessor. The
// payload is hex encoded.
type CallbackRequest struct {
	Log      string `json:"log" binding:"required"`
	Tracker  string `json:"tracker" binding:"required"`
	Config   string `json:"config" binding:"required"`
	Claimant string `json:"claimant" binding:"required"`
	JobRef   string `json:"job_ref" binding:"required"`
	Payload  string `json:"payload"`
}

// ==================== Faucet Types ====================

type FaucetRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

type BalanceResponse struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
	Amount  string `json:"amount"`
}

// ==================== Common Response Types ====================

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// PaginationParams are the list query parameters. PageKey is the base64
// next_key of a previous page.
type PaginationParams struct {
	Limit   uint64 `form:"limit"`
	Offset  uint64 `form:"offset"`
	PageKey string `form:"page_key"`
	Total   bool   `form:"count_total"`
}

// MaxPageSize caps the limit a caller may ask for.
const MaxPageSize = 100

// PageRequest converts the parameters into a store page request.
func (p PaginationParams) PageRequest() (*query.PageRequest, error) {
	if p.Limit > MaxPageSize {
		return nil, fmt.Errorf("limit %d exceeds %d", p.Limit, MaxPageSize)
	}
	req := &query.PageRequest{Limit: p.Limit, Offset: p.Offset, CountTotal: p.Total}
	if p.PageKey != "" {
		if p.Offset != 0 {
			return nil, fmt.Errorf("page_key and offset are mutually exclusive")
		}
		key, err := base64.StdEncoding.DecodeString(p.PageKey)
		if err != nil {
			return nil, fmt.Errorf("invalid page_key: %w", err)
		}
		req.Key = key
	}
	return req, nil
}

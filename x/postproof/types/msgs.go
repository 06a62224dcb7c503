package types

import (
	"encoding/hex"
	"net/url"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// MsgCreateConfig opens a campaign and escrows its funding.
type MsgCreateConfig struct {
	Owner        string   `json:"owner"`
	Label        string   `json:"label"`
	Keywords     []string `json:"keywords"`
	RewardAmount uint64   `json:"reward_amount"`
	MaxClaimers  uint64   `json:"max_claimers"`
}

type MsgCreateConfigResponse struct {
	Config string `json:"config"`
	Escrow string `json:"escrow"`
}

// MsgUpdateConfig changes the policy fields that are set; nil fields are left
// untouched.
type MsgUpdateConfig struct {
	Owner        string  `json:"owner"`
	Label        string  `json:"label"`
	Active       *bool   `json:"active,omitempty"`
	MaxClaimers  *uint64 `json:"max_claimers,omitempty"`
	RewardAmount *uint64 `json:"reward_amount,omitempty"`
}

type MsgUpdateConfigResponse struct{}

// MsgSubmitVerification asks for a post to be verified against a campaign.
type MsgSubmitVerification struct {
	Claimant  string `json:"claimant"`
	Config    string `json:"config"`
	RequestID string `json:"request_id"`
	// Tracker is the account the claimant claims belongs to RequestID. It is
	// checked against the derived identity.
	Tracker       string `json:"tracker"`
	PostURL       string `json:"post_url"`
	PostSize      uint64 `json:"post_size"`
	Tip           uint64 `json:"tip"`
	ContentDigest string `json:"content_digest,omitempty"`
}

type MsgSubmitVerificationResponse struct {
	JobRef   string `json:"job_ref"`
	Log      string `json:"log"`
	Deadline int64  `json:"deadline"`
}

// MsgDeliverCallback carries a job result from the coprocessor.
type MsgDeliverCallback struct {
	Log      string `json:"log"`
	Tracker  string `json:"tracker"`
	Config   string `json:"config"`
	Claimant string `json:"claimant"`
	JobRef   string `json:"job_ref"`
	Payload  []byte `json:"payload"`
}

type MsgDeliverCallbackResponse struct {
	Verified bool `json:"verified"`
}

// MsgUpdateParams replaces the module params.
type MsgUpdateParams struct {
	Authority string `json:"authority"`
	Params    Params `json:"params"`
}

type MsgUpdateParamsResponse struct{}

func requireAddress(field, bech string) (sdk.AccAddress, error) {
	if bech == "" {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "%s cannot be empty", field)
	}
	addr, err := sdk.AccAddressFromBech32(bech)
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "invalid %s address: %s", field, err)
	}
	return addr, nil
}

// GetSigners returns the expected signers for MsgCreateConfig
func (msg *MsgCreateConfig) GetSigners() []sdk.AccAddress {
	owner, _ := sdk.AccAddressFromBech32(msg.Owner)
	return []sdk.AccAddress{owner}
}

// ValidateBasic performs stateless checks
func (msg *MsgCreateConfig) ValidateBasic() error {
	if _, err := requireAddress("owner", msg.Owner); err != nil {
		return err
	}
	if err := ValidateLabel(msg.Label); err != nil {
		return err
	}
	return ValidateKeywords(msg.Keywords)
}

// GetSigners returns the expected signers for MsgUpdateConfig
func (msg *MsgUpdateConfig) GetSigners() []sdk.AccAddress {
	owner, _ := sdk.AccAddressFromBech32(msg.Owner)
	return []sdk.AccAddress{owner}
}

// ValidateBasic performs stateless checks
func (msg *MsgUpdateConfig) ValidateBasic() error {
	if _, err := requireAddress("owner", msg.Owner); err != nil {
		return err
	}
	if err := ValidateLabel(msg.Label); err != nil {
		return err
	}
	if msg.Active == nil && msg.MaxClaimers == nil && msg.RewardAmount == nil {
		return errorsmod.Wrap(ErrInvalidConfig, "update sets no fields")
	}
	return nil
}

// GetSigners returns the expected signers for MsgSubmitVerification
func (msg *MsgSubmitVerification) GetSigners() []sdk.AccAddress {
	claimant, _ := sdk.AccAddressFromBech32(msg.Claimant)
	return []sdk.AccAddress{claimant}
}

// ValidateBasic performs stateless checks
func (msg *MsgSubmitVerification) ValidateBasic() error {
	for field, bech := range map[string]string{"claimant": msg.Claimant, "config": msg.Config, "tracker": msg.Tracker} {
		if _, err := requireAddress(field, bech); err != nil {
			return err
		}
	}
	if msg.RequestID == "" || len(msg.RequestID) > MaxRequestIDLen {
		return errorsmod.Wrapf(ErrInvalidRequest, "request id must be 1-%d bytes", MaxRequestIDLen)
	}
	if err := ValidatePostURL(msg.PostURL); err != nil {
		return err
	}
	if msg.ContentDigest != "" {
		if _, err := DecodeDigest(msg.ContentDigest); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePostURL checks the content reference of a verification request.
func ValidatePostURL(raw string) error {
	if raw == "" {
		return errorsmod.Wrap(ErrInvalidRequest, "post url cannot be empty")
	}
	if len(raw) > MaxPostURLLength {
		return errorsmod.Wrapf(ErrInvalidRequest, "post url length %d exceeds %d", len(raw), MaxPostURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errorsmod.Wrapf(ErrInvalidRequest, "post url must be an absolute http(s) url: %q", raw)
	}
	return nil
}

// DecodeDigest parses a hex-encoded content digest.
func DecodeDigest(s string) ([]byte, error) {
	bz, err := hex.DecodeString(s)
	if err != nil || len(bz) != DigestSize {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "content digest must be %d hex-encoded bytes", DigestSize)
	}
	return bz, nil
}

// ValidateBasic performs stateless checks
func (msg *MsgDeliverCallback) ValidateBasic() error {
	fields := []struct{ name, bech string }{
		{"log", msg.Log}, {"tracker", msg.Tracker}, {"config", msg.Config},
		{"claimant", msg.Claimant}, {"job_ref", msg.JobRef},
	}
	for _, f := range fields {
		if _, err := requireAddress(f.name, f.bech); err != nil {
			return err
		}
	}
	return nil
}

// GetSigners returns the expected signers for MsgUpdateParams
func (msg *MsgUpdateParams) GetSigners() []sdk.AccAddress {
	authority, _ := sdk.AccAddressFromBech32(msg.Authority)
	return []sdk.AccAddress{authority}
}

// ValidateBasic performs stateless checks
func (msg *MsgUpdateParams) ValidateBasic() error {
	if _, err := requireAddress("authority", msg.Authority); err != nil {
		return err
	}
	if err := msg.Params.Validate(); err != nil {
		return errorsmod.Wrap(ErrInvalidParams, err.Error())
	}
	return nil
}

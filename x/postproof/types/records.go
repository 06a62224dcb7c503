package types

import (
	"fmt"
	"strings"
	"unicode/utf8"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Record names and current schema versions.
const (
	CampaignConfigRecord   = "CampaignConfig"
	VerificationLogRecord  = "VerificationLog"
	ExecutionTrackerRecord = "ExecutionTracker"

	CampaignConfigVersion   uint8 = 1
	VerificationLogVersion  uint8 = 1
	ExecutionTrackerVersion uint8 = 1
)

// CampaignConfig is the policy and escrow unit of a campaign. Escrowed funds
// are held by the bank module at the config's derived address.
type CampaignConfig struct {
	Owner         sdk.AccAddress `json:"owner"`
	Label         string         `json:"label"`
	Keywords      []string       `json:"keywords"`
	ClaimersCount uint64         `json:"claimers_count"`
	RewardAmount  uint64         `json:"reward_amount"`
	MaxClaimers   uint64         `json:"max_claimers"`
	Active        bool           `json:"active"`
	CreatedAt     int64          `json:"created_at"`
}

// Address returns the derived identity of the config.
func (c CampaignConfig) Address() sdk.AccAddress {
	return ConfigAddress(c.Owner, c.Label)
}

// RemainingClaims returns how many rewards the config can still pay.
func (c CampaignConfig) RemainingClaims() uint64 {
	if c.ClaimersCount >= c.MaxClaimers {
		return 0
	}
	return c.MaxClaimers - c.ClaimersCount
}

// Validate checks the bounds and counter invariants of a config.
func (c CampaignConfig) Validate() error {
	if len(c.Owner) == 0 {
		return errorsmod.Wrap(ErrInvalidConfig, "owner cannot be empty")
	}
	if err := ValidateLabel(c.Label); err != nil {
		return err
	}
	if err := ValidateKeywords(c.Keywords); err != nil {
		return err
	}
	if c.ClaimersCount > c.MaxClaimers {
		return errorsmod.Wrapf(ErrInvalidConfig, "claimers count %d exceeds max claimers %d", c.ClaimersCount, c.MaxClaimers)
	}
	if c.Active && c.ClaimersCount == c.MaxClaimers {
		return errorsmod.Wrap(ErrInvalidConfig, "config is active with no claims remaining")
	}
	return nil
}

// ValidateLabel checks a campaign label.
func ValidateLabel(label string) error {
	if label == "" {
		return errorsmod.Wrap(ErrInvalidConfig, "label cannot be empty")
	}
	if len(label) > MaxLabelLength {
		return errorsmod.Wrapf(ErrInvalidConfig, "label length %d exceeds %d", len(label), MaxLabelLength)
	}
	if !utf8.ValidString(label) {
		return errorsmod.Wrap(ErrInvalidConfig, "label must be valid utf-8")
	}
	return nil
}

// ValidateKeywords checks a keyword policy. Keywords are comma-joined in the
// public input, so they cannot contain commas themselves.
func ValidateKeywords(keywords []string) error {
	if len(keywords) > MaxKeywords {
		return errorsmod.Wrapf(ErrInvalidConfig, "%d keywords exceeds %d", len(keywords), MaxKeywords)
	}
	for i, kw := range keywords {
		switch {
		case strings.TrimSpace(kw) == "":
			return errorsmod.Wrapf(ErrInvalidConfig, "keyword %d is blank", i)
		case len(kw) > MaxKeywordLength:
			return errorsmod.Wrapf(ErrInvalidConfig, "keyword %d length %d exceeds %d", i, len(kw), MaxKeywordLength)
		case strings.Contains(kw, ","):
			return errorsmod.Wrapf(ErrInvalidConfig, "keyword %d contains a comma", i)
		case !utf8.ValidString(kw):
			return errorsmod.Wrapf(ErrInvalidConfig, "keyword %d is not valid utf-8", i)
		}
	}
	return nil
}

// Marshal encodes the config with the current schema version.
func (c CampaignConfig) Marshal() []byte {
	w := newRecordWriter(CampaignConfigRecord, CampaignConfigVersion)
	w.bytes(c.Owner)
	w.str(c.Label)
	w.strs(c.Keywords)
	w.u64(c.ClaimersCount)
	w.u64(c.RewardAmount)
	w.u64(c.MaxClaimers)
	w.boolean(c.Active)
	w.i64(c.CreatedAt)
	return w.buf
}

// UnmarshalCampaignConfig decodes a config record.
func UnmarshalCampaignConfig(bz []byte) (CampaignConfig, error) {
	r, version, err := newRecordReader(CampaignConfigRecord, bz)
	if err != nil {
		return CampaignConfig{}, err
	}
	if version != CampaignConfigVersion {
		return CampaignConfig{}, errorsmod.Wrapf(ErrCorruptRecord, "%s: unsupported version %d", CampaignConfigRecord, version)
	}
	c := CampaignConfig{
		Owner:         sdk.AccAddress(r.bytes()),
		Label:         r.str(),
		Keywords:      r.strs(),
		ClaimersCount: r.u64(),
		RewardAmount:  r.u64(),
		MaxClaimers:   r.u64(),
		Active:        r.boolean(),
		CreatedAt:     r.i64(),
	}
	if err := r.finish(); err != nil {
		return CampaignConfig{}, err
	}
	return c, nil
}

// VerificationLog records the last attempt and decision for one
// claimant/campaign pair. CurrentExecution is set while a job is in flight.
type VerificationLog struct {
	Verifier         sdk.AccAddress `json:"verifier"`
	Config           sdk.AccAddress `json:"config"`
	PostURL          string         `json:"post_url"`
	Slot             int64          `json:"slot"`
	IsVerified       bool           `json:"is_verified"`
	CurrentExecution sdk.AccAddress `json:"current_execution,omitempty"`
	RequestID        string         `json:"request_id,omitempty"`
	PendingDeadline  int64          `json:"pending_deadline,omitempty"`
	ContentDigest    []byte         `json:"content_digest,omitempty"`
	Attempts         uint64         `json:"attempts"`
}

// IsPending reports whether a job is in flight for this log.
func (l VerificationLog) IsPending() bool {
	return len(l.CurrentExecution) > 0
}

// Address returns the derived identity of the log.
func (l VerificationLog) Address() sdk.AccAddress {
	return LogAddress(l.Verifier, l.Config)
}

// Validate checks the structural invariants of a log.
func (l VerificationLog) Validate() error {
	if len(l.Verifier) == 0 || len(l.Config) == 0 {
		return fmt.Errorf("verifier and config are required")
	}
	if len(l.PostURL) > MaxPostURLLength {
		return fmt.Errorf("post url length %d exceeds %d", len(l.PostURL), MaxPostURLLength)
	}
	if len(l.ContentDigest) != 0 && len(l.ContentDigest) != DigestSize {
		return fmt.Errorf("content digest must be %d bytes", DigestSize)
	}
	if l.IsPending() && l.PendingDeadline <= 0 {
		return fmt.Errorf("pending log without deadline")
	}
	return nil
}

// Marshal encodes the log with the current schema version.
func (l VerificationLog) Marshal() []byte {
	w := newRecordWriter(VerificationLogRecord, VerificationLogVersion)
	w.bytes(l.Verifier)
	w.bytes(l.Config)
	w.str(l.PostURL)
	w.i64(l.Slot)
	w.boolean(l.IsVerified)
	w.optional(l.CurrentExecution)
	w.str(l.RequestID)
	w.i64(l.PendingDeadline)
	w.optional(l.ContentDigest)
	w.u64(l.Attempts)
	return w.buf
}

// UnmarshalVerificationLog decodes a log record.
func UnmarshalVerificationLog(bz []byte) (VerificationLog, error) {
	r, version, err := newRecordReader(VerificationLogRecord, bz)
	if err != nil {
		return VerificationLog{}, err
	}
	if version != VerificationLogVersion {
		return VerificationLog{}, errorsmod.Wrapf(ErrCorruptRecord, "%s: unsupported version %d", VerificationLogRecord, version)
	}
	l := VerificationLog{
		Verifier:   sdk.AccAddress(r.bytes()),
		Config:     sdk.AccAddress(r.bytes()),
		PostURL:    r.str(),
		Slot:       r.i64(),
		IsVerified: r.boolean(),
	}
	if exec := r.optional(); exec != nil {
		l.CurrentExecution = sdk.AccAddress(exec)
	}
	l.RequestID = r.str()
	l.PendingDeadline = r.i64()
	l.ContentDigest = r.optional()
	l.Attempts = r.u64()
	if err := r.finish(); err != nil {
		return VerificationLog{}, err
	}
	return l, nil
}

// ExecutionTracker holds the reference of the job last submitted under a
// request id.
type ExecutionTracker struct {
	ExecutionAccount sdk.AccAddress `json:"execution_account"`
}

// Marshal encodes the tracker with the current schema version.
func (t ExecutionTracker) Marshal() []byte {
	w := newRecordWriter(ExecutionTrackerRecord, ExecutionTrackerVersion)
	w.bytes(t.ExecutionAccount)
	return w.buf
}

// UnmarshalExecutionTracker decodes a tracker record.
func UnmarshalExecutionTracker(bz []byte) (ExecutionTracker, error) {
	r, version, err := newRecordReader(ExecutionTrackerRecord, bz)
	if err != nil {
		return ExecutionTracker{}, err
	}
	if version != ExecutionTrackerVersion {
		return ExecutionTracker{}, errorsmod.Wrapf(ErrCorruptRecord, "%s: unsupported version %d", ExecutionTrackerRecord, version)
	}
	t := ExecutionTracker{ExecutionAccount: sdk.AccAddress(r.bytes())}
	if err := r.finish(); err != nil {
		return ExecutionTracker{}, err
	}
	return t, nil
}

package types

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// CallbackDescriptor carries the fixed accounts the settlement handler needs.
type CallbackDescriptor struct {
	Tracker  sdk.AccAddress `json:"tracker"`
	Config   sdk.AccAddress `json:"config"`
	Log      sdk.AccAddress `json:"log"`
	Claimant sdk.AccAddress `json:"claimant"`
}

// Job is one request to run the verification program.
type Job struct {
	Ref         sdk.AccAddress     `json:"ref"`
	RequestID   string             `json:"request_id"`
	ImageID     string             `json:"image_id"`
	PublicInput []byte             `json:"public_input"`
	ContentURL  string             `json:"content_url"`
	Tip         uint64             `json:"tip"`
	Deadline    int64              `json:"deadline"`
	Callback    CallbackDescriptor `json:"callback"`
}

// Result builds the callback for this job carrying the committed output.
func (j Job) Result(output []byte) JobResult {
	return JobResult{
		Log:      j.Callback.Log,
		Tracker:  j.Callback.Tracker,
		Config:   j.Callback.Config,
		Claimant: j.Callback.Claimant,
		JobRef:   j.Ref,
		Output:   output,
	}
}

// JobResult is what the coprocessor delivers back for a job.
type JobResult struct {
	Log      sdk.AccAddress `json:"log"`
	Tracker  sdk.AccAddress `json:"tracker"`
	Config   sdk.AccAddress `json:"config"`
	Claimant sdk.AccAddress `json:"claimant"`
	JobRef   sdk.AccAddress `json:"job_ref"`
	Output   []byte         `json:"output"`
}

// CallbackCapability authorizes delivery of job results. The keeper mints
// exactly one when a coprocessor is bound and compares by identity, so a
// copy or a freshly built value is never accepted.
type CallbackCapability struct {
	name string
}

// NewCallbackCapability returns a capability tagged with name.
func NewCallbackCapability(name string) *CallbackCapability {
	return &CallbackCapability{name: name}
}

func (c *CallbackCapability) String() string {
	if c == nil {
		return "<nil capability>"
	}
	return fmt.Sprintf("callback capability %s", c.name)
}

// VerificationRequest is a claimant's request to verify a post against a
// campaign.
type VerificationRequest struct {
	Config        sdk.AccAddress
	Claimant      sdk.AccAddress
	RequestID     string
	Tracker       sdk.AccAddress
	PostURL       string
	PostSize      uint64
	Tip           uint64
	ContentDigest []byte
}

// SubmittedJob describes a job accepted by the coprocessor.
type SubmittedJob struct {
	JobRef   sdk.AccAddress `json:"job_ref"`
	Log      sdk.AccAddress `json:"log"`
	Tracker  sdk.AccAddress `json:"tracker"`
	Deadline int64          `json:"deadline"`
}

// ConfigUpdate holds the policy fields an owner may change. Nil fields are
// left as they are.
type ConfigUpdate struct {
	Active       *bool
	MaxClaimers  *uint64
	RewardAmount *uint64
}

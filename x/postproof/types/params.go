package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/guest"
)

// Default parameter values.
const (
	DefaultDenom                  = "upop"
	DefaultVerificationCooldown   = int64(100)
	DefaultJobDeadlineHorizon     = int64(50000)
	DefaultStorageFloor           = uint64(1_000_000)
	DefaultPendingJobTimeout      = int64(0)
	DefaultMaxExpirationsPerBlock = uint32(100)
)

// Params defines the parameters for the postproof module.
type Params struct {
	Denom string `json:"denom"`

	// VerificationCooldown is the minimum number of blocks between two
	// decisions for the same claimant/campaign pair.
	VerificationCooldown int64 `json:"verification_cooldown"`

	// JobDeadlineHorizon is added to the current height to form a job deadline.
	JobDeadlineHorizon int64 `json:"job_deadline_horizon"`

	StorageFloor uint64 `json:"storage_floor"`

	// PendingJobTimeout is the grace period after a job deadline before the
	// pending job is expired. Zero keeps pending jobs forever.
	PendingJobTimeout int64 `json:"pending_job_timeout"`

	MaxExpirationsPerBlock uint32 `json:"max_expirations_per_block"`
	GuestImageID           string `json:"guest_image_id"`
}

// DefaultParams returns the default module parameters
func DefaultParams() Params {
	return Params{
		Denom:                  DefaultDenom,
		VerificationCooldown:   DefaultVerificationCooldown,
		JobDeadlineHorizon:     DefaultJobDeadlineHorizon,
		StorageFloor:           DefaultStorageFloor,
		PendingJobTimeout:      DefaultPendingJobTimeout,
		MaxExpirationsPerBlock: DefaultMaxExpirationsPerBlock,
		GuestImageID:           guest.ImageID,
	}
}

// Validate validates the params
func (p Params) Validate() error {
	if err := sdk.ValidateDenom(p.Denom); err != nil {
		return fmt.Errorf("invalid denom: %w", err)
	}
	if p.VerificationCooldown < 0 {
		return fmt.Errorf("verification cooldown cannot be negative: %d", p.VerificationCooldown)
	}
	if p.JobDeadlineHorizon <= 0 {
		return fmt.Errorf("job deadline horizon must be positive: %d", p.JobDeadlineHorizon)
	}
	if p.PendingJobTimeout < 0 {
		return fmt.Errorf("pending job timeout cannot be negative: %d", p.PendingJobTimeout)
	}
	if p.PendingJobTimeout > 0 && p.MaxExpirationsPerBlock == 0 {
		return fmt.Errorf("max expirations per block must be positive when expiry is enabled")
	}
	id, err := hex.DecodeString(p.GuestImageID)
	if err != nil || len(id) != 32 {
		return fmt.Errorf("guest image id must be 32 hex-encoded bytes: %q", p.GuestImageID)
	}
	return nil
}

// ExpiryEnabled reports whether pending jobs are ever expired.
func (p Params) ExpiryEnabled() bool {
	return p.PendingJobTimeout > 0
}

// String implements fmt.Stringer
func (p Params) String() string {
	bz, _ := json.Marshal(p)
	return string(bz)
}

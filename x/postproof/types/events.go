package types

// Event types for the postproof module
const (
	EventTypeConfigCreated         = "postproof_config_created"
	EventTypeConfigUpdated         = "postproof_config_updated"
	EventTypeVerificationRequested = "postproof_verification_requested"
	EventTypeTrackerInitialized    = "postproof_tracker_initialized"
	EventTypePostVerified          = "postproof_post_verified"
	EventTypePostRejected          = "postproof_post_rejected"
	EventTypeRewardPaid            = "postproof_reward_paid"
	EventTypeConfigExhausted       = "postproof_config_exhausted"
	EventTypeRewardSkipped         = "postproof_reward_skipped"
	EventTypeVerificationExpired   = "postproof_verification_expired"
	EventTypeParamsUpdated         = "postproof_params_updated"
)

// Event attribute keys
const (
	AttributeKeyConfig        = "config"
	AttributeKeyOwner         = "owner"
	AttributeKeyLabel         = "label"
	AttributeKeyClaimant      = "claimant"
	AttributeKeyLog           = "log"
	AttributeKeyTracker       = "tracker"
	AttributeKeyRequestID     = "request_id"
	AttributeKeyJobRef        = "job_ref"
	AttributeKeyPostURL       = "post_url"
	AttributeKeyDeadline      = "deadline"
	AttributeKeyAmount        = "amount"
	AttributeKeyEscrow        = "escrow"
	AttributeKeyClaimersCount = "claimers_count"
	AttributeKeyDigest        = "digest"
	AttributeKeyActive        = "active"
	AttributeKeyBlockHeight   = "block_height"
)

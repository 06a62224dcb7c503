package types

import (
	"errors"

	sdkerrors "cosmossdk.io/errors"
	"google.golang.org/grpc/codes"
)

// Postproof module sentinel errors with recovery suggestions

var (
	// Policy violations
	ErrConfigNotActive    = sdkerrors.Register(ModuleName, 2, "config not active")
	ErrMaxClaimersReached = sdkerrors.Register(ModuleName, 3, "max claimers reached")
	ErrInsufficientFunds  = sdkerrors.Register(ModuleName, 4, "insufficient funds")

	// Integrity violations
	ErrPostVerificationRequestFailed = sdkerrors.Register(ModuleName, 10, "post verification request failed")
	ErrInvalidCallback               = sdkerrors.Register(ModuleName, 11, "invalid callback")
	ErrUnauthorized                  = sdkerrors.Register(ModuleName, 12, "unauthorized")

	// Rate violations
	ErrVerificationTooFast = sdkerrors.Register(ModuleName, 20, "verification too fast")

	// Service and decode failures
	ErrCallbackError          = sdkerrors.Register(ModuleName, 30, "callback error")
	ErrInvalidOutput          = sdkerrors.Register(ModuleName, 31, "invalid output")
	ErrCoprocessorUnavailable = sdkerrors.Register(ModuleName, 32, "coprocessor unavailable")

	// Validation and lookup
	ErrInvalidConfig      = sdkerrors.Register(ModuleName, 40, "invalid config")
	ErrInvalidRequest     = sdkerrors.Register(ModuleName, 41, "invalid verification request")
	ErrInvalidParams      = sdkerrors.Register(ModuleName, 42, "invalid params")
	ErrConfigNotFound     = sdkerrors.RegisterWithGRPCCode(ModuleName, 43, codes.NotFound, "config not found")
	ErrConfigExists       = sdkerrors.Register(ModuleName, 44, "config already exists")
	ErrLogNotFound        = sdkerrors.RegisterWithGRPCCode(ModuleName, 45, codes.NotFound, "verification log not found")
	ErrTrackerNotFound    = sdkerrors.RegisterWithGRPCCode(ModuleName, 46, codes.NotFound, "execution tracker not found")
	ErrInvalidPublicInput = sdkerrors.Register(ModuleName, 47, "invalid public input")

	// Unexpected state
	ErrCorruptRecord = sdkerrors.Register(ModuleName, 50, "corrupt persisted record")
)

// ErrorCategory groups module errors by how a caller should react to them.
type ErrorCategory string

const (
	CategoryNone       ErrorCategory = ""
	CategoryPolicy     ErrorCategory = "policy"
	CategoryIntegrity  ErrorCategory = "integrity"
	CategoryRate       ErrorCategory = "rate"
	CategoryService    ErrorCategory = "service"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryCorruption ErrorCategory = "corruption"
)

var categories = []struct {
	err      error
	category ErrorCategory
}{
	{ErrConfigNotActive, CategoryPolicy},
	{ErrMaxClaimersReached, CategoryPolicy},
	{ErrInsufficientFunds, CategoryPolicy},
	{ErrPostVerificationRequestFailed, CategoryIntegrity},
	{ErrInvalidCallback, CategoryIntegrity},
	{ErrUnauthorized, CategoryIntegrity},
	{ErrVerificationTooFast, CategoryRate},
	{ErrCallbackError, CategoryService},
	{ErrInvalidOutput, CategoryService},
	{ErrCoprocessorUnavailable, CategoryService},
	{ErrInvalidConfig, CategoryValidation},
	{ErrInvalidRequest, CategoryValidation},
	{ErrInvalidParams, CategoryValidation},
	{ErrConfigExists, CategoryValidation},
	{ErrInvalidPublicInput, CategoryValidation},
	{ErrConfigNotFound, CategoryNotFound},
	{ErrLogNotFound, CategoryNotFound},
	{ErrTrackerNotFound, CategoryNotFound},
	{ErrCorruptRecord, CategoryCorruption},
}

// CategoryOf reports the category of a module error, or CategoryNone for
// errors this module did not produce.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return CategoryNone
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.category
		}
	}
	return CategoryNone
}

// Retryable reports whether the same request may succeed later without
// changing its parameters.
func Retryable(err error) bool {
	return CategoryOf(err) == CategoryRate
}

// ErrorWithRecovery wraps an error with recovery suggestions
type ErrorWithRecovery struct {
	Err      error
	Recovery string
}

func (e *ErrorWithRecovery) Error() string {
	return e.Err.Error()
}

func (e *ErrorWithRecovery) Unwrap() error {
	return e.Err
}

// RecoverySuggestions provides actionable recovery steps for each error type
var RecoverySuggestions = map[error]string{
	ErrConfigNotActive:    "The campaign is closed. Its owner may reactivate it if claim capacity remains.",
	ErrMaxClaimersReached: "Every reward of this campaign has been claimed. Look for another campaign.",
	ErrInsufficientFunds:  "The paying account cannot cover the transfer. Fund it and submit again.",

	ErrPostVerificationRequestFailed: "The tracker does not match the request id. Derive it with TrackerAddress(request_id).",
	ErrInvalidCallback:               "The result does not belong to the pending job of this log. Stale or forged results are never applied.",
	ErrUnauthorized:                  "Only the campaign owner may change it; only the bound coprocessor may deliver results.",

	ErrVerificationTooFast: "Wait for the cooldown to elapse since the last decision, or for the pending job to expire.",

	ErrCallbackError:          "The coprocessor returned a malformed payload. The log stays pending until the job expires.",
	ErrInvalidOutput:          "The committed content digest differs from the expected digest. The log stays pending until the job expires.",
	ErrCoprocessorUnavailable: "The verifiable computation service rejected the job. Retry later.",

	ErrInvalidConfig:      "Check label length, keyword count and length, reward and claimer cap.",
	ErrInvalidRequest:     "Check request id, post url, post size and claimant address.",
	ErrInvalidParams:      "Check params: denom, cooldown, deadline horizon.",
	ErrConfigExists:       "A campaign with this label already exists for the owner. Use another label or update it.",
	ErrInvalidPublicInput: "Public input must be [u64 size][u64 len][keywords] with exact length.",
	ErrCorruptRecord:      "A stored record failed to decode. Export state and inspect the record version.",
}

// WrapWithRecovery wraps an error with recovery suggestion
func WrapWithRecovery(err error, msg string, args ...interface{}) error {
	wrapped := sdkerrors.Wrapf(err, msg, args...)

	if suggestion, ok := RecoverySuggestions[err]; ok {
		return &ErrorWithRecovery{
			Err:      wrapped,
			Recovery: suggestion,
		}
	}

	return wrapped
}

// GetRecoverySuggestion returns the recovery suggestion for an error
func GetRecoverySuggestion(err error) string {
	for _, c := range categories {
		if errors.Is(err, c.err) {
			if suggestion, ok := RecoverySuggestions[c.err]; ok {
				return suggestion
			}
		}
	}

	return "No recovery suggestion available. Check error message for details."
}

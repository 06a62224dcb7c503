package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/proofofpost/pop/app"
	"github.com/proofofpost/pop/x/postproof/types"
)

// statusFor maps a ledger error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch types.CategoryOf(err) {
	case types.CategoryValidation:
		return http.StatusBadRequest, "VALIDATION"
	case types.CategoryNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case types.CategoryPolicy:
		if errors.Is(err, types.ErrInsufficientFunds) {
			return http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"
		}
		return http.StatusConflict, "POLICY"
	case types.CategoryRate:
		return http.StatusTooManyRequests, "TOO_FAST"
	case types.CategoryIntegrity:
		return http.StatusForbidden, "INTEGRITY"
	case types.CategoryService:
		return http.StatusBadGateway, "SERVICE"
	case types.CategoryCorruption:
		return http.StatusInternalServerError, "CORRUPTION"
	}

	switch {
	case errors.Is(err, sdkerrors.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"
	case errors.Is(err, sdkerrors.ErrInvalidAddress),
		errors.Is(err, sdkerrors.ErrInvalidRequest),
		errors.Is(err, app.ErrFaucetLimit):
		return http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, app.ErrLedgerClosed):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "TIMEOUT"
	}

	// query server rejections
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.InvalidArgument:
			return http.StatusBadRequest, "VALIDATION"
		case codes.NotFound:
			return http.StatusNotFound, "NOT_FOUND"
		case codes.Unavailable:
			return http.StatusServiceUnavailable, "UNAVAILABLE"
		case codes.DeadlineExceeded:
			return http.StatusGatewayTimeout, "TIMEOUT"
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// writeError renders err as an ErrorResponse. Internal errors do not leak
// their message.
func (s *Server) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Code: code}
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		s.logger.Error("request failed", "error", err, "path", c.Request.URL.Path, "request_id", c.GetString(ctxKeyRequestID))
		resp.Error = http.StatusText(status)
	} else {
		resp.Error = errorSummary(err)
		resp.Details = err.Error()
	}
	if codespace, abciCode, _ := errorsmod.ABCIInfo(err, false); codespace == types.ModuleName {
		resp.Code = fmt.Sprintf("%s_%d", code, abciCode)
	}
	if status == http.StatusTooManyRequests {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, resp)
}

// errorSummary is the registered description of err without the wrapping
// context, e.g. "config not active".
func errorSummary(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func badRequest(c *gin.Context, msg string, err error) {
	resp := ErrorResponse{Error: msg, Code: "VALIDATION"}
	if err != nil {
		resp.Details = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

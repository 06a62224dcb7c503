package api

import (
	"encoding/hex"
	"fmt"
	"net/http"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/query"
	"github.com/gin-gonic/gin"

	"github.com/proofofpost/pop/x/postproof/types"
)

// ==================== Campaigns ====================

func (s *Server) handleCreateConfig(c *gin.Context) {
	var req CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err)
		return
	}
	claims := claimsFrom(c)

	resp, err := s.ledger.CreateConfig(c.Request.Context(), &types.MsgCreateConfig{
		Owner:        claims.Address,
		Label:        req.Label,
		Keywords:     req.Keywords,
		RewardAmount: req.RewardAmount,
		MaxClaimers:  req.MaxClaimers,
	})
	if err != nil {
		s.auditLogger.Log(c, AuditEvent{Action: "create_config", Actor: claims.Address, Resource: req.Label, Status: "failed", Details: err.Error()})
		s.writeError(c, err)
		return
	}
	s.auditLogger.Log(c, AuditEvent{Action: "create_config", Actor: claims.Address, Resource: resp.Config, Status: "ok", Details: resp.Escrow})
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	claims := claimsFrom(c)
	if c.Param("owner") != claims.Address {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Error: "only the owner may update a campaign",
			Code:  "FORBIDDEN",
		})
		return
	}

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err)
		return
	}

	label := c.Param("label")
	if _, err := s.ledger.UpdateConfig(c.Request.Context(), &types.MsgUpdateConfig{
		Owner:        claims.Address,
		Label:        label,
		Active:       req.Active,
		MaxClaimers:  req.MaxClaimers,
		RewardAmount: req.RewardAmount,
	}); err != nil {
		s.writeError(c, err)
		return
	}

	owner, _ := sdk.AccAddressFromBech32(claims.Address)
	addr := types.ConfigAddress(owner, label).String()
	s.auditLogger.Log(c, AuditEvent{Action: "update_config", Actor: claims.Address, Resource: addr, Status: "ok"})

	resp, err := s.ledger.Config(c.Request.Context(), &types.QueryConfigRequest{Address: addr})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetConfig(c *gin.Context) {
	resp, err := s.ledger.Config(c.Request.Context(), &types.QueryConfigRequest{Address: c.Param("address")})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListConfigs(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}
	resp, err := s.ledger.Configs(c.Request.Context(), &types.QueryConfigsRequest{
		Owner:      c.Query("owner"),
		Pagination: page,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListLogs(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}
	resp, err := s.ledger.LogsByConfig(c.Request.Context(), &types.QueryLogsByConfigRequest{
		Config:     c.Param("address"),
		Pagination: page,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ==================== Verification ====================

func (s *Server) handleSubmitVerification(c *gin.Context) {
	var req SubmitVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err)
		return
	}
	claims := claimsFrom(c)

	resp, err := s.ledger.SubmitVerification(c.Request.Context(), &types.MsgSubmitVerification{
		Claimant:      claims.Address,
		Config:        req.Config,
		RequestID:     req.RequestID,
		Tracker:       req.Tracker,
		PostURL:       req.PostURL,
		PostSize:      req.PostSize,
		Tip:           req.Tip,
		ContentDigest: req.ContentDigest,
	})
	if err != nil {
		if types.CategoryOf(err) == types.CategoryIntegrity {
			s.auditLogger.Log(c, AuditEvent{Action: "submit_verification", Actor: claims.Address, Resource: req.Config, Status: "denied", Details: err.Error()})
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) handleDeliverCallback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err)
		return
	}
	payload, err := hex.DecodeString(req.Payload)
	if err != nil {
		badRequest(c, "payload must be hex encoded", err)
		return
	}
	claims := claimsFrom(c)

	resp, err := s.ledger.DeliverCallback(c.Request.Context(), &types.MsgDeliverCallback{
		Log:      req.Log,
		Tracker:  req.Tracker,
		Config:   req.Config,
		Claimant: req.Claimant,
		JobRef:   req.JobRef,
		Payload:  payload,
	})
	if err != nil {
		s.auditLogger.Log(c, AuditEvent{Action: "deliver_callback", Actor: claims.Address, Resource: req.Log, Status: "failed", Details: err.Error()})
		s.writeError(c, err)
		return
	}
	s.auditLogger.Log(c, AuditEvent{Action: "deliver_callback", Actor: claims.Address, Resource: req.Log, Status: "ok", Details: fmt.Sprintf("verified=%t", resp.Verified)})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetLog(c *gin.Context) {
	resp, err := s.ledger.VerificationLog(c.Request.Context(), &types.QueryVerificationLogRequest{
		Claimant: c.Param("claimant"),
		Config:   c.Param("config"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetTracker(c *gin.Context) {
	resp, err := s.ledger.Tracker(c.Request.Context(), &types.QueryTrackerRequest{RequestID: c.Param("request_id")})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ==================== Chain ====================

func (s *Server) handleGetParams(c *gin.Context) {
	resp, err := s.ledger.Params(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetBalance(c *gin.Context) {
	addr, err := sdk.AccAddressFromBech32(c.Param("address"))
	if err != nil {
		badRequest(c, "invalid address", err)
		return
	}
	coin, err := s.ledger.Balance(addr)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{Address: addr.String(), Denom: coin.Denom, Amount: coin.Amount.String()})
}

// handleFaucet mints devnet funds. It is only guarded by the rate limiter and
// the ledger's per-request cap.
func (s *Server) handleFaucet(c *gin.Context) {
	var req FaucetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err)
		return
	}
	addr, err := sdk.AccAddressFromBech32(req.Address)
	if err != nil {
		badRequest(c, "invalid address", err)
		return
	}
	if err := s.ledger.Fund(c.Request.Context(), addr, req.Amount); err != nil {
		s.writeError(c, err)
		return
	}
	s.auditLogger.Log(c, AuditEvent{Action: "faucet", Actor: req.Address, Status: "ok", Details: fmt.Sprintf("%d", req.Amount)})

	coin, err := s.ledger.Balance(addr)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{Address: addr.String(), Denom: coin.Denom, Amount: coin.Amount.String()})
}

func bindPage(c *gin.Context) (*query.PageRequest, bool) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, "invalid pagination", err)
		return nil, false
	}
	page, err := params.PageRequest()
	if err != nil {
		badRequest(c, "invalid pagination", err)
		return nil, false
	}
	return page, true
}

package api

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role scopes what a token may do.
type Role string

const (
	RoleUser        Role = "user"
	RoleCoprocessor Role = "coprocessor"

	tokenIssuer = "popd-api"
)

var (
	ErrCoprocessorDisabled = errors.New("coprocessor callbacks are disabled")
	ErrBadCoprocessorKey   = errors.New("invalid coprocessor key")
	ErrUnknownRole         = errors.New("unknown role")
	ErrNoChallenge         = errors.New("no outstanding challenge")
	ErrBadSignature        = errors.New("signature does not prove key ownership")
	ErrTooManyChallenges   = errors.New("too many outstanding challenges")
)

// maxChallenges bounds the outstanding login challenges held in memory.
const maxChallenges = 10_000

type challenge struct {
	address string
	expires time.Time
}

// AuthService issues and checks bearer tokens.
type AuthService struct {
	jwtSecret      []byte
	ttl            time.Duration
	challengeTTL   time.Duration
	coprocessorKey string
	now            func() time.Time

	mu         sync.Mutex
	challenges map[string]challenge // by nonce
}

func NewAuthService(jwtSecret []byte, ttl, challengeTTL time.Duration, coprocessorKey string) *AuthService {
	return &AuthService{
		jwtSecret:      jwtSecret,
		ttl:            ttl,
		challengeTTL:   challengeTTL,
		coprocessorKey: coprocessorKey,
		now:            time.Now,
		challenges:     make(map[string]challenge),
	}
}

// Claims represents JWT claims
type Claims struct {
	Address string `json:"address"`
	Role    Role   `json:"role"`
	jwt.RegisteredClaims
}

// ChallengeMessage is the exact byte string a user signs with the account
// key to log in as address.
func ChallengeMessage(address, nonce string) []byte {
	return []byte(fmt.Sprintf("popd-api login\naddress: %s\nnonce: %s", address, nonce))
}

// NewChallenge records a single use nonce for address.
func (as *AuthService) NewChallenge(address string) (string, time.Time, error) {
	addr, err := sdk.AccAddressFromBech32(address)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid address: %w", err)
	}
	now := as.now()

	as.mu.Lock()
	defer as.mu.Unlock()
	if len(as.challenges) >= maxChallenges {
		for nonce, ch := range as.challenges {
			if !now.Before(ch.expires) {
				delete(as.challenges, nonce)
			}
		}
		if len(as.challenges) >= maxChallenges {
			return "", time.Time{}, ErrTooManyChallenges
		}
	}
	nonce := uuid.NewString()
	expires := now.Add(as.challengeTTL)
	as.challenges[nonce] = challenge{address: addr.String(), expires: expires}
	return nonce, expires, nil
}

// takeChallenge consumes nonce. A nonce is spent by any attempt, good or bad.
func (as *AuthService) takeChallenge(nonce, address string) error {
	as.mu.Lock()
	ch, ok := as.challenges[nonce]
	delete(as.challenges, nonce)
	as.mu.Unlock()

	if !ok || ch.address != address || !as.now().Before(ch.expires) {
		return ErrNoChallenge
	}
	return nil
}

// verifyOwnership checks that req carries a signature over an outstanding
// challenge by the secp256k1 key behind addr.
func (as *AuthService) verifyOwnership(addr sdk.AccAddress, req TokenRequest) error {
	if err := as.takeChallenge(req.Nonce, addr.String()); err != nil {
		return err
	}
	key, err := hex.DecodeString(req.PubKey)
	if err != nil || len(key) != secp256k1.PubKeySize {
		return fmt.Errorf("%w: malformed public key", ErrBadSignature)
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}
	pub := &secp256k1.PubKey{Key: key}
	if !bytes.Equal(pub.Address(), addr) {
		return fmt.Errorf("%w: public key does not match address", ErrBadSignature)
	}
	if !pub.VerifySignature(ChallengeMessage(addr.String(), req.Nonce), sig) {
		return ErrBadSignature
	}
	return nil
}

// Authorize checks that a token may be issued for req. User tokens need a
// signature over a challenge from the address key; coprocessor tokens need
// the shared key.
func (as *AuthService) Authorize(req TokenRequest) (Role, error) {
	addr, err := sdk.AccAddressFromBech32(req.Address)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}
	switch req.Role {
	case "", RoleUser:
		if err := as.verifyOwnership(addr, req); err != nil {
			return "", err
		}
		return RoleUser, nil
	case RoleCoprocessor:
		if as.coprocessorKey == "" {
			return "", ErrCoprocessorDisabled
		}
		if subtle.ConstantTimeCompare([]byte(req.CoprocessorKey), []byte(as.coprocessorKey)) != 1 {
			return "", ErrBadCoprocessorKey
		}
		return RoleCoprocessor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, req.Role)
	}
}

// GenerateToken signs a token for address with role.
func (as *AuthService) GenerateToken(address string, role Role) (string, error) {
	now := as.now()
	claims := &Claims{
		Address: address,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			ExpiresAt: jwt.NewNumericDate(now.Add(as.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func (as *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return as.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// handleIssueChallenge handles POST /api/auth/challenge
func (s *Server) handleIssueChallenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err)
		return
	}

	nonce, expires, err := s.authService.NewChallenge(req.Address)
	switch {
	case errors.Is(err, ErrTooManyChallenges):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: err.Error(), Code: "TOO_FAST"})
		return
	case err != nil:
		badRequest(c, "invalid request", err)
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		Address:   req.Address,
		Nonce:     nonce,
		Message:   string(ChallengeMessage(req.Address, nonce)),
		ExpiresAt: expires.UTC(),
	})
}

// handleIssueToken handles POST /api/auth/token
func (s *Server) handleIssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request", err)
		return
	}

	role, err := s.authService.Authorize(req)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrBadCoprocessorKey), errors.Is(err, ErrCoprocessorDisabled),
			errors.Is(err, ErrNoChallenge), errors.Is(err, ErrBadSignature):
			status = http.StatusUnauthorized
		}
		s.auditLogger.Log(c, AuditEvent{Action: "issue_token", Actor: req.Address, Status: "denied", Details: err.Error()})
		c.JSON(status, ErrorResponse{Error: "token not issued", Code: "AUTH", Details: err.Error()})
		return
	}

	token, err := s.authService.GenerateToken(req.Address, role)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to sign token", Code: "INTERNAL_ERROR"})
		return
	}

	s.auditLogger.Log(c, AuditEvent{Action: "issue_token", Actor: req.Address, Status: "ok", Details: string(role)})
	c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int64(s.config.TokenTTL.Seconds()),
		Address:   req.Address,
		Role:      role,
	})
}

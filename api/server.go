package api

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// Server exposes the devnet ledger over HTTP.
type Server struct {
	router      *gin.Engine
	handler     http.Handler
	ledger      Ledger
	config      *Config
	authService *AuthService
	auditLogger *AuditLogger
	logger      log.Logger
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        string
	JWTSecret   []byte
	TokenTTL    time.Duration
	CORSOrigins []string

	// ChallengeTTL bounds how long a login challenge may be signed.
	ChallengeTTL time.Duration

	// CoprocessorKey is the shared key an external coprocessor presents to
	// obtain a callback token. Empty disables callback ingress.
	CoprocessorKey string

	RateLimitRPS   float64
	RateLimitBurst int

	RequestTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// AuditLogDir enables the JSON audit trail when set.
	AuditLogDir string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            "1318",
		TokenTTL:        time.Hour,
		ChallengeTTL:    5 * time.Minute,
		CORSOrigins:     []string{"http://localhost:3000", "http://localhost:8080"},
		RateLimitRPS:    20,
		RateLimitBurst:  40,
		RequestTimeout:  30 * time.Second,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewServer creates a new API server instance
func NewServer(ledger Ledger, config *Config, logger log.Logger) (*Server, error) {
	if ledger == nil {
		return nil, errors.New("api: ledger is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.With("module", "api")

	if len(config.JWTSecret) == 0 {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		config.JWTSecret = secret
		logger.Info("JWT secret generated randomly; issued tokens will not survive a restart")
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Hour
	}
	if config.ChallengeTTL <= 0 {
		config.ChallengeTTL = 5 * time.Minute
	}

	auditLogger, err := NewAuditLogger(config.AuditLogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	server := &Server{
		ledger:      ledger,
		config:      config,
		authService: NewAuthService(config.JWTSecret, config.TokenTTL, config.ChallengeTTL, config.CoprocessorKey),
		auditLogger: auditLogger,
		logger:      logger,
	}
	server.setupRouter()
	return server, nil
}

// setupRouter configures the Gin router with all routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()

	// order matters: recovery first, rate limiting before any ledger work
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(SecurityHeadersMiddleware())
	s.router.Use(RequestSizeLimitMiddleware(MaxRequestSize))
	s.router.Use(RequestIDMiddleware())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(s.config.RateLimitRPS, s.config.RateLimitBurst, s.auditLogger))
	s.router.Use(TimeoutMiddleware(s.config.RequestTimeout))

	s.router.GET("/health", s.healthCheck)
	s.registerRoutes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(s.router)
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, s.config.Port)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"height":    s.ledger.CurrentHeight(),
		"timestamp": time.Now().Unix(),
	})
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:           s.Addr(),
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.auditLogger.Close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if cerr := s.auditLogger.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

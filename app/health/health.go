// Package health reports devnet liveness and readiness.
//
// Endpoints:
// - /health - basic liveness check
// - /health/ready - readiness check for load balancers
// - /health/detailed - component status with metrics
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/mux"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Ledger is the part of the devnet ledger the checker inspects
type Ledger interface {
	CurrentHeight() int64
	// Ping reads state under the ledger lock
	Ping(ctx context.Context) error
}

// Coprocessor is the part of the job service the checker inspects
type Coprocessor interface {
	Running() bool
	QueueDepth() (queued, capacity int)
}

// Checker performs health checks on the devnet components
type Checker struct {
	logger      log.Logger
	ledger      Ledger
	coprocessor Coprocessor
	version     string

	maxBlockAge     time.Duration
	maxResponseTime time.Duration

	mu            sync.RWMutex
	lastHeight    int64
	heightSeenAt  time.Time
	lastCheck     time.Time
	cachedHealth  *HealthCheck
	cacheDuration time.Duration
}

// Config holds configuration for the health checker
type Config struct {
	// MaxBlockAge is how long the height may stand still before the ledger
	// is reported unhealthy
	MaxBlockAge time.Duration

	// MaxResponseTime is the maximum acceptable state read time
	MaxResponseTime time.Duration

	// CacheDuration is how long to cache health check results
	CacheDuration time.Duration

	Version string
}

// DefaultConfig returns the default health check configuration
func DefaultConfig() Config {
	return Config{
		MaxBlockAge:     time.Minute,
		MaxResponseTime: 2 * time.Second,
		CacheDuration:   5 * time.Second,
	}
}

// NewChecker creates a new health checker. coprocessor may be nil when
// results are delivered by an external service.
func NewChecker(logger log.Logger, cfg Config, ledger Ledger, coprocessor Coprocessor) (*Checker, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}

	return &Checker{
		logger:          logger,
		ledger:          ledger,
		coprocessor:     coprocessor,
		version:         cfg.Version,
		maxBlockAge:     cfg.MaxBlockAge,
		maxResponseTime: cfg.MaxResponseTime,
		cacheDuration:   cfg.CacheDuration,
	}, nil
}

// Check performs a health check of every component
func (c *Checker) Check(ctx context.Context, detailed bool) (*HealthCheck, error) {
	if !detailed && c.shouldUseCached() {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.cachedHealth, nil
	}

	health := &HealthCheck{
		Timestamp:  time.Now(),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	health.Components["blocks"] = c.checkBlocks()
	health.Components["store"] = c.checkStore(ctx)
	if c.coprocessor != nil {
		health.Components["coprocessor"] = c.checkCoprocessor()
	}

	health.Status = c.calculateOverallStatus(health.Components)

	c.mu.Lock()
	c.lastCheck = time.Now()
	c.cachedHealth = health
	c.mu.Unlock()

	return health, nil
}

// checkBlocks verifies that the ledger keeps producing blocks
func (c *Checker) checkBlocks() ComponentHealth {
	height := c.ledger.CurrentHeight()
	now := time.Now()

	c.mu.Lock()
	if height != c.lastHeight || c.heightSeenAt.IsZero() {
		c.lastHeight = height
		c.heightSeenAt = now
	}
	age := now.Sub(c.heightSeenAt)
	c.mu.Unlock()

	metrics := map[string]interface{}{
		"height":             height,
		"height_age_seconds": age.Seconds(),
	}

	if age > c.maxBlockAge {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   fmt.Sprintf("No block for %.0f seconds", age.Seconds()),
			Timestamp: now,
			Metrics:   metrics,
		}
	}

	return ComponentHealth{
		Status:    StatusHealthy,
		Message:   "Blocks are being produced",
		Timestamp: now,
		Metrics:   metrics,
	}
}

// checkStore verifies that state can be read in time
func (c *Checker) checkStore(ctx context.Context) ComponentHealth {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.maxResponseTime)
	defer cancel()

	start := time.Now()
	err := c.ledger.Ping(timeoutCtx)
	duration := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   fmt.Sprintf("State read failed: %v", err),
			Timestamp: time.Now(),
		}
	}

	componentStatus := StatusHealthy
	message := "State is readable"
	if duration > c.maxResponseTime/2 {
		componentStatus = StatusDegraded
		message = "State reads are slow"
	}

	return ComponentHealth{
		Status:    componentStatus,
		Message:   message,
		Timestamp: time.Now(),
		Metrics:   map[string]interface{}{"query_time_ms": duration.Milliseconds()},
	}
}

// checkCoprocessor verifies that workers run and the queue has room
func (c *Checker) checkCoprocessor() ComponentHealth {
	queued, capacity := c.coprocessor.QueueDepth()
	metrics := map[string]interface{}{
		"queued":   queued,
		"capacity": capacity,
	}

	switch {
	case !c.coprocessor.Running():
		return ComponentHealth{Status: StatusUnhealthy, Message: "Coprocessor is stopped", Timestamp: time.Now(), Metrics: metrics}
	case capacity > 0 && queued*10 >= capacity*9:
		return ComponentHealth{Status: StatusDegraded, Message: "Job queue is nearly full", Timestamp: time.Now(), Metrics: metrics}
	default:
		return ComponentHealth{Status: StatusHealthy, Message: "Coprocessor is accepting jobs", Timestamp: time.Now(), Metrics: metrics}
	}
}

// calculateOverallStatus determines the overall health status based on component statuses
func (c *Checker) calculateOverallStatus(components map[string]ComponentHealth) Status {
	hasUnhealthy := false
	hasDegraded := false

	for _, component := range components {
		switch component.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// shouldUseCached determines if cached health check results should be used
func (c *Checker) shouldUseCached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachedHealth == nil {
		return false
	}

	return time.Since(c.lastCheck) < c.cacheDuration
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", c.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", c.handleHealthReady).Methods(http.MethodGet)
	router.HandleFunc("/health/detailed", c.handleHealthDetailed).Methods(http.MethodGet)
}

// handleHealth handles the basic liveness check endpoint
func (c *Checker) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleHealthReady handles the readiness check endpoint
func (c *Checker) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, false)
}

// handleHealthDetailed handles the detailed health check endpoint
func (c *Checker) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, true)
}

func (c *Checker) respond(w http.ResponseWriter, r *http.Request, detailed bool) {
	health, err := c.Check(r.Context(), detailed)
	if err != nil {
		c.logger.Error("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	// degraded is still ready
	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

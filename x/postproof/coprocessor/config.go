package coprocessor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Config configures the reference coprocessor
type Config struct {
	// Workers is the number of jobs executed concurrently
	Workers int
	// QueueSize bounds the jobs accepted but not yet picked up
	QueueSize int

	// FetchTimeout bounds one content fetch
	FetchTimeout time.Duration
	// MaxContentBytes rejects larger bodies before running the program
	MaxContentBytes int64
	// FetchRate and FetchBurst pace outbound fetches across all workers
	FetchRate  float64
	FetchBurst int

	// AllowedSchemes and AllowedHosts restrict which content URLs are
	// fetched, redirects included. "*.example.com" matches any subdomain.
	AllowedSchemes []string
	AllowedHosts   []string

	// FeeAddress receives job tips
	FeeAddress sdk.AccAddress
}

var ErrURLNotAllowed = errors.New("content url not allowed")

// DefaultConfig returns default coprocessor configuration
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueSize:       256,
		FetchTimeout:    10 * time.Second,
		MaxContentBytes: 1 << 20,
		FetchRate:       5,
		FetchBurst:      10,
		AllowedSchemes:  []string{"https"},
		AllowedHosts:    []string{"public.api.bsky.app", "api.bsky.app"},
		FeeAddress:      sdk.AccAddress([]byte("pop_coprocessor_fees")),
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive: %d", c.Workers)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive: %d", c.QueueSize)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive: %s", c.FetchTimeout)
	}
	if c.MaxContentBytes <= 0 {
		return fmt.Errorf("max content bytes must be positive: %d", c.MaxContentBytes)
	}
	if c.FetchRate <= 0 || c.FetchBurst <= 0 {
		return fmt.Errorf("fetch rate and burst must be positive")
	}
	if len(c.AllowedSchemes) == 0 {
		return fmt.Errorf("allowed schemes cannot be empty")
	}
	for _, scheme := range c.AllowedSchemes {
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("unsupported scheme %q", scheme)
		}
	}
	if len(c.AllowedHosts) == 0 {
		return fmt.Errorf("allowed hosts cannot be empty")
	}
	for _, host := range c.AllowedHosts {
		if strings.TrimPrefix(host, "*.") == "" || strings.ContainsAny(host, "/:@") {
			return fmt.Errorf("invalid allowed host %q", host)
		}
	}
	if len(c.FeeAddress) == 0 {
		return fmt.Errorf("fee address cannot be empty")
	}
	return nil
}

// CheckURL reports whether raw may be fetched.
func (c Config) CheckURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrURLNotAllowed, err)
	}
	return c.checkURL(u)
}

func (c Config) checkURL(u *url.URL) error {
	if !c.allowsScheme(u.Scheme) {
		return fmt.Errorf("%w: scheme %q", ErrURLNotAllowed, u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("%w: credentials in url", ErrURLNotAllowed)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" || !c.allowsHost(host) {
		return fmt.Errorf("%w: host %q", ErrURLNotAllowed, u.Hostname())
	}
	return nil
}

func (c Config) allowsScheme(scheme string) bool {
	for _, s := range c.AllowedSchemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

func (c Config) allowsHost(host string) bool {
	for _, allowed := range c.AllowedHosts {
		allowed = strings.ToLower(allowed)
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
		} else if host == allowed {
			return true
		}
	}
	return false
}

package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// Validate checks the configuration for internally consistent values.
// It fails fast: the first violated rule is returned, wrapped around the
// matching sentinel error so callers can test with errors.Is.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWorkspace(); err != nil {
		return err
	}
	if err := c.validateDeploy(); err != nil {
		return err
	}
	if err := c.validateAnalytics(); err != nil {
		return err
	}
	return c.validateAI()
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddr)
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddr, c.Server.Addr, err)
	}
	return nil
}

func (c *Config) validateWorkspace() error {
	if c.WorkspaceDir == "" {
		return fmt.Errorf("%w: empty", ErrInvalidWorkspace)
	}
	if !filepath.IsAbs(c.WorkspaceDir) {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidWorkspace, c.WorkspaceDir)
	}
	return nil
}

func (c *Config) validateDeploy() error {
	if c.Deploy.Region == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRegion)
	}
	if c.Deploy.Domain == "" || strings.ContainsAny(c.Deploy.Domain, "/: ") {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, c.Deploy.Domain)
	}
	if c.Deploy.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidRegion)
	}
	return nil
}

func (c *Config) validateAnalytics() error {
	if c.Analytics.MaxEvents < 0 {
		return fmt.Errorf("%w: max_events must be >= 0, got %d", ErrInvalidRetention, c.Analytics.MaxEvents)
	}
	if c.Analytics.Retention < 0 {
		return fmt.Errorf("%w: retention must be >= 0, got %s", ErrInvalidRetention, c.Analytics.Retention)
	}
	if c.Analytics.RatePerSecond < 0 {
		return fmt.Errorf("%w: rate_per_second must be >= 0, got %g", ErrInvalidRateLimit, c.Analytics.RatePerSecond)
	}
	if c.Analytics.RateBurst < 0 {
		return fmt.Errorf("%w: rate_burst must be >= 0, got %d", ErrInvalidRateLimit, c.Analytics.RateBurst)
	}
	return nil
}

func (c *Config) validateAI() error {
	switch c.AI.Provider {
	case ProviderNone:
		return nil
	case ProviderGemini:
		if c.AI.APIKey == "" {
			return fmt.Errorf("%w: set GEMINI_API_KEY or use provider %q", ErrMissingAPIKey, ProviderNone)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q (supported: %s, %s)", ErrInvalidProvider, c.AI.Provider, ProviderGemini, ProviderNone)
	}
}

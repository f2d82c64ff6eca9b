package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"anvil.dev/cli/internal/core/domain"
)

// Validate rejects settings the engine cannot run with. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, fmt.Errorf("data_dir cannot be empty"))
	}
	if strings.TrimSpace(c.ServersDir) == "" {
		errs = append(errs, fmt.Errorf("servers_dir cannot be empty"))
	}

	for name, endpoint := range map[string]string{
		"paper_api":        c.PaperAPI,
		"vanilla_manifest": c.VanillaManifest,
		"modrinth_api":     c.ModrinthAPI,
	} {
		if err := ValidateEndpoint(endpoint); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	for name, endpoint := range c.ManifestOverrides {
		if _, err := domain.ParseServerType(name); err != nil {
			errs = append(errs, fmt.Errorf("manifest_overrides: unknown server type %q", name))
			continue
		}
		if err := ValidateEndpoint(endpoint); err != nil {
			errs = append(errs, fmt.Errorf("manifest_overrides.%s: %w", name, err))
		}
	}

	positive := []struct {
		name string
		ok   bool
	}{
		{"http_timeout", c.HTTPTimeout > 0},
		{"retry_attempts", c.RetryAttempts > 0},
		{"retry_initial_interval", c.RetryInitialInterval > 0},
		{"retry_max_interval", c.RetryMaxInterval > 0},
		{"requests_per_second", c.RequestsPerSecond > 0},
		{"lock_timeout", c.LockTimeout > 0},
		{"download_concurrency", c.DownloadConcurrency > 0},
		{"default_memory_gb", c.DefaultMemoryGB > 0},
		{"launch_grace", c.LaunchGrace >= 0},
	}
	for _, p := range positive {
		if !p.ok {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}
	if c.RetryMaxInterval > 0 && c.RetryInitialInterval > c.RetryMaxInterval {
		errs = append(errs, fmt.Errorf("retry_initial_interval exceeds retry_max_interval"))
	}
	if strings.TrimSpace(c.JavaPath) == "" {
		errs = append(errs, fmt.Errorf("java_path cannot be empty"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return domain.NewError(domain.ErrInvalidInput, "validate config", c.Source, errors.Join(errs...))
}

// ValidateEndpoint accepts absolute http and https URLs.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include host")
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/infrastructure/catalog"
	"anvil.dev/cli/internal/infrastructure/manifest"
	"anvil.dev/cli/internal/infrastructure/workspace"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "ANVIL_"

// Config is the resolved CLI configuration.
type Config struct {
	DataDir    string `yaml:"data_dir" env:"DATA_DIR"`
	ServersDir string `yaml:"servers_dir" env:"SERVERS_DIR"`

	PaperAPI        string `yaml:"paper_api" env:"PAPER_API"`
	VanillaManifest string `yaml:"vanilla_manifest" env:"VANILLA_MANIFEST"`
	ModrinthAPI     string `yaml:"modrinth_api" env:"MODRINTH_API"`

	// ManifestOverrides maps a server type to a generic build index URL
	ManifestOverrides map[string]string `yaml:"manifest_overrides" env:"MANIFEST_OVERRIDES"`

	HTTPTimeout          time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`
	RetryAttempts        int           `yaml:"retry_attempts" env:"RETRY_ATTEMPTS"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval" env:"RETRY_INITIAL_INTERVAL"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval" env:"RETRY_MAX_INTERVAL"`
	RequestsPerSecond    float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	UserAgent            string        `yaml:"user_agent" env:"USER_AGENT"`

	LockTimeout         time.Duration `yaml:"lock_timeout" env:"LOCK_TIMEOUT"`
	DownloadConcurrency int           `yaml:"download_concurrency" env:"DOWNLOAD_CONCURRENCY"`

	JavaPath        string        `yaml:"java_path" env:"JAVA_PATH"`
	DefaultMemoryGB int           `yaml:"default_memory_gb" env:"DEFAULT_MEMORY_GB"`
	LaunchGrace     time.Duration `yaml:"launch_grace" env:"LAUNCH_GRACE"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	Debug    bool   `yaml:"debug" env:"DEBUG"`

	// Source is the config file that was read, empty when none was found
	Source string `yaml:"-" env:"-"`
}

// LoadOptions carries the command-line overrides. Empty fields leave the
// lower layers untouched.
type LoadOptions struct {
	ConfigPath string
	DataDir    string
	Debug      bool

	// Environment replaces the process environment when non-nil
	Environment map[string]string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:              DefaultDataDir(),
		PaperAPI:             manifest.DefaultPaperAPI,
		VanillaManifest:      manifest.DefaultVanillaManifest,
		ModrinthAPI:          catalog.DefaultModrinthAPI,
		ManifestOverrides:    map[string]string{},
		HTTPTimeout:          30 * time.Second,
		RetryAttempts:        3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		RequestsPerSecond:    10,
		UserAgent:            "anvil-cli",
		LockTimeout:          10 * time.Second,
		DownloadConcurrency:  4,
		JavaPath:             "java",
		DefaultMemoryGB:      2,
		LaunchGrace:          2 * time.Second,
		LogLevel:             "warn",
	}
}

// DefaultDataDir is ~/.anvil, or .anvil when there is no home directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".anvil"
	}
	return filepath.Join(home, ".anvil")
}

// DefaultConfigPath is <user config dir>/anvil/config.yaml.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(DefaultDataDir(), "config.yaml")
	}
	return filepath.Join(dir, "anvil", "config.yaml")
}

// Load resolves defaults, the YAML file, ANVIL_* variables and flag
// overrides, in increasing priority, and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	path, explicit := configPath(opts)
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	envOpts := env.Options{Prefix: EnvPrefix}
	if opts.Environment != nil {
		envOpts.Environment = opts.Environment
	}
	if err := env.ParseWithOptions(cfg, envOpts); err != nil {
		return nil, domain.NewError(domain.ErrInvalidInput, "parse env", EnvPrefix+"*", err)
	}

	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	cfg.DataDir = workspace.ExpandPath(cfg.DataDir)
	if cfg.ServersDir == "" {
		cfg.ServersDir = filepath.Join(cfg.DataDir, "servers")
	}
	cfg.ServersDir = workspace.ExpandPath(cfg.ServersDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configPath(opts LoadOptions) (string, bool) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, true
	}
	lookup := os.Getenv
	if opts.Environment != nil {
		lookup = func(k string) string { return opts.Environment[k] }
	}
	if p := lookup(EnvPrefix + "CONFIG"); p != "" {
		return p, true
	}
	return DefaultConfigPath(), false
}

// loadFile merges a YAML file over cfg. A missing default file is not an
// error; a missing explicit one is.
func (c *Config) loadFile(path string, explicit bool) error {
	path = workspace.ExpandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return domain.NewError(domain.ErrInvalidInput, "read config", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return domain.NewError(domain.ErrInvalidInput, "parse config", path, err)
	}
	c.Source = path
	return nil
}

// Endpoints converts the endpoint settings for the manifest sources.
func (c *Config) Endpoints() manifest.Endpoints {
	overrides := make(map[domain.ServerType]string, len(c.ManifestOverrides))
	for name, url := range c.ManifestOverrides {
		// Validate has already rejected unknown types
		st, _ := domain.ParseServerType(name)
		overrides[st] = url
	}
	return manifest.Endpoints{
		PaperAPI:        c.PaperAPI,
		VanillaManifest: c.VanillaManifest,
		Overrides:       overrides,
	}
}

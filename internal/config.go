package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/halvard/raido/internal/export"
	"github.com/halvard/raido/internal/retry"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	Service   ServiceConfig     `yaml:"service"`
	Upload    UploadConfig      `yaml:"upload"`
	ExportLog ExportLogConfig   `yaml:"export_log"`
	Watch     WatchConfig       `yaml:"watch"`
	Auth      AuthConfig        `yaml:"auth"`
	Routes    []export.Route    `yaml:"routes"`
}

// NewDefaultConfig returns a config with all defaults applied.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP:     HTTPConfig{Port: 8787},
		},
		Upload: UploadConfig{
			Window:  5,
			DelayMS: 1000,
			Retry: RetryConfig{
				Mode:       string(retry.ModeLinear),
				InitialMS:  1000,
				MaxMS:      10000,
				MaxRetries: 2,
			},
		},
		Watch: WatchConfig{DebounceMS: 500},
		Auth:  AuthConfig{Mode: AuthModeDisabled},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Service.Validate(); err != nil {
		return err
	}
	if err := c.Upload.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if len(c.Routes) == 0 {
		return fmt.Errorf("at least one route is required")
	}
	seen := make(map[string]struct{}, len(c.Routes))
	for _, r := range c.Routes {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("route %q: %w", r.Name, err)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("duplicate route name: %s", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	if c.Watch.Route != "" {
		if _, ok := c.FindRoute(c.Watch.Route); !ok {
			return fmt.Errorf("watch route %q is not defined", c.Watch.Route)
		}
	}
	return nil
}

// FindRoute looks up a route by name.
func (c *Config) FindRoute(name string) (export.Route, bool) {
	for _, r := range c.Routes {
		if r.Name == name {
			return r, true
		}
	}
	return export.Route{}, false
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the watch-mode status server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ServiceConfig holds the content service connection settings.
type ServiceConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout (default 30s).
func (c *ServiceConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate validates the service configuration.
func (c *ServiceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
	)
}

// UploadConfig tunes image upload batching.
type UploadConfig struct {
	Window  int         `yaml:"window"`
	DelayMS int         `yaml:"delay_ms"`
	Retry   RetryConfig `yaml:"retry"`
}

// Delay returns the inter-window pause.
func (c *UploadConfig) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// Validate validates the upload configuration.
func (c *UploadConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Window, validation.Min(1)),
		validation.Field(&c.DelayMS, validation.Min(0)),
	); err != nil {
		return err
	}
	return c.Retry.Validate()
}

// RetryConfig tunes bounded retry for transient upload failures.
type RetryConfig struct {
	Mode       string `yaml:"mode"`
	InitialMS  int    `yaml:"initial_ms"`
	MaxMS      int    `yaml:"max_ms"`
	MaxRetries int    `yaml:"max_retries"`
}

// Policy converts the config into a retry.Policy.
func (c *RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	if c.Mode != "" {
		p.Mode = retry.Mode(c.Mode)
	}
	if c.InitialMS > 0 {
		p.Initial = time.Duration(c.InitialMS) * time.Millisecond
	}
	if c.MaxMS > 0 {
		p.Max = time.Duration(c.MaxMS) * time.Millisecond
	}
	if c.MaxRetries >= 0 {
		p.MaxRetries = c.MaxRetries
	}
	return p
}

// Validate validates the retry configuration.
func (c *RetryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(
			string(retry.ModeFixed), string(retry.ModeLinear), string(retry.ModeExponential),
		)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	)
}

// ExportLogConfig holds the export ledger database path.
// An empty path disables the ledger (no skip-unchanged, no history).
type ExportLogConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig tunes the vault watcher.
type WatchConfig struct {
	Route      string `yaml:"route"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// Debounce returns the per-path debounce window.
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// AuthConfig holds status API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Enabled reports whether bearer auth is enforced.
func (c *AuthConfig) Enabled() bool {
	return c.Mode == AuthModeToken
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth token is required in token mode")
	}
	return nil
}

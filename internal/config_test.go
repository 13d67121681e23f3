package internal

import (
	"testing"
	"time"

	"github.com/halvard/raido/internal/export"
	"github.com/halvard/raido/internal/retry"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Vault.Path = "/vault"
	cfg.Service.URL = "http://localhost:1337"
	cfg.Routes = []export.Route{
		{
			Name:         "articles",
			Collection:   "api/articles",
			ContentField: "content",
			Mappings: map[string]export.FieldMapping{
				"title": {Source: export.SourceMetadata, Key: "title"},
			},
		},
	}
	return cfg
}

func TestConfig_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestConfig_RequiresVaultPath(t *testing.T) {
	cfg := validConfig()
	cfg.Vault.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing vault path")
	}
}

func TestConfig_RequiresServiceURL(t *testing.T) {
	cfg := validConfig()
	cfg.Service.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing service url")
	}
}

func TestConfig_RequiresRoutes(t *testing.T) {
	cfg := validConfig()
	cfg.Routes = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty routes")
	}
}

func TestConfig_DuplicateRouteNames(t *testing.T) {
	cfg := validConfig()
	cfg.Routes = append(cfg.Routes, cfg.Routes[0])
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate route name")
	}
}

func TestConfig_WatchRouteMustExist(t *testing.T) {
	cfg := validConfig()
	cfg.Watch.Route = "missing"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown watch route")
	}
	cfg.Watch.Route = "articles"
	if err := cfg.Validate(); err != nil {
		t.Errorf("known watch route rejected: %v", err)
	}
}

func TestFindRoute(t *testing.T) {
	cfg := validConfig()
	if _, ok := cfg.FindRoute("articles"); !ok {
		t.Error("expected to find articles route")
	}
	if _, ok := cfg.FindRoute("nope"); ok {
		t.Error("unexpected route match")
	}
}

func TestAuthConfig_TokenModeRequiresToken(t *testing.T) {
	cfg := AuthConfig{Mode: AuthModeToken}
	if err := cfg.Validate(); err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	cfg.Token = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.Enabled() {
		t.Error("token mode should enable auth")
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Error("invalid mode should fail validation")
	}
}

func TestRetryConfig_Policy(t *testing.T) {
	c := RetryConfig{Mode: "exponential", InitialMS: 200, MaxMS: 2000, MaxRetries: 4}
	p := c.Policy()
	if p.Mode != retry.ModeExponential || p.Initial != 200*time.Millisecond || p.Max != 2*time.Second || p.MaxRetries != 4 {
		t.Errorf("policy = %+v", p)
	}
}

func TestRetryConfig_ZeroUsesDefaults(t *testing.T) {
	p := (&RetryConfig{}).Policy()
	def := retry.DefaultPolicy()
	if p.Mode != def.Mode || p.Initial != def.Initial {
		t.Errorf("policy = %+v, want defaults %+v", p, def)
	}
}

func TestServiceConfig_TimeoutDefault(t *testing.T) {
	c := ServiceConfig{URL: "http://x"}
	if c.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v", c.Timeout())
	}
	c.TimeoutSeconds = 5
	if c.Timeout() != 5*time.Second {
		t.Errorf("timeout = %v", c.Timeout())
	}
}

func TestDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.App.HTTP.Port != 8787 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.Upload.Window != 5 || cfg.Upload.Delay() != time.Second {
		t.Errorf("upload defaults = %+v", cfg.Upload)
	}
	if cfg.Watch.Debounce() != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce())
	}
	if cfg.Auth.Enabled() {
		t.Error("auth should default to disabled")
	}
}

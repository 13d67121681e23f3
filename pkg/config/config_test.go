package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

type validatedConfig struct {
	Name string `yaml:"name"`
}

var errBadName = errors.New("name is required")

func (c *validatedConfig) Validate() error {
	if c.Name == "" {
		return errBadName
	}
	return nil
}

func TestParse(t *testing.T) {
	var cfg testConfig
	if err := Parse([]byte("name: raido\nport: 8787\n"), &cfg); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Name != "raido" || cfg.Port != 8787 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("RAIDO_TEST_TOKEN", "secret-from-env")
	var cfg testConfig
	if err := Parse([]byte("token: ${RAIDO_TEST_TOKEN}\n"), &cfg); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Token != "secret-from-env" {
		t.Errorf("token = %q", cfg.Token)
	}
}

func TestParse_RunsValidation(t *testing.T) {
	var cfg validatedConfig
	err := Parse([]byte("name: \"\"\n"), &cfg)
	if !errors.Is(err, errBadName) {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	var cfg testConfig
	if err := Parse([]byte(": not yaml: {{{"), &cfg); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("name: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "from-file" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	dir := t.TempDir()
	def := filepath.Join(dir, "default.yaml")
	if err := os.WriteFile(def, []byte("name: default\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg testConfig
	if err := LoadWithDefaults(filepath.Join(dir, "missing.yaml"), def, &cfg); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("name = %q", cfg.Name)
	}

	primary := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(primary, []byte("name: primary\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var cfg2 testConfig
	if err := LoadWithDefaults(primary, def, &cfg2); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg2.Name != "primary" {
		t.Errorf("name = %q", cfg2.Name)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SWALANG_CONFIG", "")
	t.Setenv("SWALANG_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendMemory {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.SerializeMutations || cfg.VoteReloadOnFailure {
		t.Error("core options should default off")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swalang.yaml")
	yml := `backend: rest
api_url: https://file.example
api_key: from-file
request_timeout: 3s
serialize_mutations: true
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SWALANG_CONFIG", path)
	t.Setenv("SWALANG_API_URL", "https://env.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendREST {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if cfg.APIURL != "https://env.example" {
		t.Errorf("APIURL = %q, want env value", cfg.APIURL)
	}
	if cfg.APIKey != "from-file" {
		t.Errorf("APIKey = %q, want file value", cfg.APIKey)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if !cfg.SerializeMutations {
		t.Error("SerializeMutations not read from file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"memory ok", func(*Config) {}, ""},
		{"rest missing url", func(c *Config) { c.Backend = BackendREST; c.APIKey = "k" }, "SWALANG_API_URL"},
		{"rest missing key", func(c *Config) { c.Backend = BackendREST; c.APIURL = "http://x" }, "SWALANG_API_KEY"},
		{"postgres missing dsn", func(c *Config) { c.Backend = BackendPostgres }, "DATABASE_URL"},
		{"unknown backend", func(c *Config) { c.Backend = "ftp" }, "unknown backend"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")
	if envBool("X_BOOL", true) != true {
		t.Error("envBool did not fall back")
	}
	if envDuration("X_DUR", time.Second) != time.Second {
		t.Error("envDuration did not fall back")
	}
}

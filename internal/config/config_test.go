package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"EVENTS_DIR", "SQL_DSN", "CHROMA_DIR", "CHROMA_URL", "OLLAMA_BASE_URL",
		"SERVER_HOST", "SERVER_PORT", "VT_API_KEY", "MB_URL", "URLHAUS_URL", "ABUSEIPDB_KEY",
	} {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.ServerHost != "127.0.0.1" {
		t.Errorf("ServerHost = %q, want 127.0.0.1", cfg.ServerHost)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.ThreatIntelEnabled() {
		t.Error("ThreatIntelEnabled() = true with no VT_API_KEY set")
	}
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("VT_API_KEY", "test-key")
	defer os.Unsetenv("SERVER_PORT")
	defer os.Unsetenv("VT_API_KEY")

	cfg := Load()

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if !cfg.ThreatIntelEnabled() {
		t.Error("ThreatIntelEnabled() = false with VT_API_KEY set")
	}
}

func TestGetEnvIntFallsBackOnInvalidValue(t *testing.T) {
	os.Setenv("SERVER_PORT", "not-a-number")
	defer os.Unsetenv("SERVER_PORT")

	cfg := Load()
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want fallback 8080 on invalid env value", cfg.ServerPort)
	}
}

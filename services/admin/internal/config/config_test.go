package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "JWT_SECRET", "AUTH_JWKS_URL", "JWT_LEEWAY"} {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_LEEWAY", "30s")

	cfg, err := Load(writeConfig(t, "port: \"8091\"\ndatabaseURL: postgres://localhost/muhurat\njwtSecret: dev\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d, _ := ParseLeeway(cfg.JWTLeeway); d != 30*time.Second {
		t.Fatalf("jwtLeeway = %q", cfg.JWTLeeway)
	}

	_, err = Load(writeConfig(t, "port: \"8091\"\ndatabaseURL: postgres://localhost/muhurat\n"))
	if err == nil || !strings.Contains(err.Error(), "exactly one") {
		t.Fatalf("expected key source error, got %v", err)
	}
	_, err = Load(writeConfig(t, "databaseURL: postgres://localhost/muhurat\njwtSecret: dev\n"))
	if err == nil || !strings.Contains(err.Error(), "port") {
		t.Fatalf("expected port error, got %v", err)
	}
}

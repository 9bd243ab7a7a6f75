package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://localhost/khoda")
	t.Setenv("API_BASE_URL", "http://api.example.com")
	t.Setenv("ASK_TIMEOUT", "30s")

	var cfg Config
	loaded, err := cfg.LoadEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if loaded.Token != "123:abc" {
		t.Errorf("unexpected token %q", loaded.Token)
	}
	if loaded.APIBaseURL != "http://api.example.com" {
		t.Errorf("unexpected base url %q", loaded.APIBaseURL)
	}
	if loaded.AskTimeout != 30*time.Second {
		t.Errorf("unexpected timeout %s", loaded.AskTimeout)
	}
	if loaded.Provider != "khoda" {
		t.Errorf("expected default provider khoda, got %q", loaded.Provider)
	}
	if !loaded.MemoryDefault || loaded.MemoryInGroups {
		t.Errorf("unexpected memory defaults: %v %v", loaded.MemoryDefault, loaded.MemoryInGroups)
	}
}

func TestLoadEnvMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	os.Unsetenv("TELEGRAM_BOT_TOKEN")
	t.Setenv("DATABASE_URL", "postgres://localhost/khoda")

	var cfg Config
	if _, err := cfg.LoadEnv(); err == nil {
		t.Fatal("expected error for missing TELEGRAM_BOT_TOKEN")
	}
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg := Config{ConfigFile: filepath.Join(t.TempDir(), "does-not-exist.toml")}
	if err := cfg.LoadFile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Messages != DefaultMessages {
		t.Error("expected default messages when config.toml is absent")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `[messages]
welcome = "hello from toml"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{ConfigFile: path}
	if err := cfg.LoadFile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Messages.Welcome != "hello from toml" {
		t.Errorf("welcome not overridden: %q", cfg.Messages.Welcome)
	}
	// Unset fields fall back to defaults.
	if cfg.Messages.AskUsage != DefaultMessages.AskUsage {
		t.Errorf("ask usage should fall back to default, got %q", cfg.Messages.AskUsage)
	}
	if cfg.Messages.GenericError != DefaultMessages.GenericError {
		t.Errorf("generic error should fall back to default, got %q", cfg.Messages.GenericError)
	}
}

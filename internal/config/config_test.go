package config

import (
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.json")
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := &Config{
		DataDir:  "/tmp/test-data",
		LogLevel: "debug",
		Owner:    "student-1",
	}
	original.Server.BaseURL = "https://api.school.example/tutor"
	original.Server.Token = "tok-round-trip"
	original.Server.StreamIdleTimeoutS = 45
	original.Tokenizer.Model = "gpt-4"
	original.Telegram.Token = "bot-token-456"

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file does not exist after Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DataDir != original.DataDir {
		t.Errorf("DataDir mismatch: %v != %v", loaded.DataDir, original.DataDir)
	}
	if loaded.Owner != original.Owner {
		t.Errorf("Owner mismatch: %v != %v", loaded.Owner, original.Owner)
	}
	if loaded.Server.BaseURL != original.Server.BaseURL {
		t.Errorf("Server.BaseURL mismatch: %v != %v", loaded.Server.BaseURL, original.Server.BaseURL)
	}
	if loaded.Server.StreamIdleTimeoutS != original.Server.StreamIdleTimeoutS {
		t.Errorf("Server.StreamIdleTimeoutS mismatch: %v != %v", loaded.Server.StreamIdleTimeoutS, original.Server.StreamIdleTimeoutS)
	}
}

func TestLoad_WritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Server.StreamIdleTimeoutS != 90 {
		t.Errorf("expected default idle timeout 90, got %d", cfg.Server.StreamIdleTimeoutS)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected defaults written to disk: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("ADMITCHAT_API_TOKEN", "env-token")
	t.Setenv("ADMITCHAT_OWNER", "env-owner")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Token != "env-token" {
		t.Errorf("expected env token override, got %q", cfg.Server.Token)
	}
	if cfg.Owner != "env-owner" {
		t.Errorf("expected env owner override, got %q", cfg.Owner)
	}
}

func TestGetSetValue(t *testing.T) {
	path := tempConfigPath(t)
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}

	if err := SetValue(path, "server.base_url", "https://other.example"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	val, err := GetValue(path, "server.base_url")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if val != "https://other.example" {
		t.Errorf("unexpected value: %v", val)
	}

	if err := SetValue(path, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

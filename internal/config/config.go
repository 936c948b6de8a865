package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	Owner    string `json:"owner"`
	Server   struct {
		BaseURL            string `json:"base_url"`
		Token              string `json:"token"`
		StreamIdleTimeoutS int    `json:"stream_idle_timeout_s"`
	} `json:"server"`
	Tokenizer struct {
		Model string `json:"model"`
	} `json:"tokenizer"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".admitchat"),
		LogLevel: "info",
	}
	cfg.Server.BaseURL = "http://localhost:8089"
	cfg.Server.StreamIdleTimeoutS = 90
	cfg.Tokenizer.Model = "gpt-4"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if token := os.Getenv("ADMITCHAT_API_TOKEN"); token != "" {
		cfg.Server.Token = token
	}
	if baseURL := os.Getenv("ADMITCHAT_BASE_URL"); baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if owner := os.Getenv("ADMITCHAT_OWNER"); owner != "" {
		cfg.Owner = owner
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

// Save writes the config to path atomically.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

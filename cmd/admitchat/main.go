package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/admitchat/internal/config"
	"github.com/user/admitchat/internal/session"
	"github.com/user/admitchat/internal/state"
	"github.com/user/admitchat/internal/tokens"
	"github.com/user/admitchat/internal/types"
	"github.com/user/admitchat/pkg/backend"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "admitchat",
	Short: "Admissions tutor chat client",
	Long:  "admitchat is a multi-thread streaming chat client for the admissions tutor service.",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(os.Getenv("HOME"), ".admitchat", "config.json"),
		"config file path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, exiting on failure. Commands call this
// instead of threading the config through cobra context.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// owner resolves the owner id for this invocation; the config owner falls
// back to the OS username so a fresh install works without setup.
func owner(cfg *config.Config) types.OwnerID {
	if cfg.Owner != "" {
		return types.OwnerID(cfg.Owner)
	}
	if u := os.Getenv("USER"); u != "" {
		return types.OwnerID(u)
	}
	return types.OwnerID("default")
}

// buildController assembles the store, backend client, and token meter into
// a controller for the configured owner.
func buildController(cfg *config.Config, hooks session.Config) (*session.Controller, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return buildControllerWith(cfg, store, hooks)
}

// openStore creates the shared thread store under the data directory.
func openStore(cfg *config.Config) (*state.ThreadStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return state.NewThreadStore(cfg.DataDir), nil
}

// buildControllerWith is the store-sharing variant: callers that run several
// controllers over one data directory (the Telegram bridge) must pass a
// single store so in-process writes stay serialized on its locks.
func buildControllerWith(cfg *config.Config, store *state.ThreadStore, hooks session.Config) (*session.Controller, error) {
	api := backend.New(backend.Config{
		BaseURL: cfg.Server.BaseURL,
		Token:   cfg.Server.Token,
	})

	meter, err := tokens.NewMeter(cfg.Tokenizer.Model)
	if err != nil {
		slog.Warn("tokenizer unavailable, token counts disabled", "error", err)
	}

	hooks.Owner = owner(cfg)
	hooks.Store = store
	hooks.Backend = api
	hooks.Meter = meter
	hooks.IdleTimeout = time.Duration(cfg.Server.StreamIdleTimeoutS) * time.Second
	return session.New(hooks)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/admitchat/internal/session"
	"github.com/user/admitchat/internal/telegram"
	"github.com/user/admitchat/internal/types"
)

func init() {
	rootCmd.AddCommand(telegramCmd)
}

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Run the Telegram bridge",
	Args:  cobra.NoArgs,
	RunE:  runTelegram,
}

func runTelegram(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.Telegram.Token == "" {
		return errors.New("telegram token not configured (set telegram.token or TELEGRAM_BOT_TOKEN)")
	}

	// One store for all chats: controllers for different owners write the
	// shared active-pointer file, and serializing those writes needs a
	// single store instance. Each chat still gets its own controller and
	// owner namespace, separate from the local CLI owner.
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	factory := func(chatOwner types.OwnerID, onToken, onNotice func(string)) (*session.Controller, error) {
		chatCfg := *cfg
		chatCfg.Owner = string(chatOwner)
		return buildControllerWith(&chatCfg, store, session.Config{
			OnToken:  onToken,
			OnNotice: onNotice,
		})
	}

	adapter, err := telegram.New(cfg.Telegram.Token, factory)
	if err != nil {
		return fmt.Errorf("start telegram bridge: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("telegram bridge started")
	adapter.Start(ctx)
	slog.Info("telegram bridge stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/admitchat/internal/devserver"
)

var (
	demoAddr  string
	demoDelay time.Duration
)

func init() {
	demoCmd.Flags().StringVar(&demoAddr, "addr", ":8089", "listen address")
	demoCmd.Flags().DurationVar(&demoDelay, "delay", 40*time.Millisecond, "delay between streamed tokens")
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a local stub tutor server for development",
	Args:  cobra.NoArgs,
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	srv := &http.Server{
		Addr:    demoAddr,
		Handler: devserver.New(cfg.Server.Token, demoDelay),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("demo server listening", "addr", demoAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("demo server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown demo server: %w", err)
	}
	slog.Info("demo server stopped")
	return nil
}

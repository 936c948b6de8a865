package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/admitchat/internal/session"
	"github.com/user/admitchat/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with the tutor",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctrl, err := buildController(cfg, session.Config{
		OnToken: func(text string) {
			fmt.Print(text)
		},
		OnStatus: func(text string) {
			fmt.Printf("\r\033[2K[%s]", text)
		},
		OnNotice: func(text string) {
			fmt.Printf("\n! %s\n", text)
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := ctrl.Resume(ctx); err != nil {
		return fmt.Errorf("resume session: %w", err)
	}

	fmt.Printf("Connected as %s. Type /help for commands, /quit to exit.\n", ctrl.Owner())
	printTranscript(ctrl.Messages())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := chatCommand(ctx, ctrl, line)
			if err != nil {
				fmt.Printf("! %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		fmt.Println()
		err := ctrl.Send(ctx, line)
		fmt.Println()
		switch {
		case err == nil:
		case errors.Is(err, session.ErrBusy):
			fmt.Println("! Still waiting on the previous answer.")
		case errors.Is(err, context.Canceled):
			return nil
		default:
			// Stream failures surface as notices; anything else is a bug
			// worth seeing.
			fmt.Printf("! %v\n", err)
		}
	}
	return scanner.Err()
}

// chatCommand handles slash commands; returns done=true to exit the REPL.
func chatCommand(ctx context.Context, ctrl *session.Controller, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Println("Commands: /new, /threads, /switch <id>, /sync, /quit")
		return false, nil

	case "/new":
		if err := ctrl.NewThread(ctx); err != nil {
			return false, err
		}
		fmt.Println("Started a new thread.")
		return false, nil

	case "/threads":
		threads, err := ctrl.Threads(ctx)
		if err != nil {
			return false, err
		}
		if len(threads) == 0 {
			fmt.Println("No threads yet.")
			return false, nil
		}
		for _, t := range threads {
			marker := " "
			if t.ID == ctrl.Active() {
				marker = "*"
			}
			fmt.Printf("%s %s  %s\n", marker, t.ID, t.Title)
		}
		return false, nil

	case "/switch":
		if len(fields) != 2 {
			return false, errors.New("usage: /switch <thread-id>")
		}
		if err := ctrl.SwitchThread(ctx, types.ThreadID(fields[1])); err != nil {
			return false, err
		}
		printTranscript(ctrl.Messages())
		return false, nil

	case "/sync":
		added, err := ctrl.SyncRemote(ctx)
		if err != nil {
			return false, err
		}
		fmt.Printf("Synced %d new thread(s) from the server.\n", added)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
}

func printTranscript(msgs []types.Message) {
	for _, m := range msgs {
		switch m.Role {
		case types.RoleUser:
			fmt.Printf("\n> %s\n", m.Content)
		case types.RoleAssistant:
			fmt.Printf("\n%s\n", m.Content)
		}
	}
}

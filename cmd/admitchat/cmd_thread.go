package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/admitchat/internal/session"
	"github.com/user/admitchat/internal/state"
	"github.com/user/admitchat/internal/types"
)

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadListCmd, threadDeleteCmd, threadActiveCmd, threadSyncCmd)
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage conversation threads",
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewThreadStore(cfg.DataDir)

		ctx := context.Background()
		threads, err := store.List(ctx, owner(cfg))
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}
		if len(threads) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		active, _ := store.ActiveThread(ctx, owner(cfg))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tTOKENS\tLAST ACTIVITY")
		for _, t := range threads {
			id := string(t.ID)
			if t.ID == active {
				id = "*" + id
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				id,
				t.Title,
				t.TokenCount,
				t.LastActivity.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var threadDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a thread and its local history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewThreadStore(cfg.DataDir)

		if err := store.Delete(context.Background(), owner(cfg), types.ThreadID(args[0])); err != nil {
			return fmt.Errorf("delete thread: %w", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var threadActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the active thread",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewThreadStore(cfg.DataDir)

		id, ok := store.ActiveThread(context.Background(), owner(cfg))
		if !ok {
			fmt.Println("No active thread.")
			return nil
		}
		fmt.Println(id)
		return nil
	},
}

var threadSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull threads from the server that are not known locally",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		ctrl, err := buildController(cfg, session.Config{})
		if err != nil {
			return err
		}

		added, err := ctrl.SyncRemote(context.Background())
		if err != nil {
			return fmt.Errorf("sync threads: %w", err)
		}
		fmt.Printf("Synced %d new thread(s).\n", added)
		return nil
	},
}

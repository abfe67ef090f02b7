package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/pushbox/internal/checkpoint"
	"github.com/teemow/pushbox/internal/gmail"
)

// checkpointFlags selects the checkpoint backend for commands that touch
// stored history cursors. The watch commands must point at the same backend
// the server runs with, otherwise seeding has no effect.
type checkpointFlags struct {
	backend       string
	redisAddr     string
	redisPassword string
	redisDB       int
}

func (f *checkpointFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.backend, "checkpoint-backend", "redis", "Checkpoint storage backend: memory or redis")
	cmd.PersistentFlags().StringVar(&f.redisAddr, "redis-addr", "localhost:6379", "Redis server address")
	cmd.PersistentFlags().StringVar(&f.redisPassword, "redis-password", "", "Redis authentication password")
	cmd.PersistentFlags().IntVar(&f.redisDB, "redis-db", 0, "Redis database number")
}

func (f *checkpointFlags) store() (checkpoint.Store, error) {
	return buildCheckpointStore(f.backend, f.redisAddr, f.redisPassword, f.redisDB)
}

func newWatchCmd() *cobra.Command {
	var flags checkpointFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the Gmail mailbox watch feeding push notifications",
		Long: `Manage the Gmail watch registration that publishes mailbox changes to a
Cloud Pub/Sub topic.

Starting a watch seeds the history checkpoint for a tenant server in the
configured checkpoint backend. The backend must be the one the running
server uses, which in practice means redis.`,
	}

	flags.register(cmd)
	cmd.AddCommand(newWatchStartCmd(&flags))
	cmd.AddCommand(newWatchStopCmd(&flags))
	cmd.AddCommand(newWatchStatusCmd(&flags))
	return cmd
}

func newWatchStartCmd(flags *checkpointFlags) *cobra.Command {
	var (
		account    string
		serverName string
		topic      string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a mailbox watch and seed the history checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" {
				return fmt.Errorf("--topic is required (projects/<project>/topics/<topic>)")
			}
			if serverName == "" {
				return fmt.Errorf("--server is required")
			}

			ctx := context.Background()
			client, err := gmail.NewClientForAccount(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to create Gmail client for account %s: %w", account, err)
			}

			info, err := client.StartWatch(ctx, topic)
			if err != nil {
				return fmt.Errorf("failed to start watch: %w", err)
			}

			store, err := flags.store()
			if err != nil {
				return err
			}
			if err := store.Put(ctx, serverName, info.HistoryID); err != nil {
				return fmt.Errorf("watch started but failed to seed checkpoint: %w", err)
			}

			fmt.Printf("Watch started for server %q on topic %s\n", serverName, topic)
			fmt.Printf("History cursor seeded at %s, watch expires %s\n", info.HistoryID, info.Expiration.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use")
	cmd.Flags().StringVar(&serverName, "server", "", "Tenant server name push deliveries will carry")
	cmd.Flags().StringVar(&topic, "topic", "", "Pub/Sub topic to publish mailbox changes to")
	return cmd
}

func newWatchStopCmd(flags *checkpointFlags) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the mailbox watch for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := gmail.NewClientForAccount(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to create Gmail client for account %s: %w", account, err)
			}

			if err := client.StopWatch(ctx); err != nil {
				return fmt.Errorf("failed to stop watch: %w", err)
			}

			fmt.Println("Watch stopped. Stored checkpoints are kept for a later restart.")
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use")
	return cmd
}

func newWatchStatusCmd(flags *checkpointFlags) *cobra.Command {
	var serverName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored history checkpoint for a tenant server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverName == "" {
				return fmt.Errorf("--server is required")
			}

			store, err := flags.store()
			if err != nil {
				return err
			}

			cursor, err := store.Get(context.Background(), serverName)
			if errors.Is(err, checkpoint.ErrNotFound) {
				fmt.Printf("No watch initialized for server %q\n", serverName)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read checkpoint: %w", err)
			}

			fmt.Printf("Server %q is armed, history cursor %s\n", serverName, cursor)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverName, "server", "", "Tenant server name to inspect")
	return cmd
}

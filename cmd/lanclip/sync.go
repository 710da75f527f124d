package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"go.klb.dev/lanclip/internal/ipc"
	"go.klb.dev/lanclip/internal/message"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push the clipboard to selected peers and pull theirs now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := controlClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
			defer cancel()

			st, err := client.Sync(ctx)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d from %s: %s\n",
				st.Version, st.OriginHost, message.Preview(st.Content, 60))
			return nil
		},
	}
}

func newToggleCmd(on bool) *cobra.Command {
	use, short := "enable", "Turn clipboard sync on"
	if !on {
		use, short = "disable", "Turn clipboard sync off"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := controlClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
			defer cancel()

			enabled, err := client.SetEnabled(ctx, on)
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sync enabled: %t\n", enabled)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether sync is on and the current clipboard version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := controlClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
			defer cancel()

			if err := client.Health(ctx); err != nil {
				return fmt.Errorf("status: daemon not healthy: %w", err)
			}
			enabled, err := client.Enabled(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			st, err := client.Clipboard(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "daemon:       ok (%s)\n", ipc.SocketPath())
			fmt.Fprintf(out, "sync enabled: %t\n", enabled)
			fmt.Fprintf(out, "clipboard:    version %d from %s (%d bytes)\n", st.Version, st.OriginHost, len(st.Content))
			return nil
		},
	}
}

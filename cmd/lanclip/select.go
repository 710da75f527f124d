package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSelectCmd(selected bool) *cobra.Command {
	use, short := "select", "Sync with the given peers"
	if !selected {
		use, short = "deselect", "Stop syncing with the given peers"
	}
	return &cobra.Command{
		Use:   use + " <hostname>...",
		Short: short,
		Long: short + `.

Selection is held by the running daemon and requires the local IPC socket.
Use the "select" config key to preselect peers at startup.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd, args, selected)
		},
	}
}

func runSelect(cmd *cobra.Command, hosts []string, selected bool) error {
	client, err := controlClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	var missing int
	for _, h := range hosts {
		resp, err := client.SetSelected(ctx, h, selected)
		if err != nil {
			return fmt.Errorf("select %s: %w", h, err)
		}
		if !resp.Found {
			missing++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: unknown peer\n", h)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: selected=%t\n", resp.Hostname, resp.Selected)
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d peers not found", missing, len(hosts))
	}
	return nil
}

// lanclip: peer-to-peer clipboard sync on the local network.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lanclip",
		Short: "Peer-to-peer clipboard sync on the local network",
		Long: `lanclip keeps the clipboard of machines on the same LAN in sync.

Run "lanclip serve" on every machine. Instances find each other by UDP
broadcast on port 8720 and exchange clipboard content over HTTP on port 8721.
Choose which machines to sync with using "lanclip select".

Config file search order (first found wins):
  /etc/lanclip/lanclip.toml
  $HOME/.config/lanclip/lanclip.toml
  path supplied via --config

All flags can be set via LANCLIP_<FLAG> env vars or config-file keys.
See "lanclip serve --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newDevicesCmd(),
		newSelectCmd(true),
		newSelectCmd(false),
		newPasteCmd(),
		newSyncCmd(),
		newToggleCmd(true),
		newToggleCmd(false),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lanclip %s\n", Version)
		},
	}
}


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/lanclip/internal/message"
)

func newDevicesCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List discovered peers",
		Long: `Displays the peers the daemon has heard from.

If a local daemon is running, the request is sent via the IPC Unix socket.
Pass --server to query a daemon elsewhere on the LAN.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDevices(cmd, v) },
	}

	f := cmd.Flags()
	f.Bool("active", false, "only show peers seen within the staleness window")
	f.Bool("json", false, "output raw JSON")
	addServerFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDevices(cmd *cobra.Command, v *viper.Viper) error {
	client, transport := daemonClient(cmd, v)
	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	devs, err := client.Devices(ctx, v.GetBool("active"))
	if err != nil {
		return fmt.Errorf("devices: %w", err)
	}

	out := cmd.OutOrStdout()
	if v.GetBool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(devs)
	}
	printDevices(out, devs, transport)
	return nil
}

func printDevices(out io.Writer, devs []message.Device, transport string) {
	fmt.Fprintf(out, "Transport: %s\n\n", transport)
	if len(devs) == 0 {
		fmt.Fprintln(out, "No peers discovered.")
		return
	}

	tw := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "\tHOSTNAME\tADDR\tUSER\tSTATUS\tLAST SEEN\tCAPABILITIES\n")
	_, _ = fmt.Fprintf(tw, "\t--------\t----\t----\t------\t---------\t------------\n")
	for _, d := range devs {
		marker := ""
		if d.Selected {
			marker = "*"
		}
		status := "stale"
		if d.Active {
			status = "active"
		}
		user := d.User
		if user == "" {
			user = "-"
		}
		addr := d.Address
		if d.APIPort != 0 && d.APIPort != message.APIPort {
			addr = fmt.Sprintf("%s:%d", d.Address, d.APIPort)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, d.Hostname, addr, user, status, fmtAge(d.LastSeen), strings.Join(d.Capabilities, ","),
		)
	}
	_ = tw.Flush()
	fmt.Fprintln(out, "\n* selected for sync")
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPasteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Print the shared clipboard to stdout (like pbpaste)",
		Long: `Retrieves the clipboard content the daemon currently holds and writes it
to stdout. Pass --verbose to print the origin host and version to stderr.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPaste(cmd, v) },
	}

	f := cmd.Flags()
	f.BoolP("verbose", "v", false, "print origin and version to stderr")
	addServerFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runPaste(cmd *cobra.Command, v *viper.Viper) error {
	client, _ := daemonClient(cmd, v)
	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	st, err := client.Clipboard(ctx)
	if err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	if v.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "origin=%s version=%d\n", st.OriginHost, st.Version)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), st.Content)
	return err
}

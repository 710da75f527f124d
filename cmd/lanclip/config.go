package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/lanclip/internal/logging"
)

// configDirs lists where lanclip.toml is looked for, most specific first.
func configDirs() []string {
	var dirs []string
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, "lanclip"))
	}
	return append(dirs, "/etc/lanclip")
}

// bindViper loads lanclip.toml (or --config) into v and layers LANCLIP_*
// variables and the command's flags on top. Flag names map to env vars with
// dashes as underscores, so --stale-after is LANCLIP_STALE_AFTER. A missing
// config file is not an error.
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lanclip")
		v.SetConfigType("toml")
		for _, dir := range configDirs() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("LANCLIP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("config: bind flags: %w", err)
	}
	return nil
}

func addLoggingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("no-background", false, "running in a terminal: colour logs, debug level unless --log-level is set")
	f.String("log-format", "auto", "auto picks text on a terminal and json otherwise (auto|text|json)")
	f.String("log-level", "", "debug|info|warn|error; empty means info as a daemon")
}

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "read settings from this file instead of lanclip.toml")
}

// addServerFlag adds the --server flag used by CLI commands when no local
// daemon is reachable over IPC.
func addServerFlag(cmd *cobra.Command) {
	cmd.Flags().String("server", "localhost:8721", "API address of a lanclip daemon, used when none answers on the local socket")
}

func setupLogging(v *viper.Viper) {
	logging.Setup(logging.Options{
		Format:     logging.ParseFormat(v.GetString("log-format")),
		Level:      v.GetString("log-level"),
		Foreground: v.GetBool("no-background") || logging.IsTTY(os.Stderr),
	})
}

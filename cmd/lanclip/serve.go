package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thejerf/suture/v4"
	"go.uber.org/automaxprocs/maxprocs"

	"go.klb.dev/lanclip/internal/clip"
	"go.klb.dev/lanclip/internal/discovery"
	"go.klb.dev/lanclip/internal/ipc"
	"go.klb.dev/lanclip/internal/logging"
	"go.klb.dev/lanclip/internal/message"
	"go.klb.dev/lanclip/internal/peerclient"
	"go.klb.dev/lanclip/internal/registry"
	"go.klb.dev/lanclip/internal/server"
	"go.klb.dev/lanclip/internal/syncer"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clipboard sync daemon",
		Long: `Starts lanclip: announces this machine on the LAN, tracks the other
instances it hears from, and keeps the local clipboard in sync with the
selected ones.

The LAN API (--api-addr) serves GET/POST /clipboard, GET /devices, /health
and /metrics. The local IPC socket serves the same routes plus the control
routes used by "lanclip select", "lanclip sync" and "lanclip enable".

Config file search order:
  /etc/lanclip/lanclip.toml
  $HOME/.config/lanclip/lanclip.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → LANCLIP_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.String("hostname", defaultHostname(), "name announced to peers")
	f.Int("discovery-port", message.DiscoveryPort, "UDP port for announcements")
	f.String("api-addr", fmt.Sprintf("0.0.0.0:%d", message.APIPort), "TCP listen address of the clipboard API")
	f.String("advertise-addr", "", "IPv4 address to announce (default: address of the default route)")
	f.Duration("broadcast-interval", discovery.DefaultInterval, "time between announcements")
	f.StringSlice("broadcast-target", nil, "send announcements to these hosts instead of broadcasting")
	f.Duration("stale-after", registry.DefaultStaleAfter, "peers silent this long stop being sync targets")
	f.Duration("debounce", syncer.DefaultDebounce, "quiet period before a local copy is pushed")
	f.Duration("poll-interval", clip.DefaultPollInterval, "clipboard polling interval")
	f.Duration("push-timeout", syncer.DefaultPushTimeout, "timeout for each push or pull")
	f.Int("push-workers", syncer.DefaultWorkers, "maximum concurrent pushes and pulls across all peers")
	f.Duration("pull-interval", 0, "pull from selected peers this often (0 disables)")
	f.StringSlice("select", nil, "hostnames selected for sync when first discovered")
	f.Bool("auto-select", false, "select every discovered peer for sync")
	f.Bool("sync", true, "start with sync enabled")
	f.Bool("no-local", false, "do not touch the system clipboard (relay mode)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	setupLogging(v)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		slog.Debug("automaxprocs", "err", err)
	}

	host := v.GetString("hostname")
	apiAddr := v.GetString("api-addr")
	noLocal := v.GetBool("no-local")

	if ipc.IsRunning() {
		return fmt.Errorf("serve: %w", ipc.ErrRunning)
	}

	reg := registry.New(registry.Options{
		StaleAfter: v.GetDuration("stale-after"),
		Preselect:  v.GetStringSlice("select"),
		AutoSelect: v.GetBool("auto-select"),
	})

	backend := clip.Open(noLocal)
	defer backend.Close()

	instance := uuid.NewString()
	coord := syncer.New(syncer.Config{
		Self:         host,
		Instance:     instance,
		Debounce:     v.GetDuration("debounce"),
		PushTimeout:  v.GetDuration("push-timeout"),
		Workers:      v.GetInt("push-workers"),
		PullInterval: v.GetDuration("pull-interval"),
		Disabled:     !v.GetBool("sync"),
	}, backend, reg, peerclient.New(v.GetDuration("push-timeout")))
	defer coord.Close()

	disc := discovery.New(discovery.Config{
		Hostname: host,
		Instance: instance,
		Port:     v.GetInt("discovery-port"),
		Targets:  v.GetStringSlice("broadcast-target"),
		Interval: v.GetDuration("broadcast-interval"),
		Address:  v.GetString("advertise-addr"),
		APIPort:  apiPortOf(apiAddr),
		User:     defaultUser(),
	}, reg)

	slog.Info("lanclip starting",
		"version", Version,
		"hostname", host,
		"instance", disc.Instance(),
		"api", apiAddr,
		"clipboard", backend.Name(),
		"sync", coord.Enabled(),
	)

	lan := server.New(coord, reg, server.Options{
		Name:   "lan api",
		Listen: func() (net.Listener, error) { return net.Listen("tcp", apiAddr) },
	})
	local := server.New(coord, reg, server.Options{
		Name:    "ipc api",
		Control: true,
		Listen:  ipc.Listen,
	})

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := suture.New("lanclip", suture.Spec{EventHook: logging.SupervisorHook})
	sup.Add(disc)
	sup.Add(registry.NewSweeper(reg))
	sup.Add(syncer.NewWatcher(coord, clip.NewPoller(backend, v.GetDuration("poll-interval"))))
	sup.Add(coord)
	sup.Add(lan)
	sup.Add(local)

	err := sup.Serve(ctx)
	slog.Info("lanclip stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

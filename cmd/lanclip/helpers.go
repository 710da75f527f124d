package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/calmh/incontainer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/lanclip/internal/ipc"
	"go.klb.dev/lanclip/internal/message"
	"go.klb.dev/lanclip/internal/peerclient"
)

const cliTimeout = 10 * time.Second

// errNeedsDaemon is returned by control commands when no local daemon is running.
var errNeedsDaemon = errors.New("no local lanclip daemon (is \"lanclip serve\" running?)")

func getenv(key string) string  { return os.Getenv(key) }
func hostname() (string, error) { return os.Hostname() }

func isContainerID(s string) bool {
	if len(s) < 12 || len(s) > 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// defaultHostname returns the name this instance announces itself as.
func defaultHostname() string {
	for _, env := range []string{
		"CONTAINER_NAME",
		"COMPOSE_SERVICE",
		"HOSTNAME_FRIENDLY",
	} {
		if v := getenv(env); v != "" {
			return v
		}
	}
	h, err := hostname()
	if err != nil {
		return "unknown"
	}
	if isContainerID(h) && incontainer.Detect() {
		return "container-" + h[:8]
	}
	return h
}

// defaultUser returns the login name announced alongside the hostname.
func defaultUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return getenv("USER")
}

// portOf returns the port of a host:port address, or def.
func portOf(addr string, def int) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(p)
	if err != nil || n == 0 {
		return def
	}
	return n
}

// daemonClient returns a client for the local daemon over IPC when it is
// running and --server was not given, otherwise for the --server address.
// The second return describes the transport for display.
func daemonClient(cmd *cobra.Command, v *viper.Viper) (*peerclient.Client, string) {
	if !cmd.Flags().Changed("server") && ipc.IsRunning() {
		return peerclient.NewDial(ipc.Dial, cliTimeout), fmt.Sprintf("ipc (%s)", ipc.SocketPath())
	}
	addr := v.GetString("server")
	return peerclient.NewServer(addr, cliTimeout), fmt.Sprintf("tcp (%s)", addr)
}

// controlClient returns an IPC client; control routes are never served on
// the LAN listener.
func controlClient() (*peerclient.Client, error) {
	if !ipc.IsRunning() {
		return nil, errNeedsDaemon
	}
	return peerclient.NewDial(ipc.Dial, cliTimeout), nil
}

func fmtAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Local().Format("15:04:05")
}

func apiPortOf(addr string) int { return portOf(addr, message.APIPort) }

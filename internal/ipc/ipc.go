// Package ipc provides helpers for the local Unix-socket channel used by CLI
// sub-commands to talk to a running lanclip daemon.
//
// The channel is plain HTTP served over a Unix domain socket, using the same
// handler as the LAN listener plus the control routes (selection, manual
// sync, sync toggle) that are never exposed on the network. Windows 10 and
// later support AF_UNIX, so the same transport is used everywhere.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// ErrRunning is returned by Listen when another daemon owns the socket.
var ErrRunning = errors.New("another lanclip daemon is listening")

// SocketPath returns the path of the IPC socket.
//
//   - $LANCLIP_SOCKET when set
//   - $XDG_RUNTIME_DIR/lanclip.sock on Linux desktops
//   - $TMPDIR/lanclip.sock otherwise
func SocketPath() string {
	if s := os.Getenv("LANCLIP_SOCKET"); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "lanclip.sock")
	}
	return filepath.Join(os.TempDir(), "lanclip.sock")
}

// IsRunning reports whether a daemon appears to be listening on the IPC
// socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dial(ctx)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on the IPC socket path, removing a stale socket
// left by a crashed run. A live socket is left alone.
func Listen() (net.Listener, error) {
	path := SocketPath()
	if IsRunning() {
		return nil, fmt.Errorf("ipc listen %s: %w", path, ErrRunning)
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc listen %s: %w", path, err)
	}
	return ln, nil
}

// Dial connects to the IPC socket.
func Dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", SocketPath())
}

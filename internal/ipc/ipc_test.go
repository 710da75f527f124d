package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPathPrecedence(t *testing.T) {
	t.Setenv("LANCLIP_SOCKET", "/run/custom.sock")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/custom.sock", SocketPath())

	t.Setenv("LANCLIP_SOCKET", "")
	assert.Equal(t, filepath.Join("/run/user/1000", "lanclip.sock"), SocketPath())

	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Equal(t, filepath.Join(os.TempDir(), "lanclip.sock"), SocketPath())
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l.sock")
	t.Setenv("LANCLIP_SOCKET", path)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	assert.False(t, IsRunning())
	ln, err := Listen()
	require.NoError(t, err)
	defer ln.Close()

	assert.True(t, IsRunning())
	conn, err := Dial(context.Background())
	require.NoError(t, err)
	conn.Close()
}

func TestListenRefusesLiveSocket(t *testing.T) {
	t.Setenv("LANCLIP_SOCKET", filepath.Join(t.TempDir(), "l.sock"))
	ln, err := Listen()
	require.NoError(t, err)
	defer ln.Close()

	_, err = Listen()
	assert.ErrorIs(t, err, ErrRunning)
}

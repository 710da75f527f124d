package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/lanclip/internal/message"
)

func TestIsContainerID(t *testing.T) {
	assert.True(t, isContainerID("3f4e5d6c7b8a"))
	assert.False(t, isContainerID("laptop"))
	assert.False(t, isContainerID("3F4E5D6C7B8A"))
	assert.False(t, isContainerID("abc"))
}

func TestDefaultHostnamePrefersEnv(t *testing.T) {
	t.Setenv("CONTAINER_NAME", "clip-relay")
	assert.Equal(t, "clip-relay", defaultHostname())
}

func TestPortOf(t *testing.T) {
	assert.Equal(t, 9000, portOf("0.0.0.0:9000", 1))
	assert.Equal(t, message.APIPort, apiPortOf("0.0.0.0:0"))
	assert.Equal(t, message.APIPort, apiPortOf("garbage"))
}

func TestFmtAge(t *testing.T) {
	assert.Equal(t, "-", fmtAge(time.Time{}))
	assert.Equal(t, "5s ago", fmtAge(time.Now().Add(-5*time.Second)))
	assert.Equal(t, "3m ago", fmtAge(time.Now().Add(-3*time.Minute)))
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	printDevices(&buf, []message.Device{
		{Hostname: "a", Address: "10.0.0.1", Selected: true, Active: true, LastSeen: time.Now(), User: "kim"},
		{Hostname: "b", Address: "10.0.0.2", APIPort: 9000, Capabilities: []string{message.CapClipboardSync}},
	}, "ipc (/tmp/lanclip.sock)")

	out := buf.String()
	assert.Contains(t, out, "ipc (/tmp/lanclip.sock)")
	assert.Contains(t, out, "10.0.0.2:9000")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "stale")
	assert.Contains(t, out, "kim")

	buf.Reset()
	printDevices(&buf, nil, "tcp (x)")
	assert.Contains(t, buf.String(), "No peers discovered.")
}

func TestBindViperPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "lanclip.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("hostname = \"from-file\"\npush-workers = 3\ndebounce = \"1s\"\n"), 0o600))
	t.Setenv("LANCLIP_PUSH_WORKERS", "5")

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfg, "--debounce", "2s"}))
	v := viper.New()
	require.NoError(t, bindViper(cmd, v))

	assert.Equal(t, "from-file", v.GetString("hostname"))
	assert.Equal(t, 5, v.GetInt("push-workers"))
	assert.Equal(t, 2*time.Second, v.GetDuration("debounce"))
	assert.Equal(t, message.DiscoveryPort, v.GetInt("discovery-port"))
}

func TestBindViperFindsUserConfig(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honoured on linux")
	}
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "lanclip"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, "lanclip", "lanclip.toml"), []byte("hostname = \"from-xdg\"\n"), 0o600))

	assert.Equal(t, filepath.Join(home, "lanclip"), configDirs()[0])

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	v := viper.New()
	require.NoError(t, bindViper(cmd, v))
	assert.Equal(t, "from-xdg", v.GetString("hostname"))
}

func TestRootHasCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "devices", "select", "deselect", "paste", "sync", "enable", "disable", "status", "version"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

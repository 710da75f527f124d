package server_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/lanclip/internal/clip"
	"go.klb.dev/lanclip/internal/discovery"
	"go.klb.dev/lanclip/internal/message"
	"go.klb.dev/lanclip/internal/peerclient"
	"go.klb.dev/lanclip/internal/registry"
	"go.klb.dev/lanclip/internal/server"
	"go.klb.dev/lanclip/internal/syncer"
)

// node is one lanclip instance wired the way `lanclip serve` wires it,
// with an in-memory clipboard and loopback sockets.
type node struct {
	name  string
	reg   *registry.Registry
	mem   *clip.Memory
	coord *syncer.Coordinator
	http  *httptest.Server
	disc  *discovery.Service
	port  int
	posts atomic.Int32
}

func startNode(ctx context.Context, t *testing.T, name string, discoveryTargets ...string) *node {
	t.Helper()
	n := &node{name: name}
	n.reg = registry.New(registry.Options{AutoSelect: true})
	n.mem = clip.NewMemory("")
	n.coord = syncer.New(syncer.Config{Self: name, Debounce: 20 * time.Millisecond},
		n.mem, n.reg, peerclient.New(2*time.Second))
	t.Cleanup(n.coord.Close)

	h := server.New(n.coord, n.reg, server.Options{Name: name}).Handler()
	n.http = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/clipboard" {
			n.posts.Add(1)
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(n.http.Close)

	_, port, err := net.SplitHostPort(n.http.Listener.Addr().String())
	require.NoError(t, err)
	n.port, err = strconv.Atoi(port)
	require.NoError(t, err)

	if len(discoveryTargets) == 0 {
		// Keep test announcements off the real network.
		discoveryTargets = []string{"127.0.0.1:9"}
	}

	n.disc = discovery.New(discovery.Config{
		Hostname:   name,
		ListenAddr: "127.0.0.1:0",
		Targets:    discoveryTargets,
		Interval:   50 * time.Millisecond,
		APIPort:    n.port,
	}, n.reg)
	go func() { _ = n.disc.Serve(ctx) }()
	require.Eventually(t, func() bool { return n.disc.ListenAddr() != nil }, 5*time.Second, 5*time.Millisecond)

	w := syncer.NewWatcher(n.coord, clip.NewPoller(n.mem, 5*time.Millisecond))
	go func() { _ = w.Serve(ctx) }()
	return n
}

func (n *node) client() *peerclient.Client {
	return peerclient.NewServer(n.http.Listener.Addr().String(), 2*time.Second)
}

func TestTwoNodesSyncOverLoopback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startNode(ctx, t, "node-a")
	b := startNode(ctx, t, "node-b", a.disc.ListenAddr().String())

	// B announces to A; A lists B as a device.
	require.Eventually(t, func() bool {
		devs, err := a.client().Devices(ctx, true)
		return err == nil && len(devs) == 1 && devs[0].Hostname == "node-b"
	}, 5*time.Second, 10*time.Millisecond)

	devs, err := a.client().Devices(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", devs[0].Address)
	assert.True(t, devs[0].Selected)
	assert.Contains(t, devs[0].Capabilities, message.CapClipboardSync)

	// B also knows A, so a re-push from B would reach A's API.
	b.reg.Observe(&message.Announcement{
		Hostname:     "node-a",
		Capabilities: []string{message.CapClipboardSync},
		APIPort:      a.port,
	}, "127.0.0.1")

	// A copy on A shows up in B's API and B's clipboard.
	a.mem.Set("hello from a")
	require.Eventually(t, func() bool {
		st, err := b.client().Clipboard(ctx)
		return err == nil && st.Content == "hello from a"
	}, 5*time.Second, 10*time.Millisecond)

	st, err := b.client().Clipboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node-a", st.OriginHost)
	assert.Equal(t, uint64(1), st.Version)
	got, _ := b.mem.Read()
	assert.Equal(t, "hello from a", got)
	assert.Equal(t, 1, b.mem.Writes())

	// B received the content; it must not push it back to A, even after its
	// watcher has seen the clipboard write and the debounce has elapsed.
	time.Sleep(200 * time.Millisecond)
	b.coord.Wait()

	assert.Zero(t, a.posts.Load())
	assert.Equal(t, int32(1), b.posts.Load())
	assert.Equal(t, "node-a", b.coord.State().OriginHost)
	assert.Equal(t, uint64(1), a.coord.State().Version)
}

//go:build linux || darwin || windows

package clip

import (
	"log/slog"
	"sync"

	"golang.design/x/clipboard"
)

type nativeBackend struct {
	// clipboard.Write on X11 hands ownership to a goroutine; serialise
	// writers so a later write cannot be overtaken by an earlier one.
	mu sync.Mutex
}

// New returns the native clipboard backend, or a Memory backend if no
// display is available (a headless server without X11 or Wayland).
// clipboard.Init is called here rather than in init() so that CLI
// sub-commands that never touch the clipboard don't trigger the warning.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewMemory("")
	}
	return &nativeBackend{}
}

func (b *nativeBackend) Name() string { return "system clipboard (golang.design)" }

func (b *nativeBackend) Read() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (b *nativeBackend) Write(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (b *nativeBackend) Close() {}

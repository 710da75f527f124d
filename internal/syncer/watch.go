package syncer

import (
	"context"
	"log/slog"

	"go.klb.dev/lanclip/internal/clip"
)

// Watcher feeds clipboard changes detected by a Poller into a Coordinator.
type Watcher struct {
	c *Coordinator
	p *clip.Poller
}

// NewWatcher returns a Watcher. The poller starts from the coordinator's
// current content so the initial clipboard is not treated as a change.
func NewWatcher(c *Coordinator, p *clip.Poller) *Watcher {
	p.Reset(c.State().Content)
	return &Watcher{c: c, p: p}
}

// Serve polls until ctx is cancelled.
func (w *Watcher) Serve(ctx context.Context) error {
	slog.Debug("clipboard watcher started")
	for content := range w.p.Changes(ctx) {
		w.c.LocalChanged(content)
	}
	return ctx.Err()
}

func (w *Watcher) String() string { return "clipboard watcher" }

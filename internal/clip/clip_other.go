//go:build !darwin && !windows && !linux

package clip

import "log/slog"

// New returns a Memory backend; this platform has no supported clipboard.
func New() Backend {
	slog.Warn("no system clipboard on this platform, running headless")
	return NewMemory("")
}

package syncer

import (
	"context"
	"log/slog"

	"go.klb.dev/lanclip/internal/message"
)

// logState logs a clipboard event at INFO (origin, version, size) and the
// content preview at DEBUG.
func logState(event string, st message.ClipboardState, args ...any) {
	args = append(args, "origin", st.OriginHost, "version", st.Version, "size_bytes", len(st.Content))
	slog.Info(event, args...)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	slog.Debug("clipboard content", "preview", st.Preview())
}

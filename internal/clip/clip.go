// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the native implementation:
//
//	clip_native.go  linux, darwin, windows via golang.design/x/clipboard
//	clip_other.go   everything else, backed by Memory
//
// Change detection is poll based on every platform; see Poller.
package clip

// Backend is the interface that all clipboard implementations satisfy.
// Only plain text is synchronised.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard text. An empty clipboard or one
	// holding only non-text data reads as "".
	Read() (string, error)

	// Write replaces the clipboard contents with text.
	Write(text string) error

	// Close releases any resources held by the backend.
	Close()
}

// Open returns the native backend, or a Memory backend when headless is set.
func Open(headless bool) Backend {
	if headless {
		return NewMemory("")
	}
	return New()
}

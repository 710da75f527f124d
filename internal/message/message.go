// Package message defines the lanclip wire types.
//
// Two encodings share these types:
//
//   - UDP discovery: one JSON-encoded Announcement per datagram.
//   - HTTP clipboard API: JSON request and response bodies.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DiscoveryPort is the UDP port announcements are broadcast to and received on.
	DiscoveryPort = 8720
	// APIPort is the default TCP port of the HTTP clipboard API.
	APIPort = 8721

	// MaxAnnouncementSize is the largest datagram accepted by the listener (8 KiB).
	MaxAnnouncementSize = 8 * 1024
	// MaxStateSize bounds a POST /clipboard body (16 MiB).
	MaxStateSize = 16 * 1024 * 1024
)

// CapClipboardSync is advertised by every instance that serves the clipboard API.
const CapClipboardSync = "clipboard-sync"

var (
	// ErrMalformed is returned for payloads that are not a valid message.
	ErrMalformed = errors.New("malformed message")
	// ErrTooLarge is returned for payloads exceeding the size limit.
	ErrTooLarge = errors.New("message too large")
)

// Announcement is broadcast periodically by every running instance.
type Announcement struct {
	Hostname     string    `json:"hostname"`
	Address      string    `json:"address,omitempty"`
	Capabilities []string  `json:"capabilities"`
	Timestamp    time.Time `json:"timestamp"`

	// Instance is a per-process nonce; a restart produces a new one.
	Instance string `json:"instance,omitempty"`
	APIPort  int    `json:"apiPort,omitempty"`
	User     string `json:"user,omitempty"`
}

// HasCapability reports whether the announcement advertises c.
func (a *Announcement) HasCapability(c string) bool {
	for _, have := range a.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Encode serialises the announcement for a single datagram.
func (a *Announcement) Encode() ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("announcement encode: %w", err)
	}
	if len(b) > MaxAnnouncementSize {
		return nil, fmt.Errorf("announcement encode: %w (%d bytes)", ErrTooLarge, len(b))
	}
	return b, nil
}

// DecodeAnnouncement parses and validates one datagram.
func DecodeAnnouncement(b []byte) (*Announcement, error) {
	if len(b) > MaxAnnouncementSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, len(b))
	}
	var a Announcement
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	a.Hostname = strings.TrimSpace(a.Hostname)
	if a.Hostname == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrMalformed)
	}
	if a.APIPort < 0 || a.APIPort > 65535 {
		return nil, fmt.Errorf("%w: api port %d out of range", ErrMalformed, a.APIPort)
	}
	return &a, nil
}

// ClipboardState is the most recently known clipboard content.
type ClipboardState struct {
	Content    string `json:"content"`
	OriginHost string `json:"originHost"`
	Version    uint64 `json:"version"`
	// Instance is the origin's per-process nonce. A new instance restarts
	// the origin's version sequence.
	Instance string `json:"instance,omitempty"`
}

// Validate checks a state received from a peer.
func (s *ClipboardState) Validate() error {
	if strings.TrimSpace(s.OriginHost) == "" {
		return fmt.Errorf("%w: missing originHost", ErrMalformed)
	}
	return nil
}

// Preview returns content truncated for logging.
func (s *ClipboardState) Preview() string {
	return Preview(s.Content, 120)
}

// Preview truncates s to at most n bytes, marking the cut. The cut never
// splits a UTF-8 sequence.
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

// ApplyResponse is the body returned by POST /clipboard.
type ApplyResponse struct {
	Accepted bool   `json:"accepted"`
	Version  uint64 `json:"version"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Device is one entry of the GET /devices listing.
type Device struct {
	Hostname     string    `json:"hostname"`
	Address      string    `json:"address"`
	LastSeen     time.Time `json:"lastSeen"`
	Selected     bool      `json:"selected"`
	APIPort      int       `json:"apiPort,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	User         string    `json:"user,omitempty"`
	Active       bool      `json:"active"`
}

// SelectRequest is the body of PUT /devices/:hostname/selected.
type SelectRequest struct {
	Selected bool `json:"selected"`
}

// SelectResponse reports the outcome of a selection change.
type SelectResponse struct {
	Hostname string `json:"hostname"`
	Selected bool   `json:"selected"`
	Found    bool   `json:"found"`
}

// EnabledBody is used by GET and PUT /sync/enabled.
type EnabledBody struct {
	Enabled bool `json:"enabled"`
}

// Package peerclient speaks the lanclip HTTP API. The sync coordinator uses
// it to push to and pull from peers; the CLI uses it to reach the local
// daemon over the IPC socket or a daemon elsewhere on the LAN.
package peerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.klb.dev/lanclip/internal/message"
)

// unixHost is the placeholder authority used for requests over the socket.
const unixHost = "lanclip"

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Msg)
}

// Client is safe for concurrent use.
type Client struct {
	hc   *http.Client
	base string
}

// New returns a client for talking to arbitrary peers. timeout bounds each
// request in addition to any context deadline.
func New(timeout time.Duration) *Client {
	return &Client{
		hc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               nil,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
			},
		},
	}
}

// NewServer returns a client bound to the daemon at addr (host:port).
func NewServer(addr string, timeout time.Duration) *Client {
	c := New(timeout)
	c.base = "http://" + addr
	return c
}

// NewUnix returns a client bound to the daemon listening on the Unix socket
// at path.
func NewUnix(path string, timeout time.Duration) *Client {
	return NewDial(func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}, timeout)
}

// NewDial returns a client bound to the daemon reached through dial, such
// as ipc.Dial.
func NewDial(dial func(context.Context) (net.Conn, error), timeout time.Duration) *Client {
	return &Client{
		hc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dial(ctx)
				},
			},
		},
		base: "http://" + unixHost,
	}
}

// Push posts st to the peer at addr.
func (c *Client) Push(ctx context.Context, addr string, st message.ClipboardState) (message.ApplyResponse, error) {
	var resp message.ApplyResponse
	err := c.do(ctx, http.MethodPost, "http://"+addr+"/clipboard", st, &resp)
	return resp, err
}

// Fetch reads the clipboard state of the peer at addr.
func (c *Client) Fetch(ctx context.Context, addr string) (message.ClipboardState, error) {
	var st message.ClipboardState
	err := c.do(ctx, http.MethodGet, "http://"+addr+"/clipboard", nil, &st)
	return st, err
}

// Clipboard reads the bound daemon's clipboard state.
func (c *Client) Clipboard(ctx context.Context) (message.ClipboardState, error) {
	var st message.ClipboardState
	err := c.do(ctx, http.MethodGet, c.base+"/clipboard", nil, &st)
	return st, err
}

// Devices lists the bound daemon's peers.
func (c *Client) Devices(ctx context.Context, activeOnly bool) ([]message.Device, error) {
	u := c.base + "/devices"
	if activeOnly {
		u += "?active=true"
	}
	var out []message.Device
	err := c.do(ctx, http.MethodGet, u, nil, &out)
	return out, err
}

// SetSelected opts a peer in or out of sync.
func (c *Client) SetSelected(ctx context.Context, hostname string, selected bool) (message.SelectResponse, error) {
	var out message.SelectResponse
	u := c.base + "/devices/" + url.PathEscape(hostname) + "/selected"
	err := c.do(ctx, http.MethodPut, u, message.SelectRequest{Selected: selected}, &out)
	return out, err
}

// Sync triggers a manual sync and returns the resulting state.
func (c *Client) Sync(ctx context.Context) (message.ClipboardState, error) {
	var st message.ClipboardState
	err := c.do(ctx, http.MethodPost, c.base+"/sync", nil, &st)
	return st, err
}

// Enabled reports whether sync is on.
func (c *Client) Enabled(ctx context.Context) (bool, error) {
	var out message.EnabledBody
	err := c.do(ctx, http.MethodGet, c.base+"/sync/enabled", nil, &out)
	return out.Enabled, err
}

// SetEnabled turns sync on or off.
func (c *Client) SetEnabled(ctx context.Context, on bool) (bool, error) {
	var out message.EnabledBody
	err := c.do(ctx, http.MethodPut, c.base+"/sync/enabled", message.EnabledBody{Enabled: on}, &out)
	return out.Enabled, err
}

// Health checks that the bound daemon answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.base+"/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode: %w", method, u, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %w", method, u, statusError(resp))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, message.MaxStateSize)).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, u, err)
	}
	return nil
}

func statusError(resp *http.Response) *StatusError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	se := &StatusError{Code: resp.StatusCode}
	var body message.ApplyResponse
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		se.Msg = body.Error
	} else {
		se.Msg = strings.TrimSpace(string(b))
	}
	return se
}
